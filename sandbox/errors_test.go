package sandbox

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/labsandbox/go-sdk/internal/clientv2"
)

func TestAPIErrorMessage(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		code    string
		message string
		want    string
	}{
		{"message", 400, `{"message":"blueprint not found"}`, "", "blueprint not found", "api error: status 400: blueprint not found"},
		{"error field", 401, `{"errorCode":"AUTH","error":"token expired"}`, "AUTH", "token expired", "api error: status 401: token expired"},
		{"code only", 500, `{"code":"E500"}`, "E500", "", `api error: status 500, body: {"code":"E500"}`},
		{"plain text", 502, "bad gateway", "", "", "api error: status 502, body: bad gateway"},
		{"empty", 404, "", "", "", "api error: status 404, body: "},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := newAPIError(tc.status, []byte(tc.body))
			if err.Code != tc.code || err.Message != tc.message {
				t.Errorf("unexpected parse result: code=%q message=%q", err.Code, err.Message)
			}
			if err.Error() != tc.want {
				t.Errorf("Error() = %q, want %q", err.Error(), tc.want)
			}
			if err.HTTPStatusCode() != tc.status {
				t.Errorf("HTTPStatusCode() = %d", err.HTTPStatusCode())
			}
		})
	}
}

func TestToAPIError(t *testing.T) {
	respErr := &clientv2.ResponseError{StatusCode: http.StatusNotFound, Body: []byte(`{"message":"no such sandbox"}`), RequestID: "req-1"}
	err := toAPIError(fmt.Errorf("do request: %w", respErr))

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.RequestID != "req-1" || apiErr.Message != "no such sandbox" {
		t.Errorf("unexpected api error: %+v", apiErr)
	}
	if !isNotFoundError(err) {
		t.Error("404 should be a not found error")
	}

	plain := errors.New("dial tcp: connection refused")
	if toAPIError(plain) != plain {
		t.Error("non response errors should be returned unchanged")
	}
	if isNotFoundError(plain) {
		t.Error("plain error is not a not found error")
	}
}

func TestPollingTimeoutErrorIs(t *testing.T) {
	cases := []struct {
		kind          PollingTimeoutKind
		orchestration bool
		command       bool
	}{
		{TimeoutUnspecified, false, false},
		{TimeoutOrchestration, true, false},
		{TimeoutCommand, false, true},
	}
	for _, tc := range cases {
		err := fmt.Errorf("wrapped: %w", &PollingTimeoutError{Kind: tc.kind, MaxWait: time.Minute})
		if !errors.Is(err, ErrPollingTimeout) {
			t.Errorf("%s: should match ErrPollingTimeout", tc.kind)
		}
		if errors.Is(err, ErrOrchestrationPollingTimeout) != tc.orchestration {
			t.Errorf("%s: unexpected orchestration match", tc.kind)
		}
		if errors.Is(err, ErrCommandPollingTimeout) != tc.command {
			t.Errorf("%s: unexpected command match", tc.kind)
		}
		if errors.Is(err, ErrSetupFailed) {
			t.Errorf("%s: timeout is not a failure", tc.kind)
		}
	}
}

func TestPollingTimeoutErrorMessage(t *testing.T) {
	err := &PollingTimeoutError{Kind: TimeoutOrchestration, Operation: "setup", ID: "sb-1", MaxWait: 2 * time.Second, Attempts: 3}
	want := `setup polling for "sb-1" timed out after 2s (3 attempts)`
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestFailureErrorsIs(t *testing.T) {
	setupErr := &SetupFailedError{SandboxID: "sb-1", Details: &SandboxDetails{SetupStage: SetupStageProvisioning}}
	if !errors.Is(setupErr, ErrSetupFailed) || errors.Is(setupErr, ErrTeardownFailed) {
		t.Error("unexpected SetupFailedError matching")
	}
	teardownErr := &TeardownFailedError{SandboxID: "sb-1", Watermark: 5}
	if !errors.Is(teardownErr, ErrTeardownFailed) || errors.Is(teardownErr, ErrPollingTimeout) {
		t.Error("unexpected TeardownFailedError matching")
	}
	commandErr := &CommandExecutionFailedError{Execution: &ExecutionDetails{ID: "ex-1", Status: ExecutionFailed}}
	if !errors.Is(commandErr, ErrCommandExecutionFailed) {
		t.Error("unexpected CommandExecutionFailedError matching")
	}
	if (&CommandExecutionFailedError{}).Error() != ErrCommandExecutionFailed.Error() {
		t.Error("nil execution should fall back to the sentinel message")
	}
}

func TestIsValidDuration(t *testing.T) {
	cases := map[string]bool{
		"PT2H0M":  true,
		"PT30M":   true,
		"P1DT12H": true,
		"PT1.5S":  true,
		"P1W":     true,
		"":        false,
		"P":       false,
		"PT":      false,
		"2h":      false,
		"PT2X":    false,
		"pt2h":    false,
	}
	for d, want := range cases {
		if got := IsValidDuration(d); got != want {
			t.Errorf("IsValidDuration(%q) = %v, want %v", d, got, want)
		}
	}
}

func TestValidateStartParams(t *testing.T) {
	if err := defaultValidator.Validate(&StartParams{BlueprintID: "bp", Duration: "PT1H"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := defaultValidator.Validate(&StartParams{BlueprintID: "bp"}); err != nil {
		t.Errorf("empty duration should be allowed: %v", err)
	}
	if err := defaultValidator.Validate(&StartParams{Duration: "PT1H"}); !errors.Is(err, ErrInvalidParams) {
		t.Errorf("missing blueprint should be rejected, got %v", err)
	}
	if err := defaultValidator.Validate(&StartParams{BlueprintID: "bp", Duration: "2 hours"}); !errors.Is(err, ErrInvalidParams) {
		t.Errorf("bad duration should be rejected, got %v", err)
	}
	if err := defaultValidator.Validate(&CommandParams{Params: []Param{{Name: ""}}}); !errors.Is(err, ErrInvalidParams) {
		t.Errorf("unnamed command param should be rejected, got %v", err)
	}
	var nilParams *CommandParams
	if err := defaultValidator.Validate(nilParams); err != nil {
		t.Errorf("nil params should be valid: %v", err)
	}
}
