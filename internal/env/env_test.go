//go:build unit
// +build unit

package env

import (
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	t.Setenv("LABSANDBOX_HOST", "cs.example.com")
	t.Setenv("LABSANDBOX_PORT", "82")
	t.Setenv("LABSANDBOX_USE_HTTPS", "true")
	t.Setenv("LABSANDBOX_USERNAME", "admin")
	t.Setenv("LABSANDBOX_PASSWORD", "secret")
	t.Setenv("LABSANDBOX_HTTP_TIMEOUT", "5s")

	s, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if s.Host != "cs.example.com" || s.Port != 82 {
		t.Fatalf("unexpected endpoint: %s:%d", s.Host, s.Port)
	}
	if s.UseHTTPS == nil || !*s.UseHTTPS {
		t.Fatal("expected https")
	}
	if s.RetryMax != 2 {
		t.Fatalf("unexpected default retry max: %d", s.RetryMax)
	}
	if s.Timeout != 5*time.Second {
		t.Fatalf("unexpected timeout: %s", s.Timeout)
	}

	username, password := CredentialsFromEnvironment()
	if username != "admin" || password != "secret" {
		t.Fatal("unexpected credentials")
	}
}

func TestCredentialsRequireBoth(t *testing.T) {
	t.Setenv("LABSANDBOX_USERNAME", "admin")
	t.Setenv("LABSANDBOX_PASSWORD", "")

	if username, password := CredentialsFromEnvironment(); username != "" || password != "" {
		t.Fatal("credentials should be empty when password is missing")
	}
}

func TestInvalidValue(t *testing.T) {
	t.Setenv("LABSANDBOX_PORT", "not-a-port")
	if _, err := Load(); err == nil {
		t.Fatal("expected parse error")
	}
}
