package conf

import (
	"fmt"
	"runtime"
)

const Version = "1.4.0"

const (
	CONTENT_TYPE_JSON = "application/json"
	CONTENT_TYPE_FORM = "application/x-www-form-urlencoded"
	CONTENT_TYPE_TEXT = "text/plain"
)

// UserAgent 返回 SDK 默认的 User-Agent
func UserAgent() string {
	return fmt.Sprintf("LabSandboxGo/%s (%s; %s; %s)", Version, runtime.GOOS, runtime.GOARCH, runtime.Version())
}
