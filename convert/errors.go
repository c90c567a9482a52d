package convert

import (
	"errors"
	"fmt"
)

// Session steps reported in SessionError.
const (
	StepPrepare  = "prepare"
	StepLaunch   = "launch"
	StepUpload   = "upload"
	StepSubmit   = "submit"
	StepDownload = "download"
	StepVerify   = "verify"
)

// ErrArtifactExists marks a candidate whose artifact path is already
// taken by a file the session did not write.
var ErrArtifactExists = errors.New("artifact path already exists")

// ErrTimeout marks a remote interaction that exceeded the step timeout.
var ErrTimeout = errors.New("remote interaction timed out")

// SessionError is a hard failure of a conversion session. Sessions are
// never retried.
type SessionError struct {
	// Tool is the tool name, "browser" for launch failures or "session"
	// for prepare failures.
	Tool string
	// Step is one of the Step* constants.
	Step string
	Err  error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("conversion session: %s %s: %v", e.Tool, e.Step, e.Err)
}

func (e *SessionError) Unwrap() error {
	return e.Err
}

// IsTimeout reports whether err is a session timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}
