package errclass

import "fmt"

// SyncError is a stable, machine-readable error class.
type SyncError struct {
	Code    string
	Message string
}

func (e *SyncError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *SyncError) Is(target error) bool {
	t, ok := target.(*SyncError)
	return ok && e.Code == t.Code
}

// WithMessage returns a new SyncError with the same Code but a specific message.
func (e *SyncError) WithMessage(msg string) *SyncError {
	return &SyncError{Code: e.Code, Message: msg}
}

// WithMessagef returns a new SyncError with a formatted message.
func (e *SyncError) WithMessagef(format string, args ...any) *SyncError {
	return &SyncError{Code: e.Code, Message: fmt.Sprintf(format, args...)}
}

// All stable error classes.
var (
	ErrNameInvalid       = &SyncError{Code: "E_NAME_INVALID"}
	ErrScopeInvalid      = &SyncError{Code: "E_SCOPE_INVALID"}
	ErrNotMounted        = &SyncError{Code: "E_NOT_MOUNTED"}
	ErrNotWritable       = &SyncError{Code: "E_NOT_WRITABLE"}
	ErrLockHeld          = &SyncError{Code: "E_LOCK_HELD"}
	ErrLockRace          = &SyncError{Code: "E_LOCK_RACE"}
	ErrColdOwnership     = &SyncError{Code: "E_COLD_OWNERSHIP"}
	ErrColdDetached      = &SyncError{Code: "E_COLD_DETACHED"}
	ErrMirrorUnavailable = &SyncError{Code: "E_MIRROR_UNAVAILABLE"}
	ErrSchedUnavailable  = &SyncError{Code: "E_SCHED_UNAVAILABLE"}
	ErrConfigInvalid     = &SyncError{Code: "E_CONFIG_INVALID"}
)
