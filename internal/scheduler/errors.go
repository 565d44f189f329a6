package scheduler

import "errors"

// Configuration errors reported before a workflow starts.
var (
	ErrInvalidConcurrency = errors.New("concurrency must be at least 1")
	ErrEmptyID            = errors.New("member has empty ID")
	ErrDuplicateMember    = errors.New("duplicate member ID")
	ErrCycle              = errors.New("dependency cycle detected")
	ErrForwardDependency  = errors.New("sequential member depends on a later member")
)

// ConfigError describes a workflow that must not be run.
type ConfigError struct {
	Member string // Offending member, if any
	Err    error  // One of the sentinel errors above
	Detail string
}

func (e *ConfigError) Error() string {
	msg := "invalid workflow: " + e.Err.Error()
	if e.Member != "" {
		msg += " (member " + e.Member + ")"
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *ConfigError) Unwrap() error { return e.Err }
