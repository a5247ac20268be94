// Package errs defines the error taxonomy shared by the config, repository,
// catalog and fetcher packages. Every failure is an *Error carrying one of the
// sentinel kinds below, so callers can branch with errors.Is without string
// matching.
package errs

import (
	"errors"
)

// Sentinel kinds. Match them with errors.Is.
var (
	ErrConfig             = errors.New("config error")
	ErrRepositoryNotFound = errors.New("repository not found")
	ErrLocalPathNotExist  = errors.New("local path does not exist")
	ErrInvalidLink        = errors.New("invalid repository link")
	ErrConnectFailed      = errors.New("connection failed")
	ErrScriptNotFound     = errors.New("script not found")
	ErrFormat             = errors.New("invalid format")
	ErrNotFound           = errors.New("file not found")
	ErrIO                 = errors.New("i/o error")
)

// Error is a classified failure. Subject names the thing that failed (a path,
// URL, repository or script name) and Err is the optional underlying cause.
type Error struct {
	Kind    error
	Subject string
	Err     error
}

// New returns an *Error of the given kind.
func New(kind error, subject string, err error) *Error {
	return &Error{Kind: kind, Subject: subject, Err: err}
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Subject != "" {
		msg += ": " + e.Subject
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is reports whether target is this error's kind.
func (e *Error) Is(target error) bool {
	return e.Kind == target
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsRepository reports whether err belongs to the repository family
// (not found, missing local path, bad link, unreachable remote).
func IsRepository(err error) bool {
	return errors.Is(err, ErrRepositoryNotFound) ||
		errors.Is(err, ErrLocalPathNotExist) ||
		errors.Is(err, ErrInvalidLink) ||
		errors.Is(err, ErrConnectFailed)
}

// KindOf returns the sentinel kind of err, or nil when err is not classified.
func KindOf(err error) error {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return nil
}
