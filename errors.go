package img2map

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by this package wraps exactly one of
// these, so callers can branch with errors.Is.
var (
	ErrConfig      = errors.New("config error")
	ErrImageDecode = errors.New("image decode error")
	ErrDirectory   = errors.New("directory error")
	ErrTemplate    = errors.New("map template error")
	ErrWrite       = errors.New("write error")
)

// Error ties a failure to its kind and, where known, the file involved.
type Error struct {
	Kind error
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%v: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%v: %s: %v", e.Kind, e.Path, e.Err)
}

func (e *Error) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

func newError(kind error, path string, err error) error {
	return &Error{Kind: kind, Path: path, Err: err}
}

// IsFatal reports whether err affects every file of a batch identically and
// should therefore abort it. Decode and write failures are per file.
func IsFatal(err error) bool {
	return errors.Is(err, ErrConfig) ||
		errors.Is(err, ErrTemplate) ||
		errors.Is(err, ErrDirectory)
}
