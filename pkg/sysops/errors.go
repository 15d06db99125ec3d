// pkg/sysops/errors.go - error kinds shared by every system collaborator.
//
// Collaborators (registry, files, services, devices, MSI) report failures as
// *Error values carrying a Kind. Callers branch on the kind instead of on
// platform error codes.

package sysops

import (
	"errors"
	"fmt"
	"io/fs"
)

// Kind classifies a system operation failure.
type Kind int

const (
	// Other is any failure that is not benign.
	Other Kind = iota
	// NotFound means the target (key, value, file, service, product) does not exist.
	NotFound
	// InUse means the target is held open by another process.
	InUse
)

// String returns the string representation of the Kind.
func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not-found"
	case InUse:
		return "in-use"
	default:
		return "other"
	}
}

// Error is a classified failure of a single system operation.
type Error struct {
	Op     string
	Target string
	Kind   Kind
	Err    error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %s: %s", e.Op, e.Target, e.Kind)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Target, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NotFoundf builds a NotFound error for target.
func NotFoundf(op, target string) error {
	return &Error{Op: op, Target: target, Kind: NotFound}
}

// InUsef builds an InUse error for target wrapping cause.
func InUsef(op, target string, cause error) error {
	return &Error{Op: op, Target: target, Kind: InUse, Err: cause}
}

// Wrap attaches op and target to err. Errors matching fs.ErrNotExist are
// classified as NotFound, errors that already carry a kind keep it, and
// everything else becomes Other. A nil err returns nil.
func Wrap(op, target string, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return &Error{Op: op, Target: target, Kind: se.Kind, Err: err}
	}
	kind := Other
	if errors.Is(err, fs.ErrNotExist) {
		kind = NotFound
	}
	return &Error{Op: op, Target: target, Kind: kind, Err: err}
}

// WithKind wraps err with an explicit kind.
func WithKind(op, target string, kind Kind, err error) error {
	return &Error{Op: op, Target: target, Kind: kind, Err: err}
}

// KindOf reports the kind of the outermost classified error in err's chain.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return Other
}

// IsNotFound reports whether err is a benign-absence failure.
func IsNotFound(err error) bool {
	return err != nil && KindOf(err) == NotFound
}

// IsInUse reports whether err is a benign-contention failure.
func IsInUse(err error) bool {
	return err != nil && KindOf(err) == InUse
}
