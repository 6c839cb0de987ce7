// Package errors defines the error taxonomy the storage abstraction layer
// surfaces to its callers. The taxonomy is deliberately abstracted away from
// any wire protocol: a front end (S3 REST, Swift, etc.) maps these sentinels
// to its own fault codes rather than this package knowing about them.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for the core taxonomy (spec §7). Wrap one with Wrap to
// attach context; callers distinguish cases with errors.Is or the Is*
// helpers below.
var (
	// NotFound is returned when the named entity is absent. A front end maps
	// this to NoSuchBucket / NoSuchKey / NoSuchUpload depending on context.
	NotFound = errors.New("not found")

	// AlreadyExists is returned when create is attempted on an extant entity.
	AlreadyExists = errors.New("already exists")

	// PreconditionFailed is returned when a conditional GET/PUT check failed
	// (if-match, if-none-match, if-modified-since, if-unmodified-since).
	PreconditionFailed = errors.New("precondition failed")

	// InvalidArgument is returned for malformed input: a bad tag, an illegal
	// version-id marker, a too-small multipart part, mismatched part etags.
	InvalidArgument = errors.New("invalid argument")

	// NotEmpty is returned when a bucket delete is attempted while it still
	// contains objects or in-progress multipart uploads.
	NotEmpty = errors.New("not empty")

	// VersionConflict is returned when an optimistic version check on a user
	// record update does not match the stored version (ECANCELED in the
	// source's terms).
	VersionConflict = errors.New("version conflict")

	// NotAllowed is returned when a delete-marker is targeted by a GET/HEAD
	// that supplied an explicit version instance.
	NotAllowed = errors.New("not allowed")

	// NotImplemented is returned for operations this core declines to
	// perform: cross-zonegroup copy, encrypted-source copy.
	NotImplemented = errors.New("not implemented")

	// Transport is returned when the underlying object/index service itself
	// fails; the original error is wrapped, not replaced, so callers can
	// still unwrap to the backend-specific cause.
	Transport = errors.New("transport failure")
)

// Wrap attaches a formatted message to one of the sentinels above while
// keeping it discoverable via errors.Is.
func Wrap(sentinel error, format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), sentinel)
}

// IsNotFound reports whether err is, or wraps, NotFound.
func IsNotFound(err error) bool { return errors.Is(err, NotFound) }

// IsAlreadyExists reports whether err is, or wraps, AlreadyExists.
func IsAlreadyExists(err error) bool { return errors.Is(err, AlreadyExists) }

// IsPreconditionFailed reports whether err is, or wraps, PreconditionFailed.
func IsPreconditionFailed(err error) bool { return errors.Is(err, PreconditionFailed) }

// IsNotAllowed reports whether err is, or wraps, NotAllowed.
func IsNotAllowed(err error) bool { return errors.Is(err, NotAllowed) }

// IsVersionConflict reports whether err is, or wraps, VersionConflict.
func IsVersionConflict(err error) bool { return errors.Is(err, VersionConflict) }

// IsInvalidArgument reports whether err is, or wraps, InvalidArgument.
func IsInvalidArgument(err error) bool { return errors.Is(err, InvalidArgument) }

// IsNotImplemented reports whether err is, or wraps, NotImplemented.
func IsNotImplemented(err error) bool { return errors.Is(err, NotImplemented) }

// IsNotEmpty reports whether err is, or wraps, NotEmpty.
func IsNotEmpty(err error) bool { return errors.Is(err, NotEmpty) }

// IsTransport reports whether err is, or wraps, Transport.
func IsTransport(err error) bool { return errors.Is(err, Transport) }
