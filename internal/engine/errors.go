package engine

import "errors"

// Error taxonomy for the policy engine. Control-channel replies and hook
// return values are derived from these; callers test with [errors.Is].
var (
	// ErrInvalidArgument covers bounds violations, missing fields, and
	// malformed payloads.
	ErrInvalidArgument = errors.New("secadm: invalid argument")

	// ErrPathResolution means the rule's path could not be resolved or its
	// attributes could not be read.
	ErrPathResolution = errors.New("secadm: path resolution failed")

	// ErrNotRegularFile means the rule's path resolved to something other
	// than a regular file.
	ErrNotRegularFile = errors.New("secadm: not a regular file")

	// ErrUnsupported is returned for the reserved extended rule family.
	ErrUnsupported = errors.New("secadm: rule kind not supported")

	// ErrDuplicate means another rule of the same kind already targets the
	// same (mount point, file id) in the jail.
	ErrDuplicate = errors.New("secadm: duplicate rule for file")

	// ErrNotFound is returned where a caller asks for a rule id that does
	// not exist. Mutations treat a miss as a no-op instead.
	ErrNotFound = errors.New("secadm: rule not found")

	// ErrIntegrityViolation denies an exec whose target does not match the
	// rule's digest, or whose contents could not be read.
	ErrIntegrityViolation = errors.New("secadm: integrity violation")

	// ErrImmutable denies an unlink of a file guarded by an active rule.
	ErrImmutable = errors.New("secadm: file is immutable")

	// ErrInternal covers failures inside the engine itself. Enforcement
	// hooks fail closed with this.
	ErrInternal = errors.New("secadm: internal error")
)
