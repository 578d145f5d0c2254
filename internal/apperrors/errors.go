package apperrors

import "errors"

// ErrNotFound indicates that a requested resource could not be found,
// or is not visible to the caller.
var ErrNotFound = errors.New("resource not found")

// ErrValidation indicates that input data or a business rule check failed.
var ErrValidation = errors.New("validation error")

// ErrConflict indicates an optimistic concurrency conflict: the row was
// modified by another writer between read and conditional write.
// Never retried silently; the caller decides.
var ErrConflict = errors.New("concurrency conflict")

// ErrForbidden indicates the operation is not permitted for this caller
// (e.g. a debit attempt by a blocked owner).
var ErrForbidden = errors.New("operation forbidden")

// ErrDuplicate indicates that an attempt was made to create a resource that already exists.
var ErrDuplicate = errors.New("resource already exists")
