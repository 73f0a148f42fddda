package domain

import "errors"

// Directory errors. Callers match them with errors.Is; stores and services wrap
// them with context using %w.
var (
	// ErrInvalidEmailFormat is returned when an address is not a syntactically valid email.
	ErrInvalidEmailFormat = errors.New("invalid email format")
	// ErrDomainNotFound is returned when no Domain matches the requested fqdn.
	ErrDomainNotFound = errors.New("domain not found")
	// ErrMailUserNotFound is returned when the domain exists but the mailbox does not.
	ErrMailUserNotFound = errors.New("mail user not found")
	// ErrAliasNotFound is returned when no Alias matches the requested id.
	ErrAliasNotFound = errors.New("alias not found")
	// ErrDuplicateKey is returned when a write would violate a unique constraint.
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrIncorrectPassword is returned when the current password does not verify.
	ErrIncorrectPassword = errors.New("incorrect password")
	// ErrEncoding is returned when a password or salt is not representable as Latin-1.
	ErrEncoding = errors.New("password is not representable in a single-byte encoding")
	// ErrDomainInUse is returned when deleting a domain that still owns mail users or aliases.
	ErrDomainInUse = errors.New("domain still owns mail users or aliases")
	// ErrInactive is returned when authenticating against an inactive mailbox or domain.
	ErrInactive = errors.New("mailbox or domain is inactive")
	// ErrTooManyAttempts is returned when credential checks for an address are rate limited.
	ErrTooManyAttempts = errors.New("too many authentication attempts")
)

// Validation errors are refinements of ErrInvalidEmailFormat.
var (
	ErrInvalidUsername = &validationError{msg: "invalid username: only letters, digits, hyphen and underscore are allowed"}
	ErrInvalidDomain   = &validationError{msg: "invalid domain name"}
	ErrEmailTooLong    = &validationError{msg: "email address too long"}
)

type validationError struct {
	msg string
}

func (e *validationError) Error() string { return e.msg }

// Is lets errors.Is(err, ErrInvalidEmailFormat) match every validation failure.
func (e *validationError) Is(target error) bool {
	return target == ErrInvalidEmailFormat
}
