// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service/session layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates a request that failed validation (empty names, unknown permissions).
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidCredentials indicates a username/password pair that matches no account.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrDuplicateUsername indicates a unique constraint violation on username.
	ErrDuplicateUsername = errors.New("username already exists")

	// ErrWrongMasterPassphrase indicates the shared master passphrase did not match.
	ErrWrongMasterPassphrase = errors.New("wrong master passphrase")

	// ErrInvalidTransition indicates a request that is not valid in the current session state.
	ErrInvalidTransition = errors.New("invalid session transition")

	// ErrUnauthorized indicates a missing or invalid bearer token / session.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the user lacks the permission for the action.
	ErrForbidden = errors.New("forbidden")

	// ErrFileNotFound indicates a stored file disappeared or never existed.
	ErrFileNotFound = errors.New("file not found")

	// ErrInvalidPath indicates a project/discipline/phase/filename segment that cannot be stored.
	ErrInvalidPath = errors.New("invalid path segment")

	// ErrStorageWrite indicates the upload could not be written to disk.
	ErrStorageWrite = errors.New("storage write failure")

	// ErrLogWrite indicates the action log could not be appended.
	ErrLogWrite = errors.New("log write failure")
)
