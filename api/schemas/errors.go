// File: api/schemas/errors.go
package schemas

import "errors"

// Sentinel errors for the failure taxonomy. Only ErrInvalidURL, ErrForkFailed
// (when forking is required) and ErrCloneFailed abort a session; everything
// else is phase-local and logged.
var (
	// ErrInvalidURL means the repository URL is not an accepted
	// https://github.com/<owner>/<repo> form. Raised before any sandbox
	// exists, so no cleanup is needed.
	ErrInvalidURL = errors.New("invalid repository url")

	// ErrCloneFailed wraps a non-zero git clone exit. Fatal to the session.
	ErrCloneFailed = errors.New("clone failed")

	// ErrForkFailed marks a fork that could not be created. Fatal only
	// under a required-fork policy.
	ErrForkFailed = errors.New("fork failed")

	// ErrPushFailed marks a push that was rejected (auth, protected
	// branch). Non-fatal at the attempt level.
	ErrPushFailed = errors.New("push failed")

	// ErrCommandTimeout marks a child process that hit its hard timeout
	// and was force-terminated. Distinct from a non-zero exit.
	ErrCommandTimeout = errors.New("command timed out")

	// ErrSessionNotFound is returned by session stores for unknown ids.
	ErrSessionNotFound = errors.New("session not found")
)
