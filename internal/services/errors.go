// Package services holds the guestbook's business rules: accounts in
// CredentialStore and posts, guestbook entries and likes in ContentStore.
//
// Errors returned from this package wrap one of the sentinels below with
// fmt.Errorf("...: %w", err). Handlers match them with errors.Is:
//
//	switch {
//	case errors.Is(err, services.ErrValidation):
//	    writeError(w, http.StatusBadRequest, services.UserMessage(err))
//	case errors.Is(err, services.ErrNotFound):
//	    writeError(w, http.StatusNotFound, "Post not found")
//	}
package services

import (
	"context"
	"errors"
	"fmt"

	"guestbook/internal/repos"
)

var (
	// ErrValidation indicates user input was rejected.
	// HTTP Status: 400 Bad Request (JSON), flash + redisplay (pages)
	ErrValidation = errors.New("validation failed")

	// ErrDuplicateHandle indicates the login handle is already registered.
	// Matches ErrValidation as well.
	ErrDuplicateHandle = &validationError{msg: "This User ID is already taken"}

	// ErrInvalidFileType indicates an uploaded image has a disallowed extension.
	// Matches ErrValidation as well.
	ErrInvalidFileType = &validationError{msg: "Invalid file type"}

	// ErrNotFound indicates the post or entry does not exist.
	// HTTP Status: 404 Not Found
	ErrNotFound = errors.New("not found")

	// ErrInvalidCredentials covers both an unknown handle and a wrong password.
	// HTTP Status: 401 Unauthorized
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrForbidden indicates the actor is neither the author nor an admin.
	// HTTP Status: 403 Forbidden
	ErrForbidden = errors.New("forbidden")

	// ErrUnavailable indicates the request ran out of time waiting on the store.
	// HTTP Status: 503 Service Unavailable
	ErrUnavailable = errors.New("service unavailable")
)

// validationError carries a message that is safe to show to the user
type validationError struct {
	msg string
}

func (e *validationError) Error() string { return e.msg }

func (e *validationError) Unwrap() error { return ErrValidation }

func invalid(msg string) error {
	return &validationError{msg: msg}
}

// UserMessage returns the user-facing text of a validation error
func UserMessage(err error) string {
	var ve *validationError
	if errors.As(err, &ve) {
		return ve.msg
	}
	return "Invalid input"
}

// storeErr wraps a repository failure, translating missing rows and
// an expired request context into service sentinels.
func storeErr(ctx context.Context, op string, err error) error {
	switch {
	case errors.Is(err, repos.ErrNotFound), errors.Is(err, repos.ErrMissingReference):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled), ctx.Err() != nil:
		return fmt.Errorf("%s: %w", op, errors.Join(ErrUnavailable, err))
	}
	return fmt.Errorf("%s: %w", op, err)
}
