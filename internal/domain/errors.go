package domain

import "errors"

var (
	// ErrUnauthorized signals that the dogs API rejected the session credentials (HTTP 401).
	ErrUnauthorized = errors.New("unauthorized")
	// ErrUpstream signals any other dogs API failure.
	ErrUpstream = errors.New("dogs api error")
	// ErrInvalidLogin signals missing or malformed login form fields.
	ErrInvalidLogin = errors.New("invalid login")
	// ErrSessionNotFound signals an unknown or expired session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrNoLikedDogs signals a match request with an empty liked set.
	ErrNoLikedDogs = errors.New("no liked dogs")
)
