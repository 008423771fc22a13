package entities

import "errors"

var (
	// ErrAccessDenied is returned when the actor lacks rights to the protected match view
	ErrAccessDenied = errors.New("access_denied")

	// ErrMatchNotFound is returned when no match exists for an id
	ErrMatchNotFound = errors.New("match not found")

	// ErrWalletNotFound is returned when a user has no wallet
	ErrWalletNotFound = errors.New("wallet not found")
)
