package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrAlreadyExists       = errors.New("already exists")
	ErrLockHeld            = errors.New("lock already held")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrSignerNotConfigured = errors.New("signer not configured")
	ErrPositionNotActive   = errors.New("position not active")
	ErrTerminalState       = errors.New("transaction already in terminal state")
)
