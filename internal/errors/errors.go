package errors

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrAlreadyExists      = errors.New("already exists")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrBelowMinimum       = errors.New("amount below minimum withdrawal")
	ErrAboveMaximum       = errors.New("amount above maximum withdrawal")
	ErrWithdrawalClosed   = errors.New("withdrawals are closed today")
	ErrMissingBankDetails = errors.New("bank details are not set")
	ErrGroupsNotJoined    = errors.New("required groups not joined")
	ErrInvalidStatus      = errors.New("invalid withdrawal status")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrSessionExpired     = errors.New("session has expired")
)

// ValidationError represents an error when validation fails
type ValidationError struct {
	Field   string
	Message string
}

// Error returns the error message
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for %s: %s", e.Field, e.Message)
}

// CooldownError is returned when a bonus is claimed before the cooldown has elapsed
type CooldownError struct {
	LastClaim time.Time
	Remaining time.Duration
}

// Error returns the error message
func (e *CooldownError) Error() string {
	return fmt.Sprintf("bonus claim on cooldown for another %s", e.Remaining.Round(time.Second))
}

// StateError represents an error related to user state
type StateError struct {
	UserID  int64
	State   string
	Message string
}

// Error returns the error message
func (e *StateError) Error() string {
	return fmt.Sprintf("state error for user %d in state %s: %s", e.UserID, e.State, e.Message)
}

// PermissionError represents an error related to permissions
type PermissionError struct {
	UserID         int64
	AccessType     string
	RequiredAccess string
}

// Error returns the error message
func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission error for user %d: has %s access, requires %s access", e.UserID, e.AccessType, e.RequiredAccess)
}

// ConfigError represents an error related to configuration
type ConfigError struct {
	Section string
	Message string
}

// Error returns the error message
func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error in %s: %s", e.Section, e.Message)
}

// APIError is returned by the admin API client for non-2xx responses
type APIError struct {
	Operation string
	Status    int
	Message   string
}

// Error returns the error message
func (e *APIError) Error() string {
	return fmt.Sprintf("admin API error during %s (status %d): %s", e.Operation, e.Status, e.Message)
}
