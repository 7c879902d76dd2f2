package mockprep

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound      = errors.New("mockprep: not found")
	ErrAlreadyExists = errors.New("mockprep: already exists")
	ErrInvalidInput  = errors.New("mockprep: invalid input")
	ErrInvalidAmount = errors.New("mockprep: invalid amount")
	ErrUnknownPlan   = errors.New("mockprep: unknown plan")

	// Auth errors
	ErrUnauthorized       = errors.New("mockprep: unauthorized")
	ErrForbidden          = errors.New("mockprep: forbidden")
	ErrInvalidCredentials = errors.New("mockprep: invalid credentials")
	ErrEmailTaken         = errors.New("mockprep: email already registered")
	ErrUserNotFound       = errors.New("mockprep: user not found")
	ErrUserInactive       = errors.New("mockprep: user is inactive")

	// Ledger errors
	ErrInsufficientCredits = errors.New("mockprep: insufficient credits")

	// Conversation errors
	ErrConversationNotFound  = errors.New("mockprep: conversation not found")
	ErrConversationNotActive = errors.New("mockprep: conversation is not active")

	// Payment errors
	ErrPaymentNotFound       = errors.New("mockprep: payment not found")
	ErrPaymentAlreadySettled = errors.New("mockprep: payment already settled")
	ErrPaymentNotPaid        = errors.New("mockprep: payment not paid")

	// Referral errors
	ErrReferralExists = errors.New("mockprep: referral already recorded")

	// Provider errors
	ErrProviderUnavailable   = errors.New("mockprep: payment provider unavailable")
	ErrProviderNotConfigured = errors.New("mockprep: payment provider not configured")
	ErrWebhookSignature      = errors.New("mockprep: webhook validation failed")

	// Store errors
	ErrStoreClosed       = errors.New("mockprep: store is closed")
	ErrTransactionFailed = errors.New("mockprep: transaction failed")
	ErrMigrationFailed   = errors.New("mockprep: migration failed")
)

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("mockprep: validation failed for %s: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is(err, ErrInvalidInput) match validation failures.
func (e ValidationError) Unwrap() error { return ErrInvalidInput }

// Invalid builds a ValidationError.
func Invalid(field, msg string) error {
	return ValidationError{Field: field, Message: msg}
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrConversationNotFound) ||
		errors.Is(err, ErrPaymentNotFound)
}

// IsValidation returns true for malformed input.
func IsValidation(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrUnknownPlan)
}

// IsConflict returns true when the request clashes with current state.
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadyExists) ||
		errors.Is(err, ErrEmailTaken) ||
		errors.Is(err, ErrConversationNotActive) ||
		errors.Is(err, ErrPaymentAlreadySettled) ||
		errors.Is(err, ErrReferralExists)
}

// IsRetryable returns true if the error is temporary and the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrProviderUnavailable) ||
		errors.Is(err, ErrTransactionFailed)
}
