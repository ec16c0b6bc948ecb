package service

import "errors"

// Common service errors
var (
	// ErrPermissionDenied is returned when a user doesn't have permission for an action
	ErrPermissionDenied = errors.New("permission denied")

	// ErrNotFound is returned when a resource is not found
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")

	// ErrConflict is returned when there's a conflict (e.g., duplicate)
	ErrConflict = errors.New("resource conflict")

	// ErrUnauthorized is returned when user is not authenticated
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidCredentials is returned when a login attempt fails
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUserNotFound is returned when a user is not found
	ErrUserNotFound = errors.New("user not found")

	// ErrInvalidStatus is returned when a lifecycle transition is not allowed
	// from the entity's current status
	ErrInvalidStatus = errors.New("invalid status transition")

	// ErrMissingSignature is returned when a quote is converted before both
	// signatures are uploaded
	ErrMissingSignature = errors.New("quote requires both signatures")

	// ErrAlreadyConverted is returned when a quote already has an invoice
	ErrAlreadyConverted = errors.New("quote already converted to invoice")

	// ErrEmptyQuote is returned when a quote has no line items
	ErrEmptyQuote = errors.New("quote has no line items")

	// ErrPaymentNotPending is returned when a mutation targets a payment
	// that is no longer pending
	ErrPaymentNotPending = errors.New("payment is not pending")

	// ErrOverpayment is returned when a payment would exceed the invoice balance
	ErrOverpayment = errors.New("payment exceeds outstanding balance")

	// ErrSubscriptionInactive is returned when an operation needs a live subscription
	ErrSubscriptionInactive = errors.New("subscription is not active")

	// ErrUnknownField is returned when a field value references a field the
	// plan does not declare
	ErrUnknownField = errors.New("plan does not declare this field")
)
