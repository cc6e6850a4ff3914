package domain

import "github.com/cockroachdb/errors"

// Common errors
var (
	ErrNotFound     = errors.New("record not found")
	ErrForbidden    = errors.New("access forbidden")
	ErrUnauthorized = errors.New("invalid credentials")
	ErrValidation   = errors.New("validation failed")
)

// Billing engine errors
var (
	// ErrInvalidCustomer is returned when a customer record is missing billing fields
	// (billing cycle day outside 1..31, negative fee, empty name).
	ErrInvalidCustomer = errors.Mark(errors.New("invalid customer"), ErrValidation)

	// ErrDuplicateInvoiceID is returned when an invoice id collides with a stored one.
	ErrDuplicateInvoiceID = errors.New("duplicate invoice id")

	// ErrInvoiceNotFound is returned when a payment targets an unknown invoice.
	ErrInvoiceNotFound = errors.Mark(errors.New("invoice not found"), ErrNotFound)

	// ErrInvalidTransition is returned for a status change the lifecycle does not allow.
	ErrInvalidTransition = errors.New("invalid invoice status transition")
)
