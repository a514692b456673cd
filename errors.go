package orders

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound            = errors.New("orders: not found")
	ErrInvalidInput        = errors.New("orders: invalid input")
	ErrInvalidTransition   = errors.New("orders: invalid status transition")
	ErrConcurrencyConflict = errors.New("orders: concurrent modification")
	ErrReferenceMismatch   = errors.New("orders: erp reference mismatch")
	ErrInsufficientStock   = errors.New("orders: insufficient stock")
	ErrErpIntegration      = errors.New("orders: erp integration failed")
	ErrErpAdapterMissing   = errors.New("orders: erp adapter not configured")
	ErrOrderNotInvoiceable = errors.New("orders: order cannot be invoiced in its current status")
	ErrSnapshotUnavailable = errors.New("orders: financial snapshot unavailable")
	ErrCurrencyMismatch    = errors.New("orders: currency mismatch")

	// Entity lookups
	ErrProductNotFound  = errors.New("orders: product not found")
	ErrCartNotFound     = errors.New("orders: cart not found")
	ErrCartItemNotFound = errors.New("orders: sku not in cart")
	ErrOrderNotFound    = errors.New("orders: order not found")
	ErrInvoiceNotFound  = errors.New("orders: invoice not found")
	ErrPaymentNotFound  = errors.New("orders: payment not found")

	// Invoice errors
	ErrInvoiceExists    = errors.New("orders: order already has an active invoice")
	ErrInvoicePaid      = errors.New("orders: invoice already paid")
	ErrInvoiceCancelled = errors.New("orders: invoice is cancelled")

	// Store errors
	ErrStoreClosed     = errors.New("orders: store is closed")
	ErrMigrationFailed = errors.New("orders: migration failed")
)

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("orders: validation failed for %s: %s", e.Field, e.Message)
}

// Is matches ErrInvalidInput.
func (e ValidationError) Is(target error) bool { return target == ErrInvalidInput }

// InsufficientStockError reports a reservation that would drive stock negative.
type InsufficientStockError struct {
	SKU       string
	Requested int64
	Available int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("orders: insufficient stock for %s: requested %d, available %d",
		e.SKU, e.Requested, e.Available)
}

// Is matches ErrInsufficientStock.
func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

// TransitionError reports a status change that is not an edge of the
// entity's status graph.
type TransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("orders: %s cannot move from %s to %s", e.Entity, e.From, e.To)
}

// Is matches ErrInvalidTransition.
func (e *TransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// ErpError wraps a failed hand-off to the external ERP.
type ErpError struct {
	OrderID string
	Message string
	Err     error
}

func (e *ErpError) Error() string {
	return fmt.Sprintf("orders: erp rejected order %s: %s", e.OrderID, e.Message)
}

// Unwrap returns the adapter error, if any.
func (e *ErpError) Unwrap() error { return e.Err }

// Is matches ErrErpIntegration.
func (e *ErpError) Is(target error) bool { return target == ErrErpIntegration }

// MultiError represents multiple errors that occurred.
type MultiError struct {
	Errors []error
}

func (e MultiError) Error() string {
	switch len(e.Errors) {
	case 0:
		return "orders: no errors"
	case 1:
		return e.Errors[0].Error()
	}
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("orders: %d errors occurred: %s", len(e.Errors), strings.Join(msgs, "; "))
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (e MultiError) Unwrap() []error { return e.Errors }

// Add adds an error to the multi-error.
func (e *MultiError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors returns true if there are any errors.
func (e MultiError) HasErrors() bool {
	return len(e.Errors) > 0
}

// ErrorOrNil returns nil when no error was collected.
func (e MultiError) ErrorOrNil() error {
	switch len(e.Errors) {
	case 0:
		return nil
	case 1:
		return e.Errors[0]
	}
	return e
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrCartNotFound) ||
		errors.Is(err, ErrCartItemNotFound) ||
		errors.Is(err, ErrOrderNotFound) ||
		errors.Is(err, ErrInvoiceNotFound) ||
		errors.Is(err, ErrPaymentNotFound)
}

// IsRetryable returns true if the operation lost a race and can be retried
// as a whole.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict)
}
