// Package id holds the identifiers used by orders, carts, invoices and
// payments. Every ID renders as "prefix_suffix", where the suffix is a
// UUIDv7 so IDs of one kind sort by creation time.
package id

import (
	"database/sql/driver"
	"fmt"

	"go.jetify.com/typeid/v2"
)

// Prefix names the kind of entity an ID points at.
type Prefix string

const (
	PrefixOrder   Prefix = "ord"  // Customer order
	PrefixCart    Prefix = "cart" // Shopping cart
	PrefixInvoice Prefix = "inv"  // Issued invoice
	PrefixPayment Prefix = "pay"  // Payment record
	PrefixEvent   Prefix = "evt"  // Lifecycle notification
)

// ID is a prefixed identifier. The zero value is Nil and prints as "".
//
//nolint:recvcheck // UnmarshalText and Scan need pointer receivers.
type ID struct {
	inner typeid.TypeID
	valid bool
}

// Nil is the unset ID.
var Nil ID

// New mints an ID under prefix. An invalid prefix panics.
func New(prefix Prefix) ID {
	tid, err := typeid.Generate(string(prefix))
	if err != nil {
		panic(fmt.Sprintf("id: invalid prefix %q: %v", prefix, err))
	}

	return ID{inner: tid, valid: true}
}

// Parse reads an ID such as "ord_01h2xcejqtf2nbrexx3vqjhp41".
func Parse(s string) (ID, error) {
	if s == "" {
		return Nil, fmt.Errorf("id: parse %q: empty string", s)
	}

	tid, err := typeid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("id: parse %q: %w", s, err)
	}

	return ID{inner: tid, valid: true}, nil
}

// ParseWithPrefix is Parse plus a check that the ID is of the expected kind.
func ParseWithPrefix(s string, expected Prefix) (ID, error) {
	parsed, err := Parse(s)
	if err != nil {
		return Nil, err
	}

	if parsed.Prefix() != expected {
		return Nil, fmt.Errorf("id: expected prefix %q, got %q", expected, parsed.Prefix())
	}

	return parsed, nil
}

// MustParse is like Parse but panics on error.
func MustParse(s string) ID {
	parsed, err := Parse(s)
	if err != nil {
		panic(fmt.Sprintf("id: must parse %q: %v", s, err))
	}

	return parsed
}

// Aliases document which kind of ID a field or parameter expects.
type (
	OrderID   = ID
	CartID    = ID
	InvoiceID = ID
	PaymentID = ID
	EventID   = ID
)

// NewOrderID mints an order ID.
func NewOrderID() ID { return New(PrefixOrder) }

func NewCartID() ID { return New(PrefixCart) }

func NewInvoiceID() ID { return New(PrefixInvoice) }

func NewPaymentID() ID { return New(PrefixPayment) }

func NewEventID() ID { return New(PrefixEvent) }

// ParseOrderID rejects anything that is not an "ord" ID.
func ParseOrderID(s string) (ID, error) { return ParseWithPrefix(s, PrefixOrder) }

func ParseCartID(s string) (ID, error) { return ParseWithPrefix(s, PrefixCart) }

func ParseInvoiceID(s string) (ID, error) { return ParseWithPrefix(s, PrefixInvoice) }

func ParsePaymentID(s string) (ID, error) { return ParseWithPrefix(s, PrefixPayment) }

// String renders "prefix_suffix", or "" for Nil.
func (i ID) String() string {
	if !i.valid {
		return ""
	}

	return i.inner.String()
}

// Prefix is empty for Nil.
func (i ID) Prefix() Prefix {
	if !i.valid {
		return ""
	}

	return Prefix(i.inner.Prefix())
}

func (i ID) IsNil() bool {
	return !i.valid
}

// MarshalText encodes Nil as an empty string.
func (i ID) MarshalText() ([]byte, error) {
	if !i.valid {
		return []byte{}, nil
	}

	return []byte(i.inner.String()), nil
}

// UnmarshalText maps empty input back to Nil.
func (i *ID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*i = Nil

		return nil
	}

	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}

	*i = parsed

	return nil
}

// Value stores Nil as NULL.
func (i ID) Value() (driver.Value, error) {
	if !i.valid {
		return nil, nil //nolint:nilnil // NULL
	}

	return i.inner.String(), nil
}

// Scan accepts text columns; NULL and "" both read as Nil.
func (i *ID) Scan(src any) error {
	if src == nil {
		*i = Nil

		return nil
	}

	switch v := src.(type) {
	case string:
		if v == "" {
			*i = Nil

			return nil
		}

		return i.UnmarshalText([]byte(v))
	case []byte:
		if len(v) == 0 {
			*i = Nil

			return nil
		}

		return i.UnmarshalText(v)
	default:
		return fmt.Errorf("id: cannot scan %T into ID", src)
	}
}
