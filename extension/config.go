package extension

import "time"

// Config holds the orders extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.orders" or "orders" keys).
type Config struct {
	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// TaxRate is the IVA rate as a decimal string (default: "0.19").
	TaxRate string `json:"tax_rate" mapstructure:"tax_rate" yaml:"tax_rate"`

	// Currency is used for empty totals and advance payments (default: "cop").
	Currency string `json:"currency" mapstructure:"currency" yaml:"currency"`

	// Reconciliation is "single" or "cumulative" (default: "single").
	Reconciliation string `json:"reconciliation" mapstructure:"reconciliation" yaml:"reconciliation"`

	// PaymentTermsDays sets the invoice due date offset (default: 30).
	PaymentTermsDays int `json:"payment_terms_days" mapstructure:"payment_terms_days" yaml:"payment_terms_days"`

	// DisableAutoInvoice stops MarkInvoiced from issuing an invoice.
	DisableAutoInvoice bool `json:"disable_auto_invoice" mapstructure:"disable_auto_invoice" yaml:"disable_auto_invoice"`

	// ErpTimeout bounds one ERP call (default: 30s).
	ErpTimeout time.Duration `json:"erp_timeout" mapstructure:"erp_timeout" yaml:"erp_timeout"`

	// SnapshotTimeout bounds background snapshot attachment (default: 10s).
	SnapshotTimeout time.Duration `json:"snapshot_timeout" mapstructure:"snapshot_timeout" yaml:"snapshot_timeout"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		TaxRate:          "0.19",
		Currency:         "cop",
		Reconciliation:   "single",
		PaymentTermsDays: 30,
		ErpTimeout:       30 * time.Second,
		SnapshotTimeout:  10 * time.Second,
	}
}
