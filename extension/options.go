package extension

import (
	"time"

	"github.com/xraph/orders"
	"github.com/xraph/orders/erp"
	"github.com/xraph/orders/plugin"
	"github.com/xraph/orders/store"
)

// Option configures the orders Forge extension.
type Option func(*Extension)

// WithStore sets the store for the orders engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithEngineOption passes an orders.Option through to the underlying engine.
func WithEngineOption(opt orders.Option) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, opt)
	}
}

// WithPlugin registers an orders plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, orders.WithPlugin(p))
	}
}

// WithErpAdapter sets the ERP integration.
func WithErpAdapter(a erp.Adapter) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, orders.WithErpAdapter(a))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithTaxRate sets the IVA rate as a decimal string such as "0.19".
func WithTaxRate(rate string) Option {
	return func(e *Extension) { e.config.TaxRate = rate }
}

// WithReconciliation sets the payment reconciliation policy.
func WithReconciliation(policy orders.ReconciliationPolicy) Option {
	return func(e *Extension) { e.config.Reconciliation = string(policy) }
}

// WithErpTimeout bounds one ERP call.
func WithErpTimeout(d time.Duration) Option {
	return func(e *Extension) { e.config.ErpTimeout = d }
}
