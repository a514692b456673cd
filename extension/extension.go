// Package extension provides the Forge extension adapter for the orders
// engine.
//
// It implements the forge.Extension interface to integrate the engine
// into a Forge application with DI registration and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.orders" or "orders" keys.
package extension

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	"github.com/xraph/orders"
	"github.com/xraph/orders/store"
	"github.com/xraph/orders/store/memory"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "orders"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Order lifecycle engine with invoicing and payments"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts the orders engine as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *orders.Engine
	store      store.Store
	engineOpts []orders.Option
}

// New creates a new orders Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying engine.
// This is nil until Register is called.
func (e *Extension) Engine() *orders.Engine { return e.engine }

// Register implements [forge.Extension]. It loads configuration,
// initializes the engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	// Use memory store if no store was provided programmatically.
	if e.store == nil {
		e.store = memory.New()
	}

	opts, err := buildEngineOpts(e.config, e.engineOpts)
	if err != nil {
		return err
	}
	e.engine = orders.New(e.store, opts...)

	return vessel.Provide(fapp.Container(), func() (*orders.Engine, error) {
		return e.engine, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("orders: extension not initialized")
	}

	if !e.config.DisableMigrate {
		if err := e.engine.Start(ctx); err != nil {
			return err
		}
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("orders: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildEngineOpts converts the resolved config into engine options.
// Pass-through options are appended last so they win.
func buildEngineOpts(cfg Config, extra []orders.Option) ([]orders.Option, error) {
	opts := make([]orders.Option, 0, len(extra)+7)

	if cfg.TaxRate != "" {
		rate, err := decimal.NewFromString(cfg.TaxRate)
		if err != nil {
			return nil, fmt.Errorf("orders: invalid tax_rate %q: %w", cfg.TaxRate, err)
		}
		if rate.IsNegative() {
			return nil, fmt.Errorf("orders: invalid tax_rate %q: negative", cfg.TaxRate)
		}
		opts = append(opts, orders.WithTaxRate(rate))
	}
	if cfg.Currency != "" {
		opts = append(opts, orders.WithCurrency(cfg.Currency))
	}
	if cfg.Reconciliation != "" {
		policy := orders.ReconciliationPolicy(cfg.Reconciliation)
		if !policy.Valid() {
			return nil, fmt.Errorf("orders: unknown reconciliation policy %q", cfg.Reconciliation)
		}
		opts = append(opts, orders.WithReconciliationPolicy(policy))
	}
	if cfg.PaymentTermsDays > 0 {
		opts = append(opts, orders.WithPaymentTermsDays(cfg.PaymentTermsDays))
	}
	if cfg.ErpTimeout > 0 {
		opts = append(opts, orders.WithErpTimeout(cfg.ErpTimeout))
	}
	if cfg.SnapshotTimeout > 0 {
		opts = append(opts, orders.WithSnapshotTimeout(cfg.SnapshotTimeout))
	}
	opts = append(opts, orders.WithAutoIssueInvoice(!cfg.DisableAutoInvoice))

	return append(opts, extra...), nil
}

// --- Config Loading ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("orders: configuration is required but not found in config files; " +
				"ensure 'extensions.orders' or 'orders' key exists in your config")
		}
		e.config = mergeWithDefaults(programmaticConfig)
	} else {
		e.config = mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("orders: configuration loaded",
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("tax_rate", e.config.TaxRate),
		forge.F("currency", e.config.Currency),
		forge.F("reconciliation", e.config.Reconciliation),
		forge.F("payment_terms_days", e.config.PaymentTermsDays),
		forge.F("erp_timeout", e.config.ErpTimeout),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	for _, key := range []string{"extensions.orders", "orders"} {
		if !cm.IsSet(key) {
			continue
		}
		if err := cm.Bind(key, &cfg); err == nil {
			e.Logger().Debug("orders: loaded config from file", forge.F("key", key))
			return cfg, true
		}
		e.Logger().Warn("orders: failed to bind config",
			forge.F("key", key),
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.TaxRate == "" {
		cfg.TaxRate = defaults.TaxRate
	}
	if cfg.Currency == "" {
		cfg.Currency = defaults.Currency
	}
	if cfg.Reconciliation == "" {
		cfg.Reconciliation = defaults.Reconciliation
	}
	if cfg.PaymentTermsDays == 0 {
		cfg.PaymentTermsDays = defaults.PaymentTermsDays
	}
	if cfg.ErpTimeout == 0 {
		cfg.ErpTimeout = defaults.ErpTimeout
	}
	if cfg.SnapshotTimeout == 0 {
		cfg.SnapshotTimeout = defaults.SnapshotTimeout
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence; programmatic values fill gaps and bool
// flags override when true.
func mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}
	if programmaticConfig.DisableAutoInvoice {
		yamlConfig.DisableAutoInvoice = true
	}

	if yamlConfig.TaxRate == "" {
		yamlConfig.TaxRate = programmaticConfig.TaxRate
	}
	if yamlConfig.Currency == "" {
		yamlConfig.Currency = programmaticConfig.Currency
	}
	if yamlConfig.Reconciliation == "" {
		yamlConfig.Reconciliation = programmaticConfig.Reconciliation
	}
	if yamlConfig.PaymentTermsDays == 0 {
		yamlConfig.PaymentTermsDays = programmaticConfig.PaymentTermsDays
	}
	if yamlConfig.ErpTimeout == 0 {
		yamlConfig.ErpTimeout = programmaticConfig.ErpTimeout
	}
	if yamlConfig.SnapshotTimeout == 0 {
		yamlConfig.SnapshotTimeout = programmaticConfig.SnapshotTimeout
	}

	return mergeWithDefaults(yamlConfig)
}
