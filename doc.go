// Package orders is the order lifecycle core: carts, stock reservations,
// orders, ERP hand-off, invoices and payments.
//
// Orders is a library, not a service. Import it directly and hand it a
// store.Store; every public operation runs in one store transaction and
// either commits completely or returns a typed error.
//
// # Quick Start
//
//	import (
//	    "github.com/xraph/orders"
//	    "github.com/xraph/orders/erp"
//	    "github.com/xraph/orders/store/postgres"
//	)
//
//	store, err := postgres.New(ctx, databaseURL)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	engine := orders.New(store,
//	    orders.WithErpAdapter(erp.NewFake()),
//	)
//	if err := engine.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer engine.Stop()
//
// # Lifecycle
//
// A cart accumulates items per user:
//
//	engine.AddToCart(ctx, "user-1", "SKU-1", "Widget", 2)
//
// Placing the order prices every line from the catalog, persists it as
// confirmed and reserves the stock atomically:
//
//	o, err := engine.CreateOrderFromCart(ctx, "user-1")
//
// The order then moves along a fixed status graph:
//
//	draft -> confirmed -> sent_to_erp -> invoiced
//	                 \-> error -> sent_to_erp
//	                 \-> cancelled | rejected
//
// SendToErp hands it to the ERP, MarkInvoiced records the ERP's answer and
// CreateInvoiceFromOrder issues the numbered invoice (FAC-YYYYMMDD-NNNN).
// RegisterPayment settles it.
//
// # Money
//
// Amounts are integers in the currency's minor unit. IVA is computed once per
// invoice as net times the tax rate (19% by default) rounded half-up, and
// total is always net plus IVA.
//
// # TypeID
//
// Entities use TypeIDs:
//
//	ord_01h2xcejqtf2nbrexx3vqjhp41  // Order ID
//	inv_01h455vb4pex5vsknk084sn02q  // Invoice ID
//	pay_01h455vb4pex5vsknk084sn02q  // Payment ID
package orders
