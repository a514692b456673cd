package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/xraph/orders"
	"github.com/xraph/orders/id"
	"github.com/xraph/orders/invoice"
	"github.com/xraph/orders/order"
	"github.com/xraph/orders/payment"
	"github.com/xraph/orders/product"
	"github.com/xraph/orders/types"
)

var (
	userFlag  = &cli.StringFlag{Name: "user", Aliases: []string{"u"}, Usage: "user ID", Required: true}
	orderFlag = &cli.StringFlag{Name: "order", Aliases: []string{"o"}, Usage: "order ID", Required: true}
	limitFlag = &cli.IntFlag{Name: "limit", Value: 50, Usage: "maximum rows"}
)

func productCommand() *cli.Command {
	return &cli.Command{
		Name:  "product",
		Usage: "manage the stock ledger",
		Subcommands: []*cli.Command{
			{
				Name:  "put",
				Usage: "create or replace a product",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "sku", Required: true},
					&cli.StringFlag{Name: "name", Required: true},
					&cli.Int64Flag{Name: "stock", Required: true},
					&cli.StringFlag{Name: "price", Usage: "unit price in major units, e.g. 1500.50", Required: true},
					&cli.StringFlag{Name: "currency", Value: "cop"},
				},
				Action: run(func(c *cli.Context, e *orders.Engine) (any, error) {
					price, err := types.ParseMoney(c.String("price"), c.String("currency"))
					if err != nil {
						return nil, err
					}
					p := &product.Product{
						SKU:       c.String("sku"),
						Name:      c.String("name"),
						StockQty:  c.Int64("stock"),
						UnitPrice: price,
					}
					return p, e.PutProduct(c.Context, p)
				}),
			},
			{
				Name:  "list",
				Usage: "list products",
				Flags: []cli.Flag{limitFlag, &cli.BoolFlag{Name: "in-stock"}},
				Action: run(func(c *cli.Context, e *orders.Engine) (any, error) {
					return e.ListProducts(c.Context, product.ListOpts{
						InStockOnly: c.Bool("in-stock"),
						Limit:       c.Int("limit"),
					})
				}),
			},
		},
	}
}

func cartCommand() *cli.Command {
	return &cli.Command{
		Name:  "cart",
		Usage: "manage a user's cart",
		Subcommands: []*cli.Command{
			{
				Name:  "add",
				Usage: "add units of a SKU",
				Flags: []cli.Flag{
					userFlag,
					&cli.StringFlag{Name: "sku", Required: true},
					&cli.StringFlag{Name: "name"},
					&cli.Int64Flag{Name: "qty", Value: 1},
				},
				Action: run(func(c *cli.Context, e *orders.Engine) (any, error) {
					return e.AddToCart(c.Context, c.String("user"), c.String("sku"), c.String("name"), c.Int64("qty"))
				}),
			},
			{
				Name:  "show",
				Usage: "print the cart summary",
				Flags: []cli.Flag{userFlag},
				Action: run(func(c *cli.Context, e *orders.Engine) (any, error) {
					return e.CartSummary(c.Context, c.String("user"))
				}),
			},
			{
				Name:  "clear",
				Usage: "empty the cart",
				Flags: []cli.Flag{userFlag},
				Action: run(func(c *cli.Context, e *orders.Engine) (any, error) {
					return nil, e.ClearCart(c.Context, c.String("user"))
				}),
			},
		},
	}
}

func orderCommand() *cli.Command {
	return &cli.Command{
		Name:  "order",
		Usage: "create and move orders through their lifecycle",
		Subcommands: []*cli.Command{
			{
				Name:  "create",
				Usage: "create an order from SKU:QTY lines",
				Flags: []cli.Flag{
					userFlag,
					&cli.StringSliceFlag{Name: "line", Aliases: []string{"l"}, Usage: "SKU:QTY", Required: true},
				},
				Action: run(func(c *cli.Context, e *orders.Engine) (any, error) {
					lines, err := parseLines(c.StringSlice("line"))
					if err != nil {
						return nil, err
					}
					return e.CreateOrder(c.Context, c.String("user"), lines)
				}),
			},
			{
				Name:  "checkout",
				Usage: "create an order from the user's cart",
				Flags: []cli.Flag{userFlag},
				Action: run(func(c *cli.Context, e *orders.Engine) (any, error) {
					return e.CreateOrderFromCart(c.Context, c.String("user"))
				}),
			},
			{
				Name:  "get",
				Flags: []cli.Flag{orderFlag},
				Action: run(func(c *cli.Context, e *orders.Engine) (any, error) {
					orderID, err := id.ParseOrderID(c.String("order"))
					if err != nil {
						return nil, err
					}
					return e.GetOrder(c.Context, orderID)
				}),
			},
			{
				Name: "list",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "user", Aliases: []string{"u"}},
					&cli.StringFlag{Name: "status"},
					limitFlag,
				},
				Action: run(func(c *cli.Context, e *orders.Engine) (any, error) {
					return e.ListOrders(c.Context, order.ListOpts{
						UserID: c.String("user"),
						Status: order.Status(c.String("status")),
						Limit:  c.Int("limit"),
					})
				}),
			},
			{
				Name:   "send-erp",
				Usage:  "submit the order to the ERP",
				Flags:  []cli.Flag{orderFlag},
				Action: run(withOrder((*orders.Engine).SendToErp)),
			},
			{
				Name:   "sync-erp",
				Usage:  "poll the ERP for the order's status",
				Flags:  []cli.Flag{orderFlag},
				Action: run(withOrder((*orders.Engine).SyncErpStatus)),
			},
			{
				Name:  "mark-invoiced",
				Usage: "record the ERP's invoicing confirmation",
				Flags: []cli.Flag{orderFlag, &cli.StringFlag{Name: "ref", Usage: "ERP reference"}},
				Action: run(func(c *cli.Context, e *orders.Engine) (any, error) {
					orderID, err := id.ParseOrderID(c.String("order"))
					if err != nil {
						return nil, err
					}
					return e.MarkInvoiced(c.Context, orderID, c.String("ref"))
				}),
			},
			{
				Name:  "status",
				Usage: "move the order to a new status",
				Flags: []cli.Flag{orderFlag, &cli.StringFlag{Name: "to", Required: true}},
				Action: run(func(c *cli.Context, e *orders.Engine) (any, error) {
					orderID, err := id.ParseOrderID(c.String("order"))
					if err != nil {
						return nil, err
					}
					return e.UpdateStatus(c.Context, orderID, order.Status(c.String("to")))
				}),
			},
			{
				Name:   "cancel",
				Flags:  []cli.Flag{orderFlag},
				Action: run(withOrder((*orders.Engine).CancelOrder)),
			},
		},
	}
}

func invoiceCommand() *cli.Command {
	invoiceFlag := &cli.StringFlag{Name: "invoice", Aliases: []string{"i"}, Usage: "invoice ID", Required: true}
	return &cli.Command{
		Name:  "invoice",
		Usage: "issue and cancel invoices",
		Subcommands: []*cli.Command{
			{
				Name:  "create",
				Usage: "issue an invoice for an invoiced order",
				Flags: []cli.Flag{orderFlag, &cli.StringFlag{Name: "type"}},
				Action: run(func(c *cli.Context, e *orders.Engine) (any, error) {
					orderID, err := id.ParseOrderID(c.String("order"))
					if err != nil {
						return nil, err
					}
					return e.CreateInvoiceFromOrder(c.Context, orderID, invoice.Type(c.String("type")))
				}),
			},
			{
				Name:  "get",
				Flags: []cli.Flag{&cli.StringFlag{Name: "number", Required: true}},
				Action: run(func(c *cli.Context, e *orders.Engine) (any, error) {
					return e.GetInvoiceByNumber(c.Context, c.String("number"))
				}),
			},
			{
				Name:  "cancel",
				Flags: []cli.Flag{invoiceFlag, &cli.StringFlag{Name: "reason"}},
				Action: run(func(c *cli.Context, e *orders.Engine) (any, error) {
					invID, err := id.ParseInvoiceID(c.String("invoice"))
					if err != nil {
						return nil, err
					}
					return e.CancelInvoice(c.Context, invID, c.String("reason"))
				}),
			},
		},
	}
}

func paymentCommand() *cli.Command {
	paymentFlag := &cli.StringFlag{Name: "payment", Aliases: []string{"p"}, Usage: "payment ID", Required: true}
	return &cli.Command{
		Name:  "payment",
		Usage: "register and reconcile payments",
		Subcommands: []*cli.Command{
			{
				Name:  "register",
				Usage: "record a payment against an invoice",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "invoice", Aliases: []string{"i"}, Required: true},
					&cli.StringFlag{Name: "amount", Usage: "amount in major units", Required: true},
					&cli.StringFlag{Name: "currency", Value: "cop"},
					&cli.StringFlag{Name: "method", Value: "transfer"},
					&cli.StringFlag{Name: "reference"},
				},
				Action: run(func(c *cli.Context, e *orders.Engine) (any, error) {
					invID, err := id.ParseInvoiceID(c.String("invoice"))
					if err != nil {
						return nil, err
					}
					amount, err := types.ParseMoney(c.String("amount"), c.String("currency"))
					if err != nil {
						return nil, err
					}
					return e.RegisterPayment(c.Context, orders.PaymentInput{
						InvoiceID: invID,
						Type:      payment.TypeInvoice,
						Amount:    amount,
						Method:    c.String("method"),
						Reference: c.String("reference"),
					})
				}),
			},
			{
				Name:   "confirm",
				Flags:  []cli.Flag{paymentFlag},
				Action: run(withPayment((*orders.Engine).ConfirmPayment)),
			},
			{
				Name:   "cancel",
				Flags:  []cli.Flag{paymentFlag},
				Action: run(withPayment((*orders.Engine).CancelPayment)),
			},
		},
	}
}

func withOrder[T any](fn func(*orders.Engine, context.Context, id.OrderID) (T, error)) action {
	return func(c *cli.Context, e *orders.Engine) (any, error) {
		orderID, err := id.ParseOrderID(c.String("order"))
		if err != nil {
			return nil, err
		}
		return fn(e, c.Context, orderID)
	}
}

func withPayment[T any](fn func(*orders.Engine, context.Context, id.PaymentID) (T, error)) action {
	return func(c *cli.Context, e *orders.Engine) (any, error) {
		paymentID, err := id.ParsePaymentID(c.String("payment"))
		if err != nil {
			return nil, err
		}
		return fn(e, c.Context, paymentID)
	}
}

// parseLines reads SKU:QTY pairs.
func parseLines(raw []string) ([]orders.LineInput, error) {
	lines := make([]orders.LineInput, 0, len(raw))
	for _, r := range raw {
		sku, qty, ok := strings.Cut(r, ":")
		if !ok {
			qty = "1"
		}
		n, err := strconv.ParseInt(strings.TrimSpace(qty), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("orders: invalid line %q: %w", r, err)
		}
		lines = append(lines, orders.LineInput{SKU: strings.TrimSpace(sku), Qty: n})
	}
	return lines, nil
}
