// Command orders operates the order lifecycle engine from the shell.
//
// Configuration comes from ORDERS_* environment variables; see config.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/xraph/orders"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		slog.Error("orders: command failed", "error", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  appID,
		Usage: "manage products, orders, invoices and payments",
		Commands: []*cli.Command{
			{
				Name:   "migrate",
				Usage:  "apply the storage schema",
				Action: run(func(*cli.Context, *orders.Engine) (any, error) { return nil, nil }),
			},
			{
				Name:  "ping",
				Usage: "check storage connectivity",
				Action: run(func(c *cli.Context, e *orders.Engine) (any, error) {
					return nil, e.Store().Ping(c.Context)
				}),
			},
			productCommand(),
			cartCommand(),
			orderCommand(),
			invoiceCommand(),
			paymentCommand(),
		},
	}
}

type action func(c *cli.Context, e *orders.Engine) (any, error)

// run builds an engine from the environment, executes fn and prints its
// result as JSON.
func run(fn action) cli.ActionFunc {
	return func(c *cli.Context) error {
		cfg, err := parseEnv()
		if err != nil {
			return err
		}
		logger := cfg.logger()

		opts, err := cfg.engineOptions(logger)
		if err != nil {
			return err
		}
		s, err := cfg.openStore(c.Context)
		if err != nil {
			return err
		}

		eng := orders.New(s, opts...)
		if err := eng.Start(c.Context); err != nil {
			_ = s.Close()
			return err
		}
		defer func() {
			if err := eng.Stop(); err != nil {
				logger.Warn("orders: shutdown", "error", err)
			}
		}()

		out, err := fn(c, eng)
		if err != nil || out == nil {
			return err
		}
		return printJSON(c, out)
	}
}

func printJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("orders: encode output: %w", err)
	}
	return nil
}
