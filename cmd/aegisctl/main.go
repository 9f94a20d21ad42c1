// Command aegisctl is the operational CLI for the ledger and policy
// packages: run an operation and inspect its monitoring result, query the
// ledger, and manage policy files. It wires no business logic of its own.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/oarkflow/aegis/ledger"
	"github.com/oarkflow/aegis/monitor"
	"github.com/oarkflow/aegis/nu"
	"github.com/oarkflow/aegis/policy"
	"github.com/oarkflow/aegis/rule"
)

func dbPath() string {
	if p := os.Getenv("AEGIS_LEDGER_PATH"); p != "" {
		return p
	}
	return "./aegis_ledger.db"
}

func policyDir() string {
	if p := os.Getenv("AEGIS_POLICY_DIR"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "./policies"
	}
	return filepath.Join(home, ".aegis", "policies")
}

func openLedger() (*ledger.Ledger, error) {
	backend, err := ledger.OpenSQLiteBackend(dbPath())
	if err != nil {
		return nil, err
	}
	return ledger.New(backend)
}

func main() {
	app := &cli.Command{
		Name:    "aegisctl",
		Usage:   "audit ledger and policy operations",
		Version: "1.0.0",
		Commands: []*cli.Command{
			opCommand(),
			ledgerCommand(),
			policyCommand(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func opCommand() *cli.Command {
	return &cli.Command{
		Name:  "op",
		Usage: "run an N/U operation and monitor the result",
		Commands: []*cli.Command{
			{
				Name:  "add",
				Usage: "add two N/U pairs",
				Flags: nuArgFlags(),
				Action: func(ctx context.Context, c *cli.Command) error {
					return runBinaryOp(c, "add", func(a, b nu.Pair) (nu.Pair, error) {
						return nu.Add(a, b)
					})
				},
			},
			{
				Name:  "multiply",
				Usage: "multiply two N/U pairs",
				Flags: append(nuArgFlags(), &cli.FloatFlag{Name: "lambda", Value: 1.0, Usage: "margin lambda"}),
				Action: func(ctx context.Context, c *cli.Command) error {
					lambda := c.Float("lambda")
					return runBinaryOp(c, "multiply", func(a, b nu.Pair) (nu.Pair, error) {
						return nu.Multiply(a, b, lambda)
					})
				},
			},
			{
				Name:  "compose",
				Usage: "compose two N/U pairs",
				Flags: nuArgFlags(),
				Action: func(ctx context.Context, c *cli.Command) error {
					return runBinaryOp(c, "compose", func(a, b nu.Pair) (nu.Pair, error) {
						return nu.Compose(a, b)
					})
				},
			},
			{
				Name:  "catch",
				Usage: "return an N/U pair unchanged, or the epistemic-collapse default if malformed",
				Flags: []cli.Flag{
					&cli.FloatFlag{Name: "n", Required: true, Usage: "nominal"},
					&cli.FloatFlag{Name: "u", Required: true, Usage: "uncertainty"},
					&cli.FloatFlag{Name: "default-n", Value: 0, Usage: "nominal to fall back to on collapse"},
					&cli.FloatFlag{Name: "coverage-threshold", Value: 0.1, Usage: "monitor coverage threshold"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					return runUnaryOp(c, "catch", func(p nu.Pair) (nu.Pair, error) {
						return nu.Catch(p, c.Float("default-n")), nil
					})
				},
			},
			{
				Name:  "flip",
				Usage: "negate an N/U pair's nominal",
				Flags: []cli.Flag{
					&cli.FloatFlag{Name: "n", Required: true, Usage: "nominal"},
					&cli.FloatFlag{Name: "u", Required: true, Usage: "uncertainty"},
					&cli.FloatFlag{Name: "coverage-threshold", Value: 0.1, Usage: "monitor coverage threshold"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					return runUnaryOp(c, "flip", func(p nu.Pair) (nu.Pair, error) {
						return nu.Flip(p)
					})
				},
			},
		},
	}
}

func nuArgFlags() []cli.Flag {
	return []cli.Flag{
		&cli.FloatFlag{Name: "n1", Required: true, Usage: "first nominal"},
		&cli.FloatFlag{Name: "u1", Required: true, Usage: "first uncertainty"},
		&cli.FloatFlag{Name: "n2", Required: true, Usage: "second nominal"},
		&cli.FloatFlag{Name: "u2", Required: true, Usage: "second uncertainty"},
		&cli.FloatFlag{Name: "coverage-threshold", Value: 0.1, Usage: "monitor coverage threshold"},
	}
}

func runBinaryOp(c *cli.Command, name string, op func(a, b nu.Pair) (nu.Pair, error)) error {
	a := nu.Pair{N: c.Float("n1"), U: c.Float("u1")}
	b := nu.Pair{N: c.Float("n2"), U: c.Float("u2")}

	out, err := op(a, b)
	if err != nil {
		return err
	}
	return checkAndReport(c, name, []nu.Pair{a, b}, out)
}

func runUnaryOp(c *cli.Command, name string, op func(p nu.Pair) (nu.Pair, error)) error {
	p := nu.Pair{N: c.Float("n"), U: c.Float("u")}

	out, err := op(p)
	if err != nil {
		return err
	}
	return checkAndReport(c, name, []nu.Pair{p}, out)
}

func checkAndReport(c *cli.Command, name string, inputs []nu.Pair, out nu.Pair) error {
	led, err := openLedger()
	if err != nil {
		return err
	}
	defer led.Close()

	m := monitor.New(monitor.Config{
		Rules: []rule.Rule{
			rule.Invariant{},
			rule.Coverage{Threshold: c.Float("coverage-threshold"), Level: rule.Warning},
		},
		AutoLog: true,
	}, led)

	event, err := m.Check(name, inputs, out)
	if err != nil {
		return err
	}

	result := map[string]any{
		"operation": name,
		"output":    map[string]float64{"n": out.N, "u": out.U},
		"coverage":  nu.Coverage(out),
	}
	if event != nil {
		result["event"] = map[string]any{"level": event.Level.String(), "message": event.Message}
	}
	return printJSON(result)
}

func ledgerCommand() *cli.Command {
	return &cli.Command{
		Name:  "ledger",
		Usage: "inspect the audit ledger",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "list all ledger records",
				Action: func(ctx context.Context, c *cli.Command) error {
					led, err := openLedger()
					if err != nil {
						return err
					}
					defer led.Close()

					records, err := led.GetAll()
					if err != nil {
						return err
					}
					return printJSON(records)
				},
			},
			{
				Name:  "trace",
				Usage: "trace the causal chain for a record ID",
				Flags: []cli.Flag{&cli.StringFlag{Name: "id", Required: true}},
				Action: func(ctx context.Context, c *cli.Command) error {
					led, err := openLedger()
					if err != nil {
						return err
					}
					defer led.Close()

					chain, err := led.Trace(c.String("id"))
					if err != nil {
						return err
					}
					return printJSON(chain)
				},
			},
			{
				Name:  "verify",
				Usage: "verify ledger integrity",
				Action: func(ctx context.Context, c *cli.Command) error {
					led, err := openLedger()
					if err != nil {
						return err
					}
					defer led.Close()

					result, err := led.VerifyIntegrity()
					if err != nil {
						return err
					}
					return printJSON(result)
				},
			},
			{
				Name:  "root",
				Usage: "print the current Merkle root",
				Action: func(ctx context.Context, c *cli.Command) error {
					led, err := openLedger()
					if err != nil {
						return err
					}
					defer led.Close()

					root := led.Root()
					return printJSON(map[string]string{"root": fmt.Sprintf("%x", root)})
				},
			},
		},
	}
}

func policyCommand() *cli.Command {
	return &cli.Command{
		Name:  "policy",
		Usage: "manage policy files",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "list policies in the policy directory",
				Action: func(ctx context.Context, c *cli.Command) error {
					mgr, err := policy.NewManager(policyDir())
					if err != nil {
						return err
					}
					names, err := mgr.List()
					if err != nil {
						return err
					}
					return printJSON(names)
				},
			},
			{
				Name:  "validate",
				Usage: "validate a policy by name",
				Flags: []cli.Flag{&cli.StringFlag{Name: "name", Required: true}},
				Action: func(ctx context.Context, c *cli.Command) error {
					mgr, err := policy.NewManager(policyDir())
					if err != nil {
						return err
					}
					p, err := mgr.Load(c.String("name"), false)
					if err != nil {
						return err
					}
					result := (policy.Validator{}).ValidatePolicy(p)
					return printJSON(result)
				},
			},
			{
				Name:  "summary",
				Usage: "print a human-oriented summary of a policy",
				Flags: []cli.Flag{&cli.StringFlag{Name: "name", Required: true}},
				Action: func(ctx context.Context, c *cli.Command) error {
					mgr, err := policy.NewManager(policyDir())
					if err != nil {
						return err
					}
					p, err := mgr.Load(c.String("name"), false)
					if err != nil {
						return err
					}
					return printJSON((policy.Exporter{}).Summary(p))
				},
			},
			{
				Name:  "history",
				Usage: "print the history of policies touched this session",
				Action: func(ctx context.Context, c *cli.Command) error {
					mgr, err := policy.NewManager(policyDir())
					if err != nil {
						return err
					}
					if _, err := mgr.List(); err != nil {
						return err
					}
					return printJSON(mgr.History())
				},
			},
		},
	}
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
