package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/jszwec/csvutil"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/bomimport/internal/application"
	"github.com/JonMunkholm/bomimport/internal/config"
	"github.com/JonMunkholm/bomimport/internal/core"
	"github.com/JonMunkholm/bomimport/internal/logging"
)

// backend is what the commands need from a wired importer.
type backend struct {
	service *core.Service
	migrate func(ctx context.Context) error
	setRate func(ctx context.Context, code string, rate float64) error
	close   func()
}

// cli holds the state shared by all commands. open is swapped out in tests.
type cli struct {
	out  io.Writer
	open func(ctx context.Context) (*backend, error)

	asCSV  bool
	asJSON bool
}

func newCLI(out io.Writer) *cli {
	return &cli{out: out, open: openBackend}
}

// openBackend loads .env and the environment, then wires the importer.
// Logs go to stderr so stdout carries only command output.
func openBackend(ctx context.Context) (*backend, error) {
	_ = godotenv.Overload()

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logging.New(os.Stderr, cfg.Logging.Level, cfg.Logging.Format))

	app, err := application.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &backend{
		service: app.Service,
		migrate: app.Backend.Migrate,
		setRate: app.SetValuationRate,
		close:   app.Close,
	}, nil
}

// with opens the backend for the duration of fn.
func (c *cli) with(cmd *cobra.Command, fn func(ctx context.Context, b *backend) error) error {
	ctx := core.WithOrigin(cmd.Context(), core.Origin{Source: "cli"})

	b, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer b.close()

	return fn(ctx, b)
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:           "bomctl",
		Short:         "Import PLM parts lists as items and BOM trees",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().BoolVar(&c.asCSV, "csv", false, "Print import logs as CSV rows")
	root.PersistentFlags().BoolVar(&c.asJSON, "json", false, "Print results as JSON")
	root.MarkFlagsMutuallyExclusive("csv", "json")

	root.AddCommand(
		newRequestCmd(c),
		newImportCmd(c),
		newItemCmd(c),
		newLatestBOMCmd(c),
		newMigrateCmd(c),
	)
	return root
}

func newRequestCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "request",
		Short: "Manage import requests",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "create FILE",
		Short: "Attach a parts-list file (.csv, .xlsx, .xls) to a new import request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			return c.with(cmd, func(ctx context.Context, b *backend) error {
				req, err := b.service.CreateRequest(ctx, filepath.Base(args[0]), data)
				if err != nil {
					return err
				}
				if c.asJSON {
					return c.printJSON(req)
				}
				fmt.Fprintln(c.out, req.ID)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show ID",
		Short: "Show an import request and its logs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.with(cmd, func(ctx context.Context, b *backend) error {
				req, err := b.service.GetRequest(ctx, args[0])
				if err != nil {
					return err
				}
				if c.asJSON {
					return c.printJSON(req)
				}
				fmt.Fprintf(c.out, "Request:  %s\nFile:     %s\n", req.ID, req.FileName)
				if req.TreeName != "" {
					fmt.Fprintf(c.out, "BOM tree: %s\n", req.TreeName)
				}
				if req.ItemLog != "" {
					fmt.Fprintf(c.out, "\nItem log:\n%s\n", req.ItemLog)
				}
				if req.TreeLog != "" {
					fmt.Fprintf(c.out, "\nBOM log:\n%s\n", req.TreeLog)
				}
				return nil
			})
		},
	})

	return cmd
}

func newImportCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Run an import against a request",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "items ID",
		Short: "Create one item per row of the request's file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.with(cmd, func(ctx context.Context, b *backend) error {
				result, err := b.service.ImportItems(ctx, args[0])
				if err != nil {
					return err
				}
				return c.printResult(result)
			})
		},
	})

	var preview bool
	tree := &cobra.Command{
		Use:   "tree ID",
		Short: "Rebuild the BOM tree described by the request's file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.with(cmd, func(ctx context.Context, b *backend) error {
				if preview {
					p, err := b.service.PreviewBOMTree(ctx, args[0])
					if err != nil {
						return err
					}
					return c.printPreview(p)
				}

				result, err := b.service.ImportBOMTree(ctx, args[0])
				if err != nil {
					return err
				}
				return c.printResult(result)
			})
		},
	}
	tree.Flags().BoolVar(&preview, "preview", false, "Show what would be imported without storing anything")
	cmd.AddCommand(tree)

	return cmd
}

func newItemCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "item",
		Short: "Maintain catalog items",
	}

	rateCmd := &cobra.Command{
		Use:   "rate CODE RATE",
		Short: "Set the valuation rate BOM tree rows are costed at",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rate, ok := core.ParseNumber(args[1])
			if !ok || rate < 0 {
				return fmt.Errorf("invalid rate %q: must be a non-negative number", args[1])
			}
			return c.with(cmd, func(ctx context.Context, b *backend) error {
				if err := b.setRate(ctx, args[0], rate); err != nil {
					return err
				}
				fmt.Fprintf(c.out, "%s valuation rate set to %g\n", args[0], rate)
				return nil
			})
		},
	}
	// Flags end at CODE, so a negative RATE reaches the range check.
	rateCmd.Flags().SetInterspersed(false)
	cmd.AddCommand(rateCmd)

	return cmd
}

func newLatestBOMCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "latest-bom TREE",
		Short: "Print the newest submitted BOM derived from a BOM tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.with(cmd, func(ctx context.Context, b *backend) error {
				bom, ok, err := b.service.LatestBOM(ctx, args[0])
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("no submitted BOM found for tree %s", args[0])
				}
				fmt.Fprintln(c.out, bom)
				return nil
			})
		},
	}
}

func newMigrateCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the store schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.with(cmd, func(ctx context.Context, b *backend) error {
				if err := b.migrate(ctx); err != nil {
					return err
				}
				fmt.Fprintln(c.out, "schema up to date")
				return nil
			})
		},
	}
}

func (c *cli) printResult(r *core.ImportResult) error {
	switch {
	case c.asJSON:
		return c.printJSON(r)
	case c.asCSV:
		return c.printRows(r.Details.Results)
	}

	fmt.Fprintln(c.out, r.Log)
	if r.BOM != "" {
		fmt.Fprintf(c.out, "BOM: %s\n", r.BOM)
	}
	return nil
}

func (c *cli) printPreview(p *core.TreePreview) error {
	switch {
	case c.asJSON:
		return c.printJSON(p)
	case c.asCSV:
		return c.printRows(p.Details.Results)
	}

	fmt.Fprintf(c.out, "Preview of BOM tree %s (root %s, %s)\n", p.Tree, p.Root.ItemCode, p.RootUOM)
	for _, pl := range p.Placements {
		indent := strings.Repeat("  ", max(pl.Node.Level-p.Root.Level, 1))
		fmt.Fprintf(c.out, "%s%s x %g (row %d, under %s)\n", indent, pl.Node.ItemCode, pl.Node.Qty, pl.Node.RowIndex, pl.ParentCode)
	}
	fmt.Fprintln(c.out, p.Log)
	return nil
}

// printRows writes row results as CSV with a header, even when empty.
func (c *cli) printRows(results []core.RowResult) error {
	w := csv.NewWriter(c.out)
	enc := csvutil.NewEncoder(w)
	if err := enc.EncodeHeader(core.RowResult{}); err != nil {
		return err
	}
	if len(results) > 0 {
		if err := enc.Encode(results); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func (c *cli) printJSON(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// userError renders err the way the API would, keeping the technical text
// for errors without a specific message.
func userError(err error) string {
	if core.IsUserFacing(err) {
		return core.FormatUserError(err)
	}
	return err.Error()
}
