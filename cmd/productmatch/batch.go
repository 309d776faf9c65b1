package main

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/productmatch/backend/internal/app"
	"github.com/productmatch/backend/internal/delivery/batch"
	"github.com/productmatch/backend/internal/domain"
)

type batchOptions struct {
	in        string
	out       string
	bindings  []string
	chunkSize int
}

func newBatchCmd(root *rootOptions) *cobra.Command {
	opts := &batchOptions{}

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Append match columns to every row of a CSV file",
		Example: `  productmatch batch --in products.csv --out matched.csv \
    --bind EAN=GTIN_CODE --bind Title=PRODUCT_NAME --bind Maker=BRAND_NAME`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			bindings, err := batch.ParseBindings(opts.bindings)
			if err != nil {
				return err
			}

			in, closeIn, err := openInput(cmd, opts.in)
			if err != nil {
				return err
			}
			defer closeIn()

			cfg, logger, err := root.load()
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			a, err := app.New(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			out, closeOut, err := openOutput(cmd, opts.out)
			if err != nil {
				return err
			}

			transformer := batch.NewTransformer(a.Service, bindings, opts.chunkSize, logger.Named("batch"))
			summary, err := transformer.Transform(cmd.Context(), in, out)
			if cerr := closeOut(); err == nil {
				err = cerr
			}
			printSummary(cmd.ErrOrStderr(), summary)
			return err
		},
	}
	cmd.Flags().StringVar(&opts.in, "in", "-", "input CSV file, - for stdin")
	cmd.Flags().StringVar(&opts.out, "out", "-", "output CSV file, - for stdout")
	cmd.Flags().StringArrayVar(&opts.bindings, "bind", nil, "COLUMN=KIND column binding, repeatable")
	cmd.Flags().IntVar(&opts.chunkSize, "chunk", 256, "rows matched per chunk")
	_ = cmd.MarkFlagRequired("bind")
	return cmd
}

func openInput(cmd *cobra.Command, path string) (io.Reader, func(), error) {
	if path == "-" {
		return cmd.InOrStdin(), func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open input: %w", err)
	}
	return f, func() { f.Close() }, nil
}

func openOutput(cmd *cobra.Command, path string) (io.Writer, func() error, error) {
	if path == "-" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create output: %w", err)
	}
	return f, f.Close, nil
}

func printSummary(w io.Writer, summary batch.Summary) {
	fmt.Fprintf(w, "%d rows\n", summary.Rows)
	outcomes := make([]string, 0, len(summary.Outcomes))
	for outcome := range summary.Outcomes {
		outcomes = append(outcomes, string(outcome))
	}
	sort.Strings(outcomes)
	for _, outcome := range outcomes {
		fmt.Fprintf(w, "  %-16s %d\n", outcome, summary.Outcomes[domain.MatchOutcome(outcome)])
	}
}
