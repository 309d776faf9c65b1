package main

import (
	"context"
	"errors"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/productmatch/backend/internal/domain"
	"github.com/productmatch/backend/internal/infrastructure/memindex"
	"github.com/productmatch/backend/internal/infrastructure/postgres"
	"github.com/productmatch/backend/internal/infrastructure/sqlite"
)

type importOptions struct {
	catalog  string
	sqlite   string
	postgres string
}

// catalogStore is a writable index that holds a connection
type catalogStore interface {
	domain.CatalogWriter
	io.Closer
}

func newImportCmd(root *rootOptions) *cobra.Command {
	opts := &importOptions{}

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load a YAML catalog into a SQLite or PostgreSQL index",
		Example: `  productmatch import --catalog testdata/catalog.yaml --sqlite ./productmatch.db
  productmatch import --catalog catalog.yaml --postgres "postgres://localhost/productmatch?sslmode=disable"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, logger, err := root.load()
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			records, err := memindex.ReadCatalogFile(opts.catalog)
			if err != nil {
				return err
			}

			store, target, err := openStore(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer store.Close()

			n, err := store.Import(cmd.Context(), records)
			if err != nil {
				return err
			}
			logger.Info("catalog imported",
				zap.String("catalog", opts.catalog),
				zap.String("target", target),
				zap.Int("records", n))
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.catalog, "catalog", "", "YAML catalog file")
	cmd.Flags().StringVar(&opts.sqlite, "sqlite", "", "SQLite database path")
	cmd.Flags().StringVar(&opts.postgres, "postgres", "", "PostgreSQL DSN")
	_ = cmd.MarkFlagRequired("catalog")
	cmd.MarkFlagsMutuallyExclusive("sqlite", "postgres")
	cmd.MarkFlagsOneRequired("sqlite", "postgres")
	return cmd
}

func openStore(ctx context.Context, opts *importOptions) (catalogStore, string, error) {
	switch {
	case opts.sqlite != "":
		catalog, err := sqlite.Open(opts.sqlite)
		if err != nil {
			return nil, "", err
		}
		return catalog, "sqlite", nil
	case opts.postgres != "":
		catalog, err := postgres.Connect(ctx, postgres.Config{DSN: opts.postgres})
		if err != nil {
			return nil, "", err
		}
		if err := catalog.EnsureSchema(ctx); err != nil {
			catalog.Close()
			return nil, "", err
		}
		return catalog, "postgres", nil
	}
	return nil, "", errors.New("one of --sqlite or --postgres is required")
}
