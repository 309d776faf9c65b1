package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/productmatch/backend/internal/app"
	"github.com/productmatch/backend/internal/domain"
)

func newMatchCmd(root *rootOptions) *cobra.Command {
	var fields []string

	cmd := &cobra.Command{
		Use:   "match",
		Short: "Match one record and print the result as JSON",
		Example: `  productmatch match --field GTIN_CODE=7894900011517
  productmatch match --field BRAND_NAME=Lego --field "PRODUCT_NAME=star destroyer"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := parseFieldFlags(fields)
			if err != nil {
				return err
			}

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

			result, err := a.Service.Match(cmd.Context(), q)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}
	cmd.Flags().StringArrayVar(&fields, "field", nil, "KIND=VALUE input value, repeatable; an empty VALUE is absent")
	_ = cmd.MarkFlagRequired("field")
	return cmd
}

// parseFieldFlags turns KIND=VALUE flags into a query, keeping their order
func parseFieldFlags(specs []string) (domain.Query, error) {
	q := make(domain.Query, 0, len(specs))
	for _, spec := range specs {
		kind, value, ok := strings.Cut(spec, "=")
		if !ok {
			return nil, fmt.Errorf("%w: field %q is not KIND=VALUE", domain.ErrInvalidRequest, spec)
		}
		field, err := domain.ParseSemanticField(kind)
		if err != nil {
			return nil, err
		}
		fv := domain.FieldValue{Field: field}
		if value != "" {
			fv.Value = &value
		}
		q = append(q, fv)
	}
	return q, nil
}
