package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/productmatch/backend/internal/domain"
)

func newNormalizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "normalize GTIN...",
		Short:   "Print the canonical 13-digit form of each GTIN",
		Example: "  productmatch normalize 765390-68309 7894900011517",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			invalid := 0
			for _, raw := range args {
				code, ok := domain.NormalizeGTIN(raw)
				if !ok {
					invalid++
					fmt.Fprintf(cmd.ErrOrStderr(), "%q is not a GTIN\n", raw)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", raw, code)
			}
			if invalid > 0 {
				return fmt.Errorf("%w: %d of %d values could not be normalized", domain.ErrInvalidRequest, invalid, len(args))
			}
			return nil
		},
	}
}
