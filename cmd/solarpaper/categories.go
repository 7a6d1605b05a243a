package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/DenizUgur/solarpaper/internal/orbit"
)

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List categories with their indexes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()
		for _, c := range orbit.Categories() {
			source := "horizons"
			if c.IsSmallBody() {
				source = "sbdb"
			}
			fmt.Fprintf(w, "%2d  %-22s %-10s %s\n", c.Index(), c, c.Variant(), source)
		}
		return nil
	},
}
