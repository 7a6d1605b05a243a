package main

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/DenizUgur/solarpaper/internal/orbit"
	"github.com/DenizUgur/solarpaper/internal/snapshot"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [snapshot]",
	Short: "Summarize a snapshot file",
	Long: `Print the validity date and per-category record counts of a
snapshot. Without an argument the snapshot in the cache directory is read.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := filepath.Join(loadBuildConfig(logger).CacheDir, snapshot.FileName)
		if len(args) == 1 {
			path = args[0]
		}
		inv, err := snapshot.Inspect(path)
		if err != nil {
			return err
		}
		printInventory(cmd.OutOrStdout(), path, inv)
		return nil
	},
}

func printInventory(w io.Writer, path string, inv snapshot.Inventory) {
	fmt.Fprintf(w, "snapshot    %s\n", path)
	fmt.Fprintf(w, "valid until %s (JD %.6f)\n", inv.ValidUntil.Format(time.RFC3339), inv.ValidUntilJD)
	fmt.Fprintf(w, "records     %d (%s samples, %d with radius ratio)\n",
		inv.Records, humanize.Comma(int64(inv.Samples)), inv.Radius)
	for _, c := range orbit.Categories() {
		if n := inv.PerCategory[c.Index()]; n > 0 {
			fmt.Fprintf(w, "  %2d %-22s %d\n", c.Index(), c, n)
		}
	}
}
