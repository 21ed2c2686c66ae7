package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "print every record in the listing index, across all layers",
	Long: `dump bypasses overlay visibility resolution entirely: unlike ls, a path
shadowed by a newer layer still shows up here once per layer that holds it.`,
	Args: cobra.NoArgs,
	Run:  doDump,
}

func doDump(cmd *cobra.Command, args []string) {
	records, err := store.ListAll()
	if err != nil {
		logger.Error().Err(err).Msg("cannot dump listing index")
		return
	}
	for _, rec := range records {
		fmt.Printf("layer %d  %-10s  %s\n", rec.LayerId, rec.Type, rec.Path)
	}
}
