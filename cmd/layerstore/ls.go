package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ocfl-archive/layerstore/pkg/listingindex"
)

var lsCmd = &cobra.Command{
	Use:     "ls [path]",
	Short:   "list the visible children of a directory",
	Args:    cobra.MaximumNArgs(1),
	Example: "layerstore ls --config layerstore.toml a/b",
	Run:     doLs,
}

var lsRecursive bool

func init() {
	lsCmd.Flags().BoolVarP(&lsRecursive, "recursive", "r", false, "list every visible descendant instead of just immediate children")
}

func doLs(cmd *cobra.Command, args []string) {
	path := ""
	if len(args) > 0 {
		path = args[0]
	}

	var records []listingindex.Record
	var err error
	if lsRecursive {
		records, err = store.ListRecursive(path)
	} else {
		records, err = store.ListDirectory(path)
	}
	if err != nil {
		logger.Error().Err(err).Str("path", path).Msg("cannot list directory")
		return
	}
	for _, rec := range records {
		size := "-"
		if rec.Inlined() {
			size = humanize.Bytes(uint64(len(rec.Content)))
		}
		fmt.Printf("%-10s %8s  layer %d  %s\n", rec.Type, size, rec.LayerId, rec.Path)
	}
}
