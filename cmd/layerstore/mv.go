package main

import "github.com/spf13/cobra"

var mvCmd = &cobra.Command{
	Use:     "mv <src-path> <dest-path>",
	Short:   "move a directory beneath <dest-path> (keeping its name) within the top layer",
	Args:    cobra.ExactArgs(2),
	Example: "layerstore mv --config layerstore.toml a/old a/new",
	Run:     doMv,
}

func doMv(cmd *cobra.Command, args []string) {
	if err := store.MoveDirectoryInternal(args[0], args[1]); err != nil {
		logger.Error().Err(err).Str("src", args[0]).Str("dest", args[1]).Msg("cannot move directory")
	}
}

var importCmd = &cobra.Command{
	Use:     "import <external-dir> <dest-path>",
	Short:   "move an external directory tree into the top layer",
	Args:    cobra.ExactArgs(2),
	Example: "layerstore import --config layerstore.toml ./incoming a/b",
	Run:     doImport,
}

func doImport(cmd *cobra.Command, args []string) {
	if err := store.MoveDirectoryInto(args[0], args[1]); err != nil {
		logger.Error().Err(err).Str("src", args[0]).Str("dest", args[1]).Msg("cannot import directory")
	}
}
