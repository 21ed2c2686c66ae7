package main

import "github.com/spf13/cobra"

var mkdirCmd = &cobra.Command{
	Use:     "mkdir <path>",
	Short:   "create a directory (and its ancestors) in the top layer",
	Args:    cobra.ExactArgs(1),
	Example: "layerstore mkdir --config layerstore.toml a/b/c",
	Run:     doMkdir,
}

func doMkdir(cmd *cobra.Command, args []string) {
	if err := store.CreateDirectories(args[0]); err != nil {
		logger.Error().Err(err).Str("path", args[0]).Msg("cannot create directory")
	}
}
