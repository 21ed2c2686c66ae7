package main

import "github.com/spf13/cobra"

var rmRecursive bool
var rmPruneEmpty bool

var rmCmd = &cobra.Command{
	Use:     "rm <path>",
	Short:   "delete a file or directory",
	Args:    cobra.ExactArgs(1),
	Example: "layerstore rm --config layerstore.toml a/b/report.txt",
	Run:     doRm,
}

func init() {
	rmCmd.Flags().BoolVarP(&rmRecursive, "recursive", "r", false, "delete a directory and everything under it")
	rmCmd.Flags().BoolVar(&rmPruneEmpty, "prune-empty", false, "after deleting, remove now-empty ancestor directories")
}

func doRm(cmd *cobra.Command, args []string) {
	path := args[0]
	var err error
	if rmRecursive {
		err = store.DeleteDirectory(path)
	} else {
		err = store.DeleteFile(path)
	}
	if err != nil {
		logger.Error().Err(err).Str("path", path).Msg("cannot delete")
		return
	}
	if rmPruneEmpty {
		if err := store.DeleteEmptyDirsUp(path); err != nil {
			logger.Error().Err(err).Str("path", path).Msg("cannot prune empty ancestor directories")
		}
	}
}
