package main

import (
	"github.com/spf13/cobra"
)

var putCmd = &cobra.Command{
	Use:     "put <external-file> <dest-path>",
	Short:   "copy an external file into the top layer",
	Args:    cobra.ExactArgs(2),
	Example: "layerstore put --config layerstore.toml ./report.txt a/b/report.txt",
	Run:     doPut,
}

var putMediaType string

func init() {
	putCmd.Flags().StringVar(&putMediaType, "media-type", "", "media type of the file (accepted and ignored; not recorded)")
}

func doPut(cmd *cobra.Command, args []string) {
	if err := store.CopyFileInto(args[0], args[1], putMediaType); err != nil {
		logger.Error().Err(err).Str("src", args[0]).Str("dest", args[1]).Msg("cannot put file")
		return
	}
	logger.Info().Str("dest", args[1]).Msg("file written")
}
