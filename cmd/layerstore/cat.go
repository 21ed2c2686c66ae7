package main

import (
	"io"
	"os"

	"github.com/spf13/cobra"
)

var catCmd = &cobra.Command{
	Use:     "cat <path>",
	Short:   "print the visible content of a file to stdout",
	Args:    cobra.ExactArgs(1),
	Example: "layerstore cat --config layerstore.toml a/b/report.txt",
	Run:     doCat,
}

func doCat(cmd *cobra.Command, args []string) {
	r, err := store.Read(args[0])
	if err != nil {
		logger.Error().Err(err).Str("path", args[0]).Msg("cannot read file")
		return
	}
	defer r.Close()
	if _, err := io.Copy(os.Stdout, r); err != nil {
		logger.Error().Err(err).Str("path", args[0]).Msg("cannot write to stdout")
	}
}
