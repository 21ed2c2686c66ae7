package main

import (
	"fmt"
	"os"

	"emperror.dev/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ocfl-archive/layerstore/config"
	"github.com/ocfl-archive/layerstore/pkg/layer"
	"github.com/ocfl-archive/layerstore/pkg/layermanager"
	"github.com/ocfl-archive/layerstore/pkg/listingindex"
	"github.com/ocfl-archive/layerstore/pkg/listingindex/badgerstore"
	"github.com/ocfl-archive/layerstore/pkg/storage"
	"github.com/ocfl-archive/layerstore/version"
)

var persistentFlagConfigFile string

var conf *config.Config
var logger zerolog.Logger
var store *storage.LayeredStorage

var rootCmd = &cobra.Command{
	Use:   "layerstore",
	Short: "layerstore inspects and edits a layered OCFL-compatible object store",
	Long: `layerstore is a command line client for the layered storage backend:
a stack of overlaid filesystem layers with a single mutable top, backed by
a persistent listing index.`,
	Version: fmt.Sprintf("%s (commit %s, built %s by %s)", version.Version, version.ShortCommit(), version.Date, version.BuiltBy),
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

func initConfig() {
	if persistentFlagConfigFile == "" {
		cobra.CheckErr(errors.New("--config is required"))
	}
	var err error
	conf, err = config.LoadFile(persistentFlagConfigFile)
	if err != nil {
		cobra.CheckErr(errors.Wrap(err, "cannot load config"))
	}

	level, err := zerolog.ParseLevel(conf.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	out := os.Stderr
	if conf.Log.File != "" {
		f, err := os.OpenFile(conf.Log.File, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			cobra.CheckErr(errors.Wrapf(err, "cannot open log file %s", conf.Log.File))
		}
		out = f
	}
	logger = zerolog.New(zerolog.ConsoleWriter{Out: out, NoColor: true}).Level(level).With().Timestamp().Logger()

	layers := make([]layer.Layer, 0, len(conf.Layers))
	for i, lc := range conf.Layers {
		l, err := layer.NewOsLayer(layer.Id(i), lc.Path, lc.Sealed, logger)
		if err != nil {
			cobra.CheckErr(errors.Wrapf(err, "cannot open layer %s", lc.Path))
		}
		layers = append(layers, l)
	}
	manager, err := layermanager.New(layers)
	if err != nil {
		cobra.CheckErr(errors.Wrap(err, "cannot build layer manager"))
	}

	var idxStore listingindex.Store
	if conf.Index.InMemory {
		idxStore, err = badgerstore.OpenInMemory(logger)
	} else {
		idxStore, err = badgerstore.Open(conf.Index.BadgerDir, logger)
	}
	if err != nil {
		cobra.CheckErr(errors.Wrap(err, "cannot open listing index"))
	}
	index := listingindex.New(idxStore, logger)

	filter := storage.RejectAll
	if conf.Inlining.Enabled {
		filter = storage.SizeThresholdFilter(conf.Inlining.MaxBytes, func(path string) (int64, error) {
			fi, err := os.Stat(path)
			if err != nil {
				return 0, err
			}
			return fi.Size(), nil
		})
	}

	store = storage.New(manager, index, filter, logger)
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&persistentFlagConfigFile, "config", "", "path to the layerstore TOML config file")

	rootCmd.AddCommand(lsCmd, catCmd, putCmd, mkdirCmd, mvCmd, importCmd, rmCmd, dumpCmd)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
