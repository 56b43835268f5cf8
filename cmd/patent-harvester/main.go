// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the patent-harvester CLI.
// Implements: prd001-extraction, prd002-retrieval, prd004-orchestration
// (CLI surface). See docs/ARCHITECTURE § Pipeline Interface.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// version is set at build time via ldflags.
var version = "dev"

// logger is constructed in PersistentPreRunE so every subcommand shares it.
var logger *zap.Logger

// rootCmd is the base command for the patent-harvester CLI.
var rootCmd = &cobra.Command{
	Use:   "patent-harvester",
	Short: "Harvest patent documents from Google Patents by topic",
	Long: `patent-harvester runs a two-stage pipeline against Google Patents: a
scripted browser session extracts patent identifiers for a free-text topic
from the rendered search page, then each patent's document is downloaded,
PDF preferred with an HTML fallback.

harvest runs the full pipeline for a topic; fetch downloads explicitly named
patents without a search; history lists prior runs.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		debug, _ := cmd.Flags().GetBool("debug")
		l, err := newLogger(debug)
		if err != nil {
			return fmt.Errorf("building logger: %w", err)
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// newLogger returns a console logger, verbose when debug capture is on.
func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.DisableStacktrace = true
	return cfg.Build()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./patent-harvester.yaml or ~/.config/patent-harvester/config.yaml)")
	rootCmd.PersistentFlags().String("output", "patents", "directory for downloaded documents")
	rootCmd.PersistentFlags().Bool("debug", false, "capture screenshots, DOM dumps, and the run status record")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("patent-harvester")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "patent-harvester"))
		}
	}

	viper.SetEnvPrefix("PATENT_HARVESTER")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
