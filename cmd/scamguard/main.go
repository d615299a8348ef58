// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the scamguard CLI.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/scamguard/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

// logger is configured from --log-level before any subcommand runs.
var logger = slog.Default()

// rootCmd is the base command for the scamguard CLI.
var rootCmd = &cobra.Command{
	Use:   "scamguard",
	Short: "Scam Department knowledge assistant",
	Long: `scamguard answers staff questions from the Scam Department's internal
knowledge file. It embeds each line of the file, caches the embeddings on
disk, and retrieves the closest lines for every question before asking a
language model to answer from them.

Run "scamguard serve" for the interactive assistant, or use the index
subcommands to build, query and export the cache directly.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := secrets.LoadEnv(); err != nil {
			return err
		}
		level, _ := cmd.Flags().GetString("log-level")
		lvl, err := parseLevel(level)
		if err != nil {
			return err
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
		slog.SetDefault(logger)
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./scamguard.yaml or ~/.config/scamguard/scamguard.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("scamguard")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "scamguard"))
		}
	}

	setDefaults(viper.GetViper())

	viper.SetEnvPrefix("SCAMGUARD")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func parseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return lvl, fmt.Errorf("invalid --log-level %q: %w", s, err)
	}
	return lvl, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
