// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	VERSION = "0.0.0-dev.0"
)

// envPrefix prefixes the environment variables which provide flag defaults.
const envPrefix = "CAP_IDENTITY_"

var rootCmd = &cobra.Command{
	Use:               "cap-identity",
	Version:           VERSION,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
	Short:             "OpenID Connect claims verification relying party",
	Long: `cap-identity sends users to an OpenID Connect provider to verify
eligibility claims and reports which claims the provider verified.

Every flag can also be set with a CAP_IDENTITY_ prefixed environment variable,
e.g. --log-level is read from CAP_IDENTITY_LOG_LEVEL.`,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return bindEnv(cmd.Flags(), os.LookupEnv)
	},
}

type rootFlags struct {
	logLevel string
	logJSON  bool
}

var rootArgs = rootFlags{
	logLevel: "info",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootArgs.logLevel, "log-level", rootArgs.logLevel,
		"The log level. Options: [trace, debug, info, warn, error].")
	rootCmd.PersistentFlags().BoolVar(&rootArgs.logJSON, "log-json", false,
		"Write logs as JSON.")
	rootCmd.SetOut(os.Stdout)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		rootCmd.PrintErrf("✗ %v\n", err)
		os.Exit(1)
	}
}

// newLogger returns the root logger configured by the persistent flags.
func newLogger(cmd *cobra.Command) hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:       "cap-identity",
		Level:      hclog.LevelFromString(rootArgs.logLevel),
		JSONFormat: rootArgs.logJSON,
		Output:     cmd.ErrOrStderr(),
	})
}

// envName returns the environment variable providing the default of the
// flag called name.
func envName(name string) string {
	return envPrefix + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}

// bindEnv sets every flag which wasn't given on the command line from its
// environment variable, when that is set.
func bindEnv(flags *pflag.FlagSet, lookupEnv func(string) (string, bool)) error {
	var err error
	flags.VisitAll(func(f *pflag.Flag) {
		if err != nil || f.Changed {
			return
		}
		v, ok := lookupEnv(envName(f.Name))
		if !ok {
			return
		}
		if setErr := flags.Set(f.Name, v); setErr != nil {
			err = fmt.Errorf("invalid %s: %w", envName(f.Name), setErr)
		}
	})
	return err
}
