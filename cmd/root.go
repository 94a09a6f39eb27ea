// Package cmd implements the cyre CLI using cobra, wiring subcommands
// straight to a pkg/cyre.Runtime instance since Cyre is an embeddable
// library, not a daemon: there is no UDS/Kafka control plane to dial, the
// way the teacher's cmd/ package talks to a running otus daemon.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/neuralline/cyre-go/internal/config"
	"github.com/neuralline/cyre-go/pkg/cyre"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "cyre",
	Short: "Cyre - reactive, protected, declarative channel dispatch",
	Long: `Cyre registers declarative channels (action()), subscribes handlers
(on()), and dispatches calls through a protection pipeline: recuperation,
throttle, debounce, schema/condition/selector/transform, then optional
delay/interval scheduling.

This CLI wraps a single in-process Runtime for local experimentation:
register channels from YAML files, call them by id, inspect stats, or
watch a directory of channel files for hot reload.`,
	Version: "0.1.0",
}

// Execute adds all child commands to the root command and runs it. Called
// once by main.main().
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"global runtime config file (YAML, cyre: root key); defaults applied if omitted")

	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(callCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(watchCmd)
}

func exitWithError(msg string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
	}
	os.Exit(1)
}

func loadGlobalConfig() *config.GlobalConfig {
	if configFile == "" {
		return config.Default()
	}
	cfg, err := config.Load(configFile)
	if err != nil {
		exitWithError(fmt.Sprintf("failed to load config %s", configFile), err)
	}
	return cfg
}

func newRuntime() *cyre.Runtime {
	return cyre.New(loadGlobalConfig())
}
