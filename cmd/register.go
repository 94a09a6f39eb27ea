package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/neuralline/cyre-go/internal/config"
)

var registerCmd = &cobra.Command{
	Use:   "register <file>",
	Short: "Register a channel from a YAML configuration file",
	Long: `Register a channel from a single-channel YAML file (see
internal/config.DecodeChannelYAML for the accepted fields), printing any
compiler warnings and the compiled channel's blocked status.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runRegister(args[0])
	},
}

func runRegister(path string) {
	cfg, err := config.DecodeChannelFile(path)
	if err != nil {
		exitWithError("failed to decode channel config", err)
	}

	rt := newRuntime()
	defer rt.Shut()

	result := rt.Action(cfg)
	for _, w := range result.Warnings {
		fmt.Printf("warning: %s\n", w)
	}
	for _, e := range result.Errors {
		fmt.Printf("error: %s\n", e)
	}

	if result.Blocked {
		fmt.Printf("channel %q registered (blocked: %s)\n", cfg.ID, result.Compiled.BlockReason)
		return
	}
	fmt.Printf("channel %q registered\n", cfg.ID)
}
