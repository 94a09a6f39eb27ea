package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/neuralline/cyre-go/internal/config"
)

var callChannelFile string

var callCmd = &cobra.Command{
	Use:   "call <id> <payload-json>",
	Short: "Register a channel and call it once with a JSON payload",
	Long: `Registers a channel (from --file, if given) and invokes it with the
JSON-decoded payload, printing the resulting response envelope.

Without a subscribed handler, a call that reaches the handler step fails
with "no subscriber" (debounced and scheduled calls are accepted first) — call
is meant for exercising channels a longer-lived embedder has already wired
with on(), or for smoke-testing compiler behavior (blocked/cross-rule
channels reject before a handler would even be looked up).`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		runCall(args[0], args[1])
	},
}

func init() {
	callCmd.Flags().StringVarP(&callChannelFile, "file", "f", "",
		"channel YAML file to register before calling")
}

func runCall(id, payloadJSON string) {
	var payload any
	if err := json.Unmarshal([]byte(payloadJSON), &payload); err != nil {
		exitWithError("failed to parse payload JSON", err)
	}

	rt := newRuntime()
	defer rt.Shut()

	if callChannelFile != "" {
		cfg, err := config.DecodeChannelFile(callChannelFile)
		if err != nil {
			exitWithError("failed to decode channel config", err)
		}
		rt.Action(cfg)
	} else {
		rt.Action(config.ChannelConfig{ID: id})
	}

	resp := rt.Call(context.Background(), id, payload)
	out, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		exitWithError("failed to format response", err)
	}
	fmt.Println(string(out))
}
