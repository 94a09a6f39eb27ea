package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/neuralline/cyre-go/internal/config"
)

var statsChannelFile string

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show compiled channel metadata",
	Long: `Registers a channel (from --file) and prints its compiled metadata:
derived flags (blocked/fast-path/protections/processing/scheduling), the
resolved pipeline stage order, and current execution counters.`,
	Run: func(cmd *cobra.Command, args []string) {
		runStats()
	},
}

func init() {
	statsCmd.Flags().StringVarP(&statsChannelFile, "file", "f", "", "channel YAML file (required)")
	statsCmd.MarkFlagRequired("file")
}

type channelStats struct {
	ID               string   `json:"id"`
	Blocked          bool     `json:"blocked"`
	BlockReason      string   `json:"blockReason,omitempty"`
	HasFastPath      bool     `json:"hasFastPath"`
	HasProtections   bool     `json:"hasProtections"`
	HasProcessing    bool     `json:"hasProcessing"`
	HasScheduling    bool     `json:"hasScheduling"`
	Pipeline         []string `json:"pipeline"`
	ExecutionCount   int64    `json:"executionCount"`
	LastExecTimeUnix int64    `json:"lastExecTimeUnix"`
}

func runStats() {
	cfg, err := config.DecodeChannelFile(statsChannelFile)
	if err != nil {
		exitWithError("failed to decode channel config", err)
	}

	rt := newRuntime()
	defer rt.Shut()

	result := rt.Action(cfg)
	c := result.Compiled

	pipeline := make([]string, 0, len(c.Pipeline))
	for _, s := range c.Pipeline {
		pipeline = append(pipeline, string(s.Kind))
	}

	out, err := json.MarshalIndent(channelStats{
		ID:               c.ID,
		Blocked:          c.IsBlocked,
		BlockReason:      c.BlockReason,
		HasFastPath:      c.HasFastPath,
		HasProtections:   c.HasProtections,
		HasProcessing:    c.HasProcessing,
		HasScheduling:    c.HasScheduling,
		Pipeline:         pipeline,
		ExecutionCount:   c.ExecutionCount(),
		LastExecTimeUnix: c.LastExecTime(),
	}, "", "  ")
	if err != nil {
		exitWithError("failed to format stats", err)
	}
	fmt.Println(string(out))
}
