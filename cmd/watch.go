package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/neuralline/cyre-go/internal/configwatch"
)

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Watch a directory of channel YAML files and hot-reload them",
	Long: `Loads every channel YAML file already in <dir>, then watches the
directory with fsnotify: create/write re-registers the channel, remove
forgets it. Runs until interrupted (SIGINT/SIGTERM).`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runWatch(args[0])
	},
}

func runWatch(dir string) {
	rt := newRuntime()
	defer rt.Shut()

	w, err := configwatch.New(dir, rt)
	if err != nil {
		exitWithError("failed to start watcher", err)
	}
	if err := w.LoadExisting(); err != nil {
		exitWithError("failed to load existing channel files", err)
	}
	w.Start()
	defer w.Stop()

	fmt.Printf("watching %s for channel files (ctrl-C to stop)\n", dir)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case sig := <-sigCh:
			fmt.Printf("received %s, shutting down\n", sig)
			return
		case err, ok := <-w.Errors():
			if !ok {
				return
			}
			fmt.Fprintf(os.Stderr, "watch error: %v\n", err)
		}
	}
}
