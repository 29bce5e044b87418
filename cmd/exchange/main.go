// Command exchange runs the continuous double-auction matching engine:
// its admission transport, metrics server, and websocket top-of-book
// fan-out, or operates on a persisted audit log offline.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "exchange",
		Short: "Continuous double-auction matching engine",
	}

	root.AddCommand(newServeCmd())
	root.AddCommand(newReplayCmd())
	root.AddCommand(newVerifyConfigCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
