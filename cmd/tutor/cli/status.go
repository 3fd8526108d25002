package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check whether the tutor server is reachable",
		Long:  "Check the server's health endpoint and whether this machine is unlocked.",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			c := newClient()

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := c.Health(ctx); err != nil {
				fmt.Fprintf(out, "Server %s is not responding: %v\n", c.BaseURL, err)
			} else {
				fmt.Fprintf(out, "Server %s is running\n", c.BaseURL)
			}

			if gate, err := newGate(); err == nil {
				state := "locked"
				if gate.Unlocked() {
					state = "unlocked"
				}
				fmt.Fprintf(out, "  Access:  %s (%s)\n", state, gate.Path())
			}
			if c.Token != "" {
				fmt.Fprintln(out, "  Admin:   logged in")
			}
			return nil
		},
	}
}
