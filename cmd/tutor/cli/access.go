package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newUnlockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unlock <code>",
		Short: "Unlock the tutor on this machine with an access code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gate, err := newGate()
			if err != nil {
				return err
			}
			if gate.Unlocked() {
				fmt.Fprintln(cmd.OutOrStdout(), "Already unlocked.")
				return nil
			}
			if err := gate.Unlock(context.Background(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Unlocked. Ask away with 'tutor ask'.")
			return nil
		},
	}
}

func newLockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lock",
		Short: "Forget the access code on this machine",
		RunE: func(cmd *cobra.Command, args []string) error {
			gate, err := newGate()
			if err != nil {
				return err
			}
			if err := gate.Lock(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Locked.")
			return nil
		},
	}
}
