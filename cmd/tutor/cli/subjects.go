package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newSubjectsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "subjects",
		Short: "List the subjects the server covers",
		RunE: func(cmd *cobra.Command, args []string) error {
			subjects, err := newClient().Subjects(context.Background())
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), subjects)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-18s %-24s %s\n", "SUBJECT", "MODEL", "SET BOOKS")
			fmt.Fprintf(out, "%-18s %-24s %s\n", "-------", "-----", "---------")
			for _, s := range subjects {
				fmt.Fprintf(out, "%-18s %-24s %s\n", s.Name, s.Model, strings.Join(s.SetBooks, "; "))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}
