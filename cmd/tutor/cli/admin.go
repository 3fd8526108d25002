package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/kcse-tutor/tutor/internal/model"
)

// The admin commands talk to a running server with an admin session.

func newAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage access codes on a running server",
		Long:  "Log in to a tutor server as the administrator and manage its access codes remotely.",
	}

	cmd.AddCommand(newAdminLoginCmd())
	cmd.AddCommand(newAdminLogoutCmd())
	cmd.AddCommand(newAdminCodesCmd())
	cmd.AddCommand(newAdminGenerateCmd())
	cmd.AddCommand(newAdminDeleteCmd())

	return cmd
}

// ---------- admin login ----------

func newAdminLoginCmd() *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and save the admin session",
		Example: `  tutor admin login                      # prompts for the password
  tutor --server https://tutor.example.com admin login`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdminLogin(cmd.OutOrStdout(), password)
		},
	}

	cmd.Flags().StringVar(&password, "password", "", "Admin password (prompted if omitted)")

	return cmd
}

func runAdminLogin(out io.Writer, password string) error {
	if password == "" {
		fmt.Fprint(os.Stderr, "Password: ")
		pwBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(os.Stderr)
		password = strings.TrimSpace(string(pwBytes))
	}

	c := newClient()
	token, err := c.AdminLogin(context.Background(), password)
	if err != nil {
		return err
	}
	if err := writeAdminToken(token); err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	fmt.Fprintf(out, "Logged in to %s\n", c.BaseURL)
	return nil
}

// ---------- admin logout ----------

func newAdminLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the saved admin session",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient()
			if c.Token == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "Not logged in.")
				return nil
			}
			err := c.AdminLogout(context.Background())
			removeAdminToken()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		},
	}
}

// ---------- admin codes ----------

func newAdminCodesCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "codes",
		Short: "List the server's access codes",
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := newClient().ListCodes(context.Background())
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), snap)
			}
			printSnapshot(cmd.OutOrStdout(), snap)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

// ---------- admin generate ----------

func newAdminGenerateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "generate",
		Short: "Generate an access code on the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := newClient().GenerateCode(context.Background())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), code)
			return nil
		},
	}
}

// ---------- admin delete ----------

func newAdminDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <code>",
		Short: "Delete an access code on the server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := newClient().DeleteCode(context.Background(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
}

// printSnapshot renders a code snapshot as two tables.
func printSnapshot(w io.Writer, snap model.CodeSnapshot) {
	if len(snap.AccessCodes) == 0 {
		fmt.Fprintln(w, "No active access codes.")
	} else {
		fmt.Fprintf(w, "%-10s %-25s\n", "CODE", "CREATED")
		fmt.Fprintf(w, "%-10s %-25s\n", "----", "-------")
		for _, c := range snap.AccessCodes {
			fmt.Fprintf(w, "%-10s %-25s\n", c.Code, c.CreatedAt.Local().Format("2006-01-02 15:04:05"))
		}
	}

	if len(snap.UsedCodes) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Used (%d): %s\n", len(snap.UsedCodes), strings.Join(snap.UsedCodes, ", "))
	}
}
