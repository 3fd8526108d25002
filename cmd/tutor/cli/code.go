package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kcse-tutor/tutor/internal/service"
)

// The code commands work on the configured store directly, without a
// running server.

func newCodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "code",
		Short: "Manage access codes in the local store",
		Long:  "Create, list, delete and check access codes directly against the configured code store.",
	}

	cmd.AddCommand(newCodeCreateCmd())
	cmd.AddCommand(newCodeListCmd())
	cmd.AddCommand(newCodeDeleteCmd())
	cmd.AddCommand(newCodeVerifyCmd())

	return cmd
}

// withCodes opens the code store for the duration of fn.
func withCodes(fn func(ctx context.Context, codes *service.CodeService) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()
	codes, closeStore, err := openCodeService(ctx, cfg, newLogger(cfg, os.Stderr, false))
	if err != nil {
		return err
	}
	defer closeStore()
	return fn(ctx, codes)
}

// ---------- code create ----------

func newCodeCreateCmd() *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create new access codes",
		Example: `  tutor code create
  tutor code create -n 30   # a code for every student in the class`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if count < 1 {
				return fmt.Errorf("count must be at least 1")
			}
			return withCodes(func(ctx context.Context, codes *service.CodeService) error {
				for i := 0; i < count; i++ {
					code, err := codes.CreateAccessCode(ctx)
					if err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), code)
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", 1, "Number of codes to create")

	return cmd
}

// ---------- code list ----------

func newCodeListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List active and used access codes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCodes(func(ctx context.Context, codes *service.CodeService) error {
				snap := codes.GetAllCodes(ctx)
				if jsonOutput {
					return printJSON(cmd.OutOrStdout(), snap)
				}
				printSnapshot(cmd.OutOrStdout(), snap)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

// ---------- code delete ----------

func newCodeDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <code>",
		Aliases: []string{"rm"},
		Short:   "Delete an active access code",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCodes(func(ctx context.Context, codes *service.CodeService) error {
				if !codes.DeleteAccessCode(ctx, args[0]) {
					return fmt.Errorf("code %s not found", service.NormalizeCode(args[0]))
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", service.NormalizeCode(args[0]))
				return nil
			})
		},
	}
}

// ---------- code verify ----------

func newCodeVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <code>",
		Short: "Check an access code (single-use codes are consumed)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCodes(func(ctx context.Context, codes *service.CodeService) error {
				if !codes.VerifyAccessCode(ctx, args[0]) {
					return fmt.Errorf("invalid or expired access code")
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Code is valid.")
				return nil
			})
		},
	}
}
