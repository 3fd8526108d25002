package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kcse-tutor/tutor/internal/openapi"
)

func newOpenAPICmd() *cobra.Command {
	var (
		baseURL    string
		outputFile string
	)

	cmd := &cobra.Command{
		Use:   "openapi",
		Short: "Generate the OpenAPI specification",
		Long:  "Print the OpenAPI 3 document describing the tutor HTTP API.",
		Example: `  tutor openapi                                  # print to stdout
  tutor openapi --base-url https://tutor.example.com -o openapi.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if baseURL == "" {
				baseURL = resolveServerURL()
			}
			doc := openapi.Generate(baseURL, versionString())

			jsonBytes, err := json.MarshalIndent(doc, "", "  ")
			if err != nil {
				return fmt.Errorf("marshal spec: %w", err)
			}
			if outputFile != "" {
				if err := os.WriteFile(outputFile, jsonBytes, 0644); err != nil {
					return fmt.Errorf("write %s: %w", outputFile, err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", outputFile)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(jsonBytes))
			return nil
		},
	}

	cmd.Flags().StringVar(&baseURL, "base-url", "", "Server URL recorded in the spec")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Write spec to file instead of stdout")

	return cmd
}
