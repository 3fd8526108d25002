package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kcse-tutor/tutor/internal/config"
)

var (
	cfgFile    string
	serverURL  string
	appVersion string // set in Execute, reported by serve and the MCP server
)

// Execute creates the root command tree and runs it.
func Execute(version, commit, date string) error {
	appVersion = version
	rootCmd := newRootCmd(version, commit, date)
	return rootCmd.Execute()
}

func newRootCmd(version, commit, date string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tutor",
		Short: "KCSE syllabus tutor backed by Gemini",
		Long: `tutor answers Kenyan secondary school (KCSE) questions with Google Gemini.

It serves the tutor HTTP API, manages the access codes that unlock it, and
includes a command line client and an MCP server for AI agents.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./tutor.yaml)")
	cmd.PersistentFlags().StringVar(&serverURL, "server", "", "tutor server URL for client commands (default http://127.0.0.1:<server.port>)")

	cobra.OnInitialize(initConfig)

	// Add subcommands
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newVersionCmd(version, commit, date))
	cmd.AddCommand(newCodeCmd())
	cmd.AddCommand(newAdminCmd())
	cmd.AddCommand(newUnlockCmd())
	cmd.AddCommand(newLockCmd())
	cmd.AddCommand(newAskCmd())
	cmd.AddCommand(newSubjectsCmd())
	cmd.AddCommand(newOpenAPICmd())
	cmd.AddCommand(newMCPCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

func initConfig() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintln(os.Stderr, "warning:", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("tutor")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.tutor")
	}

	config.Configure(viper.GetViper())
	viper.ReadInConfig() // Ignore error - config file is optional
}
