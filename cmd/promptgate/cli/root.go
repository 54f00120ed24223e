package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// Execute creates the root command tree and runs it.
func Execute(version, commit, date string) error {
	rootCmd := newRootCmd(version, commit, date)
	return rootCmd.Execute()
}

func newRootCmd(version, commit, date string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "promptgate",
		Short: "Token-gated prompt resolution service",
		Long: `Promptgate resolves free-text requirements to curated prompt templates by
keyword matching, behind an opaque-token gate. Every API request presents an
X-Token-Key header; tokens are issued per member and scope which prompts a
caller can see.

The same matching and lookup services are exposed over HTTP and as MCP tools
for AI agents.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./promptgate.yaml)")
	cmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory for the SQLite store (default: ~/.promptgate)")

	cobra.OnInitialize(initConfig)

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newMCPCmd())
	cmd.AddCommand(newVersionCmd(version, commit, date))
	cmd.AddCommand(newMemberCmd())
	cmd.AddCommand(newTokenCmd())
	cmd.AddCommand(newImportCmd())
	cmd.AddCommand(newOpenAPICmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newStopCmd())

	return cmd
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("promptgate")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.promptgate")
	}

	viper.SetEnvPrefix("PROMPTGATE")
	viper.AutomaticEnv()
	viper.ReadInConfig() // config file is optional
}
