// cmd.go - Haupt-CLI Setup und Root Command
// Hauptfunktionen: NewCLI, appendEnvDocs
package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/7blacky7/ollama-taesd/envconfig"
)

// appendEnvDocs - Fuegt Umgebungsvariablen-Dokumentation zum Command hinzu
func appendEnvDocs(cmd *cobra.Command, envs []envconfig.EnvVar) {
	if len(envs) == 0 {
		return
	}

	envUsage := `
Environment Variables:
`
	for _, e := range envs {
		envUsage += fmt.Sprintf("      %-24s   %s\n", e.Name, e.Description)
	}

	cmd.SetUsageTemplate(cmd.UsageTemplate() + envUsage)
}

// NewCLI - Erstellt das Haupt-CLI mit allen Commands
func NewCLI() *cobra.Command {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	cobra.EnableCommandSorting = false

	rootCmd := &cobra.Command{
		Use:           "taesd",
		Short:         "TAESD encode/decode nodes for node-graph image hosts",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return LoadDotEnv()
		},
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Print(cmd.UsageString())
		},
	}

	serveCmd := newServeCmd()
	modelsCmd := newModelsCmd()
	showCmd := newShowCmd()
	nodesCmd := newNodesCmd()

	// Environment-Dokumentation hinzufuegen
	envVars := envconfig.AsMap()
	for _, cmd := range []*cobra.Command{serveCmd, modelsCmd, showCmd} {
		switch cmd {
		case serveCmd:
			appendEnvDocs(cmd, []envconfig.EnvVar{
				envVars["TAESD_DEBUG"],
				envVars["TAESD_HOST"],
				envVars["TAESD_MODELS"],
				envVars["TAESD_ORIGINS"],
				envVars["TAESD_BACKEND"],
				envVars["TAESD_PRELOAD"],
				envVars["TAESD_MAX_UPLOAD_MB"],
				envVars["TAESD_MAX_PIXELS"],
			})
		default:
			appendEnvDocs(cmd, []envconfig.EnvVar{envVars["TAESD_MODELS"]})
		}
	}

	rootCmd.AddCommand(
		serveCmd,
		modelsCmd,
		showCmd,
		nodesCmd,
	)

	return rootCmd
}
