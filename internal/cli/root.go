package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Execute runs the openapi2dyalog CLI.
func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd constructs the root command so tests can exercise the CLI easily.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "openapi2dyalog",
		Short: "Generate Dyalog APL clients from Swagger/OpenAPI documents",
		Long: "openapi2dyalog compiles Swagger 2.0 and OpenAPI 3.x documents into a Dyalog APL " +
			"client: one function per operation, one class per model, and a client class tying them together.",
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.PersistentFlags().StringP("config", "c", "", "Config file path (YAML or JSON)")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(newGenerateCmd(), newInitCmd())

	// Cobra flag errors (like unknown flags) become usage errors carrying the
	// command's help text.
	for _, c := range append([]*cobra.Command{cmd}, cmd.Commands()...) {
		c.SetFlagErrorFunc(flagError)
	}

	return cmd
}

func flagError(c *cobra.Command, err error) error {
	return newUsageError(fmt.Sprintf("%v\n\n%s", err, c.UsageString()))
}
