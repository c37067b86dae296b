package cli

import (
    "context"
    "fmt"
    "os"
    "path/filepath"
    "strings"

    "github.com/spf13/cobra"
)

const defaultConfigFile = "openapi2dyalog.yaml"

// InitConfig captures the options for the init command.
type InitConfig struct {
	OutputPath string
	Force      bool
}

var initRunner = runInit

func newInitCmd() *cobra.Command {
    cmd := &cobra.Command{
        Use:   "init",
        Short: "Scaffold a sample openapi2dyalog configuration file",
        Long:  "Scaffold a commented openapi2dyalog configuration file that documents available options.",
        Args:  cobra.NoArgs,
        RunE: func(cmd *cobra.Command, args []string) error {
            out, err := cmd.Flags().GetString("out")
            if err != nil {
                return err
            }
            force, err := cmd.Flags().GetBool("force")
            if err != nil {
                return err
            }
            return initRunner(cmd.Context(), &InitConfig{OutputPath: out, Force: force})
        },
    }

    cmd.Flags().String("out", defaultConfigFile, "Where to write the sample config file")
    cmd.Flags().Bool("force", false, "Overwrite the target file if it already exists")

    return cmd
}

func runInit(ctx context.Context, cfg *InitConfig) error {
    if err := ctx.Err(); err != nil {
        return err
    }

    out := strings.TrimSpace(cfg.OutputPath)
    if out == "" {
        out = defaultConfigFile
    }
    absPath, err := filepath.Abs(out)
    if err != nil {
        return fmt.Errorf("init: resolve output path: %w", err)
    }

    if st, err := os.Stat(absPath); err == nil && !cfg.Force {
        if st.Mode().IsRegular() {
            return newUsageError(fmt.Sprintf("init: %q already exists (use --force to overwrite)", absPath))
        }
    }

    if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
        return newUsageError(fmt.Sprintf("init: cannot create parent directory: %v", err))
    }

    content := strings.TrimSpace(sampleConfigYAML) + "\n"

    tmp := absPath + ".tmp"
    if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
        return newUsageError(fmt.Sprintf("init: cannot write temp file: %v\nHint: choose a different --out or check directory permissions.", err))
    }
    if err := os.Rename(tmp, absPath); err != nil {
        _ = os.Remove(tmp)
        return newUsageError(fmt.Sprintf("init: cannot place file at %s: %v", absPath, err))
    }
    fmt.Fprintf(os.Stdout, "Wrote sample config to %s\n", absPath)
    return nil
}

// sampleConfigYAML documents every key accepted by --config.
const sampleConfigYAML = `# openapi2dyalog configuration (YAML or JSON)
# All fields are optional. Command-line flags override config values.

# Path or URL to the Swagger 2.0 / OpenAPI 3.x document.
# input: ./openapi.yaml

# Output directory of the generated APL project.
# out: ./generated

# Namespace name recorded in the client class and README.
# namespace: Petstore

# Directory with template overrides (endpoint.aplf.tmpl, model.aplc.tmpl, ...).
# templates: ./templates

# Only include operations with these tags (comma-separated or list).
# includeTags: [pets, store]

# Exclude operations with these tags (comma-separated or list).
# excludeTags: [internal]

# Only include operations using these HTTP methods.
# methods: [get, post]

# Only include operations whose path matches one of these regular expressions.
# paths: ['^/pets']

# Skip validation of the input document.
# noValidation: false

# Preview planned outputs without writing files.
# dryRun: false

# Write into a non-empty output directory that was not generated before.
# force: false

# Fail when any operation cannot be generated (for example an unsupported
# request media type).
# strict: false

# Enable debug logging.
# verbose: false
`
