package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf"
	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	aplemitter "github.com/mark3labs/openapi2dyalog/internal/emitter/aplemitter"
	genspec "github.com/mark3labs/openapi2dyalog/internal/spec"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const defaultOutDir = "./generated"

// GenerateConfig captures all inputs that influence the generate command after
// merging defaults, config file values, and CLI overrides.
type GenerateConfig struct {
	Input        string
	Out          string
	Namespace    string
	TemplateDir  string
	IncludeTags  []string
	ExcludeTags  []string
	Methods      []string
	Paths        []string
	ConfigPath   string
	NoValidation bool
	DryRun       bool
	Force        bool
	Strict       bool
	Verbose      bool
}

func defaultGenerateConfig() GenerateConfig {
	return GenerateConfig{Out: defaultOutDir}
}

var generateRunner = runGenerate

// logOutput receives the structured log of a generate run.
var logOutput io.Writer = os.Stderr

var knownMethods = map[string]genspec.HttpMethod{
	"get":     genspec.GET,
	"put":     genspec.PUT,
	"post":    genspec.POST,
	"delete":  genspec.DELETE,
	"options": genspec.OPTIONS,
	"head":    genspec.HEAD,
	"patch":   genspec.PATCH,
	"trace":   genspec.TRACE,
}

func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate [input] [out]",
		Short: "Generate a Dyalog APL client from an OpenAPI/Swagger document",
		Long: "Generate a Dyalog APL client from an OpenAPI/Swagger document. " +
			"Options can be provided via flags, config files, or defaults.",
		Example: strings.TrimSpace(`  openapi2dyalog generate --input spec.yaml --out ./petstore
  openapi2dyalog generate spec.yaml ./petstore --namespace Petstore
  openapi2dyalog --config config.yaml generate --force --dry-run`),
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveGenerateConfig(cmd, args)
			if err != nil {
				return err
			}
			return generateRunner(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.String("input", "", "Path or URL to the Swagger/OpenAPI document")
	flags.String("out", "", "Output directory (default \"./generated\")")
	flags.String("namespace", "", "Namespace name recorded in the generated client")
	flags.String("templates", "", "Directory with template overrides")
	flags.StringSlice("include-tags", nil, "Only include operations with these tags")
	flags.StringSlice("exclude-tags", nil, "Exclude operations with these tags")
	flags.StringSlice("methods", nil, "Only include operations using these HTTP methods")
	flags.StringSlice("paths", nil, "Only include operations whose path matches one of these regular expressions")
	flags.Bool("no-validation", false, "Skip validation of the input document")
	flags.Bool("dry-run", false, "Preview planned outputs without writing files")
	flags.Bool("force", false, "Write into a non-empty output directory")
	flags.Bool("strict", false, "Fail when any operation cannot be generated")

	return cmd
}

func resolveGenerateConfig(cmd *cobra.Command, args []string) (*GenerateConfig, error) {
	cfg := defaultGenerateConfig()

	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	configPath = strings.TrimSpace(configPath)
	if configPath != "" {
		cfg.ConfigPath = configPath
		if err := applyGenerateConfigFromFile(&cfg, configPath); err != nil {
			return nil, err
		}
	}

	flags := cmd.Flags()
	if len(args) > 0 && !flags.Changed("input") {
		cfg.Input = args[0]
	}
	if len(args) > 1 && !flags.Changed("out") {
		cfg.Out = args[1]
	}
	if err := applyGenerateFlagOverrides(flags, &cfg); err != nil {
		return nil, err
	}

	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyGenerateFlagOverrides(flags *pflag.FlagSet, cfg *GenerateConfig) error {
	strs := []struct {
		name string
		dst  *string
	}{
		{"input", &cfg.Input},
		{"out", &cfg.Out},
		{"namespace", &cfg.Namespace},
		{"templates", &cfg.TemplateDir},
	}
	for _, s := range strs {
		if !flags.Changed(s.name) {
			continue
		}
		value, err := flags.GetString(s.name)
		if err != nil {
			return err
		}
		*s.dst = strings.TrimSpace(value)
	}

	lists := []struct {
		name string
		dst  *[]string
	}{
		{"include-tags", &cfg.IncludeTags},
		{"exclude-tags", &cfg.ExcludeTags},
		{"methods", &cfg.Methods},
		{"paths", &cfg.Paths},
	}
	for _, l := range lists {
		if !flags.Changed(l.name) {
			continue
		}
		value, err := flags.GetStringSlice(l.name)
		if err != nil {
			return err
		}
		*l.dst = sanitizeTags(value)
	}

	bools := []struct {
		name string
		dst  *bool
	}{
		{"no-validation", &cfg.NoValidation},
		{"dry-run", &cfg.DryRun},
		{"force", &cfg.Force},
		{"strict", &cfg.Strict},
		{"verbose", &cfg.Verbose},
	}
	for _, b := range bools {
		if !flags.Changed(b.name) {
			continue
		}
		value, err := flags.GetBool(b.name)
		if err != nil {
			return err
		}
		*b.dst = value
	}

	return nil
}

func (c *GenerateConfig) normalize() {
	c.Input = strings.TrimSpace(c.Input)
	c.Out = strings.TrimSpace(c.Out)
	if c.Out == "" {
		c.Out = defaultOutDir
	}
	c.Namespace = strings.TrimSpace(c.Namespace)
	c.TemplateDir = strings.TrimSpace(c.TemplateDir)
	c.IncludeTags = sanitizeTags(c.IncludeTags)
	c.ExcludeTags = sanitizeTags(c.ExcludeTags)
	c.Paths = sanitizeTags(c.Paths)
	methods := sanitizeTags(c.Methods)
	for i, m := range methods {
		methods[i] = strings.ToLower(m)
	}
	c.Methods = sanitizeTags(methods)
}

func (c *GenerateConfig) validate() error {
	if c.Input == "" {
		return newUsageError("generate: --input is required (set via flag, argument or config file)")
	}

	for _, m := range c.Methods {
		if _, ok := knownMethods[m]; !ok {
			return newUsageError(fmt.Sprintf("generate: unsupported method %q in --methods", m))
		}
	}

	overlap := intersect(c.IncludeTags, c.ExcludeTags)
	if len(overlap) > 0 {
		return newUsageError(fmt.Sprintf("generate: include/exclude tags overlap: %s", strings.Join(overlap, ", ")))
	}

	return nil
}

func (c *GenerateConfig) buildOptions() []genspec.BuildOption {
	methods := make([]genspec.HttpMethod, 0, len(c.Methods))
	for _, m := range c.Methods {
		methods = append(methods, knownMethods[m])
	}
	return []genspec.BuildOption{
		genspec.WithIncludeTags(c.IncludeTags),
		genspec.WithExcludeTags(c.ExcludeTags),
		genspec.WithMethods(methods),
		genspec.WithPathPatterns(c.Paths),
		genspec.WithNamespace(c.Namespace),
	}
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func runGenerate(ctx context.Context, cfg *GenerateConfig) error {
	log := newLogger(logOutput, cfg.Verbose)

	doc, err := genspec.Load(ctx, cfg.Input,
		genspec.WithValidation(!cfg.NoValidation),
		genspec.WithLogger(log),
	)
	if err != nil {
		var se *genspec.SpecError
		if errors.As(err, &se) {
			msg := fmt.Sprintf("spec: %s", se.Message)
			if se.Location != "" {
				msg = fmt.Sprintf("%s\nLocation: %s", msg, se.Location)
			}
			if se.JSONPointer != "" {
				msg = fmt.Sprintf("%s\nPointer: %s", msg, se.JSONPointer)
			}
			return newUsageError(msg)
		}
		return err
	}
	if info := doc.T.Info; info != nil {
		log.Info("loaded document", "title", info.Title, "version", info.Version, "source_version", doc.Version)
	}

	opts := cfg.buildOptions()
	for _, tc := range genspec.OperationSummary(doc, opts...) {
		log.Info("operations", "tag", tc.Tag, "count", tc.Count)
	}

	sm, err := genspec.BuildServiceModel(ctx, doc, opts...)
	if err != nil {
		return fmt.Errorf("build model: %w", err)
	}
	for _, g := range sm.Groups {
		for _, op := range g.Operations {
			log.Debug("operation", "tag", g.Tag, "id", op.ID, "method", strings.ToUpper(string(op.Method)), "path", op.Path)
		}
	}
	for _, f := range sm.Failures {
		log.Warn("skipped operation", "operation", f.OperationID, "tag", f.Tag, "error", f.Err)
	}
	if cfg.Strict && len(sm.Failures) > 0 {
		return fmt.Errorf("generate: %d operation(s) could not be generated", len(sm.Failures))
	}

	absOut := cfg.Out
	if ap, err := filepath.Abs(cfg.Out); err == nil {
		absOut = ap
	}

	res, err := aplemitter.Emit(ctx, sm, aplemitter.Options{
		OutDir:      cfg.Out,
		SpecPath:    cfg.Input,
		TemplateDir: cfg.TemplateDir,
		Force:       cfg.Force,
		DryRun:      cfg.DryRun,
		Logger:      log,
	})
	if err != nil {
		return wrapOutputError(err, absOut)
	}
	if cfg.DryRun {
		printPlan(absOut, res.Planned)
		return nil
	}
	log.Info("done", "out", absOut, "files", len(res.Planned), "written", res.Written)
	return nil
}

func printPlan(outDir string, planned []aplemitter.PlannedFile) {
	fmt.Fprintf(os.Stdout, "Planned writes to %s (%d files):\n", outDir, len(planned))
	for _, p := range planned {
		fmt.Fprintf(os.Stdout, "- %s (%s)\n", p.RelPath, p.Status)
	}
}

func wrapOutputError(err error, outDir string) error {
	// Provide clearer guidance for common FS failures.
	msg := err.Error()
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "permission") || strings.Contains(lower, "read-only") || strings.Contains(lower, "mkdir") || strings.Contains(lower, "rename") || strings.Contains(lower, "output directory") {
		return newUsageError(fmt.Sprintf("output error for %s: %s\nHint: choose a different --out or use --force when appropriate.", outDir, msg))
	}
	return err
}

func sanitizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	result := make([]string, 0, len(tags))
	for _, tag := range tags {
		trimmed := strings.TrimSpace(tag)
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; exists {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

func intersect(a, b []string) []string {
	if len(a) == 0 || len(b) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(a))
	for _, item := range a {
		set[item] = struct{}{}
	}
	var result []string
	for _, item := range b {
		if _, ok := set[item]; ok {
			result = append(result, item)
		}
	}
	return result
}

// applyGenerateConfigFromFile loads a YAML or JSON config file. Keys are
// matched case-insensitively with dashes and underscores ignored.
func applyGenerateConfigFromFile(cfg *GenerateConfig, path string) error {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), kyaml.Parser()); err != nil {
		if _, statErr := os.Stat(path); statErr != nil {
			return newUsageError(fmt.Sprintf("read config file %q: %v", path, statErr))
		}
		return newUsageError(fmt.Sprintf("parse config file %q: %v", path, err))
	}

	for key, value := range k.Raw() {
		var err error
		switch normalizeKey(key) {
		case "input":
			cfg.Input, err = valueAsString(value)
		case "out":
			cfg.Out, err = valueAsString(value)
		case "namespace":
			cfg.Namespace, err = valueAsString(value)
		case "templates", "templatedir":
			cfg.TemplateDir, err = valueAsString(value)
		case "includetags":
			cfg.IncludeTags, err = valueAsStringSlice(value)
		case "excludetags":
			cfg.ExcludeTags, err = valueAsStringSlice(value)
		case "methods":
			cfg.Methods, err = valueAsStringSlice(value)
		case "paths":
			cfg.Paths, err = valueAsStringSlice(value)
		case "novalidation":
			cfg.NoValidation, err = valueAsBool(value)
		case "dryrun":
			cfg.DryRun, err = valueAsBool(value)
		case "force":
			cfg.Force, err = valueAsBool(value)
		case "strict":
			cfg.Strict, err = valueAsBool(value)
		case "verbose":
			cfg.Verbose, err = valueAsBool(value)
		default:
			return newUsageError(fmt.Sprintf("config file %q: unknown field %q", path, key))
		}
		if err != nil {
			return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
		}
	}

	return nil
}

func normalizeKey(raw string) string {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	lowered = strings.ReplaceAll(lowered, "-", "")
	lowered = strings.ReplaceAll(lowered, "_", "")
	return lowered
}

func valueAsString(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val), nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("expected string, got %T", v)
	}
}

func valueAsStringSlice(v any) ([]string, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case string:
		if strings.TrimSpace(val) == "" {
			return nil, nil
		}
		return splitAndTrim(val), nil
	case []any:
		items := make([]string, 0, len(val))
		for idx, elem := range val {
			str, err := valueAsString(elem)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", idx, err)
			}
			if str != "" {
				items = append(items, str)
			}
		}
		return items, nil
	default:
		return nil, fmt.Errorf("expected string or list, got %T", v)
	}
}

func valueAsBool(v any) (bool, error) {
	switch val := v.(type) {
	case bool:
		return val, nil
	case string:
		trimmed := strings.ToLower(strings.TrimSpace(val))
		switch trimmed {
		case "true", "t", "1", "yes", "y":
			return true, nil
		case "false", "f", "0", "no", "n":
			return false, nil
		case "":
			return false, nil
		default:
			return false, fmt.Errorf("invalid boolean value %q", val)
		}
	case nil:
		return false, nil
	default:
		return false, fmt.Errorf("expected boolean, got %T", v)
	}
}

func splitAndTrim(csv string) []string {
	parts := strings.Split(csv, ",")
	cleaned := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	return cleaned
}
