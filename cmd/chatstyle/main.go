package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"chatstyle/internal/config"
	"chatstyle/internal/store"
	"chatstyle/pkg/renderer"
)

var (
	// Configuration flags
	configFile   = flag.String("config", "", "Configuration file (YAML)")
	templatesDir = flag.String("templates-dir", "", "Directory with template .html files")
	themesDir    = flag.String("themes-dir", "", "Directory with theme .css files")

	// Input flags
	templateKey  = flag.String("template", "", "Template key to render (default: stdin)")
	themeKey     = flag.String("theme", "", "Theme key to apply")
	templateFile = flag.String("template-file", "", "Render a template from a file instead of a store key")
	themeFile    = flag.String("theme-file", "", "Apply a theme from a file instead of a store key")
	dataFile     = flag.String("data", "", "YAML file with {{ }} expression values")
	varOverrides = flag.String("vars", "", "CSS variable overrides (name=value,name=value)")

	// Output flags
	outputFile = flag.String("output", "", "Output file path (default: stdout)")
	stats      = flag.Bool("stats", false, "Show processing statistics")
	verbose    = flag.Bool("verbose", false, "Verbose output with debug logging")
	quiet      = flag.Bool("quiet", false, "Suppress all output except errors")
	benchmark  = flag.Bool("benchmark", false, "Show processing time")
)

func main() {
	flag.Parse()

	if err := validateArgs(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		flag.Usage()
		os.Exit(1)
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// validateArgs validates command line arguments
func validateArgs() error {
	if *quiet && *verbose {
		return fmt.Errorf("cannot specify both -quiet and -verbose")
	}
	if *templateKey != "" && *templateFile != "" {
		return fmt.Errorf("cannot specify both -template and -template-file")
	}
	if *themeKey != "" && *themeFile != "" {
		return fmt.Errorf("cannot specify both -theme and -theme-file")
	}
	if *templateKey != "" && *templatesDir == "" && *configFile == "" {
		return fmt.Errorf("-template requires -templates-dir or a config file")
	}
	if *themeKey != "" && *themesDir == "" && *configFile == "" {
		return fmt.Errorf("-theme requires -themes-dir or a config file")
	}
	return nil
}

func run() error {
	cfg, err := buildConfig()
	if err != nil {
		return err
	}

	log, err := cfg.Logging.Prepare()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer log.Sync() //nolint:errcheck // stdout sync failure is uninteresting

	templates, tmplKey, err := templateStore(cfg, log)
	if err != nil {
		return err
	}
	themes, thmKey, err := themeStore(cfg, log)
	if err != nil {
		return err
	}

	expressions, err := loadExpressions()
	if err != nil {
		return err
	}

	engine := renderer.New(renderer.Deps{
		Templates: templates,
		Themes:    themes,
		Logger:    log,
	})

	startTime := time.Now()
	result, err := engine.Render(context.Background(), renderer.Request{
		Template:     tmplKey,
		Theme:        thmKey,
		Expressions:  expressions,
		CSSVariables: parseVarOverrides(*varOverrides),
	})
	if err != nil {
		return fmt.Errorf("failed to render: %w", err)
	}

	if err := writeOutput(result.HTML, *outputFile); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if (*stats || *verbose) && !*quiet {
		showStats(result)
	}
	if *benchmark {
		fmt.Fprintf(os.Stderr, "Processing completed in %v\n", time.Since(startTime))
	}
	return nil
}

// buildConfig creates the configuration from the config file and flags.
// Flags win over file values.
func buildConfig() (config.Config, error) {
	cfg := config.Default()
	if *configFile != "" {
		loaded, err := config.Load(*configFile)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	if *templatesDir != "" {
		cfg.TemplatesDir = *templatesDir
	}
	if *themesDir != "" {
		cfg.ThemesDir = *themesDir
	}
	switch {
	case *quiet:
		cfg.Logging.Level = "none"
	case *verbose:
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}

// templateStore picks the template source: an explicit file, the configured
// directory, or stdin.
func templateStore(cfg config.Config, log *zap.Logger) (store.Store, string, error) {
	if *templateFile != "" {
		content, err := os.ReadFile(*templateFile)
		if err != nil {
			return nil, "", fmt.Errorf("failed to read template file %s: %w", *templateFile, err)
		}
		return store.NewMemoryStore("file", map[string]string{"file": string(content)}), "file", nil
	}

	if *templateKey != "" {
		return store.NewDirStore(cfg.TemplatesDir, ".html", cfg.DefaultTemplate, log), *templateKey, nil
	}

	content, err := io.ReadAll(os.Stdin)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read from stdin: %w", err)
	}
	return store.NewMemoryStore("stdin", map[string]string{"stdin": string(content)}), "stdin", nil
}

// themeStore picks the theme source: an explicit file, the configured
// directory, or an empty stylesheet.
func themeStore(cfg config.Config, log *zap.Logger) (store.Store, string, error) {
	if *themeFile != "" {
		content, err := os.ReadFile(*themeFile)
		if err != nil {
			return nil, "", fmt.Errorf("failed to read theme file %s: %w", *themeFile, err)
		}
		return store.NewMemoryStore("file", map[string]string{"file": string(content)}), "file", nil
	}

	if *themeKey != "" {
		return store.NewDirStore(cfg.ThemesDir, ".css", cfg.DefaultTheme, log), *themeKey, nil
	}

	return store.NewMemoryStore("none", map[string]string{"none": ""}), "none", nil
}

// loadExpressions reads the -data YAML file into the expression map.
func loadExpressions() (map[string]string, error) {
	if *dataFile == "" {
		return nil, nil
	}
	data, err := os.ReadFile(*dataFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read data file %s: %w", *dataFile, err)
	}
	expressions := make(map[string]string)
	if err := yaml.Unmarshal(data, &expressions); err != nil {
		return nil, fmt.Errorf("failed to parse data file %s: %w", *dataFile, err)
	}
	return expressions, nil
}

// parseVarOverrides parses "name=value,name=value" into the override map.
func parseVarOverrides(spec string) map[string]string {
	if spec == "" {
		return nil
	}
	overrides := make(map[string]string)
	for _, pair := range strings.Split(spec, ",") {
		name, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || name == "" {
			continue
		}
		overrides[name] = value
	}
	return overrides
}

// writeOutput writes content to a file or stdout
func writeOutput(content, filename string) error {
	if filename == "" {
		_, err := fmt.Println(content)
		return err
	}
	return os.WriteFile(filename, []byte(content), 0644)
}

// showStats displays processing statistics
func showStats(result *renderer.Result) {
	fmt.Fprintf(os.Stderr, "\nProcessing Statistics:\n")
	fmt.Fprintf(os.Stderr, "  CSS rules parsed: %d\n", result.Stats.CSSRulesParsed)
	fmt.Fprintf(os.Stderr, "  Elements styled: %d\n", result.Stats.ElementsStyled)
	fmt.Fprintf(os.Stderr, "  Selector layers matched: %d\n", result.Stats.SelectorsMatched)
	fmt.Fprintf(os.Stderr, "  Processing time: %dms\n", result.Stats.ProcessingTimeMs)

	if len(result.Warnings) > 0 {
		fmt.Fprintf(os.Stderr, "\nWarnings:\n")
		for _, warning := range result.Warnings {
			fmt.Fprintf(os.Stderr, "  [WARNING] %s\n", warning)
		}
	}
}
