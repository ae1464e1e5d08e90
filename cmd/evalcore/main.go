// Command evalcore is the CLI front end: run, diff, list, and validate
// subcommands wired to the orchestrator, diff, and humanreport packages.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/promptmgr/evalcore/pkg/config"
	"github.com/promptmgr/evalcore/pkg/diff"
	"github.com/promptmgr/evalcore/pkg/humanreport"
	"github.com/promptmgr/evalcore/pkg/orchestrator"
	"github.com/promptmgr/evalcore/pkg/prompt"
	"github.com/promptmgr/evalcore/pkg/provider"
	"github.com/promptmgr/evalcore/pkg/report"
	"github.com/promptmgr/evalcore/pkg/suite"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "evalcore",
	Short: "Agent eval core",
	Long: `A framework for evaluating LLM agent tool-calling behavior through
configurable test suites, prompt templates, JSON schema validation, and
assertion specs.

Use 'evalcore init' to scaffold a new eval project, then 'evalcore run'
to execute eval suites against your agent.`,
}

// --- run command ---

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run an eval suite",
	Long: `Execute an eval suite's dataset against a configured provider.

Runs every case through the provider's tool-calling loop, validates the
result against the suite's JSON Schema and assertion spec, and writes a
RunReport JSON file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		suitePath, _ := cmd.Flags().GetString("suite")
		if suitePath == "" {
			return fmt.Errorf("--suite is required")
		}
		cfgPath, _ := cmd.Flags().GetString("config")
		providerName, _ := cmd.Flags().GetString("provider")
		model, _ := cmd.Flags().GetString("model")
		concurrency, _ := cmd.Flags().GetInt("concurrency")
		workerPath, _ := cmd.Flags().GetString("worker")
		promptsDir, _ := cmd.Flags().GetString("prompts-dir")
		output, _ := cmd.Flags().GetString("output")
		verbose, _ := cmd.Flags().GetBool("verbose")
		noColor, _ := cmd.Flags().GetBool("no-color")

		cfg, err := config.LoadOrDefault(cfgPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		s, err := suite.Load(suitePath)
		if err != nil {
			return fmt.Errorf("loading suite: %w", err)
		}

		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("resolving working directory: %w", err)
		}

		rc := orchestrator.RunConfig{
			Config:      cfg,
			Suite:       s,
			Provider:    provider.ProviderID(providerName),
			Model:       model,
			Concurrency: concurrency,
			WorkerPath:  workerPath,
			Cwd:         cwd,
			PromptsDir:  promptsDir,
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Timeout*time.Duration(max(1, concurrency)))
		defer cancel()

		r, err := orchestrator.RunSuite(ctx, rc)
		if err != nil {
			return fmt.Errorf("running suite: %w", err)
		}

		if output == "" {
			output = filepath.Join(cfg.OutputDir, fmt.Sprintf("%s-%d.json", s.ID, time.Now().UTC().Unix()))
		}
		if err := r.Save(output); err != nil {
			return fmt.Errorf("saving report: %w", err)
		}

		if verbose {
			humanreport.PrintVerbose(os.Stdout, r, !noColor)
		} else {
			humanreport.PrintSummaryTable(os.Stdout, r, !noColor)
		}
		fmt.Printf("report written to %s\n", output)

		if r.Summary.Fail > 0 || r.Summary.Error > 0 {
			os.Exit(1)
		}
		return nil
	},
}

// --- diff command ---

var diffCmd = &cobra.Command{
	Use:   "diff <baseline.json> <candidate.json>",
	Short: "Compare two run reports",
	Long: `Compare results from two eval runs, classifying per-case status
transitions into regressions, improvements, and unchanged cases.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		baseline, err := report.Load(args[0])
		if err != nil {
			return fmt.Errorf("loading baseline report: %w", err)
		}
		candidate, err := report.Load(args[1])
		if err != nil {
			return fmt.Errorf("loading candidate report: %w", err)
		}

		d := diff.Compare(baseline, candidate)

		format, _ := cmd.Flags().GetString("format")
		noColor, _ := cmd.Flags().GetBool("no-color")
		switch format {
		case "json":
			data, err := d.JSON()
			if err != nil {
				return fmt.Errorf("marshaling diff: %w", err)
			}
			fmt.Println(string(data))
		default:
			humanreport.PrintDiffTable(os.Stdout, d, !noColor)
		}

		if len(d.Regressions) > 0 {
			os.Exit(1)
		}
		return nil
	},
}

// --- list command ---

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List available resources",
	Long:  `List available prompts or eval suites.`,
}

var listPromptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "List available prompt templates",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("dir")
		promptDir := filepath.Join(dir, "prompts")

		prompts, err := prompt.LoadDir(promptDir)
		if err != nil {
			return fmt.Errorf("loading prompts from %s: %w", promptDir, err)
		}

		if len(prompts) == 0 {
			fmt.Println("No prompt templates found.")
			return nil
		}

		for _, p := range prompts {
			fmt.Printf("  %-20s v%s\n", p.PromptID, p.Version)
		}
		return nil
	},
}

var listSuitesCmd = &cobra.Command{
	Use:   "suites",
	Short: "List available eval suites",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("dir")
		suiteDir := filepath.Join(dir, "suites")

		suites, err := suite.LoadDir(suiteDir)
		if err != nil {
			return fmt.Errorf("loading suites from %s: %w", suiteDir, err)
		}

		if len(suites) == 0 {
			fmt.Println("No eval suites found.")
			return nil
		}

		for _, s := range suites {
			fmt.Printf("  %-20s prompt=%-16s dataset=%s\n", s.ID, s.PromptID, s.DatasetPath)
		}
		return nil
	},
}

// --- validate command ---

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate config and suite files",
	Long: `Check eval configuration and suite manifest files for errors.

Validates YAML syntax and required fields, including that the suite's
dataset, schema, and assertions paths are set; the referenced files are
not opened.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		suitePath, _ := cmd.Flags().GetString("suite")
		if suitePath != "" {
			s, err := suite.Load(suitePath)
			if err != nil {
				return fmt.Errorf("loading suite: %w", err)
			}
			fmt.Printf("Suite %q is valid.\n", s.ID)
		}

		cfgPath, _ := cmd.Flags().GetString("config")
		cfg, err := config.LoadOrDefault(cfgPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("config validation failed: %w", err)
		}
		fmt.Printf("Config %q is valid.\n", cfgPath)

		return nil
	},
}

// --- init command ---

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new eval project",
	Long: `Scaffold a new eval project with example configuration, prompts,
suites, and a results directory.

Creates the following structure:
  eval.yaml          - Main configuration file
  prompts/           - Prompt template directory
  suites/            - Eval suite directory
  results/           - Run report output directory`,
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	dirs := []string{"prompts", "suites", "results"}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", d, err)
		}
		fmt.Printf("  created %s/\n", d)
	}

	if err := writeExampleConfig("eval.yaml"); err != nil {
		return err
	}
	if err := writeExamplePrompt(filepath.Join("prompts", "default.yaml")); err != nil {
		return err
	}
	if err := writeExampleSuite(filepath.Join("suites", "example.yaml")); err != nil {
		return err
	}

	fmt.Println("\nEval project initialized. Run 'evalcore validate' to check your config.")
	return nil
}

func writeYAML(path string, data any) error {
	if _, err := os.Stat(path); err == nil {
		fmt.Printf("  skipped %s (already exists)\n", path)
		return nil
	}

	out, err := yaml.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", path, err)
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	fmt.Printf("  created %s\n", path)
	return nil
}

func writeExampleConfig(path string) error {
	data := map[string]any{
		"concurrency": 4,
		"timeout":     "60s",
		"output_dir":  "results/",
		"providers": map[string]any{
			"anthropic": map[string]any{
				"model":       "claude-sonnet-4-5-20250929",
				"api_key_env": "ANTHROPIC_API_KEY",
			},
		},
		"toolRunner": map[string]any{
			"timeoutMs":           10000,
			"maxToolCallsPerCase": 20,
			"envAllowlist":        []string{},
		},
		"privacy": map[string]any{
			"redactInReports": true,
		},
	}
	return writeYAML(path, data)
}

func writeExamplePrompt(path string) error {
	data := map[string]any{
		"prompt_id": "default",
		"version":   "1.0.0",
		"body":      "You are a helpful assistant. Answer the user's question concisely.\n\nQuestion: {{.question}}",
	}
	return writeYAML(path, data)
}

func writeExampleSuite(path string) error {
	data := map[string]any{
		"id":               "example",
		"prompt_id":        "default",
		"dataset_path":     "example.dataset.json",
		"schema_path":      "example.schema.json",
		"assertions_path":  "example.assertions.json",
		"model_by_provider": map[string]any{
			"anthropic": "claude-sonnet-4-5-20250929",
		},
	}
	return writeYAML(path, data)
}

func init() {
	// run command flags
	runCmd.Flags().StringP("suite", "s", "", "Path to eval suite YAML file")
	runCmd.Flags().StringP("provider", "", "anthropic", "Provider id (anthropic, openai, gemini)")
	runCmd.Flags().StringP("model", "m", "", "Override model name")
	runCmd.Flags().StringP("config", "c", "eval.yaml", "Path to config file")
	runCmd.Flags().IntP("concurrency", "j", 0, "Max concurrent eval cases (0 = use config default)")
	runCmd.Flags().StringP("output", "o", "", "Output file path (default: <output_dir>/<suiteId>-<ts>.json)")
	runCmd.Flags().String("worker", "evalcore-worker", "Path to the evalcore-worker binary")
	runCmd.Flags().String("prompts-dir", "prompts", "Directory of <promptId>.yaml prompt records")
	runCmd.Flags().BoolP("verbose", "v", false, "Print per-case detail")
	runCmd.Flags().Bool("no-color", false, "Disable ANSI color output")

	// diff command flags
	diffCmd.Flags().String("format", "table", "Output format: table, json")
	diffCmd.Flags().Bool("no-color", false, "Disable ANSI color output")

	// list command flags
	listCmd.PersistentFlags().String("dir", ".", "Base directory to search")
	listCmd.AddCommand(listPromptsCmd)
	listCmd.AddCommand(listSuitesCmd)

	// validate command flags
	validateCmd.Flags().String("suite", "", "Path to suite file to validate")
	validateCmd.Flags().String("config", "eval.yaml", "Path to config file to validate")

	// register all subcommands
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(initCmd)
}
