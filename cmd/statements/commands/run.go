package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/DotIN13/statements"
	"github.com/DotIN13/statements/config"
	"github.com/spf13/cobra"
)

type runFlags struct {
	platform   string
	model      string
	data       string
	output     string
	start      int
	end        int
	workers    int
	dryRun     bool
	planFormat string
}

// newRunCmd creates `statements run`.
func newRunCmd() *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run an extraction job",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			envFile, _ := cmd.Flags().GetString("env-file")
			verbose, _ := cmd.Flags().GetBool("verbose")

			if err := loadEnv(envFile); err != nil {
				return err
			}
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			applyFlags(cmd, cfg, f)
			if verbose {
				cfg.Log.Level = "debug"
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			log := newLogger(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
			slog.SetDefault(log)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return runJob(ctx, cmd, cfg, f, log)
		},
	}

	cmd.Flags().StringVar(&f.platform, "platform", "", "platform preset (openai, deepseek, dashscope, local, gemini)")
	cmd.Flags().StringVarP(&f.model, "model", "m", "", "model name")
	cmd.Flags().StringVarP(&f.data, "data", "d", "", "dataset file")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "output directory")
	cmd.Flags().IntVar(&f.start, "start", 0, "first row of the dataset window")
	cmd.Flags().IntVar(&f.end, "end", 0, "end of the dataset window (exclusive, 0: all)")
	cmd.Flags().IntVarP(&f.workers, "workers", "w", 0, "number of concurrent workers")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "render prompts and estimate volume without sending")
	cmd.Flags().StringVar(&f.planFormat, "plan-format", "json", "dry-run output format (json or text)")
	return cmd
}

func loadEnv(envFile string) error {
	if envFile == "" {
		return nil
	}
	return config.LoadEnvFiles(envFile)
}

func applyFlags(cmd *cobra.Command, cfg *config.Config, f runFlags) {
	if f.platform != "" {
		cfg.Endpoint.Platform = f.platform
	}
	if f.model != "" {
		cfg.Endpoint.Model = f.model
	}
	if f.data != "" {
		cfg.Dataset.Path = f.data
	}
	if f.output != "" {
		cfg.Output.Dir = f.output
	}
	if cmd.Flags().Changed("start") {
		cfg.Dataset.Start = f.start
	}
	if cmd.Flags().Changed("end") {
		cfg.Dataset.End = f.end
	}
	if f.workers > 0 {
		cfg.Run.Workers = f.workers
	}
}

func runJob(ctx context.Context, cmd *cobra.Command, cfg *config.Config, f runFlags, log *slog.Logger) error {
	endpoint, err := buildEndpoint(cfg)
	if err != nil {
		return err
	}
	source, err := statements.OpenDataset(cfg.Dataset.Path, statements.Window{Start: cfg.Dataset.Start, End: cfg.Dataset.End})
	if err != nil {
		return err
	}
	formatter, err := buildFormatter(cfg)
	if err != nil {
		return err
	}
	results := statements.NewResults(
		statements.WithIDField(cfg.Dataset.IDField),
		statements.WithIncludeFields(cfg.Output.IncludeFields...),
		statements.WithResultsLogger(log),
	)
	parser, err := buildParser(cfg, results)
	if err != nil {
		return err
	}

	opts := []func(*statements.Options){
		statements.WithWorkers(cfg.Run.Workers),
		statements.WithRetry(cfg.Run.MaxRetries, cfg.Run.RetryDelay.Std()),
		statements.WithLogger(log),
		statements.WithSystemPrompt(cfg.Prompt.System),
	}
	if !f.dryRun {
		opts = append(opts, statements.WithProgress(newSpinnerProgress(cmd.ErrOrStderr())))
	}
	x, err := statements.NewExtractor(source, buildSender(cfg, endpoint.Platform(), log), endpoint, formatter, parser, opts...)
	if err != nil {
		return err
	}

	log.Info("Loaded dataset", "path", source.Path, "format", source.Format, "rows", source.Len(), "offset", source.Offset)

	if f.dryRun {
		stats, err := x.DryRun(ctx)
		if err != nil {
			return err
		}
		return printPlan(cmd.OutOrStdout(), stats, f.planFormat)
	}

	stats, err := x.Run(ctx)
	if err != nil {
		log.Error("Runner reported an error", "error", err)
	}
	files, werr := statements.WriteOutputs(cfg.Output.Dir, cfg.Output.Prefix, stats.RunID, results, time.Now())
	if werr != nil {
		return werr
	}
	log.Info("Saved results",
		"results", files.Results,
		"messages", files.Messages,
		"sample", files.Sample,
		"records", results.Len(),
		"duplicates", len(results.Duplicates()))
	return err
}

func printPlan(w io.Writer, stats *statements.DryRunStats, format string) error {
	switch format {
	case "text":
		_, err := io.WriteString(w, stats.FormatText())
		return err
	case "json", "":
		out, err := stats.FormatJSON()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, out)
		return err
	default:
		return fmt.Errorf("unknown plan format %q", format)
	}
}

func buildEndpoint(cfg *config.Config) (*statements.Endpoint, error) {
	ref, err := statements.ParseModelRef(cfg.Endpoint.Model)
	if err != nil {
		return nil, err
	}
	platform := statements.Platform(cfg.Endpoint.Platform)
	if ref.Platform != "" {
		platform = ref.Platform
	}
	preset, ok := statements.Preset(platform)
	if !ok && len(cfg.Endpoint.Proxies) == 0 {
		return nil, fmt.Errorf("unknown platform %q and no proxies configured", platform)
	}
	proxies := preset.Proxies
	if len(cfg.Endpoint.Proxies) > 0 {
		proxies = cfg.Endpoint.Proxies
	}
	params := make(map[string]any, len(cfg.Endpoint.Params)+len(ref.Params))
	for k, v := range cfg.Endpoint.Params {
		params[k] = v
	}
	for k, v := range ref.Params {
		params[k] = v
	}
	endpoint, err := statements.NewEndpoint(ref.Model, proxies, cfg.APIKey(preset.KeyEnv), params)
	if err != nil {
		return nil, err
	}
	return endpoint.WithPlatform(platform), nil
}

func buildSender(cfg *config.Config, platform statements.Platform, log *slog.Logger) statements.Sender {
	opts := []statements.ClientOption{
		statements.WithTimeouts(cfg.Run.Timeout.Std(), cfg.Run.ConnectTimeout.Std()),
		statements.WithRateLimit(cfg.Run.RateLimit, cfg.Run.RateBurst),
		statements.WithUsageLogging(cfg.Run.DebugUsage),
		statements.WithClientLogger(log),
	}
	if platform == statements.PlatformGemini {
		return statements.NewGeminiClient(opts...)
	}
	return statements.NewChatClient(opts...)
}

func buildFormatter(cfg *config.Config) (*statements.TemplateFormatter, error) {
	if cfg.Prompt.Template == "" {
		return nil, fmt.Errorf("prompt.template is required")
	}
	dir, name := filepath.Split(cfg.Prompt.Template)
	if dir == "" {
		dir = "."
	}
	opts := []statements.FormatterOption{
		statements.WithTemplateFile(os.DirFS(dir), name),
		statements.WithRequiredFields(cfg.Prompt.RequiredFields...),
	}
	for k, v := range cfg.Prompt.Vars {
		opts = append(opts, statements.WithVar(k, v))
	}
	return statements.NewTemplateFormatter(opts...)
}

func buildParser(cfg *config.Config, results *statements.Results) (statements.OutputParser, error) {
	var schema *statements.Schema
	if cfg.Output.Schema != "" {
		s, err := statements.LoadSchemaFile(cfg.Output.Schema)
		if err != nil {
			return nil, err
		}
		schema = s
	}
	switch cfg.Output.Parser {
	case config.ParserPattern:
		return statements.NewPatternParser(results, cfg.Output.Pattern,
			statements.WithLowercase(cfg.Output.Lowercase...),
			statements.WithNumeric(cfg.Output.Numeric...),
			statements.WithPatternSchema(schema),
		)
	default:
		return statements.NewJSONParser(results, schema), nil
	}
}
