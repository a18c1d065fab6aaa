package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ehsanSh21/clickhouse-metabase/internal/config"
	"github.com/ehsanSh21/clickhouse-metabase/internal/extract"
	"github.com/ehsanSh21/clickhouse-metabase/internal/load"
	"github.com/ehsanSh21/clickhouse-metabase/internal/logger"
	"github.com/ehsanSh21/clickhouse-metabase/internal/notify"
	"github.com/ehsanSh21/clickhouse-metabase/internal/pipeline"
	"github.com/ehsanSh21/clickhouse-metabase/internal/report"
	"github.com/ehsanSh21/clickhouse-metabase/internal/transform"
	"github.com/ehsanSh21/clickhouse-metabase/pkg/etlerr"
)

var (
	dryRun     bool
	reportPath string

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run the ETL once",
		Long:  "Extract the six source tables, join them into analytics records and append them to the configured destination.",
		Args:  cobra.NoArgs,
		Example: `  fraud-etl run --config etl.yaml
  fraud-etl run --config etl.yaml --dry-run
  FRAUDETL_DESTINATION_KIND=parquet FRAUDETL_DESTINATION_PATH=out fraud-etl run`,
		RunE: runETL,
	}
)

func init() {
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "extract and transform but do not load")
	runCmd.Flags().StringVar(&reportPath, "report", "", "write a JSON run report to this path")
	rootCmd.AddCommand(runCmd)
}

func runETL(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	result := config.Validate(cfg)
	if result.HasErrors() {
		for _, err := range result.Errors {
			fmt.Fprintln(cmd.ErrOrStderr(), color.RedString("  • %v", err))
		}
		return fmt.Errorf("configuration validation failed")
	}

	level := cfg.Log.Level
	if verbose {
		level = "debug"
	}
	log := logger.New(logger.Options{Level: level, Format: cfg.Log.Format})
	for _, w := range result.Warnings {
		log.Warn().Msg(w)
	}
	if reportPath != "" {
		cfg.Report.Path = reportPath
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	rep, runErr := execute(ctx, cfg, dryRun)
	finish(ctx, cfg, rep)
	printSummary(cmd.OutOrStdout(), rep)
	return runErr
}

// execute performs one run. The source is opened before the pipeline starts;
// the destination only once the load stage is reached.
func execute(ctx context.Context, cfg *config.Config, dry bool) (*pipeline.Report, error) {
	log := logger.FromContext(ctx)
	runID := uuid.NewString()

	db, err := extract.Open(ctx, cfg.Source)
	if err != nil {
		return pipeline.Failed(runID, etlerr.StageExtract, etlerr.ErrSourceUnavailable, err, log)
	}
	defer db.Close()

	transformer := &transform.Transformer{StrictJoins: cfg.Transform.StrictJoins, Log: log}
	if cfg.Transform.RunDate != "" {
		day, err := time.Parse(time.DateOnly, cfg.Transform.RunDate)
		if err != nil {
			return pipeline.Failed(runID, etlerr.StageTransform, etlerr.ErrTransformIncomplete, err, log)
		}
		transformer.Now = func() time.Time { return day }
	}

	deps := pipeline.Deps{
		Extractor:   extract.NewExtractor(db, log),
		Transformer: transformer,
		Log:         log,
		RunID:       runID,
		DryRun:      dry,
	}
	if !dry {
		deps.Loader = load.NewOnDemand(cfg.Destination, load.OpenOptions{RunID: runID}, load.Options{
			CreateTable: cfg.Destination.CreateTable,
			VerifyCount: cfg.Destination.VerifyCount,
		}, log)
	}
	return pipeline.Run(ctx, deps)
}

// finish writes the report file and posts the Slack message. Failures here
// are logged and never change the run's outcome.
func finish(ctx context.Context, cfg *config.Config, rep *pipeline.Report) {
	log := logger.FromContext(ctx)
	if cfg.Report.Path != "" {
		if err := report.Write(cfg.Report.Path, rep); err != nil {
			log.Error().Err(err).Str("path", cfg.Report.Path).Msg("writing run report")
		} else {
			log.Info().Str("path", cfg.Report.Path).Msg("run report written")
		}
	}
	if cfg.Notify.SlackWebhookURL != "" {
		// The run context may already be cancelled by a signal.
		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := notify.NewSlack(cfg.Notify.SlackWebhookURL, cfg.Notify.Channel).Notify(nctx, rep); err != nil {
			log.Error().Err(err).Msg("posting slack notification")
		}
	}
}

func printSummary(out io.Writer, rep *pipeline.Report) {
	if !rep.Succeeded() {
		fmt.Fprintln(out, color.RedString("✗ Run %s failed in %s stage (%s)", rep.RunID, rep.FailedStage, rep.ErrorKind))
		return
	}
	if rep.DryRun {
		fmt.Fprintln(out, color.YellowString("✓ Dry run %s: %d records transformed, nothing loaded", rep.RunID, rep.Transformed))
		return
	}
	fmt.Fprintln(out, color.GreenString("✓ Run %s loaded %d records in %s", rep.RunID, rep.Loaded, rep.Duration().Round(time.Millisecond)))
}
