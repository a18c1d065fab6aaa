// Package pipeline runs extract, transform and load once, in that order.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/ehsanSh21/clickhouse-metabase/internal/schema"
	"github.com/ehsanSh21/clickhouse-metabase/internal/table"
	"github.com/ehsanSh21/clickhouse-metabase/internal/transform"
	"github.com/ehsanSh21/clickhouse-metabase/pkg/etlerr"
)

type Extractor interface {
	ExtractAll(ctx context.Context) (*table.Snapshot, error)
}

type Transformer interface {
	Transform(snap *table.Snapshot) (*transform.Result, error)
}

type Loader interface {
	Load(ctx context.Context, records []schema.AnalyticsRecord) (int64, error)
}

// Deps are the stage implementations for one run. Loader may be nil when
// DryRun is set.
type Deps struct {
	Extractor   Extractor
	Transformer Transformer
	Loader      Loader
	Log         zerolog.Logger
	// RunID identifies the run in logs and reports. Generated when empty.
	RunID  string
	DryRun bool
}

// Report summarizes a run, successful or not.
type Report struct {
	RunID       string           `json:"run_id"`
	StartedAt   time.Time        `json:"started_at"`
	FinishedAt  time.Time        `json:"finished_at"`
	RunDate     string           `json:"run_date,omitempty"`
	DryRun      bool             `json:"dry_run"`
	Extracted   map[string]int   `json:"extracted,omitempty"`
	Transformed int              `json:"transformed"`
	Loaded      int64            `json:"loaded"`
	Stats       *transform.Stats `json:"stats,omitempty"`
	FailedStage string           `json:"failed_stage,omitempty"`
	ErrorKind   string           `json:"error_kind,omitempty"`
	Error       string           `json:"error,omitempty"`
}

func (r *Report) Succeeded() bool {
	return r.FailedStage == ""
}

func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Failed returns the report and error for a run that could not start its
// stage, e.g. because the source could not be opened.
func Failed(runID string, stage etlerr.Stage, kind, err error, log zerolog.Logger) (*Report, error) {
	report := &Report{RunID: runID, StartedAt: time.Now().UTC()}
	return report.fail(log.With().Str("run_id", runID).Logger(), stage, kind, err)
}

func (r *Report) fail(log zerolog.Logger, stage etlerr.Stage, kind, err error) (*Report, error) {
	var serr *etlerr.StageError
	errors.As(etlerr.NewStageError(stage, kind, err), &serr)
	r.FinishedAt = time.Now().UTC()
	r.FailedStage = string(serr.Stage)
	r.ErrorKind = etlerr.KindName(serr.Kind)
	r.Error = serr.Error()
	log.Error().
		Str("stage", r.FailedStage).
		Str("kind", r.ErrorKind).
		Err(err).
		Msg("run failed")
	return r, serr
}

// Run executes the stages sequentially and stops at the first failure. The
// report is always returned; on failure the error is an *etlerr.StageError.
// Nothing reaches the loader unless extract and transform both succeed.
func Run(ctx context.Context, deps Deps) (*Report, error) {
	runID := deps.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	log := deps.Log.With().Str("run_id", runID).Logger()
	report := &Report{RunID: runID, StartedAt: time.Now().UTC(), DryRun: deps.DryRun}

	log.Info().Bool("dry_run", deps.DryRun).Msg("run started")

	snap, err := deps.Extractor.ExtractAll(ctx)
	if err != nil {
		return report.fail(log, etlerr.StageExtract, etlerr.ErrSourceUnavailable, err)
	}
	report.Extracted = snap.Counts()

	res, err := deps.Transformer.Transform(snap)
	if err != nil {
		return report.fail(log, etlerr.StageTransform, etlerr.ErrTransformIncomplete, err)
	}
	report.Transformed = len(res.Records)
	report.RunDate = res.RunDate.Format(time.DateOnly)
	report.Stats = &res.Stats

	if deps.DryRun {
		log.Info().Int("records", report.Transformed).Msg("dry run, skipping load")
	} else {
		loaded, err := deps.Loader.Load(ctx, res.Records)
		if err != nil {
			return report.fail(log, etlerr.StageLoad, etlerr.ErrLoadFailed, err)
		}
		report.Loaded = loaded
	}

	report.FinishedAt = time.Now().UTC()
	log.Info().
		Interface("extracted", report.Extracted).
		Int("transformed", report.Transformed).
		Int64("loaded", report.Loaded).
		Dur("duration", report.Duration()).
		Msg("run finished")

	return report, nil
}
