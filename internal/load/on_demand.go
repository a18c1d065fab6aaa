package load

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/ehsanSh21/clickhouse-metabase/internal/config"
	"github.com/ehsanSh21/clickhouse-metabase/internal/schema"
)

// OnDemand opens the destination when Load is called and closes it when
// Load returns, so failed extract or transform stages never connect to it.
type OnDemand struct {
	cfg     config.DestinationConfig
	openOpt OpenOptions
	opts    Options
	log     zerolog.Logger
	open    func(context.Context, config.DestinationConfig, OpenOptions) (Destination, error)
}

func NewOnDemand(cfg config.DestinationConfig, openOpt OpenOptions, opts Options, log zerolog.Logger) *OnDemand {
	return &OnDemand{cfg: cfg, openOpt: openOpt, opts: opts, log: log, open: Open}
}

func (o *OnDemand) Load(ctx context.Context, records []schema.AnalyticsRecord) (int64, error) {
	dest, err := o.open(ctx, o.cfg, o.openOpt)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err := dest.Close(); err != nil {
			o.log.Warn().Err(err).Msg("closing destination")
		}
	}()
	return NewLoader(dest, o.opts, o.log).Load(ctx, records)
}
