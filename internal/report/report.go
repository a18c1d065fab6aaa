// Package report persists the summary of a run as JSON.
package report

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/ehsanSh21/clickhouse-metabase/internal/pipeline"
	"github.com/ehsanSh21/clickhouse-metabase/pkg/atomicfile"
)

// Write stores r at path. The file is replaced atomically; it is output
// only and never read back by a later run.
func Write(path string, r *pipeline.Report) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding report")
	}
	data = append(data, '\n')
	if err := atomicfile.Write(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "writing report %s", path)
	}
	return nil
}
