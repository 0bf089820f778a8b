package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/c360/biograph/config"
	"github.com/c360/biograph/pkg/worker"
	"github.com/c360/biograph/record"
)

// dumpTask is one edge's records queued for serialization
type dumpTask struct {
	queryID   string
	edgeID    string
	reversed  bool
	records   []*record.Record
	direction bool
}

// RecordDumper writes executed record sets to JSON files for debugging.
// Serialization happens off the query path on a small worker pool.
type RecordDumper struct {
	cfg    config.DumpConfig
	pool   *worker.Pool[dumpTask]
	logger *slog.Logger
}

// NewRecordDumper creates a dumper; a nil return means dumping is off
func NewRecordDumper(ctx context.Context, cfg config.DumpConfig, logger *slog.Logger) *RecordDumper {
	if !cfg.Enabled() {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	d := &RecordDumper{cfg: cfg, logger: logger}
	d.pool = worker.NewPool[dumpTask](2, 64, d.write)
	d.pool.Start(ctx)
	return d
}

// Dump queues one edge's records. Safe to call on a nil dumper.
func (d *RecordDumper) Dump(queryID, edgeID string, reversed bool, records []*record.Record) {
	if d == nil {
		return
	}
	task := dumpTask{
		queryID:   queryID,
		edgeID:    edgeID,
		reversed:  reversed,
		records:   records,
		direction: d.cfg.WithDirection,
	}
	if err := d.pool.Submit(task); err != nil {
		d.logger.Warn("record dump dropped", "edge", edgeID, "error", err)
	}
}

// Close drains pending dumps
func (d *RecordDumper) Close() {
	if d == nil {
		return
	}
	d.pool.Stop()
}

func (d *RecordDumper) write(_ context.Context, task dumpTask) error {
	payload := map[string]any{
		"query_id": task.queryID,
		"edge_id":  task.edgeID,
		"records":  task.records,
	}
	if task.direction {
		direction := "forward"
		if task.reversed {
			direction = "reversed"
		}
		payload["direction"] = direction
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(d.cfg.Path, 0o755); err != nil {
		return err
	}
	name := fmt.Sprintf("%s-%s.json", task.queryID, task.edgeID)
	path := filepath.Join(d.cfg.Path, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	d.logger.Debug("records dumped", "path", path, "records", len(task.records))
	return nil
}
