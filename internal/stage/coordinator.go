package stage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/joaquim-lab/chipstage/internal/catalog"
	"github.com/joaquim-lab/chipstage/internal/config"
	"github.com/joaquim-lab/chipstage/internal/ingest"
	"github.com/joaquim-lab/chipstage/internal/metrics"
	"github.com/joaquim-lab/chipstage/pkg/workerpool"
	"github.com/sirupsen/logrus"
)

// Summary reports the outcome of one staging run.
type Summary struct {
	FilesDiscovered int
	Events          []ingest.Event
	OKCount         int
	SkippedCount    int
	RejectedCount   int
}

// Run discovers files under cfg.RawRoot, dispatches each to the C2
// ingester across a bounded worker pool, persists one event record per
// file before the worker returns, and finally aggregates, deduplicates,
// and writes the consolidated manifest. A cancelled ctx stops further
// dispatch but lets in-flight workers reach a terminal state before the
// manifest is written.
func Run(ctx context.Context, cat *catalog.Catalog, cfg *config.Config, logger *logrus.Logger) (Summary, error) {
	files, err := Discover(cfg.RawRoot, cfg.InputExtension)
	if err != nil {
		return Summary{}, fmt.Errorf("discover raw files: %w", err)
	}
	metrics.FilesDiscovered.Add(float64(len(files)))
	logger.WithField("count", len(files)).Info("discovered raw files")

	pool := workerpool.New(workerpool.Config{
		MaxWorkers:    cfg.WorkerCount,
		EnableMetrics: true,
	}, logger)
	if err := pool.Start(); err != nil {
		return Summary{}, fmt.Errorf("start worker pool: %w", err)
	}
	defer pool.Stop()

	ingestCfg := ingest.Config{
		StageRoot:     cfg.StageRoot,
		LocalTZ:       cfg.LocalTZ(),
		Force:         cfg.Force,
		Strict:        cfg.Strict,
		StrictColumns: cfg.StrictColumns,
	}

	var inFlight sync.WaitGroup
	for _, path := range files {
		select {
		case <-ctx.Done():
			logger.Warn("staging cancelled, draining in-flight workers")
		default:
		}
		if ctx.Err() != nil {
			break
		}

		filePath := path
		inFlight.Add(1)
		task := workerpool.Task{
			ID: filePath,
			Execute: func(taskCtx context.Context) error {
				defer inFlight.Done()
				return ingestOne(filePath, cat, ingestCfg, cfg, logger)
			},
		}
		if err := pool.Submit(task); err != nil {
			inFlight.Done()
			logger.WithError(err).WithField("path", filePath).Error("failed to submit ingest task")
		}
	}

	inFlight.Wait()
	pool.Stop()

	events, err := ReadEvents(cfg.EventsDir())
	if err != nil {
		return Summary{}, fmt.Errorf("read event records: %w", err)
	}

	deduped := Dedup(events)
	manifestTable := BuildManifestTable(deduped, cat.Aliases())
	if err := manifestTable.Write(cfg.ManifestPath(), "manifest"); err != nil {
		return Summary{}, fmt.Errorf("write manifest: %w", err)
	}

	summary := Summary{FilesDiscovered: len(files), Events: deduped}
	for _, ev := range deduped {
		switch ev.Status {
		case ingest.StatusOK:
			summary.OKCount++
		case ingest.StatusSkipped:
			summary.SkippedCount++
		case ingest.StatusRejected:
			summary.RejectedCount++
		}
		metrics.EventsTotal.WithLabelValues(string(ev.Status)).Inc()
	}

	return summary, nil
}

// ingestOne runs the C2 state machine for one file and persists its event
// record (and, if rejected, a reject sidecar). A panic inside Ingest or
// its phases is caught here too, as a second line of defense behind the
// worker pool's own recover — either way the file becomes a synthesized
// rejected event rather than crashing the pool.
func ingestOne(path string, cat *catalog.Catalog, ingestCfg ingest.Config, cfg *config.Config, logger *logrus.Logger) (err error) {
	start := time.Now()
	defer func() {
		metrics.IngestDuration.Observe(time.Since(start).Seconds())
		if r := recover(); r != nil {
			ev := ingest.Event{
				EventTimestamp: time.Now().UTC(),
				Status:         ingest.StatusRejected,
				SourceFilePath: path,
				RejectReason:   fmt.Sprintf("panic: %v", r),
			}
			persistEvent(cfg, ev, logger)
			err = fmt.Errorf("ingest panicked: %v", r)
		}
	}()

	result, ingestErr := ingest.Ingest(path, cat, ingestCfg)
	persistEvent(cfg, result.Event, logger)
	if ingestErr != nil {
		logger.WithError(ingestErr).WithField("path", path).Warn("ingest did not reach ok")
	}
	return nil
}

func persistEvent(cfg *config.Config, ev ingest.Event, logger *logrus.Logger) {
	if err := WriteEvent(cfg.EventsDir(), ev); err != nil {
		logger.WithError(err).WithField("path", ev.SourceFilePath).Error("failed to write event record")
	}
	if ev.Status == ingest.StatusRejected {
		if err := WriteReject(cfg.RejectsDir(), ev.SourceFilePath, ev.RejectReason, ev.EventTimestamp); err != nil {
			logger.WithError(err).WithField("path", ev.SourceFilePath).Error("failed to write reject sidecar")
		}
		metrics.ValidationIssues.WithLabelValues("rejected").Inc()
	}
}
