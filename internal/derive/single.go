package derive

import (
	"context"
	"sync"

	"github.com/joaquim-lab/chipstage/pkg/table"
	"github.com/joaquim-lab/chipstage/pkg/workerpool"
	"github.com/sirupsen/logrus"
)

// Loader resolves a partition path to its typed table, using the catalog
// to know the procedure's declared+enriched schema.
type Loader func(procedure, partitionPath string) (*table.Table, error)

// RunSingle executes the single-measurement phase: for every ok manifest
// row, load its partition and invoke every applicable single extractor.
// When pool is non-nil, loads and extractions run across that shared
// worker pool — a single pool across all rows, never one per group;
// when pool is nil, rows are processed sequentially.
func RunSingle(ctx context.Context, reg *Registry, rows []Manifest, load Loader, pool *workerpool.WorkerPool, logger *logrus.Logger) []Emitted {
	if pool == nil {
		var out []Emitted
		for _, row := range rows {
			out = append(out, runSingleRow(reg, row, load, logger)...)
		}
		return out
	}

	var mu sync.Mutex
	var out []Emitted
	var wg sync.WaitGroup

	for _, row := range rows {
		row := row
		wg.Add(1)
		_ = pool.Submit(workerpool.Task{
			ID: row.Identity,
			Execute: func(taskCtx context.Context) error {
				defer wg.Done()
				results := runSingleRow(reg, row, load, logger)
				mu.Lock()
				out = append(out, results...)
				mu.Unlock()
				return nil
			},
		})
	}
	wg.Wait()
	return out
}

func runSingleRow(reg *Registry, row Manifest, load Loader, logger *logrus.Logger) []Emitted {
	extractors := reg.SinglesFor(row.Procedure)
	if len(extractors) == 0 {
		return nil
	}

	tbl, err := load(row.Procedure, row.PartitionPath)
	if err != nil {
		logger.WithError(err).WithField("identity", row.Identity).Warn("single-measurement load failed, skipping extraction")
		return nil
	}

	var out []Emitted
	for _, e := range extractors {
		results := safeExtractSingle(e, tbl, row, logger)
		for _, r := range results {
			if !e.Validate(r) {
				continue
			}
			out = append(out, emitFromSingle(e, row, r))
		}
	}
	return out
}

// safeExtractSingle recovers a panicking extractor into an empty result
// set: extractors must never propagate a fault out of extract.
func safeExtractSingle(e SingleExtractor, tbl *table.Table, meta Manifest, logger *logrus.Logger) (results []Result) {
	defer func() {
		if r := recover(); r != nil {
			logger.WithField("extractor", e.Name()).WithField("identity", meta.Identity).Warnf("extractor panicked: %v", r)
			results = nil
		}
	}()
	return e.ExtractSingle(tbl, meta)
}
