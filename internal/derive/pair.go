package derive

import (
	"sort"

	"github.com/joaquim-lab/chipstage/pkg/table"
	"github.com/sirupsen/logrus"
)

// groupKey groups manifest rows by (chip, procedure) ahead of adjacent-pair
// dispatch.
type groupKey struct {
	chipGroup  string
	chipNumber string
	procedure  string
}

// RunPairwise executes the pairwise phase: group by (chip, procedure), sort
// by start-timestamp within each group, and for each adjacent pair test
// every applicable extractor's should-pair predicate before materializing
// and extracting. Pairwise work runs strictly sequentially — the
// benchmarked crossover point below which parallel pair dispatch is net
// slower than sequential, per the design notes, sits around 500 pair-tasks,
// and pool construction/serialization overhead dominates below it.
func RunPairwise(reg *Registry, rows []Manifest, load Loader, logger *logrus.Logger) []Emitted {
	groups := make(map[groupKey][]Manifest)
	for _, row := range rows {
		k := groupKey{chipGroup: row.ChipGroup, chipNumber: row.ChipNumber, procedure: row.Procedure}
		groups[k] = append(groups[k], row)
	}

	keys := make([]groupKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].chipGroup != keys[j].chipGroup {
			return keys[i].chipGroup < keys[j].chipGroup
		}
		if keys[i].chipNumber != keys[j].chipNumber {
			return keys[i].chipNumber < keys[j].chipNumber
		}
		return keys[i].procedure < keys[j].procedure
	})

	var out []Emitted
	for _, k := range keys {
		group := groups[k]
		sort.Slice(group, func(i, j int) bool { return group[i].StartUTC < group[j].StartUTC })

		extractors := reg.PairsFor(k.procedure)
		if len(extractors) == 0 {
			continue
		}

		for i := 0; i+1 < len(group); i++ {
			a, b := group[i], group[i+1]
			if !allAgreeShouldPair(extractors, a, b) {
				continue
			}

			tblA, err := load(a.Procedure, a.PartitionPath)
			if err != nil {
				logger.WithError(err).WithField("identity", a.Identity).Warn("pairwise load failed, skipping pair")
				continue
			}
			tblB, err := load(b.Procedure, b.PartitionPath)
			if err != nil {
				logger.WithError(err).WithField("identity", b.Identity).Warn("pairwise load failed, skipping pair")
				continue
			}

			for _, e := range extractors {
				results := safeExtractPair(e, tblA, tblB, a, b, logger)
				for _, r := range results {
					if !e.Validate(r) {
						continue
					}
					out = append(out, emitFromPair(e, a, b, r))
				}
			}
		}
	}
	return out
}

func allAgreeShouldPair(extractors []PairExtractor, a, b Manifest) bool {
	for _, e := range extractors {
		if !e.ShouldPair(a, b) {
			return false
		}
	}
	return true
}

func safeExtractPair(e PairExtractor, tblA, tblB *table.Table, a, b Manifest, logger *logrus.Logger) (results []Result) {
	defer func() {
		if r := recover(); r != nil {
			logger.WithField("extractor", e.Name()).WithField("pair", a.Identity+"+"+b.Identity).Warnf("extractor panicked: %v", r)
			results = nil
		}
	}()
	return e.ExtractPair(tblA, tblB, a, b)
}
