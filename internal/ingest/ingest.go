package ingest

import (
	"time"

	"github.com/joaquim-lab/chipstage/internal/catalog"
	"github.com/joaquim-lab/chipstage/pkg/stageerr"
)

// Ingest runs the full C2 state machine for one file:
//
//	parse → align → validate → enrich → resolve-identity → commit-or-skip → emit-event
//
// There are no cycles; the terminal states are ok, skipped, rejected. Ingest
// is a pure function of (path, catalog, config) and never panics: every
// phase failure becomes a rejected Result rather than a propagated panic.
// The error return exists so the coordinator can log the underlying cause
// without re-deriving it from the event.
func Ingest(path string, cat *catalog.Catalog, cfg Config) (Result, error) {
	now := time.Now().UTC()

	raw, err := ParseFile(path)
	if err != nil {
		return rejectedResult(path, now, err), err
	}

	spec, known := cat.SpecOf(raw.Procedure)
	if !known && cat.Strict() {
		rejErr := stageerr.FileReject("align", "unknown procedure in strict mode").With("procedure", raw.Procedure)
		return rejectedResult(path, now, rejErr), rejErr
	}

	mapping, alignWarnings := AlignColumns(raw.Header, spec, cat.Aliases())
	dataTable, castWarnings := BuildDataTable(raw, spec, mapping, cfg.StrictColumns)
	warnings := append(append([]string{}, alignWarnings...), castWarnings...)

	combined := Combined(raw.Parameters, raw.Metadata)
	validation := Validate(spec, combined, cat.Aliases(), dataTable, cfg.Strict)
	if validation.Rejected {
		rejErr := stageerr.FileReject("validate", validation.Reason)
		res := rejectedResult(path, now, rejErr)
		res.Event.ValidationErrors = validation.Errors
		res.Event.ValidationWarnings = validation.Warnings + len(warnings)
		return res, rejErr
	}

	startUTC, dateOrigin := ResolveStartTime(combined, cat.Aliases(), path)
	identity := Identity(path, startUTC)

	attrs, illumWarnings := DeriveEnrichedAttrs(combined, cat.Aliases(), identity, raw.Procedure, startUTC, path)
	warnings = append(warnings, illumWarnings...)
	ApplyEnrichment(dataTable, attrs)

	localTZ := cfg.LocalTZ
	if localTZ == nil {
		localTZ = time.UTC
	}
	partitionPath := PartitionPath(cfg.StageRoot, raw.Procedure, startUTC, localTZ, identity)

	committed, commitErr := Commit(dataTable, partitionPath, raw.Procedure, cfg.Force)
	if commitErr != nil {
		return rejectedResult(path, now, commitErr), commitErr
	}

	status := StatusOK
	if !committed {
		status = StatusSkipped
	}

	ev := Event{
		Identity:           identity,
		EventTimestamp:     now,
		Status:             status,
		Procedure:          raw.Procedure,
		RowCount:           dataTable.NumRows,
		PartitionPath:      partitionPath,
		SourceFilePath:     path,
		DateOrigin:         dateOrigin,
		ManifestColumns:    ManifestColumns(attrs, combined, cat.Aliases()),
		ValidationErrors:   validation.Errors,
		ValidationWarnings: validation.Warnings + len(warnings),
	}
	return Result{Event: ev, Table: dataTable}, nil
}

func rejectedResult(path string, ts time.Time, err error) Result {
	reason := err.Error()
	if se, ok := stageerr.As(err); ok {
		reason = se.Message
	}
	return Result{Event: Event{
		EventTimestamp: ts,
		Status:         StatusRejected,
		SourceFilePath: path,
		RejectReason:   reason,
	}}
}
