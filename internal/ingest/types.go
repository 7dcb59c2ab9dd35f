// Package ingest implements C2, the file ingester: parse, align, validate,
// enrich, resolve-identity, commit-or-skip, emit-event. It is a pure
// function of (file, catalog): a worker owns one RawRecord from parse to
// commit and never shares it.
package ingest

import (
	"time"

	"github.com/joaquim-lab/chipstage/pkg/table"
	"github.com/joaquim-lab/chipstage/pkg/valuebag"
)

// Status is the terminal state of one ingestion attempt.
type Status string

const (
	StatusOK       Status = "ok"
	StatusSkipped  Status = "skipped"
	StatusRejected Status = "rejected"
)

// DateOrigin records which fallback branch produced the start timestamp.
type DateOrigin string

const (
	DateOriginMetadata DateOrigin = "metadata"
	DateOriginPath     DateOrigin = "path"
	DateOriginMtime    DateOrigin = "mtime"
)

// RawRecord is the parser's output: the raw preamble bags plus the
// unmapped data table, before any schema-driven processing.
type RawRecord struct {
	Procedure  string
	Parameters valuebag.Bag
	Metadata   valuebag.Bag
	Header     []string
	Rows       [][]string
}

// Event is one manifest row, emitted for every attempted file regardless of
// outcome.
type Event struct {
	Identity            string
	EventTimestamp       time.Time
	Status               Status
	Procedure            string
	RowCount             int
	PartitionPath        string
	SourceFilePath       string
	DateOrigin           DateOrigin
	ManifestColumns      map[string]valuebag.Value
	ValidationErrors     int
	ValidationWarnings   int
	RejectReason         string
}

// Config carries the per-run policy knobs relevant to ingestion (a subset
// of the full Configuration Surface).
type Config struct {
	StageRoot     string
	LocalTZ       *time.Location
	Force         bool
	Strict        bool // promotes validation errors to rejections
	StrictColumns bool // drop non-catalog data columns instead of keeping them
}

// Result bundles the event with the in-memory table that was (or would
// have been) committed, for callers that want it without a round trip
// through the partition file (mainly tests).
type Result struct {
	Event Event
	Table *table.Table
}
