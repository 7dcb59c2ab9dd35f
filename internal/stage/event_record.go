package stage

import (
	"time"

	"github.com/joaquim-lab/chipstage/internal/ingest"
	"github.com/joaquim-lab/chipstage/pkg/valuebag"
)

// eventRecord is the on-disk JSON shape of one ingest.Event: the event
// directory's durability boundary, written before the worker returns and
// read back wholesale by the coordinator's aggregation pass.
type eventRecord struct {
	Identity           string               `json:"identity"`
	EventTimestamp     time.Time            `json:"event_timestamp"`
	Status             string               `json:"status"`
	Procedure          string               `json:"procedure"`
	RowCount           int                  `json:"row_count"`
	PartitionPath      string               `json:"partition_path"`
	SourceFilePath     string               `json:"source_file_path"`
	DateOrigin         string               `json:"date_origin"`
	ManifestColumns    map[string]valueJSON `json:"manifest_columns"`
	ValidationErrors   int                  `json:"validation_errors"`
	ValidationWarnings int                  `json:"validation_warnings"`
	RejectReason       string               `json:"reject_reason,omitempty"`
}

// valueJSON is the JSON-serializable mirror of valuebag.Value: the tagged
// union doesn't round-trip through encoding/json on its own because only
// one of its fields is meaningful per Kind.
type valueJSON struct {
	Kind string  `json:"kind"`
	Str  string  `json:"str,omitempty"`
	Num  float64 `json:"num,omitempty"`
	Bool bool    `json:"bool,omitempty"`
	Time string  `json:"time,omitempty"`
}

func toValueJSON(v valuebag.Value) valueJSON {
	switch v.Kind {
	case valuebag.KindString:
		return valueJSON{Kind: "string", Str: v.Str}
	case valuebag.KindInt:
		return valueJSON{Kind: "int", Num: float64(v.Int)}
	case valuebag.KindFloat:
		return valueJSON{Kind: "float", Num: v.Flt}
	case valuebag.KindBool:
		return valueJSON{Kind: "bool", Bool: v.Bool}
	case valuebag.KindTime:
		return valueJSON{Kind: "time", Time: v.Time.UTC().Format(time.RFC3339Nano)}
	default:
		return valueJSON{Kind: "null"}
	}
}

func fromValueJSON(vj valueJSON) valuebag.Value {
	switch vj.Kind {
	case "string":
		return valuebag.FromString(vj.Str)
	case "int":
		return valuebag.FromInt(int64(vj.Num))
	case "float":
		return valuebag.FromFloat(vj.Num)
	case "bool":
		return valuebag.FromBool(vj.Bool)
	case "time":
		t, err := time.Parse(time.RFC3339Nano, vj.Time)
		if err != nil {
			return valuebag.Null()
		}
		return valuebag.FromTime(t)
	default:
		return valuebag.Null()
	}
}

func toEventRecord(ev ingest.Event) eventRecord {
	cols := make(map[string]valueJSON, len(ev.ManifestColumns))
	for k, v := range ev.ManifestColumns {
		cols[k] = toValueJSON(v)
	}
	return eventRecord{
		Identity:           ev.Identity,
		EventTimestamp:     ev.EventTimestamp,
		Status:             string(ev.Status),
		Procedure:          ev.Procedure,
		RowCount:           ev.RowCount,
		PartitionPath:      ev.PartitionPath,
		SourceFilePath:     ev.SourceFilePath,
		DateOrigin:         string(ev.DateOrigin),
		ManifestColumns:    cols,
		ValidationErrors:   ev.ValidationErrors,
		ValidationWarnings: ev.ValidationWarnings,
		RejectReason:       ev.RejectReason,
	}
}

func fromEventRecord(r eventRecord) ingest.Event {
	cols := make(map[string]valuebag.Value, len(r.ManifestColumns))
	for k, v := range r.ManifestColumns {
		cols[k] = fromValueJSON(v)
	}
	return ingest.Event{
		Identity:           r.Identity,
		EventTimestamp:     r.EventTimestamp,
		Status:             ingest.Status(r.Status),
		Procedure:          r.Procedure,
		RowCount:           r.RowCount,
		PartitionPath:      r.PartitionPath,
		SourceFilePath:     r.SourceFilePath,
		DateOrigin:         ingest.DateOrigin(r.DateOrigin),
		ManifestColumns:    cols,
		ValidationErrors:   r.ValidationErrors,
		ValidationWarnings: r.ValidationWarnings,
		RejectReason:       r.RejectReason,
	}
}
