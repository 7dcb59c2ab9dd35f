package derive

import "strings"

// Emitted is one long-form metrics-artifact row.
type Emitted struct {
	SourceIdentity string // identity, or "identA+identB" for a pair
	ChipGroup      string
	ChipNumber     string
	Procedure      string
	Seq            int64
	MetricName     string
	MetricCategory string
	Value          string
	Unit           string
	ExtractionMethod  string
	ExtractionVersion string
	Confidence        float64
	Flags             string // comma-joined
}

func emitFromSingle(e SingleExtractor, meta Manifest, r Result) Emitted {
	return Emitted{
		SourceIdentity:    meta.Identity,
		ChipGroup:         meta.ChipGroup,
		ChipNumber:        meta.ChipNumber,
		Procedure:         meta.Procedure,
		Seq:               meta.Seq,
		MetricName:        r.MetricName,
		MetricCategory:    e.Category(),
		Value:             r.Value,
		Unit:              r.Unit,
		ExtractionMethod:  r.Method,
		ExtractionVersion: e.Version(),
		Confidence:        r.Confidence,
		Flags:             strings.Join(r.Flags, ","),
	}
}

func emitFromPair(e PairExtractor, a, b Manifest, r Result) Emitted {
	return Emitted{
		SourceIdentity:    a.Identity + "+" + b.Identity,
		ChipGroup:         a.ChipGroup,
		ChipNumber:        a.ChipNumber,
		Procedure:         a.Procedure,
		Seq:               b.Seq,
		MetricName:        r.MetricName,
		MetricCategory:    e.Category(),
		Value:             r.Value,
		Unit:              r.Unit,
		ExtractionMethod:  r.Method,
		ExtractionVersion: e.Version(),
		Confidence:        r.Confidence,
		Flags:             strings.Join(r.Flags, ","),
	}
}
