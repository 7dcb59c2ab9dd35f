package ingest

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/joaquim-lab/chipstage/internal/catalog"
	"github.com/joaquim-lab/chipstage/pkg/table"
	"github.com/joaquim-lab/chipstage/pkg/valuebag"
)

// isoOffsetLayout renders a UTC timestamp as "...+00:00" rather than Go's
// usual "...Z" RFC3339 suffix, matching the identity payload's expected
// format.
const isoOffsetLayout = "2006-01-02T15:04:05-07:00"

var pathDateRe = regexp.MustCompile(`(\d{4})-(\d{2})-(\d{2})|(\d{8})`)

// ResolveStartTime falls through (1) a parsed metadata start-time field,
// (2) a date token extracted from the source path, (3) file modification
// time. The returned DateOrigin records which branch fired.
func ResolveStartTime(combined valuebag.Bag, aliases catalog.AliasMap, sourcePath string) (time.Time, DateOrigin) {
	if v, ok := ResolveField("start_time", combined, aliases); ok {
		switch v.Kind {
		case valuebag.KindTime:
			return v.Time.UTC(), DateOriginMetadata
		case valuebag.KindString:
			if coerced, ok2 := catalog.Coerce(v.Str, table.TypeTimestamp); ok2 {
				return coerced.(time.Time).UTC(), DateOriginMetadata
			}
		}
	}

	if t, ok := dateFromPath(sourcePath); ok {
		return t, DateOriginPath
	}

	if info, err := os.Stat(sourcePath); err == nil {
		return info.ModTime().UTC(), DateOriginMtime
	}
	return time.Now().UTC(), DateOriginMtime
}

func dateFromPath(path string) (time.Time, bool) {
	m := pathDateRe.FindStringSubmatch(path)
	if m == nil {
		return time.Time{}, false
	}
	if m[1] != "" {
		t, err := time.Parse("2006-01-02", fmt.Sprintf("%s-%s-%s", m[1], m[2], m[3]))
		if err != nil {
			return time.Time{}, false
		}
		return t.UTC(), true
	}
	if m[4] != "" {
		t, err := time.Parse("20060102", m[4])
		if err != nil {
			return time.Time{}, false
		}
		return t.UTC(), true
	}
	return time.Time{}, false
}

// Identity computes the 16-hex-character run identity: the first 16 hex
// characters of SHA1(normalized-absolute-path | iso8601-utc-timestamp).
func Identity(sourcePath string, startUTC time.Time) string {
	abs, err := filepath.Abs(sourcePath)
	if err != nil {
		abs = sourcePath
	}
	normalized := filepath.ToSlash(abs)
	payload := normalized + "|" + startUTC.UTC().Format(isoOffsetLayout)
	sum := sha1.Sum([]byte(payload))
	return hex.EncodeToString(sum[:])[:16]
}

// PartitionPath computes the deterministic commit target:
//
//	<stage-root>/proc=<procedure>/date=<YYYY-MM-DD local>/run_id=<identity>/part-000.parquet
//
// The date token uses the local timezone so late-night runs group under
// the expected calendar day even though identity itself is UTC-keyed.
func PartitionPath(stageRoot, procedure string, startUTC time.Time, localTZ *time.Location, identity string) string {
	localDate := startUTC.In(localTZ).Format("2006-01-02")
	return filepath.Join(
		stageRoot,
		fmt.Sprintf("proc=%s", procedure),
		fmt.Sprintf("date=%s", localDate),
		fmt.Sprintf("run_id=%s", identity),
		"part-000.parquet",
	)
}
