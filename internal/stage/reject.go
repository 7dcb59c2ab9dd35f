package stage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cespare/xxhash/v2"
)

// rejectSidecar is the reject-record shape: {source_file, error, ts}.
type rejectSidecar struct {
	SourceFile string    `json:"source_file"`
	Error      string    `json:"error"`
	Timestamp  time.Time `json:"ts"`
}

// WriteReject writes a reject sidecar at
// <rejects-dir>/<stem>-<short-hash>.reject.json, named so two rejections
// of the same source file stem never collide.
func WriteReject(dir, sourcePath, reason string, ts time.Time) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create rejects dir: %w", err)
	}

	stem := filepath.Base(sourcePath)
	ext := filepath.Ext(stem)
	stem = stem[:len(stem)-len(ext)]
	shortHash := xxhash.Sum64String(sourcePath) & 0xffffffff

	data, err := json.MarshalIndent(rejectSidecar{
		SourceFile: sourcePath,
		Error:      reason,
		Timestamp:  ts,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal reject sidecar: %w", err)
	}

	name := fmt.Sprintf("%s-%08x.reject.json", stem, shortHash)
	return os.WriteFile(filepath.Join(dir, name), data, 0o644)
}
