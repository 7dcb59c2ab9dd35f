package stage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
	"github.com/joaquim-lab/chipstage/internal/ingest"
)

// WriteEvent persists one event record to dir before the worker returns —
// this is the durability boundary. Filenames are identity-keyed when
// an identity was resolved; a rejected file with no identity falls back to
// an xxhash of its source path so the name stays collision-free (grounded
// on the teacher's per-batch "batch_<id>.json" persistence naming).
func WriteEvent(dir string, ev ingest.Event) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create events dir: %w", err)
	}

	data, err := json.MarshalIndent(toEventRecord(ev), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal event record: %w", err)
	}

	name := fmt.Sprintf("event-%s.json", eventKey(ev))
	return os.WriteFile(filepath.Join(dir, name), data, 0o644)
}

func eventKey(ev ingest.Event) string {
	if ev.Identity != "" {
		return ev.Identity
	}
	h := xxhash.Sum64String(ev.SourceFilePath)
	return fmt.Sprintf("reject-%016x", h)
}

// ReadEvents loads every event-*.json file under dir, in the filesystem's
// glob order (the coordinator re-sorts before assigning sequence or
// identity-bearing output, so this order is not itself load-bearing).
func ReadEvents(dir string) ([]ingest.Event, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "event-*.json"))
	if err != nil {
		return nil, fmt.Errorf("glob event files: %w", err)
	}

	events := make([]ingest.Event, 0, len(matches))
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read event file %s: %w", path, err)
		}
		var rec eventRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("parse event file %s: %w", path, err)
		}
		events = append(events, fromEventRecord(rec))
	}
	return events, nil
}
