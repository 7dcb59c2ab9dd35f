package ingest

import (
	"bufio"
	"strings"

	"github.com/joaquim-lab/chipstage/pkg/stageerr"
	"github.com/joaquim-lab/chipstage/pkg/valuebag"
	"github.com/spf13/afero"
)

const commentMarker = "#"

// Delimiter is the data-table field separator. It defaults to a comma; it is
// a package-level setting shared by every ParseFile call, and the catalog
// has no delimiter setting of its own.
var Delimiter = ","

// FS is the filesystem ParseFile reads raw measurement files through.
// Production wiring leaves this as the OS filesystem; tests swap in an
// afero.MemMapFs so the preamble/data-split logic can be exercised without
// touching disk.
var FS afero.Fs = afero.NewOsFs()

// ParseFile reads one raw measurement file and splits it into the
// preamble's parameter/metadata bags plus the raw data table. Any failure
// here (unreadable file, missing sections, empty data table) is a
// *stageerr.Error with CodeFileReject — the partition is never written.
func ParseFile(path string) (*RawRecord, error) {
	f, err := FS.Open(path)
	if err != nil {
		return nil, stageerr.FileReject("parse", "cannot open file").Wrap(err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, stageerr.FileReject("parse", "error reading file").Wrap(err)
	}

	return ParseLines(lines)
}

// ParseLines implements the preamble/data split over already-read lines, so
// tests and the in-memory afero-backed filesystem path can exercise it
// without touching a real file.
func ParseLines(lines []string) (*RawRecord, error) {
	rec := &RawRecord{
		Parameters: valuebag.New(),
		Metadata:   valuebag.New(),
	}

	section := ""
	dataStart := -1

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, commentMarker) {
			dataStart = i
			break
		}

		content := strings.TrimSpace(strings.TrimPrefix(trimmed, commentMarker))
		switch {
		case content == "":
			continue
		case strings.HasPrefix(content, "Procedure:"):
			rec.Procedure = strings.TrimSpace(strings.TrimPrefix(content, "Procedure:"))
		case strings.EqualFold(content, "Parameters:"):
			section = "parameters"
		case strings.EqualFold(content, "Metadata:"):
			section = "metadata"
		case strings.EqualFold(content, "Data:"):
			section = "data"
		default:
			if key, value, ok := splitKV(content); ok {
				bag := bagForSection(rec, section)
				if bag != nil {
					bag[key] = valuebag.FromString(value)
				}
			}
		}
	}

	if rec.Procedure == "" {
		return nil, stageerr.FileReject("parse", "missing 'Procedure:' declaration in preamble")
	}
	if dataStart < 0 || dataStart+1 >= len(lines) {
		return nil, stageerr.FileReject("parse", "empty data table")
	}

	rec.Header = splitRow(lines[dataStart])
	for _, raw := range lines[dataStart+1:] {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		rec.Rows = append(rec.Rows, splitRow(raw))
	}
	if len(rec.Rows) == 0 {
		return nil, stageerr.FileReject("parse", "empty data table")
	}

	return rec, nil
}

func bagForSection(rec *RawRecord, section string) valuebag.Bag {
	switch section {
	case "parameters":
		return rec.Parameters
	case "metadata":
		return rec.Metadata
	default:
		return nil
	}
}

// splitKV splits a "key: value" preamble line, trimming both sides.
func splitKV(content string) (key, value string, ok bool) {
	idx := strings.Index(content, ":")
	if idx < 0 {
		return "", "", false
	}
	key = strings.TrimSpace(content[:idx])
	value = strings.TrimSpace(content[idx+1:])
	if key == "" {
		return "", "", false
	}
	return key, value, true
}

func splitRow(line string) []string {
	fields := strings.Split(line, Delimiter)
	for i, f := range fields {
		fields[i] = strings.TrimSpace(f)
	}
	return fields
}
