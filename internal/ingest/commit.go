package ingest

import (
	"github.com/joaquim-lab/chipstage/pkg/stageerr"
	"github.com/joaquim-lab/chipstage/pkg/table"
)

// Commit writes tbl to partitionPath unless the target already exists and
// force is false, in which case it is a no-op skip. Table.Write owns the
// temp-file + fsync + atomic-rename sequence, so no partial file is ever
// observable at partitionPath.
func Commit(tbl *table.Table, partitionPath, schemaName string, force bool) (committed bool, err error) {
	if _, statErr := FS.Stat(partitionPath); statErr == nil && !force {
		return false, nil
	}
	if err := tbl.Write(partitionPath, schemaName); err != nil {
		return false, stageerr.IOError("commit", "failed to write partition").Wrap(err).With("path", partitionPath)
	}
	return true, nil
}
