package database

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// journal is the append-only, one-JSON-record-per-line log backing a single
// active transaction. Every append opens, writes and closes the file handle
// so no descriptor is held across calls.
type journal struct {
	path string
}

func newJournal(dir, txID string) (*journal, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, txID+".log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	f.Close()
	return &journal{path: path}, nil
}

// Append writes one record as a JSON line, flushing before returning.
func (j *journal) Append(rec *OperationRecord) error {
	f, err := os.OpenFile(j.path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

// Remove deletes the journal file, matching commit/rollback's "drop the
// journal regardless of outcome" behavior.
func (j *journal) Remove() error {
	err := os.Remove(j.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// cleanupStaleJournals unconditionally removes every *.log file under dir
// without replaying them, matching the spec's no-crash-recovery design.
func cleanupStaleJournals(dir string) error {
	matches, err := filepath.Glob(filepath.Join(dir, "*.log"))
	if err != nil {
		return err
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

