// Package backup implements archive-based snapshot/restore over a
// database's on-disk directory, per SPEC_FULL.md §4.10: a ZIP (deflate)
// archive rooted so extraction at the database root reconstructs
// db/<name>/.
package backup

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/flate"
)

func init() {
	zip.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, flate.DefaultCompression)
	})
	zip.RegisterDecompressor(zip.Deflate, func(r io.Reader) io.ReadCloser {
		return flate.NewReader(r)
	})
}

// Manager creates and restores backups for databases rooted at dbRoot
// (.../db), writing archives under backupRoot (.../backups).
type Manager struct {
	dbRoot     string
	backupRoot string
}

// NewManager roots a backup Manager at baseDir (the same root a
// database.Registry uses), per the on-disk layout in SPEC_FULL.md §6.
func NewManager(baseDir string) *Manager {
	return &Manager{
		dbRoot:     filepath.Join(baseDir, "db"),
		backupRoot: filepath.Join(baseDir, "backups"),
	}
}

// timestampFormat matches the on-disk layout's <db>_<YYYYMMDD_HHMMSS>.zip.
const timestampFormat = "20060102_150405"

// Create archives dbName's directory into backups/<dbName>_<timestamp>.zip
// and returns the archive path.
func (m *Manager) Create(dbName string) (string, error) {
	srcDir := filepath.Join(m.dbRoot, dbName)
	if _, err := os.Stat(srcDir); err != nil {
		return "", fmt.Errorf("backup: database %q not found: %w", dbName, err)
	}
	if err := os.MkdirAll(m.backupRoot, 0o755); err != nil {
		return "", fmt.Errorf("backup: failed to create backup directory: %w", err)
	}

	name := fmt.Sprintf("%s_%s.zip", dbName, time.Now().UTC().Format(timestampFormat))
	archivePath := filepath.Join(m.backupRoot, name)

	f, err := os.Create(archivePath)
	if err != nil {
		return "", fmt.Errorf("backup: failed to create archive file: %w", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	defer zw.Close()

	err = filepath.Walk(srcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(m.dbRoot, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(filepath.Join("db", rel))
		w, err := zw.Create(rel)
		if err != nil {
			return err
		}
		src, err := os.Open(path)
		if err != nil {
			return err
		}
		defer src.Close()
		_, err = io.Copy(w, src)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("backup: failed to archive database directory: %w", err)
	}
	return archivePath, nil
}

// Info describes one backup archive as reported by List.
type Info struct {
	Database string
	Path     string
	Created  time.Time
}

// List returns every backup for dbName (or every backup if dbName is
// empty), newest first.
func (m *Manager) List(dbName string) ([]Info, error) {
	pattern := "*_*.zip"
	if dbName != "" {
		pattern = dbName + "_*.zip"
	}
	matches, err := filepath.Glob(filepath.Join(m.backupRoot, pattern))
	if err != nil {
		return nil, fmt.Errorf("backup: failed to list archives: %w", err)
	}

	infos := make([]Info, 0, len(matches))
	for _, path := range matches {
		db, ts, ok := parseArchiveName(filepath.Base(path))
		if !ok || (dbName != "" && db != dbName) {
			continue
		}
		infos = append(infos, Info{Database: db, Path: path, Created: ts})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Created.After(infos[j].Created) })
	return infos, nil
}

// Restore extracts the most recent backup for dbName into the database
// root, overwriting any existing directory of the same name. If
// archivePath is non-empty, that specific archive is restored instead of
// the latest.
func (m *Manager) Restore(dbName, archivePath string) error {
	if archivePath == "" {
		infos, err := m.List(dbName)
		if err != nil {
			return err
		}
		if len(infos) == 0 {
			return fmt.Errorf("backup: no backups found for database %q", dbName)
		}
		archivePath = infos[0].Path
	}

	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("backup: failed to open archive: %w", err)
	}
	defer r.Close()

	destDir := filepath.Join(m.dbRoot, dbName)
	if err := os.RemoveAll(destDir); err != nil {
		return fmt.Errorf("backup: failed to clear existing database directory: %w", err)
	}

	for _, zf := range r.File {
		rel := strings.TrimPrefix(filepath.ToSlash(zf.Name), "db/")
		target := filepath.Join(m.dbRoot, filepath.FromSlash(rel))
		if strings.HasSuffix(zf.Name, "/") {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("backup: failed to recreate directory: %w", err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("backup: failed to recreate directory: %w", err)
		}
		if err := extractFile(zf, target); err != nil {
			return fmt.Errorf("backup: failed to extract %q: %w", zf.Name, err)
		}
	}
	return nil
}

func extractFile(zf *zip.File, target string) error {
	src, err := zf.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer dst.Close()

	_, err = io.Copy(dst, src)
	return err
}

func parseArchiveName(base string) (db string, created time.Time, ok bool) {
	base = strings.TrimSuffix(base, ".zip")
	idx := strings.LastIndex(base, "_")
	// <db>_<YYYYMMDD>_<HHMMSS>: timestamp has two underscore-joined
	// components, so the database name ends before the second-to-last "_".
	first := strings.LastIndex(base[:maxInt(idx, 0)], "_")
	if idx < 0 || first < 0 {
		return "", time.Time{}, false
	}
	db = base[:first]
	ts, err := time.Parse(timestampFormat, base[first+1:])
	if err != nil {
		return "", time.Time{}, false
	}
	return db, ts, true
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
