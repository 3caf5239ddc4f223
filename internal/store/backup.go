// corevta - Taekwondo VTA scoring/broadcast event pipeline core.
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// BackupInfo describes one backup file on disk.
type BackupInfo struct {
	Path       string
	Name       string
	ModifiedAt time.Time
	SizeBytes  int64
}

func (s *Store) backupsDir() string {
	return filepath.Join(filepath.Dir(s.path), "backups")
}

// CreateBackup checkpoints the WAL into the database file, then copies that
// file to a timestamped path under the backups directory while holding a
// read transaction for the duration, so concurrent writers cannot produce a
// torn copy.
func (s *Store) CreateBackup(ctx context.Context, name string) (string, error) {
	if name == "" {
		name = fmt.Sprintf("backup-%s", time.Now().UTC().Format("20060102-150405"))
	}
	dir := s.backupsDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create backups directory: %w", err)
	}
	dest := filepath.Join(dir, name+".db")

	if _, err := s.db.ExecContext(ctx, `PRAGMA wal_checkpoint(TRUNCATE)`); err != nil {
		return "", fmt.Errorf("checkpoint before backup: %w", err)
	}
	tx, err := s.db.BeginTx(ctx, &txReadOnly)
	if err != nil {
		return "", fmt.Errorf("begin backup read transaction: %w", err)
	}
	defer tx.Rollback()
	var tables int
	if err := tx.QueryRowContext(ctx, `SELECT count(*) FROM sqlite_master`).Scan(&tables); err != nil {
		return "", fmt.Errorf("start backup read snapshot: %w", err)
	}

	if err := copyFile(s.path, dest); err != nil {
		return "", fmt.Errorf("copy database file: %w", err)
	}
	return dest, nil
}

// RestoreFromBackup verifies candidatePath's integrity, takes a
// pre-restore backup of the current database, then replaces the live
// file. The store must be reopened by the caller after a successful
// restore.
func (s *Store) RestoreFromBackup(ctx context.Context, candidatePath string) error {
	if err := verifyIntegrity(ctx, candidatePath); err != nil {
		return fmt.Errorf("candidate backup failed integrity check: %w", err)
	}
	if _, err := s.CreateBackup(ctx, fmt.Sprintf("pre-restore-%s", time.Now().UTC().Format("20060102-150405"))); err != nil {
		return fmt.Errorf("create pre-restore backup: %w", err)
	}
	if err := copyFile(candidatePath, s.path); err != nil {
		return fmt.Errorf("replace live database file: %w", err)
	}
	return nil
}

// ListBackups returns every *.db file under the backups directory, sorted
// by modification time descending.
func (s *Store) ListBackups() ([]BackupInfo, error) {
	dir := s.backupsDir()
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read backups directory: %w", err)
	}

	var backups []BackupInfo
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".db" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		backups = append(backups, BackupInfo{
			Path:       filepath.Join(dir, e.Name()),
			Name:       e.Name(),
			ModifiedAt: info.ModTime(),
			SizeBytes:  info.Size(),
		})
	}
	sort.Slice(backups, func(i, j int) bool {
		return backups[i].ModifiedAt.After(backups[j].ModifiedAt)
	})
	return backups, nil
}

func verifyIntegrity(ctx context.Context, path string) error {
	db, err := openPlain(path)
	if err != nil {
		return err
	}
	defer db.Close()

	var result string
	if err := db.QueryRowContext(ctx, `PRAGMA integrity_check`).Scan(&result); err != nil {
		return fmt.Errorf("run integrity_check: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
