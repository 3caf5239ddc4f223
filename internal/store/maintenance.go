// corevta - Taekwondo VTA scoring/broadcast event pipeline core.
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"fmt"
)

// RunVacuum reclaims free space in the database file.
func (s *Store) RunVacuum(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `VACUUM`)
	if err != nil {
		return fmt.Errorf("run vacuum: %w", err)
	}
	return nil
}

// RunIntegrityCheck runs PRAGMA integrity_check and fails if the result is
// anything other than "ok".
func (s *Store) RunIntegrityCheck(ctx context.Context) error {
	var result string
	if err := s.db.QueryRowContext(ctx, `PRAGMA integrity_check`).Scan(&result); err != nil {
		return fmt.Errorf("run integrity_check: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}
	return nil
}

// RunAnalyze updates the query planner's statistics.
func (s *Store) RunAnalyze(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `ANALYZE`)
	if err != nil {
		return fmt.Errorf("run analyze: %w", err)
	}
	return nil
}

// RunOptimize runs SQLite's incremental optimizer.
func (s *Store) RunOptimize(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `PRAGMA optimize`)
	if err != nil {
		return fmt.Errorf("run optimize: %w", err)
	}
	return nil
}

// RunFullMaintenance sequences integrity -> analyze -> optimize -> vacuum,
// aborting immediately if the integrity check fails.
func (s *Store) RunFullMaintenance(ctx context.Context) error {
	if err := s.RunIntegrityCheck(ctx); err != nil {
		return err
	}
	if err := s.RunAnalyze(ctx); err != nil {
		return err
	}
	if err := s.RunOptimize(ctx); err != nil {
		return err
	}
	return s.RunVacuum(ctx)
}
