package filevault

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"
)

// Verify compares every file record with the objects in storage.
//
// Records whose bytes are gone are reported as Missing, objects without a
// record as Orphaned. Objects modified within grace of now are skipped, since
// an upload in flight has bytes but no record yet.
func (s *Service) Verify(ctx context.Context, grace time.Duration) (Report, error) {
	if err := ctx.Err(); err != nil {
		return Report{}, fmt.Errorf("verify: %w", err)
	}

	files, err := s.repo.ListAllFiles(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("verify: %w", err)
	}

	objects, err := s.storage.List(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("verify: %w", err)
	}

	stored := make(map[string]bool, len(objects))
	for _, o := range objects {
		stored[o.Path] = true
	}

	report := Report{Records: len(files), Objects: len(objects)}
	recorded := make(map[string]bool, len(files))
	for _, f := range files {
		recorded[f.Path] = true
		if !stored[f.Path] {
			report.Missing = append(report.Missing, f)
		}
	}

	cutoff := s.now().Add(-grace)
	for _, o := range objects {
		if recorded[o.Path] || o.ModTime.After(cutoff) {
			continue
		}
		report.Orphaned = append(report.Orphaned, o)
	}
	sort.Slice(report.Orphaned, func(i, j int) bool {
		return report.Orphaned[i].Path < report.Orphaned[j].Path
	})

	return report, nil
}

// RemoveOrphans deletes the given objects from storage and returns how many
// were removed. Objects that are already gone are counted as removed.
func (s *Service) RemoveOrphans(ctx context.Context, orphans []StoredObject) (int, error) {
	removed := 0
	for _, o := range orphans {
		if err := ctx.Err(); err != nil {
			return removed, fmt.Errorf("remove orphans: %w", err)
		}
		err := s.storage.Delete(ctx, o.Path)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return removed, fmt.Errorf("remove orphan '%s': %w", o.Path, err)
		}
		removed++
	}
	return removed, nil
}
