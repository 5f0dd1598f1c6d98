package memory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/gzip"
)

// Retention defaults used by AutoCleanup.
const (
	// AutoCleanupDays is the normal retention horizon.
	AutoCleanupDays = 30
	// AggressiveCleanupDays applies when the database exceeds its size limit.
	AggressiveCleanupDays = 15
)

// SizeInfo reports the database file size against configured limits.
type SizeInfo struct {
	Exists       bool    `json:"exists"`
	SizeBytes    int64   `json:"size_bytes"`
	SizeMB       float64 `json:"size_mb"`
	MaxSizeMB    float64 `json:"max_size_mb"`
	WarnSizeMB   float64 `json:"warning_size_mb"`
	UsagePercent float64 `json:"usage_percent"`
	Path         string  `json:"path"`
}

// SizeStatus classifies the current size against the limits.
type SizeStatus struct {
	Status  string   `json:"status"` // "ok", "warning" or "critical"
	Message string   `json:"message"`
	Size    SizeInfo `json:"size"`
}

// Stats aggregates database-wide statistics.
type Stats struct {
	TotalTurns    int64      `json:"total_conversations"`
	TotalSessions int64      `json:"total_sessions"`
	TotalFacts    int64      `json:"total_facts"`
	UniqueUsers   int64      `json:"unique_users"`
	AvgTurns      float64    `json:"avg_conversations_per_session"`
	OldestTurn    *time.Time `json:"oldest_conversation,omitempty"`
	NewestTurn    *time.Time `json:"newest_conversation,omitempty"`
	Size          SizeInfo   `json:"size"`
}

// Size returns the database file size and the configured limits.
func (s *Store) Size() SizeInfo {
	info := SizeInfo{Path: s.path, MaxSizeMB: s.opts.MaxSizeMB, WarnSizeMB: s.opts.WarnSizeMB}
	fi, err := os.Stat(s.path)
	if err != nil {
		return info
	}
	info.Exists = true
	info.SizeBytes = fi.Size()
	info.SizeMB = float64(fi.Size()) / (1024 * 1024)
	if s.opts.MaxSizeMB > 0 {
		info.UsagePercent = info.SizeMB / s.opts.MaxSizeMB * 100
	}
	return info
}

// CheckSizeLimits reports whether the database is approaching or exceeding
// its configured size budget.
func (s *Store) CheckSizeLimits() SizeStatus {
	info := s.Size()
	switch {
	case info.SizeMB >= info.MaxSizeMB:
		return SizeStatus{
			Status:  "critical",
			Message: fmt.Sprintf("database size (%.2f MB) exceeds limit (%.0f MB)", info.SizeMB, info.MaxSizeMB),
			Size:    info,
		}
	case info.SizeMB >= info.WarnSizeMB:
		return SizeStatus{
			Status:  "warning",
			Message: fmt.Sprintf("database size (%.2f MB) approaching limit (%.0f MB)", info.SizeMB, info.MaxSizeMB),
			Size:    info,
		}
	default:
		return SizeStatus{
			Status:  "ok",
			Message: fmt.Sprintf("database size (%.2f MB) within limits", info.SizeMB),
			Size:    info,
		}
	}
}

// Stats returns database-wide statistics.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{Size: s.Size()}

	counts := []struct {
		query string
		dst   *int64
	}{
		{`SELECT COUNT(*) FROM conversations`, &stats.TotalTurns},
		{`SELECT COUNT(*) FROM sessions`, &stats.TotalSessions},
		{`SELECT COUNT(*) FROM memory_facts`, &stats.TotalFacts},
		{`SELECT COUNT(DISTINCT user_id) FROM sessions WHERE user_id != ''`, &stats.UniqueUsers},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dst); err != nil {
			return nil, fmt.Errorf("database stats: %w", err)
		}
	}
	if stats.TotalSessions > 0 {
		stats.AvgTurns = float64(stats.TotalTurns) / float64(stats.TotalSessions)
	}

	var oldest, newest int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MIN(timestamp), 0), COALESCE(MAX(timestamp), 0) FROM conversations`).Scan(&oldest, &newest)
	if err != nil {
		return nil, fmt.Errorf("turn time range: %w", err)
	}
	if oldest > 0 {
		t := time.Unix(oldest, 0)
		stats.OldestTurn = &t
	}
	if newest > 0 {
		t := time.Unix(newest, 0)
		stats.NewestTurn = &t
	}
	return stats, nil
}

// CleanupResult reports what AutoCleanup did.
type CleanupResult struct {
	Performed       bool       `json:"cleanup_performed"`
	Reason          string     `json:"reason,omitempty"`
	SessionsDeleted int64      `json:"sessions_deleted,omitempty"`
	CleanupDays     int        `json:"cleanup_days,omitempty"`
	StatusBefore    SizeStatus `json:"status_before"`
	StatusAfter     SizeStatus `json:"status_after"`
}

// AutoCleanup removes old sessions when the database approaches its size
// budget: the aggressive horizon at critical, the normal horizon at warning,
// nothing when the size is fine. A vacuum reclaims the space afterwards.
func (s *Store) AutoCleanup(ctx context.Context) (*CleanupResult, error) {
	before := s.CheckSizeLimits()
	result := &CleanupResult{StatusBefore: before, StatusAfter: before}

	var days int
	switch before.Status {
	case "critical":
		days = AggressiveCleanupDays
	case "warning":
		days = AutoCleanupDays
	default:
		result.Reason = "size within limits"
		return result, nil
	}

	deleted, err := s.CleanupOlderThan(ctx, days)
	if err != nil {
		return nil, err
	}
	if err := s.Vacuum(ctx); err != nil {
		return nil, err
	}

	result.Performed = true
	result.SessionsDeleted = deleted
	result.CleanupDays = days
	result.StatusAfter = s.CheckSizeLimits()
	return result, nil
}

// Vacuum reclaims unused space.
func (s *Store) Vacuum(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `VACUUM`); err != nil {
		return fmt.Errorf("vacuum: %w", err)
	}
	return nil
}

// Optimize runs VACUUM, ANALYZE and REINDEX.
func (s *Store) Optimize(ctx context.Context) error {
	for _, stmt := range []string{`VACUUM`, `ANALYZE`, `REINDEX`} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%s: %w", stmt, err)
		}
	}
	return nil
}

// ArchiveResult reports what ArchiveOlderThan exported and removed.
type ArchiveResult struct {
	Archived    int64  `json:"archived"`
	ArchivePath string `json:"archive_path,omitempty"`
	CutoffUnix  int64  `json:"cutoff"`
}

// ArchiveOlderThan exports turns older than the cutoff as gzip-compressed
// NDJSON (one Turn per line) into dir, then deletes them from the main
// database and vacuums. The cutoff is computed once at the start, so turns
// written while the archive runs are never exported or deleted.
func (s *Store) ArchiveOlderThan(ctx context.Context, ageDays int, dir string) (*ArchiveResult, error) {
	cutoff := time.Now().AddDate(0, 0, -ageDays).Unix()
	result := &ArchiveResult{CutoffUnix: cutoff}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, user_id, timestamp, user_message, ai_response, persona, metadata
		 FROM conversations WHERE timestamp < ? ORDER BY timestamp, id`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("query archivable turns: %w", err)
	}
	turns, err := scanTurns(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}
	if len(turns) == 0 {
		return result, nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create archive directory: %w", err)
	}
	name := fmt.Sprintf("conversations_archive_%s.ndjson.gz", time.Now().Format("20060102_150405"))
	path := filepath.Join(dir, name)

	if err := writeArchive(path, turns); err != nil {
		return nil, err
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE timestamp < ?`, cutoff); err != nil {
		return nil, fmt.Errorf("delete archived turns: %w", err)
	}
	if err := s.Vacuum(ctx); err != nil {
		return nil, err
	}

	result.Archived = int64(len(turns))
	result.ArchivePath = path
	s.logger.Info("archive complete", "archived", result.Archived, "path", path)
	return result, nil
}

func writeArchive(path string, turns []Turn) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create archive file: %w", err)
	}
	defer f.Close()

	zw := gzip.NewWriter(f)
	for _, t := range turns {
		line, err := json.Marshal(t)
		if err != nil {
			zw.Close()
			return fmt.Errorf("encode archived turn: %w", err)
		}
		if _, err := zw.Write(append(line, '\n')); err != nil {
			zw.Close()
			return fmt.Errorf("write archive: %w", err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finish archive: %w", err)
	}
	return f.Sync()
}
