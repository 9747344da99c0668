// Package storage persists per-phase campaign payload blobs in SQLite.
// Writes are fire-and-forget from the orchestration driver's view:
// failures are logged and reported but never retried by the core.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"adcraft/internal/logging"
)

// ErrNoBlob is returned when no blob exists for a (campaign, phase)
// pair.
var ErrNoBlob = errors.New("no phase blob stored")

// PhaseStore persists phase payload blobs keyed by campaign id and
// phase name. Writing the same pair again replaces the blob.
type PhaseStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// NewPhaseStore opens (or creates) the SQLite database at path.
func NewPhaseStore(path string) (*PhaseStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &PhaseStore{db: db, dbPath: path}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// initialize creates the required table.
func (s *PhaseStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS phase_blobs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		campaign_id TEXT NOT NULL,
		phase TEXT NOT NULL,
		blob TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(campaign_id, phase)
	);
	CREATE INDEX IF NOT EXISTS idx_phase_blobs_campaign ON phase_blobs(campaign_id);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create phase_blobs table: %w", err)
	}
	return nil
}

// WritePhaseBlob stores (or replaces) the blob for a campaign phase.
func (s *PhaseStore) WritePhaseBlob(ctx context.Context, campaignID, phase string, blob []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO phase_blobs (campaign_id, phase, blob, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(campaign_id, phase)
		DO UPDATE SET blob = excluded.blob, updated_at = CURRENT_TIMESTAMP`,
		campaignID, phase, string(blob))
	if err != nil {
		return fmt.Errorf("failed to write phase blob %s/%s: %w", campaignID, phase, err)
	}

	logging.Get(logging.CategoryStorage).Debug("Wrote phase blob %s/%s (%d bytes)", campaignID, phase, len(blob))
	return nil
}

// ReadPhaseBlob returns the stored blob for a campaign phase, or
// ErrNoBlob.
func (s *PhaseStore) ReadPhaseBlob(ctx context.Context, campaignID, phase string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var blob string
	err := s.db.QueryRowContext(ctx,
		`SELECT blob FROM phase_blobs WHERE campaign_id = ? AND phase = ?`,
		campaignID, phase).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoBlob
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read phase blob %s/%s: %w", campaignID, phase, err)
	}
	return []byte(blob), nil
}

// CampaignSummary is the persisted footprint of a campaign: which
// phases have blobs and when the most recent one was written.
type CampaignSummary struct {
	CampaignID string    `json:"campaign_id"`
	Phases     []string  `json:"phases"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Summaries lists every campaign with stored phase blobs, most
// recently written first. Phases appear in write order.
func (s *PhaseStore) Summaries(ctx context.Context) ([]CampaignSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT campaign_id, phase, updated_at
		FROM phase_blobs ORDER BY campaign_id, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list phase blobs: %w", err)
	}
	defer rows.Close()

	index := make(map[string]int)
	var out []CampaignSummary
	for rows.Next() {
		var id, phase, stamp string
		if err := rows.Scan(&id, &phase, &stamp); err != nil {
			return nil, fmt.Errorf("failed to scan phase blob row: %w", err)
		}
		i, ok := index[id]
		if !ok {
			i = len(out)
			index[id] = i
			out = append(out, CampaignSummary{CampaignID: id})
		}
		out[i].Phases = append(out[i].Phases, phase)
		// SQLite CURRENT_TIMESTAMP format, UTC.
		if t, perr := time.Parse("2006-01-02 15:04:05", stamp); perr == nil && t.After(out[i].UpdatedAt) {
			out[i].UpdatedAt = t
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list phase blobs: %w", err)
	}

	sort.SliceStable(out, func(a, b int) bool {
		return out[a].UpdatedAt.After(out[b].UpdatedAt)
	})
	return out, nil
}

// DeleteCampaign removes every blob for a campaign. Returns the number
// of phases removed.
func (s *PhaseStore) DeleteCampaign(ctx context.Context, campaignID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM phase_blobs WHERE campaign_id = ?`, campaignID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete blobs for campaign %s: %w", campaignID, err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Clear removes every stored blob. Used for test isolation.
func (s *PhaseStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM phase_blobs`); err != nil {
		return fmt.Errorf("failed to clear phase blobs: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *PhaseStore) Close() error {
	return s.db.Close()
}
