package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quest-forge/quest-engine/internal/models"
)

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// PostgresConfig holds PostgreSQL connection configuration.
type PostgresConfig struct {
	DSN          string
	MaxOpenConns int32
	MaxIdleConns int32
	MaxLifetime  time.Duration
}

// NewPostgresRepository creates a new PostgreSQL repository.
func NewPostgresRepository(ctx context.Context, cfg PostgresConfig) (*PostgresRepository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = cfg.MaxOpenConns
	} else {
		poolConfig.MaxConns = 10
	}
	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = cfg.MaxIdleConns
	}
	if cfg.MaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxLifetime
	} else {
		poolConfig.MaxConnLifetime = 30 * time.Minute
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{pool: pool}, nil
}

// Ping checks database connectivity.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close closes the connection pool.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

const entryColumns = `participant_id, score, completed_lab_ids, lab_times, lab_starts, last_active, hints_used, solutions_revealed`

// GetEntry retrieves one participant's entry.
func (r *PostgresRepository) GetEntry(ctx context.Context, participantID string) (*models.LeaderboardEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM leaderboard_entries WHERE participant_id = $1`

	entry, err := scanEntry(r.pool.QueryRow(ctx, query, participantID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get leaderboard entry: %w", err)
	}
	return entry, nil
}

// ListEntries returns all entries in a stable order.
func (r *PostgresRepository) ListEntries(ctx context.Context) ([]models.LeaderboardEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM leaderboard_entries ORDER BY participant_id`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list leaderboard entries: %w", err)
	}
	defer rows.Close()

	var entries []models.LeaderboardEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard entry: %w", err)
		}
		entries = append(entries, *entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating leaderboard entries: %w", err)
	}
	return entries, nil
}

// AddPoints applies a score delta atomically, creating the entry when
// missing. The score never drops below zero.
func (r *PostgresRepository) AddPoints(ctx context.Context, participantID string, points int, hint, solution bool, at time.Time) error {
	query := `
		INSERT INTO leaderboard_entries (participant_id, score, last_active, hints_used, solutions_revealed)
		VALUES ($1, GREATEST($2, 0), $3, $4, $5)
		ON CONFLICT (participant_id) DO UPDATE
		SET score = GREATEST(leaderboard_entries.score + $2, 0),
		    last_active = $3,
		    hints_used = leaderboard_entries.hints_used + $4,
		    solutions_revealed = leaderboard_entries.solutions_revealed + $5
	`

	_, err := r.pool.Exec(ctx, query, participantID, points, at, boolToInt(hint), boolToInt(solution))
	if err != nil {
		return fmt.Errorf("failed to add points: %w", err)
	}
	return nil
}

// StartLab records the lab start timestamp for the participant.
func (r *PostgresRepository) StartLab(ctx context.Context, participantID, labID string, at time.Time) error {
	entry, err := r.getOrNew(ctx, participantID)
	if err != nil {
		return err
	}

	if _, started := entry.LabStarts[labID]; !started {
		entry.LabStarts[labID] = at.UnixMilli()
	}
	entry.LastActive = at
	return r.upsertEntry(ctx, entry)
}

// CompleteLab adds the lab to the completed set, accumulates its elapsed
// time, and keeps the higher of the stored and reported scores.
func (r *PostgresRepository) CompleteLab(ctx context.Context, participantID, labID string, score int, elapsedMs int64, at time.Time) error {
	entry, err := r.getOrNew(ctx, participantID)
	if err != nil {
		return err
	}

	if !entry.HasCompletedLab(labID) {
		entry.CompletedLabIDs = append(entry.CompletedLabIDs, labID)
	}
	if elapsedMs == 0 {
		if start, ok := entry.LabStarts[labID]; ok {
			elapsedMs = at.UnixMilli() - start
		}
	}
	if elapsedMs > 0 {
		entry.LabTimes[labID] += elapsedMs
	}
	if score > entry.Score {
		entry.Score = score
	}
	entry.LastActive = at
	return r.upsertEntry(ctx, entry)
}

// Heartbeat touches the last-active timestamp.
func (r *PostgresRepository) Heartbeat(ctx context.Context, participantID string, at time.Time) error {
	query := `
		INSERT INTO leaderboard_entries (participant_id, last_active)
		VALUES ($1, $2)
		ON CONFLICT (participant_id) DO UPDATE SET last_active = $2
	`

	_, err := r.pool.Exec(ctx, query, participantID, at)
	if err != nil {
		return fmt.Errorf("failed to record heartbeat: %w", err)
	}
	return nil
}

// ResetEntry zeroes exactly this participant's row. Other rows are never
// touched.
func (r *PostgresRepository) ResetEntry(ctx context.Context, participantID string, at time.Time) error {
	entry := models.NewLeaderboardEntry(participantID)
	entry.LastActive = at
	return r.upsertEntry(ctx, entry)
}

func (r *PostgresRepository) getOrNew(ctx context.Context, participantID string) (*models.LeaderboardEntry, error) {
	entry, err := r.GetEntry(ctx, participantID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		entry = models.NewLeaderboardEntry(participantID)
	}
	return entry, nil
}

func (r *PostgresRepository) upsertEntry(ctx context.Context, entry *models.LeaderboardEntry) error {
	labsJSON, err := json.Marshal(entry.CompletedLabIDs)
	if err != nil {
		return fmt.Errorf("failed to marshal completed labs: %w", err)
	}
	timesJSON, err := json.Marshal(entry.LabTimes)
	if err != nil {
		return fmt.Errorf("failed to marshal lab times: %w", err)
	}
	startsJSON, err := json.Marshal(entry.LabStarts)
	if err != nil {
		return fmt.Errorf("failed to marshal lab starts: %w", err)
	}

	query := `
		INSERT INTO leaderboard_entries (` + entryColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (participant_id) DO UPDATE
		SET score = EXCLUDED.score,
		    completed_lab_ids = EXCLUDED.completed_lab_ids,
		    lab_times = EXCLUDED.lab_times,
		    lab_starts = EXCLUDED.lab_starts,
		    last_active = EXCLUDED.last_active,
		    hints_used = EXCLUDED.hints_used,
		    solutions_revealed = EXCLUDED.solutions_revealed
	`

	_, err = r.pool.Exec(ctx, query,
		entry.ParticipantID,
		entry.Score,
		labsJSON,
		timesJSON,
		startsJSON,
		entry.LastActive,
		entry.HintsUsed,
		entry.SolutionsRevealed,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert leaderboard entry: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*models.LeaderboardEntry, error) {
	var entry models.LeaderboardEntry
	var labsJSON, timesJSON, startsJSON []byte

	err := row.Scan(
		&entry.ParticipantID,
		&entry.Score,
		&labsJSON,
		&timesJSON,
		&startsJSON,
		&entry.LastActive,
		&entry.HintsUsed,
		&entry.SolutionsRevealed,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(labsJSON, &entry.CompletedLabIDs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal completed labs: %w", err)
	}
	if err := json.Unmarshal(timesJSON, &entry.LabTimes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal lab times: %w", err)
	}
	if err := json.Unmarshal(startsJSON, &entry.LabStarts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal lab starts: %w", err)
	}
	return &entry, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
