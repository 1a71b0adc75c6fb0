package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/maugonzalezv/OS-Scheduler-ClientServer/pkg/model"

	_ "modernc.org/sqlite"
)

// timeFormat has a fixed-width fraction so stored timestamps sort as text.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and returns a Store.
// Use ":memory:" for an in-memory database (useful in tests).
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	if dbPath == ":memory:" {
		// Every pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma busy_timeout: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		logger: logger.With("component", "store"),
	}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate creates all required tables and indexes.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	s.logger.Debug("sql", "op", "migrate")
	return migrate(ctx, s.db)
}

// --- Batches ---

func (s *SQLiteStore) RecordBatch(ctx context.Context, res *model.BatchResult) error {
	s.logger.Debug("sql", "op", "insert", "table", "batches", "id", res.BatchID)

	filesJSON, err := json.Marshal(res.Files)
	if err != nil {
		return fmt.Errorf("marshal files: %w", err)
	}
	resultsJSON, err := json.Marshal(res.Results)
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO batches (id, session_id, event, mode, worker_count, files, status, message, results, delivered, duration_ns, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.BatchID, res.SessionID, res.Event, string(res.Config.Mode), res.Config.WorkerCount,
		string(filesJSON), string(res.Status), res.Message, string(resultsJSON),
		boolToInt(res.Delivered), int64(res.Duration), res.CreatedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("insert batch %s: %w", res.BatchID, err)
	}
	return nil
}

const batchColumns = `id, session_id, event, mode, worker_count, files, status, message, results, delivered, duration_ns, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBatch(row rowScanner) (*model.BatchResult, error) {
	var res model.BatchResult
	var mode, status, filesJSON, resultsJSON, createdAt string
	var delivered int
	var duration int64

	if err := row.Scan(&res.BatchID, &res.SessionID, &res.Event, &mode, &res.Config.WorkerCount,
		&filesJSON, &status, &res.Message, &resultsJSON, &delivered, &duration, &createdAt); err != nil {
		return nil, err
	}

	res.Config.Mode = model.Mode(mode)
	res.Status = model.BatchStatus(status)
	res.Delivered = delivered != 0
	res.Duration = time.Duration(duration)
	if err := json.Unmarshal([]byte(filesJSON), &res.Files); err != nil {
		return nil, fmt.Errorf("unmarshal files: %w", err)
	}
	if err := json.Unmarshal([]byte(resultsJSON), &res.Results); err != nil {
		return nil, fmt.Errorf("unmarshal results: %w", err)
	}
	res.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &res, nil
}

func (s *SQLiteStore) GetBatch(ctx context.Context, id string) (*model.BatchResult, error) {
	s.logger.Debug("sql", "op", "select", "table", "batches", "id", id)

	res, err := scanBatch(s.db.QueryRowContext(ctx,
		`SELECT `+batchColumns+` FROM batches WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return res, err
}

func (s *SQLiteStore) ListBatches(ctx context.Context, opts model.ListOptions) ([]*model.BatchResult, int, error) {
	s.logger.Debug("sql", "op", "list", "table", "batches", "limit", opts.Limit, "offset", opts.Offset)
	opts.Clamp()

	// Build WHERE clause dynamically based on filters.
	var whereClauses []string
	var countArgs []any
	if opts.Event != "" {
		whereClauses = append(whereClauses, "event = ?")
		countArgs = append(countArgs, opts.Event)
	}
	if opts.Status != "" {
		whereClauses = append(whereClauses, "status = ?")
		countArgs = append(countArgs, opts.Status)
	}
	whereSQL := ""
	if len(whereClauses) > 0 {
		whereSQL = " WHERE " + strings.Join(whereClauses, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM batches`+whereSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	listArgs := append(countArgs, opts.Limit, opts.Offset)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+batchColumns+` FROM batches`+whereSQL+` ORDER BY created_at DESC LIMIT ? OFFSET ?`, listArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*model.BatchResult
	for rows.Next() {
		res, err := scanBatch(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, res)
	}
	return out, total, rows.Err()
}

// --- Simulations ---

func (s *SQLiteStore) RecordSimulation(ctx context.Context, run *model.SimulationRun) error {
	s.logger.Debug("sql", "op", "insert", "table", "simulations", "id", run.ID)

	procsJSON, err := json.Marshal(run.Processes)
	if err != nil {
		return fmt.Errorf("marshal processes: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO simulations (id, policy, quantum, workers, processes, average_waiting, average_turnaround, makespan, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Policy, run.Quantum, run.Workers, string(procsJSON),
		run.AverageWaiting, run.AverageTurnaround, run.Makespan, run.CreatedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("insert simulation %s: %w", run.ID, err)
	}
	return nil
}

const simulationColumns = `id, policy, quantum, workers, processes, average_waiting, average_turnaround, makespan, created_at`

func scanSimulation(row rowScanner) (*model.SimulationRun, error) {
	var run model.SimulationRun
	var procsJSON, createdAt string
	if err := row.Scan(&run.ID, &run.Policy, &run.Quantum, &run.Workers, &procsJSON,
		&run.AverageWaiting, &run.AverageTurnaround, &run.Makespan, &createdAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(procsJSON), &run.Processes); err != nil {
		return nil, fmt.Errorf("unmarshal processes: %w", err)
	}
	run.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &run, nil
}

func (s *SQLiteStore) GetSimulation(ctx context.Context, id string) (*model.SimulationRun, error) {
	s.logger.Debug("sql", "op", "select", "table", "simulations", "id", id)

	run, err := scanSimulation(s.db.QueryRowContext(ctx,
		`SELECT `+simulationColumns+` FROM simulations WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return run, err
}

func (s *SQLiteStore) ListSimulations(ctx context.Context, opts model.ListOptions) ([]*model.SimulationRun, int, error) {
	s.logger.Debug("sql", "op", "list", "table", "simulations", "limit", opts.Limit, "offset", opts.Offset)
	opts.Clamp()

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM simulations`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+simulationColumns+` FROM simulations ORDER BY created_at DESC LIMIT ? OFFSET ?`, opts.Limit, opts.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*model.SimulationRun
	for rows.Next() {
		run, err := scanSimulation(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, run)
	}
	return out, total, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
