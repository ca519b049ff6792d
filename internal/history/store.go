// Package history persists confirmed appointments to SQLite so the
// clinic staff can review what the bot booked.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"citabot/internal/domain"

	_ "modernc.org/sqlite"
)

const defaultListLimit = 50

// SQLiteStore implements domain.AppointmentStore using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// Set connection pool (single connection for SQLite)
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db, logger: logger}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS appointments (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		phone       TEXT NOT NULL,
		name        TEXT NOT NULL,
		specialty   TEXT,
		day_text    TEXT,
		slot_label  TEXT NOT NULL,
		slot_start  TEXT,
		request_id  TEXT NOT NULL UNIQUE,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_appointments_phone ON appointments(phone, created_at);
	CREATE INDEX IF NOT EXISTS idx_appointments_time ON appointments(created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Record inserts one confirmed booking. The request_id unique constraint
// makes a replayed confirmation a no-op instead of a duplicate row.
func (s *SQLiteStore) Record(ctx context.Context, appt domain.Appointment) error {
	if appt.CreatedAt.IsZero() {
		appt.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO appointments (phone, name, specialty, day_text, slot_label, slot_start, request_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		appt.Phone, appt.Name, appt.Specialty, appt.DayText, appt.SlotLabel, appt.SlotStart, appt.RequestID, appt.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("cannot record appointment: %w", err)
	}
	return nil
}

// ListRecent returns the newest appointments first.
func (s *SQLiteStore) ListRecent(ctx context.Context, limit int) ([]domain.Appointment, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, phone, name, specialty, day_text, slot_label, slot_start, request_id, created_at
		 FROM appointments ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("cannot list appointments: %w", err)
	}
	defer rows.Close()
	return scanAppointments(rows)
}

// ListByPhone returns the newest appointments for one phone number.
func (s *SQLiteStore) ListByPhone(ctx context.Context, phone string, limit int) ([]domain.Appointment, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, phone, name, specialty, day_text, slot_label, slot_start, request_id, created_at
		 FROM appointments WHERE phone = ? ORDER BY created_at DESC, id DESC LIMIT ?`, phone, limit)
	if err != nil {
		return nil, fmt.Errorf("cannot list appointments for %s: %w", phone, err)
	}
	defer rows.Close()
	return scanAppointments(rows)
}

func scanAppointments(rows *sql.Rows) ([]domain.Appointment, error) {
	var appts []domain.Appointment
	for rows.Next() {
		var a domain.Appointment
		if err := rows.Scan(&a.ID, &a.Phone, &a.Name, &a.Specialty, &a.DayText,
			&a.SlotLabel, &a.SlotStart, &a.RequestID, &a.CreatedAt); err != nil {
			return nil, err
		}
		appts = append(appts, a)
	}
	return appts, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
