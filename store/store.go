// Package store persists registered displays and their stored options in
// SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/harveysanders/splitflap/config"
)

// ErrNotFound is returned when a device is not in the store.
var ErrNotFound = errors.New("store: device not found")

const schemaVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS devices (
    id              TEXT PRIMARY KEY,
    topic           TEXT NOT NULL,
    command_topic   TEXT NOT NULL DEFAULT '',
    modules_per_row INTEGER NOT NULL,
    rows_per_page   INTEGER NOT NULL,
    options         TEXT NOT NULL DEFAULT '{}'
);
`

// Store is a SQLite database of devices.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path. ":memory:" gives a private
// in-memory database.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("store: creating directory: %w", err)
		}
		dsn += "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: opening %s: %w", path, err)
	}
	// Every connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: connecting to %s: %w", path, err)
	}
	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("store: creating schema: %w", err)
	}
	var version int
	err := db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&version)
	if err != nil {
		return fmt.Errorf("store: reading schema version: %w", err)
	}
	if version > schemaVersion {
		return fmt.Errorf("store: schema version %d is newer than %d", version, schemaVersion)
	}
	if version < schemaVersion {
		if _, err := db.ExecContext(ctx, `INSERT INTO schema_version (version) VALUES (?)`, schemaVersion); err != nil {
			return fmt.Errorf("store: writing schema version: %w", err)
		}
	}
	return nil
}

// SaveDevice inserts d or replaces the stored device with the same ID.
func (s *Store) SaveDevice(ctx context.Context, d config.Device) error {
	opts, err := json.Marshal(d.Options)
	if err != nil {
		return fmt.Errorf("store: encoding options of %q: %w", d.ID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO devices (id, topic, command_topic, modules_per_row, rows_per_page, options)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			topic = excluded.topic,
			command_topic = excluded.command_topic,
			modules_per_row = excluded.modules_per_row,
			rows_per_page = excluded.rows_per_page,
			options = excluded.options`,
		d.ID, d.Topic, d.CommandTopic, d.ModulesPerRow, d.RowsPerPage, string(opts))
	if err != nil {
		return fmt.Errorf("store: saving %q: %w", d.ID, err)
	}
	return nil
}

// DeleteDevice removes device id. Deleting an unknown device is not an error.
func (s *Store) DeleteDevice(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM devices WHERE id = ?`, id); err != nil {
		return fmt.Errorf("store: deleting %q: %w", id, err)
	}
	return nil
}

// SetOptions replaces the stored options of device id.
func (s *Store) SetOptions(ctx context.Context, id string, ov config.Overrides) error {
	opts, err := json.Marshal(ov)
	if err != nil {
		return fmt.Errorf("store: encoding options of %q: %w", id, err)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE devices SET options = ? WHERE id = ?`, string(opts), id)
	if err != nil {
		return fmt.Errorf("store: updating options of %q: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDevice(row scanner) (config.Device, error) {
	var (
		d    config.Device
		opts string
	)
	if err := row.Scan(&d.ID, &d.Topic, &d.CommandTopic, &d.ModulesPerRow, &d.RowsPerPage, &opts); err != nil {
		return d, err
	}
	if err := json.Unmarshal([]byte(opts), &d.Options); err != nil {
		return d, fmt.Errorf("store: decoding options of %q: %w", d.ID, err)
	}
	return d, nil
}

const selectDevices = `SELECT id, topic, command_topic, modules_per_row, rows_per_page, options FROM devices`

// Device returns the stored device id.
func (s *Store) Device(ctx context.Context, id string) (config.Device, error) {
	d, err := scanDevice(s.db.QueryRowContext(ctx, selectDevices+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return d, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return d, err
}

// Devices returns every stored device ordered by ID.
func (s *Store) Devices(ctx context.Context) ([]config.Device, error) {
	rows, err := s.db.QueryContext(ctx, selectDevices+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("store: listing devices: %w", err)
	}
	defer rows.Close()

	var devices []config.Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		devices = append(devices, d)
	}
	return devices, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
