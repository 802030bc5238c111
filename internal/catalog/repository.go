package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-it600/internal/it600"
)

// Entry is one catalogued device.
type Entry struct {
	ID           string    `json:"id"`
	Kind         string    `json:"kind"`
	Name         string    `json:"name"`
	Model        string    `json:"model"`
	Manufacturer string    `json:"manufacturer"`
	SWVersion    string    `json:"sw_version,omitempty"`
	Available    bool      `json:"available"`
	FirstSeen    time.Time `json:"first_seen"`
	LastSeen     time.Time `json:"last_seen"`
}

// EntryFromDevice builds an entry for a freshly polled snapshot.
func EntryFromDevice(d it600.Device, seen time.Time) Entry {
	info := d.Info()
	return Entry{
		ID:           info.UniqueID,
		Kind:         string(d.Kind()),
		Name:         info.Name,
		Model:        info.Model,
		Manufacturer: info.Manufacturer,
		SWVersion:    info.SWVersion,
		Available:    info.Available,
		FirstSeen:    seen,
		LastSeen:     seen,
	}
}

// Repository stores catalog entries.
type Repository interface {
	// Upsert inserts e or refreshes the existing row. FirstSeen of an
	// existing row is never changed.
	Upsert(ctx context.Context, e Entry) error

	// Get returns the entry for kind and id, or ErrNotFound.
	Get(ctx context.Context, kind, id string) (Entry, error)

	// List returns every entry ordered by kind then id.
	List(ctx context.Context) ([]Entry, error)

	// ListByKind returns entries of one kind ordered by id.
	ListByKind(ctx context.Context, kind string) ([]Entry, error)

	// Delete removes an entry, or returns ErrNotFound.
	Delete(ctx context.Context, kind, id string) error
}

// SQLiteRepository implements Repository on the device_catalog table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository wraps an open, migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const selectColumns = `SELECT id, kind, name, model, manufacturer, sw_version, available, first_seen, last_seen
	FROM device_catalog`

// Upsert inserts or refreshes an entry.
func (r *SQLiteRepository) Upsert(ctx context.Context, e Entry) error {
	if e.ID == "" || e.Kind == "" {
		return fmt.Errorf("%w: id and kind are required", ErrInvalidEntry)
	}
	if e.LastSeen.IsZero() {
		e.LastSeen = time.Now()
	}
	if e.FirstSeen.IsZero() {
		e.FirstSeen = e.LastSeen
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO device_catalog
			(id, kind, name, model, manufacturer, sw_version, available, first_seen, last_seen)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (kind, id) DO UPDATE SET
			name = excluded.name,
			model = excluded.model,
			manufacturer = excluded.manufacturer,
			sw_version = excluded.sw_version,
			available = excluded.available,
			last_seen = excluded.last_seen`,
		e.ID, e.Kind, e.Name, e.Model, e.Manufacturer, e.SWVersion, boolToInt(e.Available),
		formatTime(e.FirstSeen), formatTime(e.LastSeen),
	)
	if err != nil {
		return fmt.Errorf("upserting catalog entry %s/%s: %w", e.Kind, e.ID, err)
	}
	return nil
}

// Get returns one entry.
func (r *SQLiteRepository) Get(ctx context.Context, kind, id string) (Entry, error) {
	row := r.db.QueryRowContext(ctx, selectColumns+` WHERE kind = ? AND id = ?`, kind, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("getting catalog entry %s/%s: %w", kind, id, err)
	}
	return e, nil
}

// List returns all entries.
func (r *SQLiteRepository) List(ctx context.Context) ([]Entry, error) {
	return r.query(ctx, selectColumns+` ORDER BY kind, id`)
}

// ListByKind returns entries of one kind.
func (r *SQLiteRepository) ListByKind(ctx context.Context, kind string) ([]Entry, error) {
	return r.query(ctx, selectColumns+` WHERE kind = ? ORDER BY id`, kind)
}

// Delete removes one entry.
func (r *SQLiteRepository) Delete(ctx context.Context, kind, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM device_catalog WHERE kind = ? AND id = ?`, kind, id)
	if err != nil {
		return fmt.Errorf("deleting catalog entry %s/%s: %w", kind, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting catalog entry %s/%s: %w", kind, id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) query(ctx context.Context, query string, args ...any) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying catalog: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning catalog row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating catalog: %w", err)
	}
	return entries, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(s rowScanner) (Entry, error) {
	var (
		e                   Entry
		available           int
		firstSeen, lastSeen string
	)
	if err := s.Scan(&e.ID, &e.Kind, &e.Name, &e.Model, &e.Manufacturer, &e.SWVersion,
		&available, &firstSeen, &lastSeen); err != nil {
		return Entry{}, err
	}
	e.Available = available != 0
	e.FirstSeen, _ = time.Parse(time.RFC3339Nano, firstSeen) //nolint:errcheck // written by us
	e.LastSeen, _ = time.Parse(time.RFC3339Nano, lastSeen)   //nolint:errcheck // written by us
	return e, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
