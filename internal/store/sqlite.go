package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/cockroachdb/errors"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/ppiankov/lifespan/internal/date"
	"github.com/ppiankov/lifespan/internal/logger"
	"github.com/ppiankov/lifespan/internal/record"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS persons (
	handle          TEXT PRIMARY KEY,
	given           TEXT NOT NULL DEFAULT '',
	surname         TEXT NOT NULL DEFAULT '',
	birth           TEXT,
	death           TEXT,
	events          TEXT NOT NULL DEFAULT '[]',
	parent_families TEXT NOT NULL DEFAULT '[]',
	families        TEXT NOT NULL DEFAULT '[]'
);
CREATE TABLE IF NOT EXISTS families (
	handle   TEXT PRIMARY KEY,
	father   TEXT NOT NULL DEFAULT '',
	mother   TEXT NOT NULL DEFAULT '',
	children TEXT NOT NULL DEFAULT '[]',
	events   TEXT NOT NULL DEFAULT '[]'
);
CREATE TABLE IF NOT EXISTS events (
	handle      TEXT PRIMARY KEY,
	type        TEXT NOT NULL,
	date        TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT ''
);
`

// SQLite serves records from a SQLite database. Handle lists are stored as
// JSON arrays and dates in their text form.
type SQLite struct {
	db  *sql.DB
	log *zap.SugaredLogger
}

// OpenSQLite opens (creating if needed) the database at path
func OpenSQLite(ctx context.Context, path string, log *zap.SugaredLogger) (*SQLite, error) {
	log = logger.Or(log)
	log.Debugw("Opening database", logger.FieldSource, path)

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	// Each connection to :memory: is a separate database
	if path == ":memory:" || strings.Contains(path, "mode=memory") {
		db.SetMaxOpenConns(1)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, errors.Wrapf(err, "apply %q", pragma)
		}
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create schema")
	}

	return &SQLite{db: db, log: log}, nil
}

// Close closes the database
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) Person(ctx context.Context, handle string) (*record.Person, error) {
	var (
		p                             = record.Person{Handle: handle}
		birth, death                  sql.NullString
		events, parents, familiesJSON string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT given, surname, birth, death, events, parent_families, families FROM persons WHERE handle = ?`,
		handle,
	).Scan(&p.Name.Given, &p.Name.Surname, &birth, &death, &events, &parents, &familiesJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, record.NotFound("person", handle)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "query person %s", handle)
	}

	if p.Birth, err = decodeRef(birth); err != nil {
		return nil, errors.Wrapf(err, "decode birth of %s", handle)
	}
	if p.Death, err = decodeRef(death); err != nil {
		return nil, errors.Wrapf(err, "decode death of %s", handle)
	}
	if err := decodeJSON(events, &p.Events); err != nil {
		return nil, errors.Wrapf(err, "decode events of %s", handle)
	}
	if err := decodeJSON(parents, &p.ParentFamilies); err != nil {
		return nil, errors.Wrapf(err, "decode parent families of %s", handle)
	}
	if err := decodeJSON(familiesJSON, &p.Families); err != nil {
		return nil, errors.Wrapf(err, "decode families of %s", handle)
	}
	return &p, nil
}

func (s *SQLite) Family(ctx context.Context, handle string) (*record.Family, error) {
	f := record.Family{Handle: handle}
	var children, events string
	err := s.db.QueryRowContext(ctx,
		`SELECT father, mother, children, events FROM families WHERE handle = ?`,
		handle,
	).Scan(&f.Father, &f.Mother, &children, &events)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, record.NotFound("family", handle)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "query family %s", handle)
	}
	if err := decodeJSON(children, &f.Children); err != nil {
		return nil, errors.Wrapf(err, "decode children of %s", handle)
	}
	if err := decodeJSON(events, &f.Events); err != nil {
		return nil, errors.Wrapf(err, "decode events of %s", handle)
	}
	return &f, nil
}

func (s *SQLite) Event(ctx context.Context, handle string) (*record.Event, error) {
	ev := record.Event{Handle: handle}
	var typ, when string
	err := s.db.QueryRowContext(ctx,
		`SELECT type, date, description FROM events WHERE handle = ?`,
		handle,
	).Scan(&typ, &when, &ev.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, record.NotFound("event", handle)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "query event %s", handle)
	}
	ev.Type = record.EventType(typ).Normalize()
	if ev.Date, err = date.Parse(when); err != nil {
		// An unreadable date is no date
		s.log.Debugw("Unparseable event date", logger.FieldHandle, handle, "date", when)
		ev.Date = date.Date{}
	}
	return &ev, nil
}

// PersonHandles implements record.Lister
func (s *SQLite) PersonHandles(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT handle FROM persons ORDER BY handle`)
	if err != nil {
		return nil, errors.Wrap(err, "list persons")
	}
	defer rows.Close()

	var handles []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, errors.Wrap(err, "scan person handle")
		}
		handles = append(handles, h)
	}
	return handles, rows.Err()
}

// Import writes every record of tree in one transaction, replacing rows
// with the same handle
func (s *SQLite) Import(ctx context.Context, tree Tree) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin import")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for i := range tree.Persons {
		p := &tree.Persons[i]
		_, err = tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO persons (handle, given, surname, birth, death, events, parent_families, families)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			p.Handle, p.Name.Given, p.Name.Surname,
			encodeRef(p.Birth), encodeRef(p.Death),
			encodeJSON(p.Events), encodeJSON(p.ParentFamilies), encodeJSON(p.Families))
		if err != nil {
			return errors.Wrapf(err, "insert person %s", p.Handle)
		}
	}
	for i := range tree.Families {
		f := &tree.Families[i]
		_, err = tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO families (handle, father, mother, children, events) VALUES (?, ?, ?, ?, ?)`,
			f.Handle, f.Father, f.Mother, encodeJSON(f.Children), encodeJSON(f.Events))
		if err != nil {
			return errors.Wrapf(err, "insert family %s", f.Handle)
		}
	}
	for i := range tree.Events {
		ev := &tree.Events[i]
		_, err = tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO events (handle, type, date, description) VALUES (?, ?, ?, ?)`,
			ev.Handle, string(ev.Type.Normalize()), ev.Date.String(), ev.Description)
		if err != nil {
			return errors.Wrapf(err, "insert event %s", ev.Handle)
		}
	}

	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "commit import")
	}
	s.log.Infow("Imported tree",
		logger.FieldCount, len(tree.Persons),
		"families", len(tree.Families),
		"events", len(tree.Events))
	return nil
}

func encodeRef(ref *record.EventRef) sql.NullString {
	if ref == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: encodeJSON(ref), Valid: true}
}

func decodeRef(s sql.NullString) (*record.EventRef, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	var ref record.EventRef
	if err := json.Unmarshal([]byte(s.String), &ref); err != nil {
		return nil, err
	}
	return &ref, nil
}

func encodeJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil || string(data) == "null" {
		return "[]"
	}
	return string(data)
}

func decodeJSON[T any](s string, out *[]T) error {
	if s == "" {
		return nil
	}
	var v []T
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return err
	}
	if len(v) > 0 {
		*out = v
	}
	return nil
}
