package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"tripchat/internal/domain"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements domain.Store using SQLite.
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

	// Single connection for SQLite.
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
	CREATE TABLE IF NOT EXISTS messages (
		id          TEXT PRIMARY KEY,
		trip_id     TEXT NOT NULL,
		user_id     TEXT,
		user_name   TEXT,
		content     TEXT NOT NULL,
		is_ai       INTEGER NOT NULL DEFAULT 0,
		suggestions TEXT,
		created_at  DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_trip ON messages(trip_id, created_at, id);

	CREATE TABLE IF NOT EXISTS itineraries (
		trip_id    TEXT PRIMARY KEY,
		document   TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS trips (
		trip_id     TEXT PRIMARY KEY,
		destination TEXT,
		updated_at  DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS trip_codes (
		code       TEXT PRIMARY KEY,
		trip_id    TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_codes_trip ON trip_codes(trip_id);

	CREATE TABLE IF NOT EXISTS trip_memberships (
		trip_id     TEXT NOT NULL,
		user_id     TEXT NOT NULL,
		name        TEXT,
		destination TEXT,
		joined_at   DATETIME NOT NULL,
		PRIMARY KEY (trip_id, user_id)
	);
	CREATE INDEX IF NOT EXISTS idx_memberships_user ON trip_memberships(user_id, joined_at);

	CREATE TABLE IF NOT EXISTS trip_media (
		id         TEXT PRIMARY KEY,
		trip_id    TEXT NOT NULL,
		uri        TEXT NOT NULL,
		type       TEXT,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_media_trip ON trip_media(trip_id, created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) AppendMessage(ctx context.Context, msg domain.Message) (domain.Message, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	var suggestions any
	if len(msg.Suggestions) > 0 {
		data, err := json.Marshal(msg.Suggestions)
		if err != nil {
			return domain.Message{}, fmt.Errorf("marshal suggestions: %w", err)
		}
		suggestions = string(data)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, trip_id, user_id, user_name, content, is_ai, suggestions, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.TripID, msg.UserID, msg.UserName, msg.Content, msg.IsAI, suggestions, msg.CreatedAt,
	)
	if err != nil {
		return domain.Message{}, fmt.Errorf("insert message: %w", err)
	}
	return msg, nil
}

// Messages returns the last `limit` messages of a trip in chronological
// order. limit <= 0 returns everything.
func (s *SQLiteStore) Messages(ctx context.Context, tripID string, limit int) ([]domain.Message, error) {
	query := `SELECT id, trip_id, user_id, user_name, content, is_ai, suggestions, created_at
	          FROM messages WHERE trip_id = ? ORDER BY created_at DESC, id DESC`
	args := []any{tripID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []domain.Message
	for rows.Next() {
		var m domain.Message
		var userID, userName, suggestions sql.NullString
		if err := rows.Scan(&m.ID, &m.TripID, &userID, &userName, &m.Content, &m.IsAI, &suggestions, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.UserID = userID.String
		m.UserName = userName.String
		if suggestions.Valid && suggestions.String != "" {
			if err := json.Unmarshal([]byte(suggestions.String), &m.Suggestions); err != nil {
				s.logger.Warn("corrupt suggestions payload", "message", m.ID, "err", err)
			}
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Flip newest-first into chronological order.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (s *SQLiteStore) Itinerary(ctx context.Context, tripID string) (*domain.Itinerary, error) {
	var document string
	err := s.db.QueryRowContext(ctx,
		`SELECT document FROM itineraries WHERE trip_id = ?`, tripID,
	).Scan(&document)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var doc domain.Itinerary
	if err := json.Unmarshal([]byte(document), &doc); err != nil {
		return nil, fmt.Errorf("corrupt itinerary for trip %s: %w", tripID, err)
	}
	return &doc, nil
}

func (s *SQLiteStore) SetItinerary(ctx context.Context, tripID string, doc *domain.Itinerary) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal itinerary: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO itineraries (trip_id, document, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(trip_id) DO UPDATE SET document = excluded.document, updated_at = excluded.updated_at`,
		tripID, string(data), time.Now().UTC(),
	)
	return err
}

func (s *SQLiteStore) Trip(ctx context.Context, tripID string) (domain.Trip, error) {
	var trip domain.Trip
	var destination sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT trip_id, destination FROM trips WHERE trip_id = ?`, tripID,
	).Scan(&trip.ID, &destination)
	if err == sql.ErrNoRows {
		// Trips come into existence implicitly on first use.
		return domain.Trip{ID: tripID}, nil
	}
	if err != nil {
		return domain.Trip{}, err
	}
	trip.Destination = destination.String
	return trip, nil
}

func (s *SQLiteStore) SetDestination(ctx context.Context, tripID, destination string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO trips (trip_id, destination, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(trip_id) DO UPDATE SET destination = excluded.destination, updated_at = excluded.updated_at`,
		tripID, destination, time.Now().UTC(),
	)
	return err
}

// RegisterCode assigns a short join code to a trip, reusing an existing
// one when present. Codes are 4 digits; collisions retry.
func (s *SQLiteStore) RegisterCode(ctx context.Context, tripID string) (string, error) {
	var existing string
	err := s.db.QueryRowContext(ctx,
		`SELECT code FROM trip_codes WHERE trip_id = ? LIMIT 1`, tripID,
	).Scan(&existing)
	if err == nil {
		return existing, nil
	}
	if err != sql.ErrNoRows {
		return "", err
	}

	for attempt := 0; attempt < 20; attempt++ {
		code := fmt.Sprintf("%04d", rand.IntN(10000))
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO trip_codes (code, trip_id, created_at) VALUES (?, ?, ?)`,
			code, tripID, time.Now().UTC(),
		)
		if err == nil {
			return code, nil
		}
	}
	return "", fmt.Errorf("could not allocate a join code for trip %s", tripID)
}

func (s *SQLiteStore) ResolveCode(ctx context.Context, code string) (string, error) {
	var tripID string
	err := s.db.QueryRowContext(ctx,
		`SELECT trip_id FROM trip_codes WHERE code = ?`, code,
	).Scan(&tripID)
	if err == sql.ErrNoRows {
		return "", domain.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return tripID, nil
}

func (s *SQLiteStore) AddMembership(ctx context.Context, m domain.Membership) error {
	if m.JoinedAt.IsZero() {
		m.JoinedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO trip_memberships (trip_id, user_id, name, destination, joined_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(trip_id, user_id) DO UPDATE SET name = excluded.name, destination = excluded.destination`,
		m.TripID, m.UserID, m.Name, m.Destination, m.JoinedAt,
	)
	return err
}

func (s *SQLiteStore) UserTrips(ctx context.Context, userID string) ([]domain.Membership, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT trip_id, user_id, name, destination, joined_at
		 FROM trip_memberships WHERE user_id = ? ORDER BY joined_at DESC`, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trips []domain.Membership
	for rows.Next() {
		var m domain.Membership
		var name, destination sql.NullString
		if err := rows.Scan(&m.TripID, &m.UserID, &name, &destination, &m.JoinedAt); err != nil {
			return nil, err
		}
		m.Name = name.String
		m.Destination = destination.String
		trips = append(trips, m)
	}
	return trips, rows.Err()
}

func (s *SQLiteStore) AddMedia(ctx context.Context, tripID, uri, mediaType string) (domain.MediaItem, error) {
	item := domain.MediaItem{
		ID:        uuid.NewString(),
		TripID:    tripID,
		URI:       uri,
		Type:      mediaType,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO trip_media (id, trip_id, uri, type, created_at) VALUES (?, ?, ?, ?, ?)`,
		item.ID, item.TripID, item.URI, item.Type, item.CreatedAt,
	)
	if err != nil {
		return domain.MediaItem{}, err
	}
	return item, nil
}

func (s *SQLiteStore) TripMedia(ctx context.Context, tripID string) ([]domain.MediaItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, trip_id, uri, type, created_at
		 FROM trip_media WHERE trip_id = ? ORDER BY created_at, id`, tripID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.MediaItem
	for rows.Next() {
		var item domain.MediaItem
		var mediaType sql.NullString
		if err := rows.Scan(&item.ID, &item.TripID, &item.URI, &mediaType, &item.CreatedAt); err != nil {
			return nil, err
		}
		item.Type = mediaType.String
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
