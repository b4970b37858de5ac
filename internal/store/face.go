package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/renderix/facegate/internal/detector"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// Template represents an enrolled face stored in the database.
type Template struct {
	ID                string
	UserKey           string
	Embedding         detector.Embedding
	Quality           float64
	CreatedAt         time.Time
	LastVerifiedAt    *time.Time
	VerificationCount int
}

// FaceRepository provides CRUD operations for face templates.
type FaceRepository struct {
	db *sql.DB
}

// Faces returns the face template repository for this store.
func (s *Store) Faces() *FaceRepository {
	return &FaceRepository{db: s.db}
}

// Save inserts a face template, replacing any existing template for
// the same user key. Re-enrollment resets the verification history.
func (r *FaceRepository) Save(t *Template) error {
	encoded, err := json.Marshal(t.Embedding)
	if err != nil {
		return fmt.Errorf("failed to encode embedding: %w", err)
	}

	t.CreatedAt = time.Now()

	_, err = r.db.Exec(
		`INSERT INTO face_templates (id, user_key, embedding, quality, created_at, last_verified_at, verification_count)
		 VALUES (?, ?, ?, ?, ?, NULL, 0)
		 ON CONFLICT(user_key) DO UPDATE SET
			id = excluded.id,
			embedding = excluded.embedding,
			quality = excluded.quality,
			created_at = excluded.created_at,
			last_verified_at = NULL,
			verification_count = 0`,
		t.ID, t.UserKey, string(encoded), t.Quality, t.CreatedAt,
	)
	if err != nil {
		return err
	}

	return nil
}

// GetByUserKey retrieves the face template enrolled for a user key.
func (r *FaceRepository) GetByUserKey(userKey string) (*Template, error) {
	t := &Template{}
	var encoded string
	var lastVerified sql.NullTime

	err := r.db.QueryRow(
		`SELECT id, user_key, embedding, quality, created_at, last_verified_at, verification_count
		 FROM face_templates WHERE user_key = ?`,
		userKey,
	).Scan(&t.ID, &t.UserKey, &encoded, &t.Quality, &t.CreatedAt, &lastVerified, &t.VerificationCount)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if err := json.Unmarshal([]byte(encoded), &t.Embedding); err != nil {
		return nil, fmt.Errorf("failed to decode embedding for %q: %w", userKey, err)
	}

	if lastVerified.Valid {
		t.LastVerifiedAt = &lastVerified.Time
	}

	return t, nil
}

// List retrieves all face templates, newest enrollment first.
func (r *FaceRepository) List() ([]*Template, error) {
	rows, err := r.db.Query(
		`SELECT id, user_key, embedding, quality, created_at, last_verified_at, verification_count
		 FROM face_templates ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var templates []*Template
	for rows.Next() {
		t := &Template{}
		var encoded string
		var lastVerified sql.NullTime

		err := rows.Scan(&t.ID, &t.UserKey, &encoded, &t.Quality, &t.CreatedAt, &lastVerified, &t.VerificationCount)
		if err != nil {
			return nil, err
		}

		if err := json.Unmarshal([]byte(encoded), &t.Embedding); err != nil {
			return nil, fmt.Errorf("failed to decode embedding for %q: %w", t.UserKey, err)
		}
		if lastVerified.Valid {
			t.LastVerifiedAt = &lastVerified.Time
		}

		templates = append(templates, t)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return templates, nil
}

// Delete removes the face template for a user key. It reports whether
// a template existed.
func (r *FaceRepository) Delete(userKey string) (bool, error) {
	result, err := r.db.Exec(`DELETE FROM face_templates WHERE user_key = ?`, userKey)
	if err != nil {
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rowsAffected > 0, nil
}

// RecordVerification stamps a successful verification for a user key.
func (r *FaceRepository) RecordVerification(userKey string, at time.Time) error {
	result, err := r.db.Exec(
		`UPDATE face_templates
		 SET last_verified_at = ?, verification_count = verification_count + 1
		 WHERE user_key = ?`,
		at, userKey,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}
