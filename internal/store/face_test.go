package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/renderix/facegate/internal/detector"
)

// newTestStore creates a store backed by a temp database, cleaned up
// with the test.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "facegate-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	s, err := New(filepath.Join(tmpDir, "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	return s
}

func testTemplate(userKey string, embeddingValue float64) *Template {
	return &Template{
		ID:        uuid.New().String(),
		UserKey:   userKey,
		Embedding: detector.MockEmbedding(embeddingValue),
		Quality:   0.75,
	}
}

func TestFaceRepository_SaveAndGet(t *testing.T) {
	faces := newTestStore(t).Faces()

	tmpl := testTemplate("alice", 0.1)
	if err := faces.Save(tmpl); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := faces.GetByUserKey("alice")
	if err != nil {
		t.Fatalf("GetByUserKey() error = %v", err)
	}

	if got.ID != tmpl.ID {
		t.Errorf("ID = %q, want %q", got.ID, tmpl.ID)
	}
	if got.UserKey != "alice" {
		t.Errorf("UserKey = %q, want alice", got.UserKey)
	}
	if len(got.Embedding) != detector.EmbeddingDim {
		t.Fatalf("Embedding length = %d, want %d", len(got.Embedding), detector.EmbeddingDim)
	}
	for i, v := range got.Embedding {
		if v != 0.1 {
			t.Fatalf("Embedding[%d] = %v, want 0.1", i, v)
		}
	}
	if got.Quality != 0.75 {
		t.Errorf("Quality = %v, want 0.75", got.Quality)
	}
	if got.LastVerifiedAt != nil {
		t.Errorf("LastVerifiedAt = %v, want nil for fresh enrollment", got.LastVerifiedAt)
	}
	if got.VerificationCount != 0 {
		t.Errorf("VerificationCount = %d, want 0", got.VerificationCount)
	}
}

func TestFaceRepository_GetMissing(t *testing.T) {
	faces := newTestStore(t).Faces()

	_, err := faces.GetByUserKey("nobody")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByUserKey() error = %v, want ErrNotFound", err)
	}
}

func TestFaceRepository_SaveReplacesExisting(t *testing.T) {
	faces := newTestStore(t).Faces()

	if err := faces.Save(testTemplate("alice", 0.1)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := faces.RecordVerification("alice", time.Now()); err != nil {
		t.Fatalf("RecordVerification() error = %v", err)
	}

	// Re-enrollment overwrites the embedding and resets history.
	if err := faces.Save(testTemplate("alice", 0.2)); err != nil {
		t.Fatalf("Save() on existing key error = %v", err)
	}

	got, err := faces.GetByUserKey("alice")
	if err != nil {
		t.Fatalf("GetByUserKey() error = %v", err)
	}
	if got.Embedding[0] != 0.2 {
		t.Errorf("Embedding[0] = %v, want replacement value 0.2", got.Embedding[0])
	}
	if got.VerificationCount != 0 {
		t.Errorf("VerificationCount = %d, want reset to 0", got.VerificationCount)
	}
	if got.LastVerifiedAt != nil {
		t.Errorf("LastVerifiedAt = %v, want reset to nil", got.LastVerifiedAt)
	}

	all, err := faces.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 1 {
		t.Errorf("List() returned %d templates, want 1", len(all))
	}
}

func TestFaceRepository_Delete(t *testing.T) {
	faces := newTestStore(t).Faces()

	if err := faces.Save(testTemplate("alice", 0.1)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	existed, err := faces.Delete("alice")
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if !existed {
		t.Error("Delete() existed = false, want true")
	}

	existed, err = faces.Delete("alice")
	if err != nil {
		t.Fatalf("second Delete() error = %v", err)
	}
	if existed {
		t.Error("second Delete() existed = true, want false")
	}

	if _, err := faces.GetByUserKey("alice"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByUserKey() after delete error = %v, want ErrNotFound", err)
	}
}

func TestFaceRepository_RecordVerification(t *testing.T) {
	faces := newTestStore(t).Faces()

	if err := faces.Save(testTemplate("alice", 0.1)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	at := time.Now().Truncate(time.Second)
	if err := faces.RecordVerification("alice", at); err != nil {
		t.Fatalf("RecordVerification() error = %v", err)
	}
	if err := faces.RecordVerification("alice", at.Add(time.Minute)); err != nil {
		t.Fatalf("second RecordVerification() error = %v", err)
	}

	got, err := faces.GetByUserKey("alice")
	if err != nil {
		t.Fatalf("GetByUserKey() error = %v", err)
	}
	if got.VerificationCount != 2 {
		t.Errorf("VerificationCount = %d, want 2", got.VerificationCount)
	}
	if got.LastVerifiedAt == nil {
		t.Fatal("LastVerifiedAt is nil after verification")
	}

	if err := faces.RecordVerification("nobody", at); !errors.Is(err, ErrNotFound) {
		t.Errorf("RecordVerification(missing key) error = %v, want ErrNotFound", err)
	}
}

func TestFaceRepository_List(t *testing.T) {
	faces := newTestStore(t).Faces()

	if err := faces.Save(testTemplate("alice", 0.1)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := faces.Save(testTemplate("bob", 0.2)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	all, err := faces.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("List() returned %d templates, want 2", len(all))
	}
}
