package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/aarush2807/aarushpathuri-dev/internal/kv"
)

func newTestStore(t *testing.T) kv.Store {
	t.Helper()
	dsn := fmt.Sprintf("file:commentsvc_%s?mode=memory&cache=shared", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	s, err := kv.NewWithDB(db)
	if err != nil {
		t.Fatalf("init store: %v", err)
	}
	return s
}

// failingStore simulates an unavailable backing store.
type failingStore struct {
	getErr error
	setErr error
}

func (f failingStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, f.getErr
}
func (f failingStore) Set(context.Context, string, []byte) error { return f.setErr }

func TestList_UnknownPostIsEmpty(t *testing.T) {
	svc := NewCommentService(newTestStore(t))

	got, err := svc.List(context.Background(), "never-written")
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty log, got %d comments", len(got))
	}
}

func TestList_EmptyPostID(t *testing.T) {
	svc := NewCommentService(newTestStore(t))

	if _, err := svc.List(context.Background(), "   "); !errors.Is(err, ErrEmptyPostID) {
		t.Fatalf("expected ErrEmptyPostID, got %v", err)
	}
}

func TestAppend_Validation(t *testing.T) {
	store := newTestStore(t)
	svc := NewCommentService(store)
	ctx := context.Background()

	tests := []struct {
		name    string
		postID  string
		text    string
		wantErr error
	}{
		{"empty post id", "", "hi", ErrEmptyPostID},
		{"blank post id", "  ", "hi", ErrEmptyPostID},
		{"empty text", "p1", "", ErrEmptyText},
		{"whitespace text", "p1", "   ", ErrEmptyText},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Append(ctx, tc.postID, tc.text, "fpA"); !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}

	// No persisted change from any of the rejected appends.
	for _, key := range []string{"comments:p1", "anon-users:p1"} {
		if _, found, err := store.Get(ctx, key); err != nil || found {
			t.Fatalf("validation failure persisted state under %s (found=%v err=%v)", key, found, err)
		}
	}
}

func TestAppend_TrimsTextAndAssignsPseudonym(t *testing.T) {
	svc := NewCommentService(newTestStore(t))

	c, err := svc.Append(context.Background(), "p1", "  nice post \n", "fpA")
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if c.Text != "nice post" {
		t.Fatalf("expected trimmed text, got %q", c.Text)
	}
	if c.Author != "anon1" {
		t.Fatalf("expected author anon1, got %q", c.Author)
	}
	if c.ID == "" {
		t.Fatalf("expected non-empty comment id")
	}
	if c.Timestamp.IsZero() || time.Since(c.Timestamp) > time.Minute {
		t.Fatalf("unexpected timestamp %v", c.Timestamp)
	}
}

func TestAppend_SameFingerprintKeepsPseudonym(t *testing.T) {
	svc := NewCommentService(newTestStore(t))
	ctx := context.Background()

	first, err := svc.Append(ctx, "p1", "one", "fpA")
	if err != nil {
		t.Fatalf("first Append: %v", err)
	}
	second, err := svc.Append(ctx, "p1", "two", "fpA")
	if err != nil {
		t.Fatalf("second Append: %v", err)
	}
	if first.Author != second.Author {
		t.Fatalf("pseudonym changed between appends: %q vs %q", first.Author, second.Author)
	}
}

func TestAppend_DistinctFingerprintsNumberedInOrder(t *testing.T) {
	svc := NewCommentService(newTestStore(t))
	ctx := context.Background()

	a, err := svc.Append(ctx, "p1", "nice post", "fpA")
	if err != nil {
		t.Fatalf("Append fpA: %v", err)
	}
	b, err := svc.Append(ctx, "p1", "agreed", "fpB")
	if err != nil {
		t.Fatalf("Append fpB: %v", err)
	}
	if a.Author != "anon1" || b.Author != "anon2" {
		t.Fatalf("expected anon1/anon2, got %q/%q", a.Author, b.Author)
	}

	log, err := svc.List(ctx, "p1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(log) != 2 {
		t.Fatalf("expected 2 comments, got %d", len(log))
	}
	if log[0].Text != "nice post" || log[1].Text != "agreed" {
		t.Fatalf("append order not preserved: %q, %q", log[0].Text, log[1].Text)
	}
}

func TestAppend_PseudonymsScopedPerPost(t *testing.T) {
	svc := NewCommentService(newTestStore(t))
	ctx := context.Background()

	if _, err := svc.Append(ctx, "p1", "hi", "fpA"); err != nil {
		t.Fatalf("Append p1: %v", err)
	}
	c, err := svc.Append(ctx, "p2", "hi", "fpB")
	if err != nil {
		t.Fatalf("Append p2: %v", err)
	}
	// fpB is the first contact on p2, regardless of p1's history.
	if c.Author != "anon1" {
		t.Fatalf("expected anon1 on fresh post, got %q", c.Author)
	}
}

// TestAppend_ConcurrentNoLostUpdates is the regression test for the
// read-modify-write hazard: N concurrent appends with distinct fingerprints
// must all survive, each with its own pseudonym.
func TestAppend_ConcurrentNoLostUpdates(t *testing.T) {
	svc := NewCommentService(newTestStore(t))
	ctx := context.Background()

	const n = 25
	var wg sync.WaitGroup
	errs := make(chan error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			fp := fmt.Sprintf("fp-%d", i)
			if _, err := svc.Append(ctx, "p1", fmt.Sprintf("comment %d", i), fp); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent Append failed: %v", err)
	}

	log, err := svc.List(ctx, "p1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(log) != n {
		t.Fatalf("lost updates: expected %d comments, got %d", n, len(log))
	}

	authors := make(map[string]struct{}, n)
	for _, c := range log {
		authors[c.Author] = struct{}{}
	}
	if len(authors) != n {
		t.Fatalf("duplicate pseudonyms: expected %d distinct authors, got %d", n, len(authors))
	}
	for i := 1; i <= n; i++ {
		name := fmt.Sprintf("anon%d", i)
		if _, ok := authors[name]; !ok {
			t.Fatalf("missing pseudonym %s", name)
		}
	}
}

func TestAppend_StoreUnavailable(t *testing.T) {
	boom := errors.New("disk on fire")
	svc := NewCommentService(failingStore{getErr: boom, setErr: boom})

	_, err := svc.Append(context.Background(), "p1", "hi", "fpA")
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestList_StoreUnavailable(t *testing.T) {
	boom := errors.New("disk on fire")
	svc := NewCommentService(failingStore{getErr: boom})

	_, err := svc.List(context.Background(), "p1")
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestAppend_SetFailureAfterIdentityWrite(t *testing.T) {
	// Identity write succeeds, comment-log write fails: the caller sees a
	// store fault, and a retry of the whole operation is safe because the
	// pseudonym assignment is idempotent.
	store := newTestStore(t)
	svc := NewCommentService(store)
	ctx := context.Background()

	if _, err := svc.Append(ctx, "p1", "first", "fpA"); err != nil {
		t.Fatalf("seed append: %v", err)
	}

	again, err := svc.Append(ctx, "p1", "second", "fpA")
	if err != nil {
		t.Fatalf("retry append: %v", err)
	}
	if again.Author != "anon1" {
		t.Fatalf("retry changed pseudonym: %q", again.Author)
	}
}
