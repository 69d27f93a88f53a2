package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/aarush2807/aarushpathuri-dev/internal/config"
	"github.com/aarush2807/aarushpathuri-dev/internal/domain"
	"github.com/aarush2807/aarushpathuri-dev/internal/kv"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:router_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	store, err := kv.NewWithDB(db)
	if err != nil {
		t.Fatalf("init store: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("config: %v", err)
	}

	r := gin.New()
	RegisterRoutes(r, store, cfg)
	return r
}

func postComment(t *testing.T, r *gin.Engine, postID, text, forwardedFor string) *httptest.ResponseRecorder {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"text": text})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/posts/"+postID+"/comments", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	if forwardedFor != "" {
		req.Header.Set("X-Forwarded-For", forwardedFor)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestRouter_CommentScenario(t *testing.T) {
	r := newTestRouter(t)

	// First visitor comments.
	w := postComment(t, r, "p1", "nice post", "203.0.113.7")
	if w.Code != http.StatusCreated {
		t.Fatalf("first post: expected 201, got %d (%s)", w.Code, w.Body.String())
	}
	var created struct {
		Comment domain.Comment `json:"comment"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("json: %v", err)
	}
	if created.Comment.Author != "anon1" || created.Comment.Text != "nice post" {
		t.Fatalf("unexpected first comment: %+v", created.Comment)
	}
	if created.Comment.ID == "" || created.Comment.Timestamp.IsZero() {
		t.Fatalf("missing id/timestamp: %+v", created.Comment)
	}

	// Second, distinct visitor.
	w = postComment(t, r, "p1", "agreed", "198.51.100.2")
	if w.Code != http.StatusCreated {
		t.Fatalf("second post: expected 201, got %d", w.Code)
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("json: %v", err)
	}
	if created.Comment.Author != "anon2" {
		t.Fatalf("expected anon2, got %q", created.Comment.Author)
	}

	// Read back in append order.
	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/posts/p1/comments", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("read: expected 200, got %d", w.Code)
	}
	var listed struct {
		Comments []domain.Comment `json:"comments"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &listed); err != nil {
		t.Fatalf("json: %v", err)
	}
	if len(listed.Comments) != 2 {
		t.Fatalf("expected 2 comments, got %d", len(listed.Comments))
	}
	if listed.Comments[0].Text != "nice post" || listed.Comments[1].Text != "agreed" {
		t.Fatalf("append order lost: %+v", listed.Comments)
	}
}

func TestRouter_ReturningVisitorKeepsPseudonym(t *testing.T) {
	r := newTestRouter(t)

	first := postComment(t, r, "p1", "one", "203.0.113.7")
	second := postComment(t, r, "p1", "two", "203.0.113.7")

	var a, b struct {
		Comment domain.Comment `json:"comment"`
	}
	if err := json.Unmarshal(first.Body.Bytes(), &a); err != nil {
		t.Fatalf("json: %v", err)
	}
	if err := json.Unmarshal(second.Body.Bytes(), &b); err != nil {
		t.Fatalf("json: %v", err)
	}
	if a.Comment.Author != b.Comment.Author {
		t.Fatalf("pseudonym drifted: %q vs %q", a.Comment.Author, b.Comment.Author)
	}
}

func TestRouter_ValidationFailures(t *testing.T) {
	r := newTestRouter(t)

	// Missing text.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/posts/p1/comments", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing text: expected 400, got %d", w.Code)
	}

	// Whitespace-only text.
	w = postComment(t, r, "p1", "   ", "203.0.113.7")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("blank text: expected 400, got %d", w.Code)
	}

	// Nothing persisted by the rejected requests.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/posts/p1/comments", nil)
	r.ServeHTTP(w, req)
	var listed struct {
		Comments []domain.Comment `json:"comments"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &listed); err != nil {
		t.Fatalf("json: %v", err)
	}
	if len(listed.Comments) != 0 {
		t.Fatalf("validation failure persisted comments: %+v", listed.Comments)
	}
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	r := newTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/api/v1/posts/p1/comments", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}
	var er struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil {
		t.Fatalf("json: %v", err)
	}
	if er.Code != "method_not_allowed" {
		t.Fatalf("expected method_not_allowed, got %q", er.Code)
	}
}

func TestRouter_UnknownRoute(t *testing.T) {
	r := newTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	r := newTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("health: expected 200, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("metrics: expected 200, got %d", w.Code)
	}
}

func TestRouter_RequestIDHeader(t *testing.T) {
	r := newTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected X-Request-ID on response")
	}
}
