// Package services – CommentService
//
// This file implements the CommentService, the application-level component
// that owns the comment log of each blog post. It validates inputs, resolves
// the requester's pseudonym through the IdentityService, and appends to /
// reads from the per-post comment log held in the key-value store.
//
// Concurrency: the store has no atomic list-append, so Append performs its
// read-modify-write while holding the post's lock. The identity write that
// may happen inside the same call is covered by the same lock, making the
// whole append atomic with respect to other writers of the post. List takes
// no lock.
//
// Observability: public methods are OpenTelemetry-instrumented; spans carry
// the post identifier.
package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/aarush2807/aarushpathuri-dev/internal/domain"
	"github.com/aarush2807/aarushpathuri-dev/internal/kv"
)

// commentsKey returns the store key holding the comment log for a post.
func commentsKey(postID string) string { return "comments:" + postID }

// CommentService coordinates comment reads and appends for blog posts.
type CommentService struct {
	Store    kv.Store
	Identity *IdentityService

	locks *postLocks
}

// NewCommentService wires a CommentService and its IdentityService over a
// single shared lock table.
func NewCommentService(store kv.Store) *CommentService {
	locks := newPostLocks()
	return &CommentService{
		Store:    store,
		Identity: NewIdentityService(store, locks),
		locks:    locks,
	}
}

// List returns the comment log for postID in append order. A post that has
// never been written yields an empty slice, not an error.
func (s *CommentService) List(ctx context.Context, postID string) ([]domain.Comment, error) {
	tr := otel.Tracer("services/CommentService")
	ctx, span := tr.Start(ctx, "List",
		trace.WithAttributes(attribute.String("post.id", postID)),
	)
	defer span.End()

	if strings.TrimSpace(postID) == "" {
		return nil, ErrEmptyPostID
	}

	log := domain.CommentLog{}
	if _, err := kv.GetJSON(ctx, s.Store, commentsKey(postID), &log); err != nil {
		return nil, fmt.Errorf("%w: load comment log: %v", ErrStoreUnavailable, err)
	}
	return log, nil
}

// Append validates text, resolves the requester's pseudonym, and appends a
// new comment to postID's log, returning the created comment.
//
// Validation failures (ErrEmptyPostID, ErrEmptyText) persist nothing. Store
// faults surface as ErrStoreUnavailable and are not retried here; a fault
// after the log write means the comment is persisted even though the caller
// sees an error (at-least-once from the caller's perspective).
func (s *CommentService) Append(ctx context.Context, postID, text, fingerprint string) (*domain.Comment, error) {
	tr := otel.Tracer("services/CommentService")
	ctx, span := tr.Start(ctx, "Append",
		trace.WithAttributes(attribute.String("post.id", postID)),
	)
	defer span.End()

	if strings.TrimSpace(postID) == "" {
		return nil, ErrEmptyPostID
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}

	s.locks.Lock(postID)
	defer s.locks.Unlock(postID)

	author, err := s.Identity.resolveLocked(ctx, postID, fingerprint)
	if err != nil {
		return nil, err
	}

	log := domain.CommentLog{}
	if _, err := kv.GetJSON(ctx, s.Store, commentsKey(postID), &log); err != nil {
		return nil, fmt.Errorf("%w: load comment log: %v", ErrStoreUnavailable, err)
	}

	c := domain.Comment{
		ID:        uuid.NewString(),
		Author:    author,
		Text:      text,
		Timestamp: time.Now().UTC(),
	}
	log = append(log, c)

	if err := kv.SetJSON(ctx, s.Store, commentsKey(postID), log); err != nil {
		return nil, fmt.Errorf("%w: save comment log: %v", ErrStoreUnavailable, err)
	}
	return &c, nil
}
