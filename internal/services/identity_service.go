// Package services – IdentityService
//
// This file implements the IdentityService, which gives each distinct
// visitor a stable per-post pseudonym without any authentication. The
// requester fingerprint (derived from network-origin metadata at the
// transport layer) is mapped to "anon<n>", where n is the order of first
// contact on that post. A fingerprint keeps its pseudonym for the lifetime
// of the post; the map only ever grows.
package services

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/aarush2807/aarushpathuri-dev/internal/domain"
	"github.com/aarush2807/aarushpathuri-dev/internal/kv"
)

// identityKey returns the store key holding the identity map for a post.
func identityKey(postID string) string { return "anon-users:" + postID }

// IdentityService assigns and looks up per-post pseudonyms.
//
// All writes to a post's identity map run under that post's lock, so two
// simultaneous first contacts from different fingerprints cannot both
// observe the same map size and claim the same pseudonym.
type IdentityService struct {
	Store kv.Store

	locks *postLocks
}

// NewIdentityService constructs an IdentityService over store, serializing
// writes with locks. The lock table is shared with the CommentService so an
// append's identity write and log write are covered by one lock.
func NewIdentityService(store kv.Store, locks *postLocks) *IdentityService {
	return &IdentityService{Store: store, locks: locks}
}

// Resolve returns the pseudonym for fingerprint on postID, assigning the
// next "anon<n>" on first contact. The assignment, when needed, is persisted
// before returning.
func (s *IdentityService) Resolve(ctx context.Context, postID, fingerprint string) (string, error) {
	tr := otel.Tracer("services/IdentityService")
	ctx, span := tr.Start(ctx, "Resolve",
		trace.WithAttributes(attribute.String("post.id", postID)),
	)
	defer span.End()

	s.locks.Lock(postID)
	defer s.locks.Unlock(postID)
	return s.resolveLocked(ctx, postID, fingerprint)
}

// resolveLocked performs the resolve under an already-held post lock.
// CommentService.Append calls this directly while holding the lock for its
// own read-modify-write of the comment log.
func (s *IdentityService) resolveLocked(ctx context.Context, postID, fingerprint string) (string, error) {
	users := domain.IdentityMap{}
	if _, err := kv.GetJSON(ctx, s.Store, identityKey(postID), &users); err != nil {
		return "", fmt.Errorf("%w: load identity map: %v", ErrStoreUnavailable, err)
	}

	if name, ok := users[fingerprint]; ok {
		return name, nil
	}

	name := fmt.Sprintf("anon%d", len(users)+1)
	users[fingerprint] = name
	if err := kv.SetJSON(ctx, s.Store, identityKey(postID), users); err != nil {
		return "", fmt.Errorf("%w: save identity map: %v", ErrStoreUnavailable, err)
	}
	return name, nil
}
