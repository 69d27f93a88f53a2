// Comment HTTP handlers.
//
// This file exposes the REST endpoints for anonymous post comments:
//   - GET  /posts/{id}/comments   (read the comment log)
//   - POST /posts/{id}/comments   (append a comment)
//
// Handlers are transport-thin: they validate input, derive the requester
// fingerprint, delegate to the application service, and translate service
// errors into HTTP results. Commenters are never authenticated; the
// fingerprint only serves to keep a returning visitor's pseudonym stable
// within one post.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/aarush2807/aarushpathuri-dev/internal/domain"
	"github.com/aarush2807/aarushpathuri-dev/internal/services"
)

//
// Service contract (context-aware)
//

// CommentService defines the comment operations consumed by HTTP handlers.
//
// Implementations must be safe for concurrent use and honor the provided
// context for cancellation and timeouts.
type CommentService interface {
	// List returns the full comment log for a post, oldest first.
	List(ctx context.Context, postID string) ([]domain.Comment, error)
	// Append validates and appends a comment, returning the created comment.
	Append(ctx context.Context, postID, text, fingerprint string) (*domain.Comment, error)
}

// Fingerprinter derives the requester fingerprint from a request. It is a
// separate, injectable function so identity derivation can be swapped in
// tests without touching the handlers or the service.
type Fingerprinter func(c *gin.Context) string

// FingerprintFromRequest is the default Fingerprinter: the first hop of
// X-Forwarded-For when a proxy supplied it, otherwise the direct connection
// address.
func FingerprintFromRequest(c *gin.Context) string {
	if fwd := c.GetHeader("X-Forwarded-For"); fwd != "" {
		if first, _, found := strings.Cut(fwd, ","); found {
			return strings.TrimSpace(first)
		}
		return strings.TrimSpace(fwd)
	}
	if c.Request != nil {
		return c.Request.RemoteAddr
	}
	return ""
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints of the comment API.
type Handlers struct {
	svc         CommentService
	fingerprint Fingerprinter
}

// New constructs a Handlers instance bound to svc. A nil fingerprint falls
// back to FingerprintFromRequest.
func New(svc CommentService, fingerprint Fingerprinter) *Handlers {
	if fingerprint == nil {
		fingerprint = FingerprintFromRequest
	}
	return &Handlers{svc: svc, fingerprint: fingerprint}
}

//
// DTOs
//

// PostCommentRequest is the JSON payload for appending a comment.
type PostCommentRequest struct {
	// Text is the comment body. It must be non-empty after trimming.
	Text string `json:"text" binding:"required" example:"nice post"`
}

// PostCommentResponse wraps the created comment.
type PostCommentResponse struct {
	Comment *domain.Comment `json:"comment"`
}

// ListCommentsResponse wraps a post's comment log.
type ListCommentsResponse struct {
	Comments []domain.Comment `json:"comments"`
}

//
// Handlers
//

// ListComments godoc
// @ID          listComments
// @Summary     Read a post's comments
// @Description Returns every comment on the post in append order. Unknown posts yield an empty list.
// @Tags        Comments
// @Produce     json
//
// @Param       id  path  string  true  "Post identifier"  example(building-this-site)
//
// @Success     200  {object} handlers.ListCommentsResponse
// @Failure     400  {object} handlers.ErrorResponse "Missing post identifier"
// @Failure     500  {object} handlers.ErrorResponse "Store unavailable"
// @Router      /posts/{id}/comments [get]
func (h *Handlers) ListComments(c *gin.Context) {
	postID := strings.TrimSpace(c.Param("id"))
	if postID == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "post id required")
		return
	}

	comments, err := h.svc.List(c.Request.Context(), postID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEmptyPostID):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "post id required")
		case errors.Is(err, services.ErrStoreUnavailable):
			fail(c, http.StatusInternalServerError, ErrCodeStorage, "failed to fetch comments")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, "failed to fetch comments")
		}
		return
	}

	ok(c, http.StatusOK, ListCommentsResponse{Comments: comments})
}

// PostComment godoc
// @ID          postComment
// @Summary     Append a comment to a post
// @Description Stores a new anonymous comment. The author pseudonym is assigned server-side from the requester fingerprint.
// @Tags        Comments
// @Accept      json
// @Produce     json
//
// @Param       id    path  string  true  "Post identifier"  example(building-this-site)
// @Param       body  body  handlers.PostCommentRequest true "Comment payload"
//
// @Success     201  {object} handlers.PostCommentResponse
// @Failure     400  {object} handlers.ErrorResponse "Missing post identifier or text"
// @Failure     405  {object} handlers.ErrorResponse "Method not allowed"
// @Failure     500  {object} handlers.ErrorResponse "Store unavailable"
// @Router      /posts/{id}/comments [post]
func (h *Handlers) PostComment(c *gin.Context) {
	postID := strings.TrimSpace(c.Param("id"))
	if postID == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "post id required")
		return
	}

	var req PostCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "text required")
		return
	}

	comment, err := h.svc.Append(c.Request.Context(), postID, req.Text, h.fingerprint(c))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEmptyPostID), errors.Is(err, services.ErrEmptyText):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "post id and text required")
		case errors.Is(err, services.ErrStoreUnavailable):
			fail(c, http.StatusInternalServerError, ErrCodeStorage, "failed to post comment")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, "failed to post comment")
		}
		return
	}

	ok(c, http.StatusCreated, PostCommentResponse{Comment: comment})
}
