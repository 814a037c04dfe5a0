// Story HTTP handlers.
//
// This file exposes the REST endpoints for story resources:
//   - POST   /stories                (generate, idempotent per prompt)
//   - GET    /stories                (list, paginated, ETag support)
//   - GET    /stories/{id}           (fetch one)
//   - GET    /stories/{id}/download  (plain-text export)
//   - DELETE /stories/{id}           (remove story and assets)
//
// Handlers are transport-thin: they validate input, call the story service,
// and translate results into HTTP responses. Generation failures carry a
// classified kind; the handler maps each kind to a status and passes the
// curated user message through untouched.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/aryaman108/Vedic-Story-Generator/internal/domain"
	"github.com/aryaman108/Vedic-Story-Generator/internal/generation"
	"github.com/aryaman108/Vedic-Story-Generator/internal/services"
	"github.com/aryaman108/Vedic-Story-Generator/internal/utils"
)

// StoryService defines the story operations consumed by HTTP handlers.
//
// Implementations must be safe for concurrent use and honor the provided
// context for cancellation.
type StoryService interface {
	// Generate returns the story for a prompt, producing it on a cache miss.
	Generate(ctx context.Context, prompt string) (*domain.Story, error)
	// Get returns a story by id.
	Get(ctx context.Context, id string) (*domain.Story, error)
	// ListPage returns a page of stories, newest first, and the total count.
	ListPage(ctx context.Context, page, pageSize int) ([]domain.Story, int64, error)
	// Stats returns the story count and latest update time for cache validators.
	Stats(ctx context.Context) (int64, *time.Time, error)
	// Delete removes a story and its stored assets.
	Delete(ctx context.Context, id string) error
	// DownloadText renders the story's plain-text export.
	DownloadText(ctx context.Context, id string) (filename, path string, err error)
}

// Handlers groups the HTTP endpoints for stories.
type Handlers struct {
	svc StoryService
}

// New constructs a Handlers instance bound to the given service.
func New(svc StoryService) *Handlers {
	return &Handlers{svc: svc}
}

//
// DTOs
//

// GenerateStoryRequest is the JSON payload for generating a story.
type GenerateStoryRequest struct {
	// Prompt is the story idea, e.g. "Hanuman and the Sanjeevani herb".
	Prompt string `json:"prompt" binding:"required"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListStoriesResponse wraps a page of stories and pagination information.
type ListStoriesResponse struct {
	Stories    []domain.Story `json:"stories"`
	Pagination Pagination     `json:"pagination"`
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params.
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

// generationStatus maps a classified generation failure to an HTTP status.
// The provider is an upstream dependency, so most kinds are gateway-class.
func generationStatus(kind generation.Kind) int {
	switch kind {
	case generation.KindQuotaExceeded:
		return http.StatusServiceUnavailable
	case generation.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

//
// Handlers
//

// GenerateStory handles POST /stories. A prompt seen before (modulo case
// and whitespace) returns the stored story without re-running the pipeline.
func (h *Handlers) GenerateStory(c *gin.Context) {
	var req GenerateStoryRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Prompt) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "Please provide a prompt")
		return
	}

	story, err := h.svc.Generate(c.Request.Context(), req.Prompt)
	if err != nil {
		var ce *generation.ClassifiedError
		switch {
		case errors.Is(err, services.ErrEmptyPrompt):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "Please provide a prompt")
		case errors.Is(err, services.ErrTooLong):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "prompt too long")
		case errors.As(err, &ce):
			fail(c, generationStatus(ce.Kind), ErrCodeGenerationFailed, ce.UserMessage())
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}
	ok(c, http.StatusCreated, story)
}

// ListStories handles GET /stories with pagination and a weak ETag derived
// from the story count and latest update time. Matching If-None-Match
// returns 304 without touching the page query.
func (h *Handlers) ListStories(c *gin.Context) {
	ctx := c.Request.Context()
	page, pageSize := clampPagination(c)

	if count, maxTS, err := h.svc.Stats(ctx); err == nil {
		var ts int64
		if maxTS != nil {
			ts = maxTS.Unix()
		}
		etag := fmt.Sprintf(`W/"stories:%d:%d"`, count, ts)
		c.Header("ETag", etag)
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	items, total, err := h.svc.ListPage(ctx, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	ok(c, http.StatusOK, ListStoriesResponse{
		Stories: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// GetStory handles GET /stories/:id.
func (h *Handlers) GetStory(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "story id must be a UUID")
		return
	}

	story, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrStoryNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "story not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, story)
}

// DownloadStory handles GET /stories/:id/download, returning the story as
// a plain-text attachment.
func (h *Handlers) DownloadStory(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "story id must be a UUID")
		return
	}

	filename, path, err := h.svc.DownloadText(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrStoryNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "story not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeDownloadFailed, err.Error())
		return
	}
	c.FileAttachment(path, filename)
}

// DeleteStory handles DELETE /stories/:id.
func (h *Handlers) DeleteStory(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "story id must be a UUID")
		return
	}

	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, services.ErrStoryNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "story not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeDeleteFailed, err.Error())
		return
	}
	noContent(c)
}
