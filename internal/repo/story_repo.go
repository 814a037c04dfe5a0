// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Story model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a story is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - Inserting a second story with an existing prompt hash returns
//     ErrDuplicate; the caller re-reads the winning row.
//   - On other DB errors (connectivity, etc.), the raw gorm error is
//     propagated.
//
// This repository is designed to be wrapped by a higher-level service
// (see services.StoryService) which owns the generation pipeline, stage
// transitions, and asset lifecycle.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/aryaman108/Vedic-Story-Generator/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrDuplicate indicates that a story already exists for the given
// prompt hash (unique index violation).
var ErrDuplicate = errors.New("duplicate")

// CreateStory inserts a fully populated Story row. The caller supplies the
// ID (UUID) and PromptHash. CreatedAt is set to UTC if unset.
//
// On a unique violation of the prompt hash index, it returns ErrDuplicate
// so the caller can fetch the row that won the race.
func CreateStory(ctx context.Context, db *gorm.DB, s *domain.Story) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	if err := db.WithContext(ctx).Create(s).Error; err != nil {
		// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
		low := strings.ToLower(err.Error())
		if errors.Is(err, gorm.ErrDuplicatedKey) ||
			strings.Contains(low, "unique constraint failed") ||
			strings.Contains(low, "constraint failed: unique") {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// GetStory fetches a single story by its ID. If the record does not exist,
// it returns ErrNotFound. On other DB errors, the raw error is returned.
func GetStory(ctx context.Context, db *gorm.DB, id string) (*domain.Story, error) {
	var s domain.Story
	err := db.WithContext(ctx).Where("id = ?", id).First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// FindStoryByPromptHash fetches the story cached under the given prompt
// hash, or ErrNotFound when no prompt with that hash has been generated.
func FindStoryByPromptHash(ctx context.Context, db *gorm.DB, hash string) (*domain.Story, error) {
	var s domain.Story
	err := db.WithContext(ctx).Where("prompt_hash = ?", hash).First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// CountStories returns the total number of stories. On DB error, it returns
// the error.
func CountStories(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Model(&domain.Story{}).Count(&total).Error
	return total, err
}

// ListStoriesPage returns a paginated slice of stories ordered by creation
// time descending (most recent first). Use CountStories to obtain the total
// for pagination metadata. On DB error, it returns the error.
//
// The caller is responsible for computing offset and limit (e.g., (page-1)*pageSize).
func ListStoriesPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Story, error) {
	var out []domain.Story
	err := db.WithContext(ctx).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// UpdateStoryStage commits the result of one pipeline stage: the given
// column/value pairs plus the new stage marker, in a single UPDATE. If no
// rows are affected (story missing), it returns ErrNotFound.
//
// Example: UpdateStoryStage(ctx, db, id, domain.StageAudioAttempted,
// map[string]any{"audio_path": p}).
func UpdateStoryStage(ctx context.Context, db *gorm.DB, id, stage string, fields map[string]any) error {
	updates := map[string]any{"stage": stage}
	for k, v := range fields {
		updates[k] = v
	}
	res := db.WithContext(ctx).
		Model(&domain.Story{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteStory removes a story row by ID. If no rows are affected, it
// returns ErrNotFound.
func DeleteStory(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Story{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// StoriesStats returns aggregate metadata for the stories table: the total
// number of rows and the maximum UpdatedAt timestamp among those rows. Used
// for conditional responses (ETag generation) in the HTTP layer.
//
// When the table is empty, the returned count is 0 and maxUpdatedAt is nil.
func StoriesStats(ctx context.Context, db *gorm.DB) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Story{})

	// Count
	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	if err = q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}
