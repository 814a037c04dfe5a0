// Package services – StoryService
//
// This file implements StoryService, the application-level component that
// owns the story generation pipeline and the story library. It validates
// prompts, deduplicates work through an md5 prompt hash, drives the four
// pipeline stages (text, images, audio, video) and persists progress after
// every stage so a crash never loses completed work.
//
// Only the text stage is fatal: a classified generation error is returned to
// the caller and no record is created. The asset stages degrade silently; a
// failed stage logs, leaves its field empty, and the pipeline moves on.
//
// Observability: public methods are OpenTelemetry-instrumented, and every
// stage attempt is recorded in the pipeline Prometheus metrics.
package services

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/aryaman108/Vedic-Story-Generator/internal/assets"
	"github.com/aryaman108/Vedic-Story-Generator/internal/domain"
	"github.com/aryaman108/Vedic-Story-Generator/internal/generation"
	"github.com/aryaman108/Vedic-Story-Generator/internal/media"
	"github.com/aryaman108/Vedic-Story-Generator/internal/repo"
	"github.com/aryaman108/Vedic-Story-Generator/internal/sysutil"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// StoryRepo defines the repository contract required by StoryService.
// Implementations are responsible for persistence of story aggregates.
type StoryRepo interface {
	// CreateStory inserts a new story row.
	CreateStory(ctx context.Context, db *gorm.DB, s *domain.Story) error

	// GetStory fetches a story by ID.
	GetStory(ctx context.Context, db *gorm.DB, id string) (*domain.Story, error)

	// FindStoryByPromptHash returns the story cached under the prompt hash.
	FindStoryByPromptHash(ctx context.Context, db *gorm.DB, hash string) (*domain.Story, error)

	// CountStories returns the total number of stories for pagination.
	CountStories(ctx context.Context, db *gorm.DB) (int64, error)

	// ListStoriesPage returns a page of stories, newest first.
	ListStoriesPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Story, error)

	// UpdateStoryStage commits a stage transition together with its outputs.
	UpdateStoryStage(ctx context.Context, db *gorm.DB, id, stage string, fields map[string]any) error

	// DeleteStory removes a story row.
	DeleteStory(ctx context.Context, db *gorm.DB, id string) error

	// StoriesStats returns the story count and most recent update time.
	StoriesStats(ctx context.Context, db *gorm.DB) (int64, *time.Time, error)
}

// TextGenerator produces the structured story draft for a prompt.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (*generation.Draft, error)
}

// SceneIllustrator produces the per-scene images for a story.
type SceneIllustrator interface {
	Generate(ctx context.Context, title string, scenes []string, storyID string) []string
}

// Narrator produces the narration audio for a story.
type Narrator interface {
	Generate(ctx context.Context, content, storyID string) (string, error)
}

// VideoComposer renders the final story video from images and audio.
type VideoComposer interface {
	Compose(ctx context.Context, imagePaths []string, audioPath, caption, storyID string) (string, error)
}

// StoryService coordinates story generation, caching and the story library.
type StoryService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the story repository used by this service.
	Repo StoryRepo

	// Pipeline stages.
	Text   TextGenerator
	Images SceneIllustrator
	Audio  Narrator
	Video  VideoComposer

	// Assets resolves public asset paths for cleanup and text exports.
	Assets assets.Resolver

	// MaxPromptRunes caps accepted prompts by rune length; 0 disables the cap.
	MaxPromptRunes int

	// Log is the service logger.
	Log zerolog.Logger

	locks keyedMutex
}

// NewStoryService constructs a StoryService over the given pipeline stages.
func NewStoryService(db *gorm.DB, r StoryRepo, text TextGenerator, images SceneIllustrator, audio Narrator, video VideoComposer, paths assets.Resolver, log zerolog.Logger) *StoryService {
	return &StoryService{
		DB:     db,
		Repo:   r,
		Text:   text,
		Images: images,
		Audio:  audio,
		Video:  video,
		Assets: paths,
		Log:    log,
	}
}

// PromptHash returns the cache key for a prompt: md5 over the trimmed,
// lower-cased text, so differences in case and surrounding whitespace map to
// the same story.
func PromptHash(prompt string) string {
	sum := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(prompt))))
	return hex.EncodeToString(sum[:])
}

// Generate returns the story for a prompt, producing it if no story is
// cached under the prompt's hash. A cached story is returned as-is, whatever
// its asset completeness. On a miss the text stage runs first; its failure
// aborts with a *generation.ClassifiedError and no record. After the story
// row is inserted the asset stages run in order, each committing its outcome
// before the next starts.
func (s *StoryService) Generate(ctx context.Context, prompt string) (*domain.Story, error) {
	tr := otel.Tracer("services/StoryService")
	ctx, span := tr.Start(ctx, "Generate")
	defer span.End()

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}
	if s.MaxPromptRunes > 0 && utf8.RuneCountInString(prompt) > s.MaxPromptRunes {
		return nil, ErrTooLong
	}

	hash := PromptHash(prompt)
	span.SetAttributes(attribute.String("story.prompt_hash", hash))

	// Single writer per prompt hash; concurrent identical prompts wait here
	// and then hit the cache read below. The store's unique index backstops
	// distinct processes racing on the same hash.
	unlock := s.locks.lock(hash)
	defer unlock()

	if cached, err := s.Repo.FindStoryByPromptHash(ctx, s.DB, hash); err == nil {
		s.Log.Info().Str("story_id", cached.ID).Str("prompt_hash", hash).Msg("story cache hit")
		return cached, nil
	} else if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}

	start := time.Now()
	draft, err := s.Text.Generate(ctx, prompt)
	if err != nil {
		generation.ObserveStage("text", "error", time.Since(start).Seconds())
		return nil, err
	}
	generation.ObserveStage("text", "success", time.Since(start).Seconds())

	story := &domain.Story{
		ID:         uuid.NewString(),
		PromptHash: hash,
		Prompt:     prompt,
		Title:      draft.Title,
		Content:    draft.Content,
		Moral:      draft.Moral,
		Stage:      domain.StageTextReady,
	}
	story.SetScenes(draft.Scenes)
	story.SetCharacters(draft.Characters)

	if err := s.Repo.CreateStory(ctx, s.DB, story); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			// Another process won the race; serve its story.
			return s.Repo.FindStoryByPromptHash(ctx, s.DB, hash)
		}
		return nil, err
	}
	s.Log.Info().Str("story_id", story.ID).Str("title", story.Title).Msg("story text generated")

	s.runAssetStages(ctx, story)
	return story, nil
}

// runAssetStages drives images, audio and video for a freshly inserted
// story. Failures are logged and leave the corresponding field empty; every
// stage transition is committed even when the stage produced nothing.
func (s *StoryService) runAssetStages(ctx context.Context, story *domain.Story) {
	tr := otel.Tracer("services/StoryService")
	ctx, span := tr.Start(ctx, "runAssetStages",
		trace.WithAttributes(attribute.String("story.id", story.ID)),
	)
	defer span.End()

	start := time.Now()
	images := s.Images.Generate(ctx, story.Title, story.Scenes(), story.ID)
	status := "success"
	if len(images) == 0 {
		status = "error"
		s.Log.Warn().Str("story_id", story.ID).Msg("no scene images produced, continuing without")
	}
	story.SetImages(images)
	s.commitStage(ctx, story, domain.StageImagesAttempted, map[string]any{"images": story.ImagesJSON})
	generation.ObserveStage("images", status, time.Since(start).Seconds())

	start = time.Now()
	audioPath, err := s.Audio.Generate(ctx, story.Content, story.ID)
	if err != nil {
		audioPath = ""
		s.Log.Warn().Err(err).Str("story_id", story.ID).Msg("narration failed, continuing without audio")
		generation.ObserveStage("audio", "error", time.Since(start).Seconds())
	} else {
		generation.ObserveStage("audio", "success", time.Since(start).Seconds())
	}
	story.AudioPath = audioPath
	s.commitStage(ctx, story, domain.StageAudioAttempted, map[string]any{"audio_path": audioPath})

	start = time.Now()
	videoPath := ""
	if len(images) > 0 && audioPath != "" {
		vp, err := s.Video.Compose(ctx, images, audioPath, media.Caption(story.Title, story.Content), story.ID)
		if err != nil {
			s.Log.Warn().Err(err).Str("story_id", story.ID).Msg("video composition failed, continuing without video")
			generation.ObserveStage("video", "error", time.Since(start).Seconds())
		} else {
			videoPath = vp
			generation.ObserveStage("video", "success", time.Since(start).Seconds())
		}
	} else {
		s.Log.Info().Str("story_id", story.ID).Msg("video skipped, prerequisites missing")
		generation.ObserveStage("video", "fallback", time.Since(start).Seconds())
	}
	story.VideoPath = videoPath
	s.commitStage(ctx, story, domain.StageVideoAttempted, map[string]any{"video_path": videoPath})
}

// commitStage persists a stage transition. A failed commit is logged and
// leaves the record at its previous stage; the in-memory story only advances
// on success so callers see what was actually stored.
func (s *StoryService) commitStage(ctx context.Context, story *domain.Story, stage string, fields map[string]any) {
	if err := s.Repo.UpdateStoryStage(ctx, s.DB, story.ID, stage, fields); err != nil {
		s.Log.Error().Err(err).Str("story_id", story.ID).Str("stage", stage).Msg("stage commit failed")
		return
	}
	story.Stage = stage
}

// Get returns a story by ID.
func (s *StoryService) Get(ctx context.Context, id string) (*domain.Story, error) {
	tr := otel.Tracer("services/StoryService")
	ctx, span := tr.Start(ctx, "Get",
		trace.WithAttributes(attribute.String("story.id", id)),
	)
	defer span.End()

	story, err := s.Repo.GetStory(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrStoryNotFound
		}
		return nil, err
	}
	return story, nil
}

// ListPage returns a page of stories, newest first.
// It applies defaults for invalid page/pageSize and returns total count.
func (s *StoryService) ListPage(ctx context.Context, page, pageSize int) ([]domain.Story, int64, error) {
	tr := otel.Tracer("services/StoryService")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := s.Repo.CountStories(ctx, s.DB)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Story{}, 0, nil
	}

	items, err := s.Repo.ListStoriesPage(ctx, s.DB, offset, pageSize)
	return items, total, err
}

// Stats returns the story count and the most recent update time, used by
// handlers to derive cache validators for the library listing.
func (s *StoryService) Stats(ctx context.Context) (int64, *time.Time, error) {
	return s.Repo.StoriesStats(ctx, s.DB)
}

// Delete removes a story and best-effort removes its stored assets. Asset
// removal failures are logged, never surfaced; the record deletion is what
// the caller observes.
func (s *StoryService) Delete(ctx context.Context, id string) error {
	tr := otel.Tracer("services/StoryService")
	ctx, span := tr.Start(ctx, "Delete",
		trace.WithAttributes(attribute.String("story.id", id)),
	)
	defer span.End()

	story, err := s.Repo.GetStory(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrStoryNotFound
		}
		return err
	}

	if err := s.Repo.DeleteStory(ctx, s.DB, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrStoryNotFound
		}
		return err
	}

	paths := story.Images()
	if story.AudioPath != "" {
		paths = append(paths, story.AudioPath)
	}
	if story.VideoPath != "" {
		paths = append(paths, story.VideoPath)
	}
	for _, p := range paths {
		if err := s.Assets.Remove(p); err != nil {
			s.Log.Warn().Err(err).Str("story_id", id).Str("path", p).Msg("asset removal failed")
		}
	}
	s.Log.Info().Str("story_id", id).Int("assets", len(paths)).Msg("story deleted")
	return nil
}

// DownloadText renders a story as a plain-text export under the stories
// asset directory and returns the download filename with the file's storage
// path. The file is rewritten on every call so edits to the record are
// always reflected.
func (s *StoryService) DownloadText(ctx context.Context, id string) (filename, path string, err error) {
	tr := otel.Tracer("services/StoryService")
	ctx, span := tr.Start(ctx, "DownloadText",
		trace.WithAttributes(attribute.String("story.id", id)),
	)
	defer span.End()

	story, err := s.Get(ctx, id)
	if err != nil {
		return "", "", err
	}

	if err := s.Assets.EnsureDir(assets.KindStories); err != nil {
		return "", "", err
	}
	// A title made entirely of unsafe characters sanitizes to "".
	filename = fmt.Sprintf("story_%s_%s.txt", story.ID, sysutil.FirstNonEmpty(sanitizeFilename(story.Title), "untitled"))
	path = s.Assets.Storage(assets.KindStories, filename)

	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", story.Title)
	fmt.Fprintf(&b, "Prompt: %s\n", story.Prompt)
	fmt.Fprintf(&b, "Created: %s\n", story.CreatedAt.UTC().Format(time.RFC3339))
	if chars := story.Characters(); len(chars) > 0 {
		fmt.Fprintf(&b, "\nCharacters: %s\n", strings.Join(chars, ", "))
	}
	if story.Moral != "" {
		fmt.Fprintf(&b, "\nMoral: %s\n", story.Moral)
	}
	b.WriteString("\n" + strings.Repeat("=", 50) + "\n\n")
	b.WriteString(story.Content)

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", "", err
	}
	return filename, path, nil
}

// unsafeFilenameChars matches everything that is not safe in a download
// filename across platforms.
var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

func sanitizeFilename(s string) string {
	out := unsafeFilenameChars.ReplaceAllString(strings.TrimSpace(s), "_")
	return strings.Trim(out, "_")
}

// keyedMutex serializes work per string key. Entries are reference-counted
// and removed when the last holder unlocks, so the map never grows with the
// number of distinct prompts seen.
type keyedMutex struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.entries == nil {
		k.entries = make(map[string]*lockEntry)
	}
	e := k.entries[key]
	if e == nil {
		e = &lockEntry{}
		k.entries[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.Lock()
	return func() {
		e.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.entries, key)
		}
		k.mu.Unlock()
	}
}
