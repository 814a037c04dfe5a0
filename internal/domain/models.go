// Package domain defines the persistence model for generated stories. The
// Story type is mapped with GORM and forms the core data layer of the
// application: one row per distinct prompt, carrying the narrative text and
// references to every derived media asset.
package domain

import (
	"encoding/json"
	"time"
)

// Pipeline stages recorded on a Story. Each value means "every stage up to
// and including this one has been attempted and committed"; a crash between
// stages leaves the record at the last committed stage with earlier results
// intact.
const (
	StageTextReady       = "text_ready"
	StageImagesAttempted = "images_attempted"
	StageAudioAttempted  = "audio_attempted"
	StageVideoAttempted  = "video_attempted"
)

// Story represents one generated mythology story together with its derived
// assets. A Story becomes visible as soon as the text stage succeeds; the
// image, audio and video fields may stay empty when those stages fail.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - PromptHash: md5 of the trimmed, lower-cased prompt; the cache/dedup
//     key. Unique at the store level so concurrent identical prompts cannot
//     create duplicate rows.
//   - Prompt: the raw prompt as submitted.
//   - Title / Content: narrative text; Content is the canonical source for
//     narration and video captions.
//   - ScenesJSON / CharactersJSON / ImagesJSON: JSON-encoded string arrays
//     (scene descriptions, character names, public image paths). Use the
//     typed accessors instead of touching the columns directly.
//   - Moral: optional single-sentence lesson.
//   - AudioPath / VideoPath: public asset paths; empty means the stage did
//     not complete successfully.
//   - Stage: pipeline state machine marker, see the Stage* constants.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
type Story struct {
	ID             string    `json:"id"          gorm:"type:char(36);primaryKey"`
	PromptHash     string    `json:"-"           gorm:"type:char(32);not null;uniqueIndex:ux_stories_prompt_hash"`
	Prompt         string    `json:"prompt"      gorm:"type:text;not null"`
	Title          string    `json:"title"       gorm:"type:varchar(255);not null"`
	Content        string    `json:"content"     gorm:"type:text;not null"`
	ScenesJSON     string    `json:"-"           gorm:"column:scenes;type:text"`
	CharactersJSON string    `json:"-"           gorm:"column:characters;type:text"`
	ImagesJSON     string    `json:"-"           gorm:"column:images;type:text"`
	Moral          string    `json:"moral,omitempty" gorm:"type:text"`
	AudioPath      string    `json:"audio_path,omitempty" gorm:"type:varchar(500)"`
	VideoPath      string    `json:"video_path,omitempty" gorm:"type:varchar(500)"`
	Stage          string    `json:"stage"       gorm:"type:varchar(32);not null;default:'text_ready'"`
	CreatedAt      time.Time `json:"created_at"  gorm:"index"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TableName returns the database table name for Story.
func (Story) TableName() string { return "stories" }

// Scenes decodes the stored scene descriptions. A missing or malformed
// column yields an empty slice rather than an error: scenes are only used
// transiently during image generation.
func (s *Story) Scenes() []string { return decodeStrings(s.ScenesJSON) }

// SetScenes stores the scene descriptions as a JSON array.
func (s *Story) SetScenes(scenes []string) { s.ScenesJSON = encodeStrings(scenes) }

// Characters decodes the stored character names.
func (s *Story) Characters() []string { return decodeStrings(s.CharactersJSON) }

// SetCharacters stores the character names as a JSON array.
func (s *Story) SetCharacters(names []string) { s.CharactersJSON = encodeStrings(names) }

// Images decodes the stored public image paths, in playback order.
func (s *Story) Images() []string { return decodeStrings(s.ImagesJSON) }

// SetImages stores the public image paths as a JSON array. Order matters:
// it is both display order and per-image video segment order.
func (s *Story) SetImages(paths []string) { s.ImagesJSON = encodeStrings(paths) }

// MarshalJSON shapes the API representation: the JSON text columns are
// exposed as real arrays and internal bookkeeping stays hidden.
func (s *Story) MarshalJSON() ([]byte, error) {
	type alias Story
	return json.Marshal(struct {
		*alias
		Scenes     []string `json:"scenes,omitempty"`
		Characters []string `json:"characters,omitempty"`
		Images     []string `json:"images"`
	}{
		alias:      (*alias)(s),
		Scenes:     s.Scenes(),
		Characters: s.Characters(),
		Images:     s.Images(),
	})
}

func encodeStrings(vals []string) string {
	if len(vals) == 0 {
		return "[]"
	}
	b, err := json.Marshal(vals)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func decodeStrings(raw string) []string {
	if raw == "" {
		return []string{}
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil || out == nil {
		return []string{}
	}
	return out
}
