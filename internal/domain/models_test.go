package domain

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestStoryJSONColumns_RoundTrip(t *testing.T) {
	s := &Story{}

	s.SetScenes([]string{"a river descends", "the king prays"})
	if got := s.Scenes(); len(got) != 2 || got[1] != "the king prays" {
		t.Fatalf("Scenes() = %v", got)
	}

	s.SetCharacters([]string{"Bhagiratha", "Shiva"})
	if got := s.Characters(); len(got) != 2 || got[0] != "Bhagiratha" {
		t.Fatalf("Characters() = %v", got)
	}

	s.SetImages(nil)
	if s.ImagesJSON != "[]" {
		t.Fatalf("empty images should encode as [], got %q", s.ImagesJSON)
	}
	if got := s.Images(); len(got) != 0 {
		t.Fatalf("Images() = %v; want empty", got)
	}
}

func TestStoryJSONColumns_Malformed(t *testing.T) {
	s := &Story{ScenesJSON: "{not json", ImagesJSON: "null", CharactersJSON: ""}
	if got := s.Scenes(); len(got) != 0 {
		t.Fatalf("malformed scenes should decode empty, got %v", got)
	}
	if got := s.Images(); got == nil || len(got) != 0 {
		t.Fatalf("null images should decode to empty non-nil slice, got %#v", got)
	}
	if got := s.Characters(); len(got) != 0 {
		t.Fatalf("empty characters should decode empty, got %v", got)
	}
}

func TestStoryMarshalJSON(t *testing.T) {
	s := &Story{
		ID:      "id-1",
		Prompt:  "the Ganga's descent",
		Title:   "The Descent of Ganga",
		Content: "In ancient times...",
		Stage:   StageVideoAttempted,
	}
	s.SetImages([]string{"/assets/images/story_id-1_scene_1.png"})
	s.SetCharacters([]string{"Bhagiratha"})

	b, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	out := string(b)

	if !strings.Contains(out, `"images":["/assets/images/story_id-1_scene_1.png"]`) {
		t.Errorf("images not exposed as array: %s", out)
	}
	if !strings.Contains(out, `"characters":["Bhagiratha"]`) {
		t.Errorf("characters not exposed as array: %s", out)
	}
	if strings.Contains(out, "prompt_hash") || strings.Contains(out, "ScenesJSON") {
		t.Errorf("internal columns leaked into JSON: %s", out)
	}

	// Empty asset stages serialize without audio/video fields.
	if strings.Contains(out, "audio_path") || strings.Contains(out, "video_path") {
		t.Errorf("unset asset paths should be omitted: %s", out)
	}
}
