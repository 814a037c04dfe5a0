package assets

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFilenames(t *testing.T) {
	if got := ImageFilename("abc", 3); got != "story_abc_scene_3.png" {
		t.Fatalf("ImageFilename = %q", got)
	}
	if got := AudioFilename("abc"); got != "story_abc_narration.mp3" {
		t.Fatalf("AudioFilename = %q", got)
	}
	if got := VideoFilename("abc"); got != "story_abc_video.mp4" {
		t.Fatalf("VideoFilename = %q", got)
	}
}

func TestStorageAndPublic(t *testing.T) {
	r := NewResolver("static")
	if got := r.Storage(KindImages, "f.png"); got != filepath.Join("static", "images", "f.png") {
		t.Fatalf("Storage = %q", got)
	}
	if got := r.Public(KindAudio, "f.mp3"); got != "/assets/audio/f.mp3" {
		t.Fatalf("Public = %q", got)
	}
}

func TestFromPublic(t *testing.T) {
	r := NewResolver("static")

	fs, ok := r.FromPublic("/assets/videos/story_x_video.mp4")
	if !ok || fs != filepath.Join("static", "videos", "story_x_video.mp4") {
		t.Fatalf("FromPublic = %q, %v", fs, ok)
	}

	for _, bad := range []string{
		"",
		"/static/videos/f.mp4",
		"/assets/",
		"/assets/../secret",
		"/assets/images/../../secret",
	} {
		if _, ok := r.FromPublic(bad); ok {
			t.Errorf("FromPublic(%q) should not resolve", bad)
		}
	}
}

func TestRemoveIdempotent(t *testing.T) {
	root := t.TempDir()
	r := NewResolver(root)
	if err := r.EnsureDir(KindImages); err != nil {
		t.Fatalf("EnsureDir: %v", err)
	}

	name := ImageFilename("id1", 1)
	path := r.Storage(KindImages, name)
	if err := os.WriteFile(path, []byte("png"), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}

	pub := r.Public(KindImages, name)
	if err := r.Remove(pub); err != nil {
		t.Fatalf("first remove: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("file should be gone, stat err = %v", err)
	}
	// Second removal of a missing file is not an error.
	if err := r.Remove(pub); err != nil {
		t.Fatalf("second remove: %v", err)
	}
	// Unmappable paths are ignored.
	if err := r.Remove("/elsewhere/f.png"); err != nil {
		t.Fatalf("unmappable remove: %v", err)
	}
}
