// Package assets maps story identifiers and asset kinds onto storage and
// public paths. Every generated file lives under a single root directory,
// one subdirectory per kind, and is addressable by a public path under the
// /assets prefix. Filenames are derived deterministically from the story id
// (plus slot index for images) so regeneration overwrites in place.
package assets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Asset kinds. Each kind is both a storage subdirectory and a public path
// segment.
const (
	KindImages  = "images"
	KindAudio   = "audio"
	KindVideos  = "videos"
	KindStories = "stories"
)

// PublicPrefix is the URL prefix under which the asset root is served.
const PublicPrefix = "/assets"

// Resolver converts between story identifiers, storage paths, and public
// paths. It is a pure value type: the zero Root resolves relative to the
// working directory.
type Resolver struct {
	// Root is the storage directory that holds one subdirectory per kind.
	Root string
}

// NewResolver returns a Resolver rooted at dir.
func NewResolver(dir string) Resolver { return Resolver{Root: dir} }

// ImageFilename returns the deterministic filename for a story's image
// slot. Slots are 1-based in filenames, matching playback order.
func ImageFilename(storyID string, slot int) string {
	return fmt.Sprintf("story_%s_scene_%d.png", storyID, slot)
}

// AudioFilename returns the deterministic narration filename for a story.
func AudioFilename(storyID string) string {
	return fmt.Sprintf("story_%s_narration.mp3", storyID)
}

// VideoFilename returns the deterministic video filename for a story.
func VideoFilename(storyID string) string {
	return fmt.Sprintf("story_%s_video.mp4", storyID)
}

// Storage returns the filesystem path for a kind/filename pair.
func (r Resolver) Storage(kind, filename string) string {
	return filepath.Join(r.Root, kind, filename)
}

// Public returns the public path for a kind/filename pair.
func (r Resolver) Public(kind, filename string) string {
	return PublicPrefix + "/" + kind + "/" + filename
}

// EnsureDir creates the storage directory for kind if it does not exist.
func (r Resolver) EnsureDir(kind string) error {
	return os.MkdirAll(filepath.Join(r.Root, kind), 0o755)
}

// FromPublic maps a public path back to its storage path. It reports false
// for paths outside the /assets prefix or containing traversal segments.
func (r Resolver) FromPublic(public string) (string, bool) {
	rest, ok := strings.CutPrefix(public, PublicPrefix+"/")
	if !ok || rest == "" {
		return "", false
	}
	clean := filepath.ToSlash(filepath.Clean(rest))
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", false
	}
	return filepath.Join(r.Root, filepath.FromSlash(clean)), true
}

// Remove deletes the file behind a public path. Missing files are not an
// error, so removal is idempotent; unmappable paths are ignored.
func (r Resolver) Remove(public string) error {
	fs, ok := r.FromPublic(public)
	if !ok {
		return nil
	}
	if err := os.Remove(fs); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
