package generation

import (
	"bytes"
	"context"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"

	"github.com/aryaman108/Vedic-Story-Generator/internal/assets"
)

// tinyPNG returns a valid PNG payload for the fake provider.
func tinyPNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := RenderPlaceholder(&buf, "", 1); err != nil {
		t.Fatalf("render png: %v", err)
	}
	return buf.Bytes()
}

func TestImagesGenerate_AllSlotsFromProvider(t *testing.T) {
	payload := tinyPNG(t)
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Content-Type", "image/png")
		w.Write(payload)
	}))
	defer srv.Close()

	paths := assets.NewResolver(t.TempDir())
	g := NewImageGenerator(srv.Client(), srv.URL, 512, 384, 2, paths, zerolog.Nop())

	scenes := []string{"scene a", "scene b", "scene c", "scene d"}
	got := g.Generate(context.Background(), "Title", scenes, "s1")

	if len(got) != SceneSlots {
		t.Fatalf("expected %d images, got %d", SceneSlots, len(got))
	}
	for i, p := range got {
		want := "/assets/images/" + assets.ImageFilename("s1", i+1)
		if p != want {
			t.Errorf("slot %d path = %q; want %q", i+1, p, want)
		}
	}
	if atomic.LoadInt32(&hits) != SceneSlots {
		t.Fatalf("expected %d provider calls, got %d", SceneSlots, hits)
	}
}

func TestImagesGenerate_FallbackOn503(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	root := t.TempDir()
	paths := assets.NewResolver(root)
	g := NewImageGenerator(srv.Client(), srv.URL, 512, 384, 2, paths, zerolog.Nop())

	got := g.Generate(context.Background(), "Hanuman's Leap", []string{"Hanuman leaps the ocean"}, "s2")
	if len(got) != SceneSlots {
		t.Fatalf("provider failure must still fill all slots, got %d", len(got))
	}

	// Each slot must hold a decodable PNG (the procedural placeholder).
	for slot := 1; slot <= SceneSlots; slot++ {
		f, err := os.Open(paths.Storage(assets.KindImages, assets.ImageFilename("s2", slot)))
		if err != nil {
			t.Fatalf("slot %d file missing: %v", slot, err)
		}
		img, err := png.Decode(f)
		f.Close()
		if err != nil {
			t.Fatalf("slot %d not a PNG: %v", slot, err)
		}
		b := img.Bounds()
		if b.Dx() != placeholderWidth || b.Dy() != placeholderHeight {
			t.Fatalf("slot %d placeholder size = %dx%d", slot, b.Dx(), b.Dy())
		}
	}
}

func TestImagesGenerate_RejectsNonImageContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html>error page</html>"))
	}))
	defer srv.Close()

	paths := assets.NewResolver(t.TempDir())
	g := NewImageGenerator(srv.Client(), srv.URL, 512, 384, 1, paths, zerolog.Nop())

	got := g.Generate(context.Background(), "T", []string{"a", "b", "c", "d"}, "s3")
	if len(got) != SceneSlots {
		t.Fatalf("wrong content-type must fall back, got %d slots", len(got))
	}
	// The stored file must be the placeholder, not the HTML body.
	f, err := os.Open(paths.Storage(assets.KindImages, assets.ImageFilename("s3", 1)))
	if err != nil {
		t.Fatalf("open slot 1: %v", err)
	}
	defer f.Close()
	if _, err := png.Decode(f); err != nil {
		t.Fatalf("slot 1 should be a PNG placeholder: %v", err)
	}
}

func TestImagesGenerate_PadsShortSceneList(t *testing.T) {
	var prompts []string
	payload := tinyPNG(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		prompts = append(prompts, r.URL.Path)
		w.Header().Set("Content-Type", "image/png")
		w.Write(payload)
	}))
	defer srv.Close()

	// Single worker keeps the recorded prompt order deterministic.
	g := NewImageGenerator(srv.Client(), srv.URL, 512, 384, 1, assets.NewResolver(t.TempDir()), zerolog.Nop())

	got := g.Generate(context.Background(), "The Sandalwood Tree", []string{"only one scene"}, "s4")
	if len(got) != SceneSlots {
		t.Fatalf("short scene list must still yield %d slots, got %d", SceneSlots, len(got))
	}
	if len(prompts) != SceneSlots {
		t.Fatalf("expected %d provider calls, got %d", SceneSlots, len(prompts))
	}
	// Padded slots derive their scene from the title.
	for _, p := range prompts[1:] {
		if !strings.Contains(p, "Sandalwood") && !strings.Contains(p, "Continuation") {
			t.Errorf("padded prompt missing continuation scene: %q", p)
		}
	}
}

func TestPaddedScene(t *testing.T) {
	scenes := []string{"real scene", ""}
	if got := paddedScene(scenes, 0, "T"); got != "real scene" {
		t.Fatalf("existing scene should pass through, got %q", got)
	}
	if got := paddedScene(scenes, 1, "T"); !strings.Contains(got, "Scene 2") {
		t.Fatalf("blank scene should be padded, got %q", got)
	}
	if got := paddedScene(nil, 3, ""); !strings.Contains(got, "'Story'") {
		t.Fatalf("empty title should default, got %q", got)
	}
}
