// Scene image generation. Every story gets exactly four image slots:
// scenes from the draft fill the first slots, synthesized continuation
// scenes pad the rest, and any provider failure fills the slot with the
// procedural placeholder instead. Slots are fetched concurrently with a
// small worker bound but always land at their own index.
package generation

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/aryaman108/Vedic-Story-Generator/internal/assets"
)

// SceneSlots is the fixed number of images per story; the video composer
// relies on a consistent sequence length.
const SceneSlots = 4

// sceneStyles is the palette of regional art styles; one is drawn at
// random per slot before generation starts.
var sceneStyles = []string{
	"traditional Indian miniature art (Pahari/Kangra/Rajput style)",
	"Kerala mural painting style",
	"Tanjore painting style with gold leaf detailing",
	"Mysore painting style",
	"Pattachitra style from Odisha",
}

// ImageGenerator fetches scene images from a Pollinations-style HTTP
// endpoint, with the placeholder renderer as per-slot fallback.
type ImageGenerator struct {
	client   *http.Client
	endpoint string
	width    int
	height   int
	workers  int
	paths    assets.Resolver
	log      zerolog.Logger
}

// NewImageGenerator wires an image generator. client must carry the
// provider timeout; workers below 1 are raised to 1.
func NewImageGenerator(client *http.Client, endpoint string, width, height, workers int, paths assets.Resolver, log zerolog.Logger) *ImageGenerator {
	if workers < 1 {
		workers = 1
	}
	return &ImageGenerator{
		client:   client,
		endpoint: strings.TrimSuffix(endpoint, "/"),
		width:    width,
		height:   height,
		workers:  workers,
		paths:    paths,
		log:      log,
	}
}

// Generate produces the four scene images for a story and returns their
// public paths in slot order. Short scene lists are padded with
// continuation scenes derived from the title. Individual slot failures
// degrade to placeholders; only a filesystem failure can leave a slot out
// of the returned list.
func (g *ImageGenerator) Generate(ctx context.Context, title string, scenes []string, storyID string) []string {
	if err := g.paths.EnsureDir(assets.KindImages); err != nil {
		g.log.Error().Err(err).Str("story_id", storyID).Msg("cannot create images dir")
		return nil
	}

	styles := make([]string, SceneSlots)
	for i := range styles {
		styles[i] = sceneStyles[rand.Intn(len(sceneStyles))]
	}

	results := make([]string, SceneSlots)
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.workers)

	for i := 0; i < SceneSlots; i++ {
		slot := i + 1
		scene := paddedScene(scenes, i, title)
		style := styles[i]
		eg.Go(func() error {
			results[slot-1] = g.fillSlot(gctx, scene, style, storyID, slot)
			return nil
		})
	}
	_ = eg.Wait()

	out := make([]string, 0, SceneSlots)
	for _, p := range results {
		if p != "" {
			out = append(out, p)
		}
	}
	g.log.Info().Str("story_id", storyID).Int("images", len(out)).Msg("image generation completed")
	return out
}

// fillSlot fetches one slot from the provider, falling back to the
// placeholder renderer. It returns the public path, or "" only when even
// the placeholder cannot be written.
func (g *ImageGenerator) fillSlot(ctx context.Context, scene, style, storyID string, slot int) string {
	name := assets.ImageFilename(storyID, slot)
	path := g.paths.Storage(assets.KindImages, name)

	if err := g.fetch(ctx, scene, style, path); err != nil {
		g.log.Warn().Err(err).Str("story_id", storyID).Int("slot", slot).
			Msg("image provider failed, rendering placeholder")
		if err := g.renderFallback(scene, path, slot); err != nil {
			g.log.Error().Err(err).Str("story_id", storyID).Int("slot", slot).
				Msg("placeholder rendering failed")
			return ""
		}
	}
	return g.paths.Public(assets.KindImages, name)
}

func (g *ImageGenerator) fetch(ctx context.Context, scene, style, path string) error {
	prompt := fmt.Sprintf("Indian mythology %s %s colorful divine", clipRunes(scene, 50), styleTag(style))
	reqURL := fmt.Sprintf("%s/%s?width=%d&height=%d&nologo=true&model=flux",
		g.endpoint, url.PathEscape(prompt), g.width, g.height)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; VedicStoryBackend/1.0)")

	start := time.Now()
	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("image provider returned HTTP %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "image") {
		return fmt.Errorf("image provider returned content-type %q", ct)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	n, err := io.Copy(f, resp.Body)
	if err != nil {
		return err
	}
	g.log.Debug().Str("path", path).Int64("bytes", n).Dur("took", time.Since(start)).
		Msg("fetched scene image")
	return nil
}

func (g *ImageGenerator) renderFallback(scene, path string, slot int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return RenderPlaceholder(f, scene, slot)
}

// paddedScene returns the scene for slot index i (0-based), synthesizing a
// continuation scene from the title when the draft supplied fewer scenes.
func paddedScene(scenes []string, i int, title string) string {
	if i < len(scenes) && strings.TrimSpace(scenes[i]) != "" {
		return scenes[i]
	}
	if strings.TrimSpace(title) == "" {
		title = "Story"
	}
	return fmt.Sprintf("Scene %d: Continuation of the Vedic story '%s' - depicting divine characters and sacred elements in traditional Indian art style", i+1, title)
}

// styleTag reduces a palette entry to its short form for the provider
// prompt, dropping any parenthesized qualifier.
func styleTag(style string) string {
	if i := strings.IndexByte(style, '('); i >= 0 {
		style = style[:i]
	}
	return strings.TrimSpace(style)
}

// clipRunes truncates s to at most n runes.
func clipRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
