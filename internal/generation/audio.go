// Audio narration generation against an HTTP text-to-speech endpoint. The
// provider is called once per story, no retry: a failed narration leaves
// the story without audio rather than failing the pipeline.
package generation

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/aryaman108/Vedic-Story-Generator/internal/assets"
)

// maxTTSChars is the hard input bound of the speech provider. Longer
// narrations are truncated silently with a log line.
const maxTTSChars = 4000

// AudioGenerator synthesizes one narration file per story through a
// translate_tts-compatible endpoint.
type AudioGenerator struct {
	client   *http.Client
	endpoint string
	language string
	slow     bool
	paths    assets.Resolver
	log      zerolog.Logger
}

// NewAudioGenerator wires an audio generator. client must carry the
// provider timeout.
func NewAudioGenerator(client *http.Client, endpoint, language string, slow bool, paths assets.Resolver, log zerolog.Logger) *AudioGenerator {
	return &AudioGenerator{
		client:   client,
		endpoint: endpoint,
		language: language,
		slow:     slow,
		paths:    paths,
		log:      log,
	}
}

// Generate synthesizes narration for the story content and writes it under
// the audio asset dir. It returns the public path of the file, or an error
// on any failure; callers treat the error as "no audio".
func (g *AudioGenerator) Generate(ctx context.Context, content, storyID string) (string, error) {
	text := NormalizeNarration(content)
	if text == "" {
		return "", fmt.Errorf("empty narration text for story %s", storyID)
	}
	if utf8.RuneCountInString(text) > maxTTSChars {
		text = clipRunes(text, maxTTSChars)
		g.log.Info().Str("story_id", storyID).Int("max_chars", maxTTSChars).
			Msg("truncated narration text for audio generation")
	}

	q := url.Values{}
	q.Set("ie", "UTF-8")
	q.Set("client", "tw-ob")
	q.Set("q", text)
	q.Set("tl", g.language)
	if g.slow {
		q.Set("ttsspeed", "0.3")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; VedicStoryBackend/1.0)")

	start := time.Now()
	resp, err := g.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("tts provider returned HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", fmt.Errorf("tts provider returned empty body")
	}

	if err := g.paths.EnsureDir(assets.KindAudio); err != nil {
		return "", err
	}
	name := assets.AudioFilename(storyID)
	if err := os.WriteFile(g.paths.Storage(assets.KindAudio, name), data, 0o644); err != nil {
		return "", err
	}

	g.log.Info().Str("story_id", storyID).Int("bytes", len(data)).
		Dur("took", time.Since(start)).Msg("generated audio narration")
	return g.paths.Public(assets.KindAudio, name), nil
}
