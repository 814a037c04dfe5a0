package generation

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/aryaman108/Vedic-Story-Generator/internal/assets"
)

func TestAudioGenerate_WritesFile(t *testing.T) {
	var gotText, gotLang string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotText = r.URL.Query().Get("q")
		gotLang = r.URL.Query().Get("tl")
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("ID3-fake-mp3-bytes"))
	}))
	defer srv.Close()

	paths := assets.NewResolver(t.TempDir())
	g := NewAudioGenerator(srv.Client(), srv.URL, "en", false, paths, zerolog.Nop())

	pub, err := g.Generate(context.Background(), "Krishna smiled.\n\nThe story ends.", "id1")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if pub != "/assets/audio/story_id1_narration.mp3" {
		t.Fatalf("public path = %q", pub)
	}
	if gotLang != "en" || !strings.Contains(gotText, "Krishnuh") {
		t.Fatalf("request not normalized: lang=%q text=%q", gotLang, gotText)
	}

	data, err := os.ReadFile(paths.Storage(assets.KindAudio, assets.AudioFilename("id1")))
	if err != nil || len(data) == 0 {
		t.Fatalf("audio file not written: %v", err)
	}
}

func TestAudioGenerate_TruncatesLongContent(t *testing.T) {
	var gotLen int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotLen = len(r.URL.Query().Get("q"))
		w.Write([]byte("mp3"))
	}))
	defer srv.Close()

	g := NewAudioGenerator(srv.Client(), srv.URL, "en", false, assets.NewResolver(t.TempDir()), zerolog.Nop())

	long := strings.Repeat("a very long sentence. ", 500) // ~11000 chars
	if _, err := g.Generate(context.Background(), long, "id2"); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if gotLen == 0 || gotLen > maxTTSChars {
		t.Fatalf("text not truncated to %d chars, got %d", maxTTSChars, gotLen)
	}
}

func TestAudioGenerate_TruncationKeepsValidUTF8(t *testing.T) {
	var gotText string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotText = r.URL.Query().Get("q")
		w.Write([]byte("mp3"))
	}))
	defer srv.Close()

	g := NewAudioGenerator(srv.Client(), srv.URL, "en", false, assets.NewResolver(t.TempDir()), zerolog.Nop())

	// Multibyte-heavy narration well past the provider cap; a byte-indexed
	// cut would split a rune and send invalid UTF-8 to the provider.
	long := strings.Repeat("Ṛtam upheld the cosmos. ", 400)
	if _, err := g.Generate(context.Background(), long, "id4"); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if gotText == "" {
		t.Fatal("provider never received text")
	}
	if !utf8.ValidString(gotText) {
		t.Fatalf("truncated narration is invalid UTF-8: %q", gotText[len(gotText)-12:])
	}
	if got := utf8.RuneCountInString(gotText); got > maxTTSChars {
		t.Fatalf("narration rune count = %d, want <= %d", got, maxTTSChars)
	}
}

func TestAudioGenerate_Failures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	g := NewAudioGenerator(srv.Client(), srv.URL, "en", true, assets.NewResolver(t.TempDir()), zerolog.Nop())

	if _, err := g.Generate(context.Background(), "some text", "id3"); err == nil {
		t.Fatalf("expected error on HTTP 503")
	}
	if _, err := g.Generate(context.Background(), "   ", "id3"); err == nil {
		t.Fatalf("expected error on empty narration text")
	}
}
