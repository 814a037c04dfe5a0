package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/aryaman108/Vedic-Story-Generator/internal/assets"
)

// fakeRunner records invocations and replays scripted results.
type fakeRunner struct {
	probeOut  string
	probeErr  error
	runErrs   []error // popped per Run call
	runCalls  [][]string
	probeArgs []string
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) error {
	f.runCalls = append(f.runCalls, append([]string{name}, args...))
	if len(f.runErrs) == 0 {
		return nil
	}
	err := f.runErrs[0]
	f.runErrs = f.runErrs[1:]
	return err
}

func (f *fakeRunner) Output(_ context.Context, name string, args ...string) ([]byte, error) {
	f.probeArgs = append([]string{name}, args...)
	if f.probeErr != nil {
		return nil, f.probeErr
	}
	return []byte(f.probeOut + "\n"), nil
}

func newTestComposer(t *testing.T, r Runner) (*Composer, assets.Resolver) {
	t.Helper()
	paths := assets.NewResolver(t.TempDir())
	for _, kind := range []string{assets.KindImages, assets.KindAudio} {
		if err := paths.EnsureDir(kind); err != nil {
			t.Fatalf("EnsureDir: %v", err)
		}
	}
	return NewComposer(r, "ffmpeg", "ffprobe", paths, zerolog.Nop()), paths
}

func seedAssets(t *testing.T, paths assets.Resolver, storyID string, slots int) ([]string, string) {
	t.Helper()
	imgs := make([]string, 0, slots)
	for i := 1; i <= slots; i++ {
		name := assets.ImageFilename(storyID, i)
		if err := os.WriteFile(paths.Storage(assets.KindImages, name), []byte("png"), 0o644); err != nil {
			t.Fatalf("seed image: %v", err)
		}
		imgs = append(imgs, paths.Public(assets.KindImages, name))
	}
	aname := assets.AudioFilename(storyID)
	if err := os.WriteFile(paths.Storage(assets.KindAudio, aname), []byte("mp3"), 0o644); err != nil {
		t.Fatalf("seed audio: %v", err)
	}
	return imgs, paths.Public(assets.KindAudio, aname)
}

func TestCompose_UniformSegments(t *testing.T) {
	r := &fakeRunner{probeOut: "100.0"}
	c, paths := newTestComposer(t, r)
	imgs, audio := seedAssets(t, paths, "v1", 4)

	var capturedList string
	pub, err := composeCapturingList(c, paths, "v1", imgs, audio, "A Title\npreview", &capturedList)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if pub != "/assets/videos/story_v1_video.mp4" {
		t.Fatalf("public path = %q", pub)
	}

	// 100s / 4 images = 25s per slot, last file repeated.
	if got := strings.Count(capturedList, "duration 25.000"); got != 4 {
		t.Fatalf("expected 4 uniform 25s segments, list:\n%s", capturedList)
	}
	if !strings.HasSuffix(strings.TrimSpace(capturedList), "file '"+mustFS(t, paths, imgs[3])+"'") {
		t.Fatalf("last image should repeat at end of list:\n%s", capturedList)
	}

	// Encode invocation carries the duration cap and codec settings.
	args := strings.Join(r.runCalls[0], " ")
	for _, want := range []string{"-t 100.000", "-r 20", "-b:v 800k", "-preset fast", "-c:a aac", "drawtext"} {
		if !strings.Contains(args, want) {
			t.Errorf("encode args missing %q: %s", want, args)
		}
	}
}

func TestCompose_CapsAt180Seconds(t *testing.T) {
	r := &fakeRunner{probeOut: "601.5"}
	c, paths := newTestComposer(t, r)
	imgs, audio := seedAssets(t, paths, "v2", 4)

	var list string
	if _, err := composeCapturingList(c, paths, "v2", imgs, audio, "t", &list); err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if got := strings.Count(list, "duration 45.000"); got != 4 {
		t.Fatalf("expected 180/4=45s segments, list:\n%s", list)
	}
	if !strings.Contains(strings.Join(r.runCalls[0], " "), "-t 180.000") {
		t.Fatalf("duration cap missing: %v", r.runCalls[0])
	}
}

func TestCompose_CaptionFallback(t *testing.T) {
	r := &fakeRunner{probeOut: "60", runErrs: []error{errors.New("drawtext: font not found")}}
	c, paths := newTestComposer(t, r)
	imgs, audio := seedAssets(t, paths, "v3", 2)

	pub, err := c.Compose(context.Background(), imgs, audio, "caption", "v3")
	if err != nil {
		t.Fatalf("caption failure must degrade, got %v", err)
	}
	if pub == "" || len(r.runCalls) != 2 {
		t.Fatalf("expected captioned attempt then plain retry, calls=%d", len(r.runCalls))
	}
	first := strings.Join(r.runCalls[0], " ")
	second := strings.Join(r.runCalls[1], " ")
	if !strings.Contains(first, "drawtext") || strings.Contains(second, "drawtext") {
		t.Fatalf("retry should drop the caption filter:\n%s\n%s", first, second)
	}
}

func TestCompose_HardFailureCleansUp(t *testing.T) {
	r := &fakeRunner{probeOut: "60", runErrs: []error{errors.New("boom"), errors.New("boom")}}
	c, paths := newTestComposer(t, r)
	imgs, audio := seedAssets(t, paths, "v4", 2)

	if _, err := c.Compose(context.Background(), imgs, audio, "c", "v4"); err == nil {
		t.Fatalf("expected error when both attempts fail")
	}
	// No temp files and no partial output survive.
	entries, err := os.ReadDir(filepath.Dir(paths.Storage(assets.KindVideos, "x")))
	if err != nil {
		t.Fatalf("read videos dir: %v", err)
	}
	for _, e := range entries {
		t.Errorf("leftover file after failure: %s", e.Name())
	}
}

func TestCompose_InputValidation(t *testing.T) {
	r := &fakeRunner{probeOut: "60"}
	c, paths := newTestComposer(t, r)
	_, audio := seedAssets(t, paths, "v5", 1)

	if _, err := c.Compose(context.Background(), nil, audio, "c", "v5"); err == nil {
		t.Fatalf("expected error for empty image list")
	}
	if _, err := c.Compose(context.Background(), []string{"/elsewhere/x.png"}, audio, "c", "v5"); err == nil {
		t.Fatalf("expected error for unresolvable image path")
	}

	r.probeErr = errors.New("no such file")
	imgs, _ := seedAssets(t, paths, "v6", 1)
	if _, err := c.Compose(context.Background(), imgs, audio, "c", "v6"); err == nil {
		t.Fatalf("expected error when ffprobe fails")
	}
}

func TestCaptionAndClip(t *testing.T) {
	long := strings.Repeat("x", 150)
	capt := Caption("Title", long)
	if !strings.HasPrefix(capt, "Title\n") || !strings.HasSuffix(capt, "...") {
		t.Fatalf("Caption = %q", capt)
	}
	if len(capt) != len("Title\n")+100+3 {
		t.Fatalf("content preview should be 100 chars, got %d", len(capt))
	}
	if got := Caption("Title", "short"); got != "Title\nshort" {
		t.Fatalf("short content caption = %q", got)
	}
	if got := Caption("Title", ""); got != "Title" {
		t.Fatalf("empty content caption = %q", got)
	}

	clipped := clipCaption(capt)
	if strings.Contains(clipped, "\n") || len(clipped) != captionOverlayChars {
		t.Fatalf("clipCaption = %q (len %d)", clipped, len(clipped))
	}
}

func TestCaptionAndClip_MultibyteBoundaries(t *testing.T) {
	// A multibyte rune straddling the clip point must survive or be dropped
	// whole, never split into invalid UTF-8.
	clipped := clipCaption(strings.Repeat("a", captionOverlayChars-1) + "ṛṣṇ")
	if !utf8.ValidString(clipped) {
		t.Fatalf("clipCaption produced invalid UTF-8: %q", clipped)
	}
	if got := utf8.RuneCountInString(clipped); got != captionOverlayChars {
		t.Fatalf("clipped rune count = %d, want %d", got, captionOverlayChars)
	}
	if !strings.HasSuffix(clipped, "ṛ") {
		t.Fatalf("clip should end on the whole rune, got %q", clipped)
	}

	capt := Caption("Kṛṣṇa and the Serpent", strings.Repeat("ṛ", 150))
	if !utf8.ValidString(capt) {
		t.Fatalf("Caption produced invalid UTF-8: %q", capt)
	}
	if got := utf8.RuneCountInString(capt); got != utf8.RuneCountInString("Kṛṣṇa and the Serpent\n")+100+3 {
		t.Fatalf("preview rune count = %d", got)
	}
}

// composeCapturingList wraps Compose with a runner hook that snapshots the
// concat list file at encode time, before the deferred cleanup removes it.
func composeCapturingList(c *Composer, paths assets.Resolver, storyID string, imgs []string, audio, caption string, out *string) (string, error) {
	inner := c.runner.(*fakeRunner)
	hooked := &listSnapshotRunner{inner: inner, listPath: paths.Storage(assets.KindVideos, fmt.Sprintf("temp_concat_%s.txt", storyID)), out: out}
	snap := NewComposer(hooked, "ffmpeg", "ffprobe", paths, zerolog.Nop())
	return snap.Compose(context.Background(), imgs, audio, caption, storyID)
}

type listSnapshotRunner struct {
	inner    *fakeRunner
	listPath string
	out      *string
}

func (r *listSnapshotRunner) Run(ctx context.Context, name string, args ...string) error {
	if b, err := os.ReadFile(r.listPath); err == nil {
		*r.out = string(b)
	}
	return r.inner.Run(ctx, name, args...)
}

func (r *listSnapshotRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	return r.inner.Output(ctx, name, args...)
}

func mustFS(t *testing.T, paths assets.Resolver, public string) string {
	t.Helper()
	fs, ok := paths.FromPublic(public)
	if !ok {
		t.Fatalf("unresolvable %q", public)
	}
	return fs
}
