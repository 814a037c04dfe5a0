// Package media composes the per-story video: the ordered scene images are
// shown back to back over the narration audio, with a caption overlay at
// the bottom. ffmpeg and ffprobe run as subprocesses behind a small Runner
// seam so tests never need the binaries.
package media

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aryaman108/Vedic-Story-Generator/internal/assets"
)

// maxVideoSeconds caps the video length; audio beyond the cap is trimmed.
const maxVideoSeconds = 180.0

// captionOverlayChars is the character budget for the drawtext overlay.
const captionOverlayChars = 80

// Runner executes external commands. The default implementation shells out
// via os/exec; tests substitute a fake.
type Runner interface {
	// Run executes the command and waits for it to finish.
	Run(ctx context.Context, name string, args ...string) error
	// Output executes the command and returns its stdout.
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec, capturing stderr into errors.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, lastLine(stderr.String()))
	}
	return nil
}

func (ExecRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) == 0 {
		return ""
	}
	return lines[len(lines)-1]
}

// Composer builds story videos. Safe for concurrent use across distinct
// story ids; per-story filenames never collide.
type Composer struct {
	runner  Runner
	ffmpeg  string
	ffprobe string
	paths   assets.Resolver
	log     zerolog.Logger
}

// NewComposer wires a composer over the given binaries and asset layout.
func NewComposer(runner Runner, ffmpeg, ffprobe string, paths assets.Resolver, log zerolog.Logger) *Composer {
	return &Composer{runner: runner, ffmpeg: ffmpeg, ffprobe: ffprobe, paths: paths, log: log}
}

// Caption builds the overlay text from the story title and a short content
// preview, matching what viewers see beneath the video.
func Caption(title, content string) string {
	caption := title
	if preview := clipRunes(content, 100); preview != content {
		caption += "\n" + preview + "..."
	} else if content != "" {
		caption += "\n" + content
	}
	return caption
}

// Compose renders the story video from the ordered public image paths and
// the public audio path, returning the video's public path. The visual
// track divides min(audioDuration, 180s) uniformly across the images, hard
// cuts only. A failing caption overlay degrades to a captionless video;
// any other failure returns an error and the caller records no video. All
// temp files are removed on success and on failure.
func (c *Composer) Compose(ctx context.Context, imagePaths []string, audioPath, caption, storyID string) (string, error) {
	if len(imagePaths) == 0 {
		return "", fmt.Errorf("no images to compose for story %s", storyID)
	}

	images := make([]string, 0, len(imagePaths))
	for _, p := range imagePaths {
		fs, ok := c.paths.FromPublic(p)
		if !ok {
			return "", fmt.Errorf("unresolvable image path %q", p)
		}
		images = append(images, fs)
	}
	audio, ok := c.paths.FromPublic(audioPath)
	if !ok {
		return "", fmt.Errorf("unresolvable audio path %q", audioPath)
	}

	if err := c.paths.EnsureDir(assets.KindVideos); err != nil {
		return "", err
	}

	audioDur, err := c.probeDuration(ctx, audio)
	if err != nil {
		return "", fmt.Errorf("probe audio duration: %w", err)
	}
	total := audioDur
	if total > maxVideoSeconds {
		total = maxVideoSeconds
	}
	if total <= 0 {
		return "", fmt.Errorf("non-positive audio duration %.2f", audioDur)
	}
	perImage := total / float64(len(images))

	start := time.Now()
	listFile := c.paths.Storage(assets.KindVideos, fmt.Sprintf("temp_concat_%s.txt", storyID))
	captionFile := c.paths.Storage(assets.KindVideos, fmt.Sprintf("temp_caption_%s.txt", storyID))
	defer func() {
		os.Remove(listFile)
		os.Remove(captionFile)
	}()

	if err := os.WriteFile(listFile, []byte(concatList(images, perImage)), 0o644); err != nil {
		return "", err
	}

	name := assets.VideoFilename(storyID)
	out := c.paths.Storage(assets.KindVideos, name)

	overlay := clipCaption(caption)
	withCaption := overlay != ""
	if withCaption {
		if err := os.WriteFile(captionFile, []byte(overlay), 0o644); err != nil {
			c.log.Warn().Err(err).Str("story_id", storyID).Msg("caption file write failed, composing without caption")
			withCaption = false
		}
	}

	if withCaption {
		if err := c.runner.Run(ctx, c.ffmpeg, c.encodeArgs(listFile, audio, captionFile, out, total)...); err == nil {
			c.log.Info().Str("story_id", storyID).Float64("duration_s", total).
				Dur("took", time.Since(start)).Msg("composed video with caption")
			return c.paths.Public(assets.KindVideos, name), nil
		} else {
			c.log.Warn().Err(err).Str("story_id", storyID).
				Msg("caption overlay failed, composing without caption")
		}
	}

	if err := c.runner.Run(ctx, c.ffmpeg, c.encodeArgs(listFile, audio, "", out, total)...); err != nil {
		os.Remove(out)
		return "", fmt.Errorf("compose video: %w", err)
	}

	c.log.Info().Str("story_id", storyID).Float64("duration_s", total).
		Dur("took", time.Since(start)).Msg("composed video")
	return c.paths.Public(assets.KindVideos, name), nil
}

// probeDuration reads the audio duration in seconds via ffprobe.
func (c *Composer) probeDuration(ctx context.Context, path string) (float64, error) {
	out, err := c.runner.Output(ctx, c.ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, err
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse ffprobe duration %q: %w", strings.TrimSpace(string(out)), err)
	}
	return d, nil
}

// encodeArgs builds the single-pass encode: concat demuxer over the still
// images, narration audio muxed in, optional drawtext caption, capped at
// the total duration.
func (c *Composer) encodeArgs(listFile, audio, captionFile, out string, total float64) []string {
	args := []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listFile,
		"-i", audio,
	}
	vf := "scale=800:600:force_original_aspect_ratio=decrease,pad=800:600:(ow-iw)/2:(oh-ih)/2,setsar=1"
	if captionFile != "" {
		vf += fmt.Sprintf(",drawtext=textfile='%s':fontcolor=white:fontsize=35:box=1:boxcolor=black@0.7:boxborderw=8:x=(w-text_w)/2:y=h-text_h-20", captionFile)
	}
	args = append(args,
		"-vf", vf,
		"-t", fmt.Sprintf("%.3f", total),
		"-r", "20",
		"-c:v", "libx264",
		"-preset", "fast",
		"-b:v", "800k",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-shortest",
		"-movflags", "+faststart",
		out,
	)
	return args
}

// concatList renders the concat demuxer input: each image held for
// perImage seconds, the final image repeated so the demuxer honors the
// last duration.
func concatList(images []string, perImage float64) string {
	var b strings.Builder
	for _, img := range images {
		fmt.Fprintf(&b, "file '%s'\nduration %.3f\n", img, perImage)
	}
	fmt.Fprintf(&b, "file '%s'\n", images[len(images)-1])
	return b.String()
}

// clipCaption truncates overlay text to the drawtext character budget and
// flattens it to a single line.
func clipCaption(caption string) string {
	t := strings.TrimSpace(strings.ReplaceAll(caption, "\n", " "))
	return clipRunes(t, captionOverlayChars)
}

// clipRunes truncates s to at most n runes. Slicing by bytes here would cut
// multibyte characters in half and feed invalid UTF-8 to drawtext.
func clipRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
