package media

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/clipsift/evidence-go/model"
)

type ffmpegService struct {
}

func NewFFmpeg() IService {
	return &ffmpegService{}
}

func (svc *ffmpegService) Probe(ctx context.Context, path string) (model.VideoMeta, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height,r_frame_rate,nb_frames",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1",
		path,
	)

	output, err := cmd.Output()
	if err != nil {
		return model.VideoMeta{}, fmt.Errorf("ffprobe %s: %w", path, err)
	}

	meta, err := parseProbeOutput(string(output))
	if err != nil {
		return model.VideoMeta{}, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	meta.Path = path
	return meta, nil
}

func (svc *ffmpegService) Cut(ctx context.Context, src, dst string, startSec, endSec float64) error {
	if endSec <= startSec {
		return fmt.Errorf("invalid clip range %.3f..%.3f", startSec, endSec)
	}

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-ss", strconv.FormatFloat(startSec, 'f', 3, 64),
		"-i", src,
		"-t", strconv.FormatFloat(endSec-startSec, 'f', 3, 64),
		"-c", "copy",
		"-avoid_negative_ts", "make_zero",
		"-y",
		dst,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg cut %s: %w, output: %s", src, err, string(output))
	}
	return nil
}

// parseProbeOutput decodes the flat key=value lines ffprobe emits with
// default=noprint_wrappers=1.
func parseProbeOutput(out string) (model.VideoMeta, error) {
	meta := model.VideoMeta{}

	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		key, value, found := strings.Cut(strings.TrimSpace(line), "=")
		if !found || value == "N/A" {
			continue
		}

		switch key {
		case "width":
			meta.Width, _ = strconv.Atoi(value)
		case "height":
			meta.Height, _ = strconv.Atoi(value)
		case "nb_frames":
			meta.TotalFrames, _ = strconv.Atoi(value)
		case "duration":
			meta.DurationSec, _ = strconv.ParseFloat(value, 64)
		case "r_frame_rate":
			meta.FPS = parseFrameRate(value)
		}
	}

	if meta.DurationSec <= 0 {
		return meta, fmt.Errorf("no duration in probe output")
	}
	if meta.FPS <= 0 {
		return meta, fmt.Errorf("no frame rate in probe output")
	}
	if meta.TotalFrames == 0 {
		meta.TotalFrames = int(meta.DurationSec * meta.FPS)
	}
	return meta, nil
}

// parseFrameRate handles ffprobe's rational frame rates like "30000/1001".
func parseFrameRate(value string) float64 {
	num, den, found := strings.Cut(value, "/")
	if !found {
		fps, _ := strconv.ParseFloat(value, 64)
		return fps
	}

	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}
