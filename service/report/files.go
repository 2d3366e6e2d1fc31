package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/clipsift/evidence-go/model"
)

const (
	evidenceLogName    = "analysis_report.csv"
	metadataName       = "metadata_and_filters.txt"
	sectionBar         = "===================="
	metadataFileMode   = 0644
	evidenceHeaderSize = 8
)

type filesService struct {
}

func NewFiles() IService {
	return &filesService{}
}

// WriteEvidenceLog writes one CSV row per exported segment. Zero segments
// still produce a report with only the header row.
func (svc *filesService) WriteEvidenceLog(dir string, segments []model.Segment) (string, error) {
	path := filepath.Join(dir, evidenceLogName)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create evidence log: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)

	header := make([]string, 0, evidenceHeaderSize)
	header = append(header,
		"Clip_File", "Frame_File", "Start", "End",
		"Duration", "Labels", "Matching_Frames", "Peak_Confidence")
	if err := w.Write(header); err != nil {
		return "", fmt.Errorf("write evidence log header: %w", err)
	}

	for _, seg := range segments {
		row := []string{
			filepath.Base(seg.ClipPath),
			filepath.Base(seg.FramePath),
			model.SecondsToHMS(seg.StartSec),
			model.SecondsToHMS(seg.EndSec),
			model.SecondsToMinSec(seg.DurationSec()),
			strings.Join(seg.Labels, ";"),
			fmt.Sprintf("%d", seg.MatchingFrames),
			fmt.Sprintf("%.2f", seg.PeakConfidence),
		}
		if err := w.Write(row); err != nil {
			return "", fmt.Errorf("write evidence log row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flush evidence log: %w", err)
	}
	return path, nil
}

// WriteMetadataSummary writes the video metadata block followed by the
// filter settings the run was performed with.
func (svc *filesService) WriteMetadataSummary(dir string, meta model.VideoMeta, cfg model.RunConfig, analysisRate float64) (string, error) {
	path := filepath.Join(dir, metadataName)

	var b strings.Builder
	fmt.Fprintf(&b, "%s VIDEO METADATA %s\n", sectionBar, sectionBar)
	fmt.Fprintf(&b, "File: %s\n", meta.Path)
	fmt.Fprintf(&b, "Duration: %s\n", model.SecondsToHMS(meta.DurationSec))
	fmt.Fprintf(&b, "FPS: %.2f\n", meta.FPS)
	fmt.Fprintf(&b, "Resolution: %dx%d\n", meta.Width, meta.Height)
	fmt.Fprintf(&b, "Total Frames: %d\n", meta.TotalFrames)

	fmt.Fprintf(&b, "\n%s ANALYSIS FILTER SETTINGS %s\n", sectionBar, sectionBar)
	fmt.Fprintf(&b, "Analysis Rate Achieved: %.2f FPS\n", analysisRate)
	fmt.Fprintf(&b, "Labels: %s\n", strings.Join(cfg.Labels, ", "))
	fmt.Fprintf(&b, "Confidence Threshold: %.2f\n", cfg.ConfidenceThreshold)
	fmt.Fprintf(&b, "Frame Skip: %d\n", cfg.FrameSkip)
	fmt.Fprintf(&b, "Start: %s\n", model.SecondsToHMS(cfg.StartSec))
	if cfg.EndSec > 0 {
		fmt.Fprintf(&b, "End: %s\n", model.SecondsToHMS(cfg.EndSec))
	} else {
		fmt.Fprintf(&b, "End: end of video\n")
	}
	colorFilter := cfg.ColorFilter
	if colorFilter == "" {
		colorFilter = "none"
	}
	fmt.Fprintf(&b, "Color Filter: %s\n", colorFilter)
	fmt.Fprintf(&b, "Gap Tolerance: %.2f sec\n", cfg.GapToleranceSec)
	fmt.Fprintf(&b, "Margin: %.2f sec\n", cfg.MarginSec)

	if err := os.WriteFile(path, []byte(b.String()), metadataFileMode); err != nil {
		return "", fmt.Errorf("write metadata summary: %w", err)
	}
	return path, nil
}
