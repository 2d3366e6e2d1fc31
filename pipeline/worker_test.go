package pipeline

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipsift/evidence-go/model"
	"github.com/clipsift/evidence-go/service/config"
)

func defaultCfg(t *testing.T) config.IService {
	t.Helper()
	cfgSvc, err := config.NewToml(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	return cfgSvc
}

func TestApplyDefaultsFillsZeroValues(t *testing.T) {
	cfgSvc := defaultCfg(t)

	got := ApplyDefaults(cfgSvc, model.RunConfig{VideoPath: "/videos/gate.mp4"})

	assert.Equal(t, "/videos/gate.mp4", got.VideoPath)
	assert.Equal(t, cfgSvc.GetDetectorParameters().Labels, got.Labels)
	assert.Equal(t, float32(0.5), got.ConfidenceThreshold)
	assert.Equal(t, 1, got.FrameSkip)
	assert.Equal(t, 1.0, got.GapToleranceSec)
	assert.Equal(t, 0.5, got.MarginSec)
	assert.Equal(t, cfgSvc.GetOutputFolder(), got.OutputDir)
}

func TestApplyDefaultsKeepsExplicitValues(t *testing.T) {
	cfgSvc := defaultCfg(t)

	in := model.RunConfig{
		VideoPath:           "/videos/gate.mp4",
		Labels:              []string{"car"},
		ConfidenceThreshold: 0.8,
		FrameSkip:           5,
		GapToleranceSec:     3.0,
		MarginSec:           1.5,
		OutputDir:           "/srv/out",
	}
	got := ApplyDefaults(cfgSvc, in)

	assert.Equal(t, in, got)
}

func TestRebaseSegments(t *testing.T) {
	staging := "/output/run-1.partial"
	report := "/output/run-1"

	segments := []model.Segment{
		{
			ClipPath:  filepath.Join(staging, "clips", "segment_001_00_00_00.mp4"),
			FramePath: filepath.Join(staging, "frames", "00_00_01_F30.png"),
		},
		{}, // never exported, paths stay empty
	}

	got := rebaseSegments(segments, staging, report)

	assert.Equal(t, filepath.Join(report, "clips", "segment_001_00_00_00.mp4"), got[0].ClipPath)
	assert.Equal(t, filepath.Join(report, "frames", "00_00_01_F30.png"), got[0].FramePath)
	assert.Empty(t, got[1].ClipPath)
	assert.Empty(t, got[1].FramePath)
}
