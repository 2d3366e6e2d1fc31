package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTomlMissingFileUsesDefaults(t *testing.T) {
	svc, err := NewToml(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)

	assert.Equal(t, "./output", svc.GetOutputFolder())
	assert.Equal(t, 8080, svc.GetHTTPPort())
	assert.Equal(t, 1, svc.GetDefaultFrameSkip())

	det := svc.GetDetectorParameters()
	assert.Equal(t, float32(0.5), det.ConfidenceThreshold)
	assert.Equal(t, 640, det.InputSize)
	assert.Contains(t, det.Labels, "person")

	acc := svc.GetAccumulatorParameters()
	assert.Equal(t, 1.0, acc.GapToleranceSec)
	assert.Equal(t, 0.5, acc.MarginSec)
}

func TestNewTomlOverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[output]
folder = "/srv/evidence"

[http]
port = 9090

[detector]
labels = ["car"]
confidence_threshold = 0.7

[accumulator]
gap_tolerance_sec = 2.5
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	svc, err := NewToml(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/evidence", svc.GetOutputFolder())
	assert.Equal(t, 9090, svc.GetHTTPPort())
	assert.Equal(t, []string{"car"}, svc.GetDetectorParameters().Labels)
	assert.Equal(t, float32(0.7), svc.GetDetectorParameters().ConfidenceThreshold)
	assert.Equal(t, 2.5, svc.GetAccumulatorParameters().GapToleranceSec)

	// Untouched sections keep their defaults.
	assert.Equal(t, "./output/runs.db", svc.GetRunsDBFile())
}

func TestNewTomlEnvOverridesWin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[http]\nport = 9090\n"), 0644))

	t.Setenv("HTTP_PORT", "7070")
	t.Setenv("OUTPUT_FOLDER", "/mnt/out")
	t.Setenv("MODEL_PATH", "/models/yolov5m.onnx")
	t.Setenv("ARCHIVE_ENDPOINT", "minio.local:9000")

	svc, err := NewToml(path)
	require.NoError(t, err)

	assert.Equal(t, 7070, svc.GetHTTPPort())
	assert.Equal(t, "/mnt/out", svc.GetOutputFolder())
	assert.Equal(t, "/models/yolov5m.onnx", svc.GetDetectorParameters().ModelPath)
	assert.Equal(t, "minio.local:9000", svc.GetArchiveParameters().Endpoint)
}
