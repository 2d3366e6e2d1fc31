package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProbeOutput(t *testing.T) {
	out := `
width=1920
height=1080
r_frame_rate=30000/1001
nb_frames=3596
duration=120.020000
`
	meta, err := parseProbeOutput(out)
	require.NoError(t, err)

	assert.Equal(t, 1920, meta.Width)
	assert.Equal(t, 1080, meta.Height)
	assert.Equal(t, 3596, meta.TotalFrames)
	assert.InDelta(t, 120.02, meta.DurationSec, 1e-9)
	assert.InDelta(t, 29.97, meta.FPS, 0.001)
}

func TestParseProbeOutputDerivesFrameCount(t *testing.T) {
	out := `
width=640
height=480
r_frame_rate=25/1
nb_frames=N/A
duration=10.0
`
	meta, err := parseProbeOutput(out)
	require.NoError(t, err)
	assert.Equal(t, 250, meta.TotalFrames)
}

func TestParseProbeOutputMissingDuration(t *testing.T) {
	_, err := parseProbeOutput("width=640\nheight=480\nr_frame_rate=25/1\n")
	assert.Error(t, err)
}

func TestParseProbeOutputMissingFrameRate(t *testing.T) {
	_, err := parseProbeOutput("width=640\nduration=10.0\n")
	assert.Error(t, err)
}

func TestParseFrameRate(t *testing.T) {
	assert.InDelta(t, 29.97, parseFrameRate("30000/1001"), 0.001)
	assert.Equal(t, 25.0, parseFrameRate("25/1"))
	assert.Equal(t, 30.0, parseFrameRate("30"))
	assert.Equal(t, 0.0, parseFrameRate("25/0"))
	assert.Equal(t, 0.0, parseFrameRate("abc/def"))
}
