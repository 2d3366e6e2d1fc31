package data

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipsift/evidence-go/model"
)

func newTestService(t *testing.T) IService {
	t.Helper()
	svc, err := NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = svc.Close()
	})
	return svc
}

func TestRunLifecycle(t *testing.T) {
	svc := newTestService(t)

	run := model.Run{
		ID: "run-1",
		Config: model.RunConfig{
			VideoPath:           "/videos/gate.mp4",
			Labels:              []string{"person"},
			ConfidenceThreshold: 0.5,
			GapToleranceSec:     1.0,
			MarginSec:           0.5,
		},
		Status:    model.RunPending,
		StartedAt: time.Now(),
	}
	require.NoError(t, svc.CreateRun(run))

	require.NoError(t, svc.UpdateRunStatus(run.ID, model.RunRunning, "", ""))
	got, err := svc.RetrieveRunByID(run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunRunning, got.Status)
	assert.True(t, got.EndedAt.IsZero(), "running run must not have an end time")
	assert.Equal(t, "/videos/gate.mp4", got.Config.VideoPath)
	assert.Equal(t, []string{"person"}, got.Config.Labels)

	require.NoError(t, svc.UpdateRunProgress(run.ID, 0.42))
	got, err = svc.RetrieveRunByID(run.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.42, got.Progress)

	require.NoError(t, svc.UpdateRunStatus(run.ID, model.RunCompleted, "", "/output/run-1"))
	got, err = svc.RetrieveRunByID(run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunCompleted, got.Status)
	assert.Equal(t, 1.0, got.Progress)
	assert.Equal(t, "/output/run-1", got.ReportDir)
	assert.False(t, got.EndedAt.IsZero())
}

func TestRunFailureKeepsError(t *testing.T) {
	svc := newTestService(t)

	require.NoError(t, svc.CreateRun(model.Run{ID: "run-2", Status: model.RunPending, StartedAt: time.Now()}))
	require.NoError(t, svc.UpdateRunStatus("run-2", model.RunFailed, "ffprobe: no such file", ""))

	got, err := svc.RetrieveRunByID("run-2")
	require.NoError(t, err)
	assert.Equal(t, model.RunFailed, got.Status)
	assert.Equal(t, "ffprobe: no such file", got.Error)
}

func TestRetrieveRunsOrderedByStart(t *testing.T) {
	svc := newTestService(t)

	base := time.Now()
	require.NoError(t, svc.CreateRun(model.Run{ID: "old", Status: model.RunCompleted, StartedAt: base.Add(-time.Hour)}))
	require.NoError(t, svc.CreateRun(model.Run{ID: "new", Status: model.RunPending, StartedAt: base}))

	runs, err := svc.RetrieveRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "new", runs[0].ID)
	assert.Equal(t, "old", runs[1].ID)

	runs, err = svc.RetrieveRuns(1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "new", runs[0].ID)
}

func TestRetrieveRunByIDNotFound(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.RetrieveRunByID("missing")
	assert.Error(t, err)
}

func TestSegmentsRoundTrip(t *testing.T) {
	svc := newTestService(t)

	segments := []model.Segment{
		{
			StartSec:       0.5,
			EndSec:         1.9,
			Labels:         []string{"car", "person"},
			MatchingFrames: 2,
			PeakConfidence: 0.9,
			ClipPath:       "/output/run-3/clips/segment_000_00_00_00.mp4",
			FramePath:      "/output/run-3/frames/00_00_01_F30.png",
		},
		{
			StartSec: 10.0,
			EndSec:   12.0,
			Labels:   []string{"person"},
		},
	}
	require.NoError(t, svc.NewSegments("run-3", segments))

	got, err := svc.RetrieveSegments("run-3")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, segments[0].Labels, got[0].Labels)
	assert.Equal(t, segments[0].ClipPath, got[0].ClipPath)
	assert.Equal(t, 0.5, got[0].StartSec)
	assert.Equal(t, 12.0, got[1].EndSec)

	other, err := svc.RetrieveSegments("other-run")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestNewSegmentsEmptyIsNoop(t *testing.T) {
	svc := newTestService(t)

	require.NoError(t, svc.NewSegments("run-4", nil))
	got, err := svc.RetrieveSegments("run-4")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStatsAndErrors(t *testing.T) {
	svc := newTestService(t)

	assert.NoError(t, svc.NewFramerStats(model.FramerStats{Name: "framer", Frames: 100}))
	assert.NoError(t, svc.NewDetectorStats(model.DetectorStats{Name: "detector", Frames: 50}))
	assert.NoError(t, svc.NewExporterStats(model.ExporterStats{Name: "exporter", Clips: 2}))
	assert.NoError(t, svc.NewError(model.GenError("test", assert.AnError, nil, "something broke")))
}
