package data

import "github.com/clipsift/evidence-go/model"

// IService is the run catalog: every analysis run, its exported segments and
// component stats end up here.
type IService interface {
	CreateRun(run model.Run) error
	UpdateRunProgress(id string, fraction float64) error
	UpdateRunStatus(id string, status model.RunStatus, errMsg string, reportDir string) error
	RetrieveRuns(limit int) ([]model.Run, error)
	RetrieveRunByID(id string) (model.Run, error)
	NewSegments(runID string, segments []model.Segment) error
	RetrieveSegments(runID string) ([]model.Segment, error)

	NewError(err interface{}) error
	NewFramerStats(stats model.FramerStats) error
	NewDetectorStats(stats model.DetectorStats) error
	NewExporterStats(stats model.ExporterStats) error

	Close() error
}
