package report

import "github.com/clipsift/evidence-go/model"

// IService writes the human-facing analysis package: the CSV evidence log
// plus the metadata/filters summary.
type IService interface {
	WriteEvidenceLog(dir string, segments []model.Segment) (string, error)
	WriteMetadataSummary(dir string, meta model.VideoMeta, cfg model.RunConfig, analysisRate float64) (string, error)
}
