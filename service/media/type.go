package media

import (
	"context"

	"github.com/clipsift/evidence-go/model"
)

// IService fronts the external container tooling (ffmpeg/ffprobe).
type IService interface {
	// Probe returns container metadata for the given video file.
	Probe(ctx context.Context, path string) (model.VideoMeta, error)
	// Cut extracts [startSec, endSec] of src into dst without re-encoding.
	Cut(ctx context.Context, src, dst string, startSec, endSec float64) error
}
