package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"gocv.io/x/gocv"

	"github.com/clipsift/evidence-go/model"
	"github.com/clipsift/evidence-go/service/lgr"
)

// exporter writes one segment's evidence: the clip cut from the source video
// and the annotated peak frame. Paths land inside the run's staging dir.
type exporter struct {
	svcs     ServicesFactory
	runCfg   model.RunConfig
	clipsDir string
	frameDir string

	clips     int
	errors    int
	beginTime int64
}

func newExporter(svcs ServicesFactory, runCfg model.RunConfig, stagingDir string) *exporter {
	return &exporter{
		svcs:      svcs,
		runCfg:    runCfg,
		clipsDir:  filepath.Join(stagingDir, "clips"),
		frameDir:  filepath.Join(stagingDir, "frames"),
		beginTime: time.Now().Unix(),
	}
}

// export cuts the clip and writes the annotated peak frame for one segment.
// peakFrame may be an invalid Mat when the segment has no annotated frame;
// when valid, export closes it.
func (e *exporter) export(ctx context.Context, index int, seg model.Segment, peakFrame gocv.Mat, hasFrame bool) (model.Segment, error) {
	stamp := strings.ReplaceAll(model.SecondsToHMS(seg.StartSec), ":", "_")

	clipPath := filepath.Join(e.clipsDir, fmt.Sprintf("segment_%03d_%s.mp4", index, stamp))
	if err := e.svcs.MediaSvc.Cut(ctx, e.runCfg.VideoPath, clipPath, seg.StartSec, seg.EndSec); err != nil {
		e.errors++
		if hasFrame {
			peakFrame.Close()
		}
		return seg, model.GenError("clip_exporter",
			err,
			map[string]interface{}{"segment": index},
			"error cutting clip for segment %d", index)
	}
	seg.ClipPath = clipPath
	e.clips++

	if hasFrame {
		framePath := filepath.Join(e.frameDir, fmt.Sprintf("%s_F%d.png", stamp, seg.MatchingFrames))
		if ok := gocv.IMWrite(framePath, peakFrame); !ok {
			peakFrame.Close()
			e.errors++
			return seg, model.GenError("clip_exporter",
				fmt.Errorf("imwrite failed"),
				map[string]interface{}{"segment": index},
				"error writing evidence frame for segment %d", index)
		}
		peakFrame.Close()
		seg.FramePath = framePath
	}

	// Archival is best effort; a failed upload never fails the run.
	if e.svcs.StorageSvc.Enabled() {
		if _, err := e.svcs.StorageSvc.StoreFile(ctx, clipPath); err != nil {
			lgr.Logger.Warn("clip archival failed", lgr.Err(err))
		}
	}

	return seg, nil
}

func (e *exporter) stats() model.ExporterStats {
	uptime := time.Now().Unix() - e.beginTime
	if uptime == 0 {
		uptime = 1
	}
	return model.ExporterStats{
		Name:      "clipExporter",
		Video:     e.runCfg.VideoPath,
		Clips:     e.clips,
		Errors:    e.errors,
		Uptime:    uptime,
		Timestamp: time.Now().Unix(),
	}
}
