package pipeline

import (
	"context"
	"time"

	"gocv.io/x/gocv"

	"github.com/clipsift/evidence-go/model"
	"github.com/clipsift/evidence-go/service/lgr"
)

// fileFramer decodes the analysis window of a video file and feeds frames to
// the detector stage in order. The returned channel is closed when the window
// is exhausted, the context is cancelled, or the file cannot be read (the
// error is reported on errorStream).
func fileFramer(canxCtx context.Context, svcs ServicesFactory, runCfg model.RunConfig, meta model.VideoMeta, errorStream chan<- error, statsStream chan<- interface{}) <-chan FrameData {
	out := make(chan FrameData, streamBuffer)

	go func() {
		defer close(out)

		capture, err := gocv.OpenVideoCapture(runCfg.VideoPath)
		if err != nil {
			errorStream <- model.GenError("file_framer",
				err,
				map[string]interface{}{"path": runCfg.VideoPath},
				"error opening video file")
			return
		}
		defer capture.Close()

		startFrame := 0
		if runCfg.StartSec > 0 {
			startFrame = int(runCfg.StartSec * meta.FPS)
			capture.Set(gocv.VideoCapturePosFrames, float64(startFrame))
		}

		var startTime = time.Now().Unix()
		var frames = 0
		var skippedFrames = 0
		var errors = 0

		defer func() {
			uptime := time.Now().Unix() - startTime
			if uptime == 0 {
				uptime = 1
			}
			statsStream <- model.FramerStats{
				Name:          "fileFramer",
				Video:         runCfg.VideoPath,
				Frames:        frames,
				SkippedFrames: skippedFrames,
				Errors:        errors,
				Uptime:        uptime,
				FPS:           int(float64(frames) / float64(uptime)),
				Timestamp:     time.Now().Unix(),
			}
		}()

		frameIndex := startFrame
		for {
			select {
			case <-canxCtx.Done():
				lgr.Logger.Info("fileFramer context cancelled")
				return

			default:
				img := gocv.NewMat()
				if ok := capture.Read(&img); !ok {
					img.Close()
					return // end of file
				}
				if img.Empty() {
					errors++
					img.Close()
					continue
				}

				frameIndex++
				frames++
				timeSec := float64(frameIndex-1) / meta.FPS

				if runCfg.EndSec > 0 && timeSec > runCfg.EndSec {
					img.Close()
					return
				}

				if svcs.InferenceSvc.CanSkipFrame(frameIndex) {
					skippedFrames++
					img.Close()
					continue
				}

				select {
				case <-canxCtx.Done():
					lgr.Logger.Info("fileFramer context cancelled while sending")
					img.Close()
					return
				case out <- FrameData{Mat: img, FrameIndex: frameIndex, TimeSec: timeSec}:
					// Receiver owns the Mat now.
				}
			}
		}
	}()

	return out
}
