package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"os"
	"strings"
	"time"

	"github.com/natefinch/lumberjack"
	"gocv.io/x/gocv"

	"github.com/clipsift/evidence-go/model"
	"github.com/clipsift/evidence-go/service/lgr"
)

// Rotating log of raw detections, useful when tuning thresholds.
var detectionLogger = &lumberjack.Logger{
	Filename:   "detections.log",
	MaxSize:    10, // MB
	MaxBackups: 5,
	MaxAge:     7,    // days
	Compress:   true, // compress old logs
}

var boxColor = color.RGBA{G: 255, A: 0}

// yolo5Detector runs YOLOv5 ONNX inference over the incoming frames and emits
// one DetectionEvent per analyzed frame, in frame order.
//
// WARNING: a single consumer goroutine on purpose. The accumulator needs
// events in increasing timestamp order, so frames cannot be fanned out to
// competing workers here.
func yolo5Detector(canxCtx context.Context, svcs ServicesFactory, runCfg model.RunConfig, frames <-chan FrameData, errorStream chan<- error, statsStream chan<- interface{}) <-chan EventData {
	out := make(chan EventData, streamBuffer)

	go func() {
		defer close(out)

		params := svcs.CfgSvc.GetDetectorParameters()

		lgr.Logger.Info("yolo5 detector starting...",
			"video", runCfg.VideoPath,
			"model", params.ModelPath,
			"openCV", gocv.Version(),
		)

		if _, err := os.Stat(params.ModelPath); os.IsNotExist(err) {
			errorStream <- model.GenError("yolo5_detector",
				fmt.Errorf("no yolo5 model exists at %s", params.ModelPath),
				map[string]interface{}{},
				"no yolo5 model exists")
			return
		}

		labels, err := loadLabels(params.ClassNamesPath)
		if err != nil {
			errorStream <- model.GenError("yolo5_detector",
				err,
				map[string]interface{}{"path": params.ClassNamesPath},
				"error loading class names")
			return
		}

		net := gocv.ReadNet(params.ModelPath, "")
		if net.Empty() {
			errorStream <- model.GenError("yolo5_detector",
				fmt.Errorf("error reading yolo5 model"),
				map[string]interface{}{},
				"error reading yolo5 model")
			return
		}
		defer net.Close()

		if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
			errorStream <- model.GenError("yolo5_detector", err, nil, "error setting backend")
			return
		}
		if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
			errorStream <- model.GenError("yolo5_detector", err, nil, "error setting target")
			return
		}

		allowed := map[string]bool{}
		for _, label := range runCfg.Labels {
			allowed[strings.ToLower(label)] = true
		}

		inputSize := params.InputSize
		if inputSize <= 0 {
			inputSize = 640
		}

		framesCount := 0
		errors := 0
		beginTime := time.Now().Unix()
		var totalInferenceTime time.Duration

		defer func() {
			uptime := time.Now().Unix() - beginTime
			if uptime == 0 {
				uptime = 1
			}
			var avgProcTime float64
			if framesCount > 0 {
				avgProcTime = totalInferenceTime.Seconds() / float64(framesCount)
			}
			statsStream <- model.DetectorStats{
				Name:        "yolo5Detector",
				Video:       runCfg.VideoPath,
				Frames:      framesCount,
				Errors:      errors,
				Uptime:      uptime,
				FPS:         int(float64(framesCount) / float64(uptime)),
				AvgProcTime: avgProcTime,
				Timestamp:   time.Now().Unix(),
			}
		}()

		for f := range frames {
			select {
			case <-canxCtx.Done():
				f.Mat.Close()
				lgr.Logger.Info("yolo5 detector context cancelled")
				return
			default:
				startInference := time.Now()
				ev, frame, ok := detectFrame(svcs, runCfg, &net, labels, allowed, inputSize, f)
				framesCount++
				if !ok {
					errors++
				}
				totalInferenceTime += time.Since(startInference)

				select {
				case <-canxCtx.Done():
					if len(ev.Detections) > 0 {
						frame.Close()
					}
					lgr.Logger.Info("yolo5 detector context cancelled while sending")
					return
				case out <- EventData{Event: ev, Frame: frame}:
				}
			}
		}
	}()

	return out
}

// detectFrame runs one frame through the net and returns its event. When the
// frame has detections, the returned Mat is a clone annotated with boxes and
// labels; the caller owns it. The input Mat is always closed here.
func detectFrame(svcs ServicesFactory, runCfg model.RunConfig, net *gocv.Net, labels []string, allowed map[string]bool, inputSize int, f FrameData) (model.DetectionEvent, gocv.Mat, bool) {
	defer f.Mat.Close()

	ev := model.DetectionEvent{
		FrameIndex: f.FrameIndex,
		TimeSec:    f.TimeSec,
	}

	if f.Mat.Empty() {
		return ev, gocv.Mat{}, false
	}

	blob := gocv.BlobFromImage(f.Mat, 1.0/255.0, image.Pt(inputSize, inputSize), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	net.SetInput(blob, "")
	output := net.Forward("")
	defer output.Close()

	dims := output.Size()
	if len(dims) != 3 {
		return ev, gocv.Mat{}, false
	}

	reshaped := output.Reshape(1, dims[1])
	if reshaped.Empty() || reshaped.Rows() == 0 || reshaped.Cols() < 5 {
		reshaped.Close()
		return ev, gocv.Mat{}, false
	}
	defer reshaped.Close()

	params := svcs.CfgSvc.GetDetectorParameters()

	for i := 0; i < reshaped.Rows(); i++ {
		row := reshaped.RowRange(i, i+1)
		data, rowErr := row.DataPtrFloat32()
		row.Close()

		if rowErr != nil || data == nil || len(data) < 5 {
			continue
		}
		if data[4] < runCfg.ObjectConfidenceThreshold {
			continue
		}

		det, found := decodeRow(f.Mat, labels, allowed, data,
			runCfg.ConfidenceThreshold, runCfg.ObjectConfidenceThreshold)
		if !found {
			continue
		}

		// Color filter: the detection qualifies only if the target color
		// dominates enough of its bounding box.
		if runCfg.ColorFilter != "" && !strings.EqualFold(runCfg.ColorFilter, "none") {
			rect := clampRect(image.Rect(det.X, det.Y, det.X+det.Width, det.Y+det.Height), f.Mat.Cols(), f.Mat.Rows())
			if rect.Empty() {
				continue
			}
			roi := f.Mat.Region(rect)
			matched := matchesColor(roi, runCfg.ColorFilter, params.ColorMatchThreshold)
			roi.Close()
			if !matched {
				continue
			}
		}

		ev.Detections = append(ev.Detections, det)
	}

	if params.Logging && len(ev.Detections) > 0 {
		logDetections(runCfg.VideoPath, ev)
	}

	if len(ev.Detections) == 0 {
		return ev, gocv.Mat{}, true
	}

	annotated := f.Mat.Clone()
	for _, det := range ev.Detections {
		rect := image.Rect(det.X, det.Y, det.X+det.Width, det.Y+det.Height)
		gocv.Rectangle(&annotated, rect, boxColor, 2)
		gocv.PutText(&annotated, fmt.Sprintf("%s %.2f", det.Label, det.Confidence),
			image.Pt(det.X, det.Y-10), gocv.FontHersheySimplex, 0.5, boxColor, 2)
	}

	return ev, annotated, true
}

// decodeRow turns one YOLOv5 output row into a detection, keeping only
// allowed labels above the thresholds.
func decodeRow(frame gocv.Mat, labels []string, allowed map[string]bool, data []float32, confidenceThresh, objectConfidenceThresh float32) (model.Detection, bool) {
	objectConfidence := data[4] // objectness
	classScores := data[5:]

	if len(classScores) != len(labels) {
		return model.Detection{}, false
	}

	classID := -1
	classConfidence := float32(0.0)
	for j, score := range classScores {
		if len(allowed) > 0 && !allowed[strings.ToLower(labels[j])] {
			continue
		}
		if score > classConfidence {
			classConfidence = score
			classID = j
		}
	}

	finalConf := objectConfidence * classConfidence

	if classID == -1 ||
		objectConfidence < objectConfidenceThresh ||
		finalConf < confidenceThresh {
		return model.Detection{}, false
	}

	cx := data[0] * float32(frame.Cols())
	cy := data[1] * float32(frame.Rows())
	w := data[2] * float32(frame.Cols())
	h := data[3] * float32(frame.Rows())

	return model.Detection{
		Label:            labels[classID],
		ObjectConfidence: objectConfidence,
		ClassConfidence:  classConfidence,
		Confidence:       finalConf,
		X:                int(cx - w/2),
		Y:                int(cy - h/2),
		Width:            int(w),
		Height:           int(h),
	}, true
}

func clampRect(rect image.Rectangle, width, height int) image.Rectangle {
	return rect.Intersect(image.Rect(0, 0, width, height))
}

func loadLabels(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return strings.Split(strings.TrimSpace(string(data)), "\n"), nil
}

func logDetections(video string, ev model.DetectionEvent) {
	entry := map[string]interface{}{
		"time":       time.Now().Format(time.RFC3339),
		"video":      video,
		"frameIndex": ev.FrameIndex,
		"timeSec":    ev.TimeSec,
		"detections": ev.Detections,
	}

	jsonData, err := json.Marshal(entry)
	if err != nil {
		lgr.Logger.Error("error marshaling detections", lgr.Err(err))
		return
	}

	if _, err := detectionLogger.Write(append(jsonData, '\n')); err != nil {
		lgr.Logger.Error("error writing to detection log file", lgr.Err(err))
	}
}
