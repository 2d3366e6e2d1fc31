package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gocv.io/x/gocv"

	"github.com/clipsift/evidence-go/model"
	"github.com/clipsift/evidence-go/service/config"
	"github.com/clipsift/evidence-go/service/lgr"
)

const (
	dirMode      = 0755
	errorsBuffer = 8
	statsBuffer  = 16
)

var tracer = otel.Tracer("github.com/clipsift/evidence-go/pipeline")

// ApplyDefaults fills zero-valued knobs of a run config from the service
// configuration so callers only specify what they want to override.
func ApplyDefaults(cfgSvc config.IService, runCfg model.RunConfig) model.RunConfig {
	detector := cfgSvc.GetDetectorParameters()
	accumulator := cfgSvc.GetAccumulatorParameters()

	if len(runCfg.Labels) == 0 {
		runCfg.Labels = detector.Labels
	}
	if runCfg.ConfidenceThreshold <= 0 {
		runCfg.ConfidenceThreshold = detector.ConfidenceThreshold
	}
	if runCfg.ObjectConfidenceThreshold <= 0 {
		runCfg.ObjectConfidenceThreshold = detector.ObjectConfidenceThreshold
	}
	if runCfg.FrameSkip < 1 {
		runCfg.FrameSkip = cfgSvc.GetDefaultFrameSkip()
	}
	if runCfg.GapToleranceSec <= 0 {
		runCfg.GapToleranceSec = accumulator.GapToleranceSec
	}
	if runCfg.MarginSec <= 0 {
		runCfg.MarginSec = accumulator.MarginSec
	}
	if runCfg.OutputDir == "" {
		runCfg.OutputDir = cfgSvc.GetOutputFolder()
	}
	return runCfg
}

// Run performs one complete analysis: decode, detect, accumulate segments,
// export clips and write the report package. It blocks until the run
// completes, fails, or the context is cancelled, and returns either an
// immutable result or a single terminal error. Nothing is published to the
// output folder unless the whole run succeeds.
func Run(canxCtx context.Context, svcs ServicesFactory, run model.Run, progressStream chan<- model.Progress) (model.RunResult, error) {
	ctx, span := tracer.Start(canxCtx, "pipeline.run")
	defer span.End()
	span.SetAttributes(
		attribute.String("run.id", run.ID),
		attribute.String("run.video", run.Config.VideoPath),
	)

	runCfg := ApplyDefaults(svcs.CfgSvc, run.Config)
	startedAt := time.Now()

	meta, err := svcs.MediaSvc.Probe(ctx, runCfg.VideoPath)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "probe failed")
		return model.RunResult{}, model.GenError("pipeline_worker",
			err,
			map[string]interface{}{"path": runCfg.VideoPath},
			"error probing video file")
	}

	stagingDir := filepath.Join(runCfg.OutputDir, run.ID+".partial")
	for _, dir := range []string{stagingDir, filepath.Join(stagingDir, "clips"), filepath.Join(stagingDir, "frames")} {
		if err := os.MkdirAll(dir, dirMode); err != nil {
			span.RecordError(err)
			return model.RunResult{}, model.GenError("pipeline_worker",
				err,
				map[string]interface{}{"dir": dir},
				"error creating staging directory")
		}
	}

	// The worker exclusively owns everything below until it returns.
	childCtx, childCanxFn := context.WithCancel(ctx)
	defer childCanxFn()

	errorStream := make(chan error, errorsBuffer)
	statsStream := make(chan interface{}, statsBuffer)

	statsDone := make(chan struct{})
	go func() {
		defer close(statsDone)
		for stats := range statsStream {
			procStats(svcs, stats)
		}
	}()

	frames := fileFramer(childCtx, svcs, runCfg, meta, errorStream, statsStream)
	events := yolo5Detector(childCtx, svcs, runCfg, frames, errorStream, statsStream)

	pred := NewLabelMatch(runCfg.Labels, runCfg.ConfidenceThreshold)
	acc := NewAccumulator(pred, runCfg.GapToleranceSec, runCfg.MarginSec, meta.DurationSec)
	exp := newExporter(svcs, runCfg, stagingDir)

	startFrame := int(runCfg.StartSec * meta.FPS)
	endFrame := meta.TotalFrames
	if runCfg.EndSec > 0 {
		endFrame = int(runCfg.EndSec * meta.FPS)
		if endFrame > meta.TotalFrames {
			endFrame = meta.TotalFrames
		}
	}
	windowFrames := endFrame - startFrame
	if windowFrames < 1 {
		windowFrames = 1
	}

	var (
		segments    []model.Segment
		peakFrame   gocv.Mat
		hasPeak     bool
		peakConf    float32
		framesRead  int
		framesMatch int
		fraction    float64
		terminal    error
	)

	failRun := func(err error) {
		if terminal == nil {
			terminal = err
		}
		childCanxFn()
	}

	for evd := range events {
		if terminal != nil {
			if len(evd.Event.Detections) > 0 {
				evd.Frame.Close()
			}
			continue
		}

		select {
		case <-canxCtx.Done():
			if len(evd.Event.Detections) > 0 {
				evd.Frame.Close()
			}
			failRun(model.GenError("pipeline_worker", canxCtx.Err(), nil, "run cancelled"))
			continue
		case err := <-errorStream:
			if len(evd.Event.Detections) > 0 {
				evd.Frame.Close()
			}
			failRun(err)
			continue
		default:
		}

		ev := evd.Event
		framesRead++

		// Progress is monotonic: skipped frames advance it along with
		// analyzed ones because FrameIndex counts every decoded frame.
		if f := float64(ev.FrameIndex-startFrame) / float64(windowFrames); f > fraction {
			fraction = f
			if fraction > 1 {
				fraction = 1
			}
		}

		matched := pred.Match(ev)
		if matched {
			framesMatch++
		}

		if progressStream != nil {
			select {
			case progressStream <- model.Progress{
				RunID:       run.ID,
				Fraction:    fraction,
				FramesRead:  framesRead,
				FramesMatch: framesMatch,
			}:
			default:
				// Slow consumers never stall the pipeline.
			}
		}

		seg, emitted := acc.Observe(ev)
		if emitted {
			exported, err := exp.export(ctx, len(segments)+1, seg, peakFrame, hasPeak)
			hasPeak = false
			peakConf = 0
			if err != nil {
				failRun(err)
				if len(ev.Detections) > 0 {
					evd.Frame.Close()
				}
				continue
			}
			segments = append(segments, exported)
		}

		// Keep the highest-confidence annotated frame of the open segment.
		if matched && len(ev.Detections) > 0 {
			evConf := maxConfidence(ev)
			if !hasPeak || evConf > peakConf {
				if hasPeak {
					peakFrame.Close()
				}
				peakFrame = evd.Frame
				hasPeak = true
				peakConf = evConf
			} else {
				evd.Frame.Close()
			}
		} else if len(ev.Detections) > 0 {
			evd.Frame.Close()
		}
	}

	// The detector has exited but the framer may still be mid-decode when the
	// detector bailed early. Unblock it and drain leftover frames so its
	// deferred stats land before the stream closes.
	childCanxFn()
	for f := range frames {
		f.Mat.Close()
	}
	close(statsStream)
	<-statsDone

	if terminal == nil {
		select {
		case err := <-errorStream:
			terminal = err
		default:
		}
	}
	if terminal == nil && canxCtx.Err() != nil {
		terminal = model.GenError("pipeline_worker", canxCtx.Err(), nil, "run cancelled")
	}

	if terminal == nil {
		if seg, emitted := acc.Flush(); emitted {
			exported, err := exp.export(ctx, len(segments)+1, seg, peakFrame, hasPeak)
			hasPeak = false
			if err != nil {
				terminal = err
			} else {
				segments = append(segments, exported)
			}
		}
	}

	if hasPeak {
		peakFrame.Close()
	}

	if err := svcs.DataSvc.NewExporterStats(exp.stats()); err != nil {
		lgr.Logger.Error("failed to store exporter stats", lgr.Err(err))
	}

	if terminal != nil {
		// An interrupted run leaves no partially-written report behind.
		if err := os.RemoveAll(stagingDir); err != nil {
			lgr.Logger.Error("failed to remove staging directory", lgr.Err(err))
		}
		span.RecordError(terminal)
		span.SetStatus(codes.Error, "run failed")
		return model.RunResult{}, terminal
	}

	elapsed := time.Since(startedAt).Seconds()
	analysisRate := 0.0
	if elapsed > 0 {
		analysisRate = float64(framesRead) / elapsed
	}

	if _, err := svcs.ReportSvc.WriteEvidenceLog(stagingDir, segments); err != nil {
		_ = os.RemoveAll(stagingDir)
		span.RecordError(err)
		return model.RunResult{}, model.GenError("pipeline_worker", err, nil, "error writing evidence log")
	}
	if _, err := svcs.ReportSvc.WriteMetadataSummary(stagingDir, meta, runCfg, analysisRate); err != nil {
		_ = os.RemoveAll(stagingDir)
		span.RecordError(err)
		return model.RunResult{}, model.GenError("pipeline_worker", err, nil, "error writing metadata summary")
	}

	// Publish the report atomically: the output dir appears only complete.
	reportDir := filepath.Join(runCfg.OutputDir, run.ID)
	if err := os.Rename(stagingDir, reportDir); err != nil {
		_ = os.RemoveAll(stagingDir)
		span.RecordError(err)
		return model.RunResult{}, model.GenError("pipeline_worker", err, nil, "error publishing report directory")
	}
	segments = rebaseSegments(segments, stagingDir, reportDir)

	if err := svcs.DataSvc.NewSegments(run.ID, segments); err != nil {
		lgr.Logger.Error("failed to store segments", lgr.Err(err))
	}

	result := model.RunResult{
		RunID:        run.ID,
		Video:        meta,
		Segments:     segments,
		ReportDir:    reportDir,
		FramesRead:   framesRead,
		AnalysisRate: analysisRate,
		ElapsedSec:   elapsed,
	}

	notifyWebhook(svcs, result)

	span.SetStatus(codes.Ok, "")
	return result, nil
}

func maxConfidence(ev model.DetectionEvent) float32 {
	var max float32
	for _, d := range ev.Detections {
		if d.Confidence > max {
			max = d.Confidence
		}
	}
	return max
}

// rebaseSegments rewrites evidence paths after the staging dir is renamed.
func rebaseSegments(segments []model.Segment, stagingDir, reportDir string) []model.Segment {
	for i := range segments {
		if rel, err := filepath.Rel(stagingDir, segments[i].ClipPath); err == nil && segments[i].ClipPath != "" {
			segments[i].ClipPath = filepath.Join(reportDir, rel)
		}
		if rel, err := filepath.Rel(stagingDir, segments[i].FramePath); err == nil && segments[i].FramePath != "" {
			segments[i].FramePath = filepath.Join(reportDir, rel)
		}
	}
	return segments
}

func procStats(svcs ServicesFactory, stats interface{}) {
	var err error
	switch stats := stats.(type) {
	case model.FramerStats:
		err = svcs.DataSvc.NewFramerStats(stats)
	case model.DetectorStats:
		err = svcs.DataSvc.NewDetectorStats(stats)
	case model.ExporterStats:
		err = svcs.DataSvc.NewExporterStats(stats)
	default:
		lgr.Logger.Error("unknown stats type", "stats", fmt.Sprintf("%T", stats))
		return
	}
	if err != nil {
		lgr.Logger.Error("failed to store stats", lgr.Err(err))
	}
}

func notifyWebhook(svcs ServicesFactory, result model.RunResult) {
	payload := map[string]interface{}{
		"runId":     result.RunID,
		"video":     result.Video.Path,
		"segments":  len(result.Segments),
		"reportDir": result.ReportDir,
		"timestamp": time.Now().Format(time.RFC3339),
	}
	if err := svcs.WebhookSvc.Post(payload); err != nil {
		lgr.Logger.Error("webhook post failed", lgr.Err(err))
	}
}
