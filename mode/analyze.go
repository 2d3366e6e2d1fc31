package mode

import (
	"context"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"golang.org/x/xerrors"

	"github.com/clipsift/evidence-go/model"
	"github.com/clipsift/evidence-go/pipeline"
	"github.com/clipsift/evidence-go/service/lgr"
)

// Analyze runs one video through the pipeline and prints the evidence
// summary to the console.
func Analyze(canxCtx context.Context, svcs pipeline.ServicesFactory, args []string) error {
	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	file := fs.String("file", "", "video file to analyze (required)")
	labels := fs.String("labels", "", "comma-separated labels of interest (default from config)")
	conf := fs.Float64("conf", 0, "final confidence threshold (default from config)")
	skip := fs.Int("skip", 0, "analyze every Nth frame (default from config)")
	start := fs.String("start", "", "analysis window start as HH:MM:SS")
	end := fs.String("end", "", "analysis window end as HH:MM:SS")
	colorFilter := fs.String("color", "", "HSV color filter (white, black, red, blue, green, yellow)")
	gap := fs.Float64("gap", 0, "segment gap tolerance in seconds (default from config)")
	margin := fs.Float64("margin", 0, "segment pre/post margin in seconds (default from config)")
	out := fs.String("out", "", "output folder (default from config)")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" {
		fs.Usage()
		return xerrors.New("-file is required")
	}

	runCfg := model.RunConfig{
		VideoPath:           *file,
		ConfidenceThreshold: float32(*conf),
		FrameSkip:           *skip,
		ColorFilter:         *colorFilter,
		GapToleranceSec:     *gap,
		MarginSec:           *margin,
		OutputDir:           *out,
	}
	if *labels != "" {
		runCfg.Labels = strings.Split(*labels, ",")
	}
	if *start != "" {
		secs := model.HMSToSeconds(*start)
		if secs < 0 {
			return xerrors.New("invalid -start, expected HH:MM:SS")
		}
		runCfg.StartSec = float64(secs)
	}
	if *end != "" {
		secs := model.HMSToSeconds(*end)
		if secs < 0 {
			return xerrors.New("invalid -end, expected HH:MM:SS")
		}
		runCfg.EndSec = float64(secs)
	}

	run := model.Run{
		ID:        uuid.NewString(),
		Config:    runCfg,
		Status:    model.RunRunning,
		StartedAt: time.Now(),
	}
	if err := svcs.DataSvc.CreateRun(run); err != nil {
		return fmt.Errorf("error recording run: %w", err)
	}

	progressStream := make(chan model.Progress, 16)
	progressDone := make(chan struct{})
	go func() {
		defer close(progressDone)
		lastShown := -1
		for p := range progressStream {
			pct := int(p.Fraction * 100)
			if pct > lastShown {
				lastShown = pct
				fmt.Printf("\ranalyzing... %3d%% (%d frames, %d matches)", pct, p.FramesRead, p.FramesMatch)
			}
		}
		fmt.Println()
	}()

	result, err := pipeline.Run(canxCtx, svcs, run, progressStream)
	close(progressStream)
	<-progressDone

	if err != nil {
		status := model.RunFailed
		if canxCtx.Err() != nil {
			status = model.RunCancelled
		}
		if derr := svcs.DataSvc.UpdateRunStatus(run.ID, status, err.Error(), ""); derr != nil {
			lgr.Logger.Error("error updating run status", lgr.Err(derr))
		}
		color.Red("analysis failed: %v", err)
		return err
	}

	if derr := svcs.DataSvc.UpdateRunStatus(run.ID, model.RunCompleted, "", result.ReportDir); derr != nil {
		lgr.Logger.Error("error updating run status", lgr.Err(derr))
	}

	printSummary(result)
	return nil
}

func printSummary(result model.RunResult) {
	bold := color.New(color.Bold)

	bold.Printf("\n%s\n", result.Video.Path)
	fmt.Printf("  duration %s, %.2f fps, %dx%d\n",
		model.SecondsToHMS(result.Video.DurationSec), result.Video.FPS,
		result.Video.Width, result.Video.Height)
	fmt.Printf("  analyzed %d frames in %s (%.1f fps)\n",
		result.FramesRead, model.SecondsToMinSec(result.ElapsedSec), result.AnalysisRate)

	if len(result.Segments) == 0 {
		color.Yellow("\nno evidence found")
		fmt.Printf("report: %s\n", result.ReportDir)
		return
	}

	color.Green("\n%d evidence segment(s):", len(result.Segments))
	for i, seg := range result.Segments {
		fmt.Printf("  %2d. %s - %s  [%s]  peak %.2f  (%d frames)\n",
			i+1,
			model.SecondsToHMS(seg.StartSec),
			model.SecondsToHMS(seg.EndSec),
			strings.Join(seg.Labels, ", "),
			seg.PeakConfidence,
			seg.MatchingFrames)
	}
	fmt.Printf("\nreport: %s\n", result.ReportDir)
}
