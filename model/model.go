package model

import (
	"fmt"
	"runtime/debug"
	"time"
)

type CustomError struct {
	Processor  string                 `json:"processor"`
	Inner      error                  `json:"innerError"`
	Message    string                 `json:"message"`
	StackTrace string                 `json:"stackTrace"`
	Misc       map[string]interface{} `json:"misc"`
}

func (e CustomError) Error() string {
	if e.Inner != nil {
		return fmt.Sprintf("%s: %s: %v", e.Processor, e.Message, e.Inner)
	}
	return fmt.Sprintf("%s: %s", e.Processor, e.Message)
}

func (e CustomError) Unwrap() error {
	return e.Inner
}

func GenError(proc string, err error, misc map[string]interface{}, messagef string, args ...interface{}) CustomError {
	return CustomError{
		Processor:  proc,
		Inner:      err,
		Message:    fmt.Sprintf(messagef, args...),
		StackTrace: string(debug.Stack()),
		Misc:       misc,
	}
}

// RunStatus tracks the lifecycle of a single analysis run.
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
	RunCancelled RunStatus = "cancelled"
)

// RunConfig carries everything the pipeline worker needs to analyze one video.
// Zero values fall back to the configured defaults (see service/config).
type RunConfig struct {
	VideoPath                 string   `json:"videoPath"`
	Labels                    []string `json:"labels"`
	ConfidenceThreshold       float32  `json:"confidenceThreshold"`
	ObjectConfidenceThreshold float32  `json:"objectConfidenceThreshold"`
	FrameSkip                 int      `json:"frameSkip"`
	StartSec                  float64  `json:"startSec"`
	EndSec                    float64  `json:"endSec"` // 0 means end of video
	ColorFilter               string   `json:"colorFilter"`
	GapToleranceSec           float64  `json:"gapToleranceSec"`
	MarginSec                 float64  `json:"marginSec"`
	OutputDir                 string   `json:"outputDir"`
}

type Run struct {
	ID        string    `json:"id"`
	Config    RunConfig `json:"config"`
	Status    RunStatus `json:"status"`
	Progress  float64   `json:"progress"`
	Error     string    `json:"error,omitempty"`
	ReportDir string    `json:"reportDir,omitempty"`
	StartedAt time.Time `json:"startedAt"`
	EndedAt   time.Time `json:"endedAt"`
}

// VideoMeta is what ffprobe tells us about a container before analysis.
type VideoMeta struct {
	Path        string  `json:"path"`
	DurationSec float64 `json:"durationSec"`
	FPS         float64 `json:"fps"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	TotalFrames int     `json:"totalFrames"`
}

// Detection is one recognized object in one frame.
type Detection struct {
	Label            string  `json:"label"`
	ObjectConfidence float32 `json:"objectConfidence"`
	ClassConfidence  float32 `json:"classConfidence"`
	Confidence       float32 `json:"confidence"`
	X                int     `json:"x"`
	Y                int     `json:"y"`
	Width            int     `json:"width"`
	Height           int     `json:"height"`
}

// DetectionEvent is one frame's worth of model output, stamped with the
// frame's position in the video. Events arrive at the accumulator in
// increasing TimeSec order.
type DetectionEvent struct {
	FrameIndex int         `json:"frameIndex"`
	TimeSec    float64     `json:"timeSec"`
	Detections []Detection `json:"detections"`
}

// Segment is a merged, contiguous time range of qualifying detection events.
type Segment struct {
	StartSec       float64  `json:"startSec"`
	EndSec         float64  `json:"endSec"`
	Labels         []string `json:"labels"`
	MatchingFrames int      `json:"matchingFrames"`
	PeakConfidence float32  `json:"peakConfidence"`
	ClipPath       string   `json:"clipPath,omitempty"`
	FramePath      string   `json:"framePath,omitempty"`
}

func (s Segment) DurationSec() float64 {
	return s.EndSec - s.StartSec
}

// Progress messages flow from the pipeline worker to whoever is watching
// (the CLI printer or the HTTP surface). Fraction is monotonically
// non-decreasing for the lifetime of a run.
type Progress struct {
	RunID       string  `json:"runId"`
	Fraction    float64 `json:"fraction"`
	FramesRead  int     `json:"framesRead"`
	FramesMatch int     `json:"framesMatch"`
}

// RunResult is the immutable result handed back once a run completes.
type RunResult struct {
	RunID        string    `json:"runId"`
	Video        VideoMeta `json:"video"`
	Segments     []Segment `json:"segments"`
	ReportDir    string    `json:"reportDir"`
	FramesRead   int       `json:"framesRead"`
	AnalysisRate float64   `json:"analysisRate"` // analyzed frames per wall-clock second
	ElapsedSec   float64   `json:"elapsedSec"`
}

type FramerStats struct {
	Name          string `json:"name"`
	Video         string `json:"video"`
	FPS           int    `json:"fps"`
	Frames        int    `json:"frames"`
	SkippedFrames int    `json:"skippedFrames"`
	Errors        int    `json:"errors"`
	Uptime        int64  `json:"uptime"`
	Timestamp     int64  `json:"timestamp"`
}

type DetectorStats struct {
	Name        string  `json:"name"`
	Video       string  `json:"video"`
	FPS         int     `json:"fps"`
	Frames      int     `json:"frames"`
	Errors      int     `json:"errors"`
	Uptime      int64   `json:"uptime"`
	AvgProcTime float64 `json:"avgProcTime"`
	Timestamp   int64   `json:"timestamp"`
}

type ExporterStats struct {
	Name      string `json:"name"`
	Video     string `json:"video"`
	Clips     int    `json:"clips"`
	Errors    int    `json:"errors"`
	Uptime    int64  `json:"uptime"`
	Timestamp int64  `json:"timestamp"`
}
