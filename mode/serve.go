package mode

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/clipsift/evidence-go/model"
	"github.com/clipsift/evidence-go/pipeline"
	"github.com/clipsift/evidence-go/service/lgr"
)

// Serve exposes the analyzer over a local HTTP API. Runs are queued and
// executed one at a time by a single background worker; the handlers only
// ever see progress and results, never the worker's mutable state.
func Serve(canxCtx context.Context, svcs pipeline.ServicesFactory, _ []string) error {
	runStream, err := svcs.QueueSvc.Subscribe()
	if err != nil {
		return err
	}
	defer func() {
		if err := svcs.QueueSvc.Unsubscribe(); err != nil {
			lgr.Logger.Error("error unsubscribing from run queue", lgr.Err(err))
		}
	}()

	mgr := &runManager{svcs: svcs}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	api.POST("/runs", mgr.createRun)
	api.GET("/runs", mgr.listRuns)
	api.GET("/runs/:id", mgr.getRun)
	api.DELETE("/runs/:id", mgr.cancelRun)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", svcs.CfgSvc.GetHTTPPort()),
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		lgr.Logger.Info("http surface listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(),
			time.Duration(svcs.CfgSvc.GetModeMaxShutdownTime())*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			lgr.Logger.Error("error shutting down http server", lgr.Err(err))
		}
	}()

	// One run at a time: the loop body blocks until the current run is done.
	for {
		select {
		case <-canxCtx.Done():
			lgr.Logger.Info("serve mode context cancelled")
			return nil

		case err := <-serverErr:
			return err

		case run := <-runStream:
			mgr.execute(canxCtx, run)
		}
	}
}

// runManager owns the currently executing run. Handlers read it under the
// mutex; only execute mutates it.
type runManager struct {
	svcs pipeline.ServicesFactory

	mu        sync.Mutex
	currentID string
	canxFn    context.CancelFunc
	progress  float64
}

type createRunRequest struct {
	VideoPath                 string   `json:"videoPath" binding:"required"`
	Labels                    []string `json:"labels"`
	ConfidenceThreshold       float32  `json:"confidenceThreshold"`
	ObjectConfidenceThreshold float32  `json:"objectConfidenceThreshold"`
	FrameSkip                 int      `json:"frameSkip"`
	StartSec                  float64  `json:"startSec"`
	EndSec                    float64  `json:"endSec"`
	ColorFilter               string   `json:"colorFilter"`
	GapToleranceSec           float64  `json:"gapToleranceSec"`
	MarginSec                 float64  `json:"marginSec"`
}

func (m *runManager) createRun(c *gin.Context) {
	var req createRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := os.Stat(req.VideoPath); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "video file not found"})
		return
	}

	run := model.Run{
		ID: uuid.NewString(),
		Config: model.RunConfig{
			VideoPath:                 req.VideoPath,
			Labels:                    req.Labels,
			ConfidenceThreshold:       req.ConfidenceThreshold,
			ObjectConfidenceThreshold: req.ObjectConfidenceThreshold,
			FrameSkip:                 req.FrameSkip,
			StartSec:                  req.StartSec,
			EndSec:                    req.EndSec,
			ColorFilter:               req.ColorFilter,
			GapToleranceSec:           req.GapToleranceSec,
			MarginSec:                 req.MarginSec,
		},
		Status:    model.RunPending,
		StartedAt: time.Now(),
	}

	if err := m.svcs.DataSvc.CreateRun(run); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if err := m.svcs.QueueSvc.Publish(run); err != nil {
		if derr := m.svcs.DataSvc.UpdateRunStatus(run.ID, model.RunFailed, err.Error(), ""); derr != nil {
			lgr.Logger.Error("error updating run status", lgr.Err(derr))
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"id": run.ID})
}

func (m *runManager) listRuns(c *gin.Context) {
	runs, err := m.svcs.DataSvc.RetrieveRuns(50)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	m.mu.Lock()
	currentID, progress := m.currentID, m.progress
	m.mu.Unlock()

	for i := range runs {
		if runs[i].ID == currentID {
			runs[i].Progress = progress
		}
	}

	c.JSON(http.StatusOK, runs)
}

func (m *runManager) getRun(c *gin.Context) {
	id := c.Param("id")

	run, err := m.svcs.DataSvc.RetrieveRunByID(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}

	m.mu.Lock()
	if run.ID == m.currentID {
		run.Progress = m.progress
	}
	m.mu.Unlock()

	segments, err := m.svcs.DataSvc.RetrieveSegments(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"run": run, "segments": segments})
}

func (m *runManager) cancelRun(c *gin.Context) {
	id := c.Param("id")

	m.mu.Lock()
	isCurrent := id == m.currentID && m.canxFn != nil
	if isCurrent {
		m.canxFn()
	}
	m.mu.Unlock()

	if !isCurrent {
		c.JSON(http.StatusConflict, gin.H{"error": "run is not executing"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"id": id, "status": model.RunCancelled})
}

// execute runs one analysis to completion. It blocks the serve loop, which
// is what serializes runs.
func (m *runManager) execute(canxCtx context.Context, run model.Run) {
	runCtx, runCanxFn := context.WithCancel(canxCtx)
	defer runCanxFn()

	m.mu.Lock()
	m.currentID = run.ID
	m.canxFn = runCanxFn
	m.progress = 0
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.currentID = ""
		m.canxFn = nil
		m.progress = 0
		m.mu.Unlock()
	}()

	if err := m.svcs.DataSvc.UpdateRunStatus(run.ID, model.RunRunning, "", ""); err != nil {
		lgr.Logger.Error("error updating run status", lgr.Err(err))
	}

	progressStream := make(chan model.Progress, 16)
	progressDone := make(chan struct{})
	go func() {
		defer close(progressDone)
		lastStored := 0.0
		for p := range progressStream {
			m.mu.Lock()
			m.progress = p.Fraction
			m.mu.Unlock()

			// Persist progress at 1% granularity to keep writes bounded.
			if p.Fraction-lastStored >= 0.01 {
				lastStored = p.Fraction
				if err := m.svcs.DataSvc.UpdateRunProgress(run.ID, p.Fraction); err != nil {
					lgr.Logger.Error("error updating run progress", lgr.Err(err))
				}
			}
		}
	}()

	result, err := pipeline.Run(runCtx, m.svcs, run, progressStream)
	close(progressStream)
	<-progressDone

	if err != nil {
		status := model.RunFailed
		if runCtx.Err() != nil {
			status = model.RunCancelled
		}
		if derr := m.svcs.DataSvc.UpdateRunStatus(run.ID, status, err.Error(), ""); derr != nil {
			lgr.Logger.Error("error updating run status", lgr.Err(derr))
		}
		lgr.Logger.Error("run failed", "runId", run.ID, lgr.Err(err))
		return
	}

	if derr := m.svcs.DataSvc.UpdateRunStatus(run.ID, model.RunCompleted, "", result.ReportDir); derr != nil {
		lgr.Logger.Error("error updating run status", lgr.Err(derr))
	}

	lgr.Logger.Info("run completed",
		"runId", run.ID,
		"segments", len(result.Segments),
		"reportDir", result.ReportDir,
	)
}
