package data

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/clipsift/evidence-go/model"
)

type runRecord struct {
	ID        string `gorm:"primaryKey"`
	Config    string // RunConfig as JSON
	Status    string `gorm:"index"`
	Progress  float64
	Error     string
	ReportDir string
	StartedAt time.Time
	EndedAt   time.Time
}

type segmentRecord struct {
	ID             uint   `gorm:"primaryKey;autoIncrement"`
	RunID          string `gorm:"index"`
	StartSec       float64
	EndSec         float64
	Labels         string // comma separated
	MatchingFrames int
	PeakConfidence float32
	ClipPath       string
	FramePath      string
}

type statsRecord struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	Component string `gorm:"index"`
	Payload   string // component stats as JSON
	CreatedAt time.Time
}

type errorRecord struct {
	ID        uint `gorm:"primaryKey;autoIncrement"`
	Payload   string
	CreatedAt time.Time
}

type sqliteService struct {
	db *gorm.DB
}

// NewSQLite opens (or creates) the runs catalog at the given path and
// migrates the schema. Use ":memory:" for tests.
func NewSQLite(path string) (IService, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open runs db: %w", err)
	}

	if err := db.AutoMigrate(&runRecord{}, &segmentRecord{}, &statsRecord{}, &errorRecord{}); err != nil {
		return nil, fmt.Errorf("migrate runs db: %w", err)
	}

	return &sqliteService{db: db}, nil
}

func (svc *sqliteService) CreateRun(run model.Run) error {
	cfg, err := json.Marshal(run.Config)
	if err != nil {
		return err
	}

	rec := runRecord{
		ID:        run.ID,
		Config:    string(cfg),
		Status:    string(run.Status),
		Progress:  run.Progress,
		Error:     run.Error,
		ReportDir: run.ReportDir,
		StartedAt: run.StartedAt,
		EndedAt:   run.EndedAt,
	}
	return svc.db.Create(&rec).Error
}

func (svc *sqliteService) UpdateRunProgress(id string, fraction float64) error {
	return svc.db.Model(&runRecord{}).
		Where("id = ?", id).
		Update("progress", fraction).Error
}

func (svc *sqliteService) UpdateRunStatus(id string, status model.RunStatus, errMsg string, reportDir string) error {
	updates := map[string]interface{}{
		"status": string(status),
		"error":  errMsg,
	}
	switch status {
	case model.RunCompleted, model.RunFailed, model.RunCancelled:
		updates["ended_at"] = time.Now()
	}
	if reportDir != "" {
		updates["report_dir"] = reportDir
	}
	if status == model.RunCompleted {
		updates["progress"] = 1.0
	}
	return svc.db.Model(&runRecord{}).Where("id = ?", id).Updates(updates).Error
}

func (svc *sqliteService) RetrieveRuns(limit int) ([]model.Run, error) {
	if limit <= 0 {
		limit = 50
	}

	var recs []runRecord
	if err := svc.db.Order("started_at desc").Limit(limit).Find(&recs).Error; err != nil {
		return nil, err
	}

	runs := make([]model.Run, 0, len(recs))
	for _, rec := range recs {
		run, err := rec.toRun()
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, nil
}

func (svc *sqliteService) RetrieveRunByID(id string) (model.Run, error) {
	var rec runRecord
	if err := svc.db.First(&rec, "id = ?", id).Error; err != nil {
		return model.Run{}, err
	}
	return rec.toRun()
}

func (svc *sqliteService) NewSegments(runID string, segments []model.Segment) error {
	if len(segments) == 0 {
		return nil
	}

	recs := make([]segmentRecord, 0, len(segments))
	for _, seg := range segments {
		recs = append(recs, segmentRecord{
			RunID:          runID,
			StartSec:       seg.StartSec,
			EndSec:         seg.EndSec,
			Labels:         strings.Join(seg.Labels, ","),
			MatchingFrames: seg.MatchingFrames,
			PeakConfidence: seg.PeakConfidence,
			ClipPath:       seg.ClipPath,
			FramePath:      seg.FramePath,
		})
	}
	return svc.db.Create(&recs).Error
}

func (svc *sqliteService) RetrieveSegments(runID string) ([]model.Segment, error) {
	var recs []segmentRecord
	if err := svc.db.Where("run_id = ?", runID).Order("start_sec asc").Find(&recs).Error; err != nil {
		return nil, err
	}

	segments := make([]model.Segment, 0, len(recs))
	for _, rec := range recs {
		var labels []string
		if rec.Labels != "" {
			labels = strings.Split(rec.Labels, ",")
		}
		segments = append(segments, model.Segment{
			StartSec:       rec.StartSec,
			EndSec:         rec.EndSec,
			Labels:         labels,
			MatchingFrames: rec.MatchingFrames,
			PeakConfidence: rec.PeakConfidence,
			ClipPath:       rec.ClipPath,
			FramePath:      rec.FramePath,
		})
	}
	return segments, nil
}

func (svc *sqliteService) NewError(err interface{}) error {
	payload, merr := json.Marshal(map[string]interface{}{"error": fmt.Sprintf("%v", err)})
	if merr != nil {
		return merr
	}
	return svc.db.Create(&errorRecord{Payload: string(payload)}).Error
}

func (svc *sqliteService) NewFramerStats(stats model.FramerStats) error {
	return svc.newStats(stats.Name, stats)
}

func (svc *sqliteService) NewDetectorStats(stats model.DetectorStats) error {
	return svc.newStats(stats.Name, stats)
}

func (svc *sqliteService) NewExporterStats(stats model.ExporterStats) error {
	return svc.newStats(stats.Name, stats)
}

func (svc *sqliteService) newStats(component string, stats interface{}) error {
	payload, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	return svc.db.Create(&statsRecord{Component: component, Payload: string(payload)}).Error
}

func (svc *sqliteService) Close() error {
	sqlDB, err := svc.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (rec runRecord) toRun() (model.Run, error) {
	var cfg model.RunConfig
	if rec.Config != "" {
		if err := json.Unmarshal([]byte(rec.Config), &cfg); err != nil {
			return model.Run{}, err
		}
	}
	return model.Run{
		ID:        rec.ID,
		Config:    cfg,
		Status:    model.RunStatus(rec.Status),
		Progress:  rec.Progress,
		Error:     rec.Error,
		ReportDir: rec.ReportDir,
		StartedAt: rec.StartedAt,
		EndedAt:   rec.EndedAt,
	}, nil
}
