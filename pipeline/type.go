package pipeline

import (
	"gocv.io/x/gocv"

	"github.com/clipsift/evidence-go/model"
	"github.com/clipsift/evidence-go/service/config"
	"github.com/clipsift/evidence-go/service/data"
	"github.com/clipsift/evidence-go/service/inference"
	"github.com/clipsift/evidence-go/service/media"
	"github.com/clipsift/evidence-go/service/queue"
	"github.com/clipsift/evidence-go/service/report"
	"github.com/clipsift/evidence-go/service/storage"
	"github.com/clipsift/evidence-go/service/webhook"
)

// ServicesFactory bundles the services the pipeline and modes need.
type ServicesFactory struct {
	CfgSvc       config.IService
	DataSvc      data.IService
	MediaSvc     media.IService
	InferenceSvc inference.IService
	StorageSvc   storage.IService
	WebhookSvc   webhook.IService
	ReportSvc    report.IService
	QueueSvc     queue.IService
}

// FrameData is one decoded frame on its way to the detector. The receiver
// owns the Mat and must close it.
type FrameData struct {
	Mat        gocv.Mat
	FrameIndex int
	TimeSec    float64
}

// EventData is one analyzed frame's detection output. Frame is a valid Mat
// only when the event has detections (it carries the annotated frame for
// evidence export); the receiver owns it.
type EventData struct {
	Event model.DetectionEvent
	Frame gocv.Mat
}

const streamBuffer = 100
