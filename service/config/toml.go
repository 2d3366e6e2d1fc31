package config

import (
	"os"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

// fileConfig mirrors the layout of config.toml.
type fileConfig struct {
	Mode struct {
		MaxShutdownTime int `toml:"max_shutdown_time"`
	} `toml:"mode"`
	Output struct {
		Folder string `toml:"folder"`
	} `toml:"output"`
	Runs struct {
		DBFile string `toml:"db_file"`
	} `toml:"runs"`
	HTTP struct {
		Port int `toml:"port"`
	} `toml:"http"`
	Webhook struct {
		URL string `toml:"url"`
	} `toml:"webhook"`
	Framer struct {
		FrameSkip int `toml:"frame_skip"`
	} `toml:"framer"`
	Detector    DetectorParameters    `toml:"detector"`
	Accumulator AccumulatorParameters `toml:"accumulator"`
	Archive     ArchiveParameters     `toml:"archive"`
}

// envOverrides are applied on top of whatever the toml file says so that
// deployments can tweak the service without editing files.
type envOverrides struct {
	OutputFolder    string `env:"OUTPUT_FOLDER"`
	RunsDBFile      string `env:"RUNS_DB_FILE"`
	HTTPPort        int    `env:"HTTP_PORT"`
	WebhookURL      string `env:"WEBHOOK_URL"`
	ModelPath       string `env:"MODEL_PATH"`
	ClassNamesPath  string `env:"CLASS_NAMES_PATH"`
	ArchiveEndpoint string `env:"ARCHIVE_ENDPOINT"`
	ArchiveAccess   string `env:"ARCHIVE_ACCESS_KEY"`
	ArchiveSecret   string `env:"ARCHIVE_SECRET_KEY"`
	ArchiveBucket   string `env:"ARCHIVE_BUCKET"`
}

type tomlService struct {
	cfg fileConfig
}

// NewToml loads configuration from the given toml file, falling back to
// defaults for anything missing, then applies environment overrides.
// A missing file is not an error; defaults apply.
func NewToml(path string) (IService, error) {
	svc := &tomlService{cfg: defaults()}

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &svc.cfg); err != nil {
			return nil, err
		}
	}

	var overrides envOverrides
	if err := env.Parse(&overrides); err != nil {
		return nil, err
	}
	svc.apply(overrides)

	return svc, nil
}

func defaults() fileConfig {
	var c fileConfig
	c.Mode.MaxShutdownTime = 5
	c.Output.Folder = "./output"
	c.Runs.DBFile = "./output/runs.db"
	c.HTTP.Port = 8080
	c.Framer.FrameSkip = 1
	c.Detector = DetectorParameters{
		ModelPath:                 "./yolo5/yolov5s.onnx",
		ClassNamesPath:            "./yolo5/coco.names",
		Labels:                    []string{"person", "bicycle", "car", "truck", "bus"},
		ConfidenceThreshold:       0.5,
		ObjectConfidenceThreshold: 0.5,
		ColorMatchThreshold:       0.2,
		InputSize:                 640,
		Logging:                   false,
	}
	c.Accumulator = AccumulatorParameters{
		GapToleranceSec: 1.0,
		MarginSec:       0.5,
	}
	return c
}

func (svc *tomlService) apply(o envOverrides) {
	if o.OutputFolder != "" {
		svc.cfg.Output.Folder = o.OutputFolder
	}
	if o.RunsDBFile != "" {
		svc.cfg.Runs.DBFile = o.RunsDBFile
	}
	if o.HTTPPort != 0 {
		svc.cfg.HTTP.Port = o.HTTPPort
	}
	if o.WebhookURL != "" {
		svc.cfg.Webhook.URL = o.WebhookURL
	}
	if o.ModelPath != "" {
		svc.cfg.Detector.ModelPath = o.ModelPath
	}
	if o.ClassNamesPath != "" {
		svc.cfg.Detector.ClassNamesPath = o.ClassNamesPath
	}
	if o.ArchiveEndpoint != "" {
		svc.cfg.Archive.Endpoint = o.ArchiveEndpoint
	}
	if o.ArchiveAccess != "" {
		svc.cfg.Archive.AccessKey = o.ArchiveAccess
	}
	if o.ArchiveSecret != "" {
		svc.cfg.Archive.SecretKey = o.ArchiveSecret
	}
	if o.ArchiveBucket != "" {
		svc.cfg.Archive.Bucket = o.ArchiveBucket
	}
}

func (svc *tomlService) GetModeMaxShutdownTime() int {
	return svc.cfg.Mode.MaxShutdownTime
}

func (svc *tomlService) GetOutputFolder() string {
	return svc.cfg.Output.Folder
}

func (svc *tomlService) GetRunsDBFile() string {
	return svc.cfg.Runs.DBFile
}

func (svc *tomlService) GetHTTPPort() int {
	return svc.cfg.HTTP.Port
}

func (svc *tomlService) GetWebhookURL() string {
	return svc.cfg.Webhook.URL
}

func (svc *tomlService) GetDefaultFrameSkip() int {
	if svc.cfg.Framer.FrameSkip < 1 {
		return 1
	}
	return svc.cfg.Framer.FrameSkip
}

func (svc *tomlService) GetDetectorParameters() DetectorParameters {
	return svc.cfg.Detector
}

func (svc *tomlService) GetAccumulatorParameters() AccumulatorParameters {
	return svc.cfg.Accumulator
}

func (svc *tomlService) GetArchiveParameters() ArchiveParameters {
	return svc.cfg.Archive
}
