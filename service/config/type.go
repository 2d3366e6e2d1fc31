package config

// DetectorParameters drive the DNN stage of the pipeline.
type DetectorParameters struct {
	ModelPath                 string   `toml:"model_path"`
	ClassNamesPath            string   `toml:"class_names_path"`
	Labels                    []string `toml:"labels"`
	ConfidenceThreshold       float32  `toml:"confidence_threshold"`
	ObjectConfidenceThreshold float32  `toml:"object_confidence_threshold"`
	ColorMatchThreshold       float64  `toml:"color_match_threshold"`
	InputSize                 int      `toml:"input_size"`
	Logging                   bool     `toml:"logging"`
}

// AccumulatorParameters drive segment merging.
type AccumulatorParameters struct {
	GapToleranceSec float64 `toml:"gap_tolerance_sec"`
	MarginSec       float64 `toml:"margin_sec"`
}

// ArchiveParameters configure optional S3-compatible clip archival.
// Archival is off unless Endpoint is set.
type ArchiveParameters struct {
	Endpoint  string `toml:"endpoint"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	Bucket    string `toml:"bucket"`
	UseSSL    bool   `toml:"use_ssl"`
}

type IService interface {
	GetModeMaxShutdownTime() int
	GetOutputFolder() string
	GetRunsDBFile() string
	GetHTTPPort() int
	GetWebhookURL() string
	GetDefaultFrameSkip() int
	GetDetectorParameters() DetectorParameters
	GetAccumulatorParameters() AccumulatorParameters
	GetArchiveParameters() ArchiveParameters
}
