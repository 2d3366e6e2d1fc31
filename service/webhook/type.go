package webhook

// IService notifies an external endpoint about completed runs.
type IService interface {
	Post(payload map[string]interface{}) error
}
