package webhook

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/clipsift/evidence-go/service/config"
)

const postTimeout = 10 * time.Second

type httpService struct {
	cfgSvc config.IService
	client *http.Client
}

// NewHTTP posts payloads to the configured webhook URL. When no URL is
// configured, Post is a no-op.
func NewHTTP(cfgSvc config.IService) IService {
	return &httpService{
		cfgSvc: cfgSvc,
		client: &http.Client{Timeout: postTimeout},
	}
}

func (svc *httpService) Post(payload map[string]interface{}) error {
	url := svc.cfgSvc.GetWebhookURL()
	if url == "" {
		return nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	resp, err := svc.client.Post(url, "application/json", bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %d", resp.StatusCode)
	}
	return nil
}
