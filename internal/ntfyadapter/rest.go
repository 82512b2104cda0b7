package ntfyadapter

import (
	"fmt"
	"strings"
)

// publish posts body as the topic's message payload.
func (a *Adapter) publish(body string) error {
	url := fmt.Sprintf("%s/%s", ntfyBase, a.cfg.Topic)
	resp, err := a.httpClient.Post(url, "text/plain; charset=utf-8", strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("ntfyadapter: publish to %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("ntfyadapter: publish to %s: status %d", url, resp.StatusCode)
	}
	return nil
}
