package slackadapter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
)

const postMessageURL = "https://slack.com/api/chat.postMessage"

type postMessageBody struct {
	Channel string `json:"channel"`
	Text    string `json:"text"`
}

type postMessageResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// postMessage sends text to channelID via chat.postMessage.
func (a *Adapter) postMessage(channelID, text string) error {
	body, err := json.Marshal(postMessageBody{Channel: channelID, Text: text})
	if err != nil {
		return fmt.Errorf("slackadapter: encode chat.postMessage body: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, postMessageURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slackadapter: build chat.postMessage request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+a.cfg.BotToken)
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("slackadapter: chat.postMessage: %w", err)
	}
	defer resp.Body.Close()

	var out postMessageResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("slackadapter: decode chat.postMessage response: %w", err)
	}
	if !out.OK {
		return fmt.Errorf("slackadapter: chat.postMessage failed: %s", out.Error)
	}
	return nil
}
