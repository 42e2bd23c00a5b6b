package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"NewsDigest/internal/ports"
	"NewsDigest/internal/retry"
)

const defaultAPIURL = "https://slack.com/api"

// Notifier posts digests to a Slack channel through chat.postMessage.
type Notifier struct {
	botToken  string
	channelID string
	apiURL    string
	client    *http.Client
	retry     retry.Config
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier registers the bot token and the target channel. An empty
// apiURL falls back to the public Slack endpoint.
func NewNotifier(client *http.Client, botToken, channelID, apiURL string) *Notifier {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if apiURL == "" {
		apiURL = defaultAPIURL
	}
	return &Notifier{
		botToken:  botToken,
		channelID: channelID,
		apiURL:    strings.TrimRight(apiURL, "/"),
		client:    client,
		retry:     retry.Default(),
	}
}

// WithRetry overrides the retry policy.
func (n *Notifier) WithRetry(cfg retry.Config) *Notifier {
	n.retry = cfg
	return n
}

type postMessageRequest struct {
	Channel     string `json:"channel"`
	Text        string `json:"text"`
	UnfurlLinks bool   `json:"unfurl_links"`
	UnfurlMedia bool   `json:"unfurl_media"`
	ThreadTS    string `json:"thread_ts,omitempty"`
}

type postMessageResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
	TS    string `json:"ts"`
}

// PublishDigest posts the headline message and returns its timestamp.
func (n *Notifier) PublishDigest(ctx context.Context, text string) (string, error) {
	return n.post(ctx, text, "")
}

// PublishReply posts text into the thread of the message identified by ref.
func (n *Notifier) PublishReply(ctx context.Context, ref, text string) error {
	if ref == "" {
		return errors.New("slack reply: missing thread timestamp")
	}
	_, err := n.post(ctx, text, ref)
	return err
}

func (n *Notifier) post(ctx context.Context, text, threadTS string) (string, error) {
	if n.botToken == "" || n.channelID == "" {
		return "", fmt.Errorf("slack notifier misconfigured")
	}

	payload, err := json.Marshal(postMessageRequest{
		Channel:  n.channelID,
		Text:     text,
		ThreadTS: threadTS,
	})
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}

	var ts string
	err = retry.Do(ctx, n.retry, func() error {
		var callErr error
		ts, callErr = n.call(ctx, payload)
		return callErr
	})
	if err != nil {
		return "", err
	}
	return ts, nil
}

func (n *Notifier) call(ctx context.Context, payload []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.apiURL+"/chat.postMessage", bytes.NewReader(payload))
	if err != nil {
		return "", retry.Permanent(fmt.Errorf("new request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+n.botToken)

	resp, err := n.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		statusErr := fmt.Errorf("slack error: %s", resp.Status)
		if retry.RetryableStatus(resp.StatusCode) {
			return "", statusErr
		}
		return "", retry.Permanent(statusErr)
	}

	var decoded postMessageResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", retry.Permanent(fmt.Errorf("decode response: %w", err))
	}
	if !decoded.OK {
		return "", retry.Permanent(fmt.Errorf("slack api error: %s", decoded.Error))
	}

	return decoded.TS, nil
}
