package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"NewsDigest/internal/ports"
	"NewsDigest/internal/retry"
)

const defaultAPIURL = "https://api.telegram.org"

// Notifier sends digests to a Telegram chat via bot API.
type Notifier struct {
	botToken string
	chatID   string
	apiURL   string
	client   *http.Client
	retry    retry.Config
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier registers bot token and chat identifier.
func NewNotifier(client *http.Client, botToken, chatID, apiURL string) *Notifier {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	if apiURL == "" {
		apiURL = defaultAPIURL
	}
	return &Notifier{
		botToken: botToken,
		chatID:   chatID,
		apiURL:   strings.TrimRight(apiURL, "/"),
		client:   client,
		retry:    retry.Default(),
	}
}

// WithRetry overrides the retry policy.
func (n *Notifier) WithRetry(cfg retry.Config) *Notifier {
	n.retry = cfg
	return n
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	Result      struct {
		MessageID int64 `json:"message_id"`
	} `json:"result"`
}

// PublishDigest posts a plain-text message and returns its message id.
func (n *Notifier) PublishDigest(ctx context.Context, digest string) (string, error) {
	return n.send(ctx, digest, "")
}

// PublishReply posts text as a reply to the message identified by ref.
func (n *Notifier) PublishReply(ctx context.Context, ref, text string) error {
	if ref == "" {
		return errors.New("telegram reply: missing message id")
	}
	_, err := n.send(ctx, text, ref)
	return err
}

func (n *Notifier) send(ctx context.Context, text, replyTo string) (string, error) {
	if n.botToken == "" || n.chatID == "" || n.client == nil {
		return "", fmt.Errorf("telegram notifier misconfigured")
	}

	form := url.Values{}
	form.Set("chat_id", n.chatID)
	form.Set("text", text)
	form.Set("disable_web_page_preview", "true")
	if replyTo != "" {
		form.Set("reply_to_message_id", replyTo)
	}

	var id string
	err := retry.Do(ctx, n.retry, func() error {
		var callErr error
		id, callErr = n.call(ctx, form.Encode())
		return callErr
	})
	return id, err
}

func (n *Notifier) call(ctx context.Context, body string) (string, error) {
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.apiURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(body))
	if err != nil {
		return "", retry.Permanent(fmt.Errorf("new request: %w", err))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		statusErr := fmt.Errorf("telegram error: %s", resp.Status)
		if retry.RetryableStatus(resp.StatusCode) {
			return "", statusErr
		}
		return "", retry.Permanent(statusErr)
	}

	var decoded sendMessageResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", retry.Permanent(fmt.Errorf("decode response: %w", err))
	}
	if !decoded.OK {
		return "", retry.Permanent(fmt.Errorf("telegram api error: %s", decoded.Description))
	}

	return strconv.FormatInt(decoded.Result.MessageID, 10), nil
}
