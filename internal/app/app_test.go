package app

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"NewsDigest/internal/config"
	"NewsDigest/internal/domain"
	"NewsDigest/internal/logging"
)

const feed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>t</title>
<item><title>자동차SW 해킹 사고 - 뉴스사</title><link>https://a.com/1?utm_source=rss</link><pubDate>Tue, 02 Jan 2024 08:00:00 GMT</pubDate></item>
<item><title>자동차SW 해킹 사고 - 다른매체</title><link>https://b.com/9</link><pubDate>Tue, 02 Jan 2024 07:00:00 GMT</pubDate></item>
<item><title>SDV 리콜 발표</title><link>https://a.com/2</link><pubDate>Mon, 01 Jan 2024 08:00:00 GMT</pubDate></item>
<item><title>오늘의 날씨</title><link>https://a.com/3</link></item>
</channel></rss>`

func TestRunDryRun(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(feed))
	}))
	defer server.Close()

	cfg := config.Load("")
	cfg.Sources = []config.SourceConfig{{Name: "local", Scanner: "rss", URL: server.URL}}
	cfg.Delivery.Channel = config.ChannelSlack
	cfg.Delivery.Slack.BotToken = ""

	var out bytes.Buffer
	application, err := New(context.Background(), cfg, logging.NewWithWriter(&bytes.Buffer{}, "error", "text"), Options{
		DryRun:      true,
		MaxPerGroup: 1,
		Stdout:      &out,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer application.Close()

	report, err := application.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.Fetched != 4 || report.Relevant != 3 || report.DroppedNearDups != 1 || report.Groups != 2 {
		t.Fatalf("unexpected report: %+v", report)
	}

	text := out.String()
	if !strings.Contains(text, "*[보안]* (1)") || !strings.Contains(text, "*[사고]* (1)") {
		t.Fatalf("unexpected digest:\n%s", text)
	}
	if strings.Contains(text, "https://b.com/9") {
		t.Fatalf("near duplicate should be collapsed:\n%s", text)
	}
	if strings.Contains(text, "--- reply to") {
		t.Fatalf("no overflow expected:\n%s", text)
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.Load("")
	cfg.Delivery.Channel = config.ChannelTelegram
	cfg.Delivery.Telegram.BotToken = ""
	cfg.Storage.Driver = config.DriverNone

	if _, err := New(context.Background(), cfg, nil, Options{}); err == nil {
		t.Fatalf("expected validation error for telegram without credentials")
	}
}

func TestComposerFromConfig(t *testing.T) {
	t.Parallel()

	c := composerFromConfig(config.DigestConfig{
		Title:       "Weekly",
		MaxPerGroup: 3,
		TimeFormat:  "2006-01-02",
		Messages:    map[string]string{"topicLine": "- topic: %s", "unknown": "x"},
		TagLabels:   map[string]string{"SECURITY": "Security"},
	}, config.ChannelSlack)

	if c.MaxPerGroup != 3 || c.Messages.Title != "Weekly" || c.Messages.TopicLine != "- topic: %s" {
		t.Fatalf("overrides not applied: %+v", c.Messages)
	}
	if c.Messages.TagLabels[domain.TagSecurity] != "Security" || c.Messages.TagLabels[domain.TagIncident] != "사고" {
		t.Fatalf("unexpected tag labels: %v", c.Messages.TagLabels)
	}

	d := c.Compose("auto", []domain.Article{{Title: "a", URL: "https://a.com", Tags: []domain.Tag{domain.TagSecurity}}},
		time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))
	if !strings.Contains(d.Headline, "- topic: auto") || !strings.Contains(d.Headline, "*[Security]* (1)") {
		t.Fatalf("unexpected headline:\n%s", d.Headline)
	}
}

func TestComposerFromConfigTelegramIsPlainText(t *testing.T) {
	t.Parallel()

	c := composerFromConfig(config.DigestConfig{MaxPerGroup: 5}, config.ChannelTelegram)
	d := c.Compose("auto", []domain.Article{
		{Title: "<SDV> 리콜", URL: "https://a.com/1", Tags: []domain.Tag{domain.TagIncident}},
	}, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))

	if !strings.Contains(d.Headline, "1. <SDV> 리콜\n   https://a.com/1") {
		t.Fatalf("telegram items should be plain text:\n%s", d.Headline)
	}
	if strings.ContainsAny(d.Headline, "*|") {
		t.Fatalf("telegram headline must not carry Slack markup:\n%s", d.Headline)
	}

	slackComposer := composerFromConfig(config.DigestConfig{MaxPerGroup: 5}, config.ChannelSlack)
	if slackComposer.Messages.ItemLine != "%d. <%s|%s>" || !slackComposer.Messages.EscapeTitles {
		t.Fatalf("slack keeps the link layout: %+v", slackComposer.Messages)
	}
}
