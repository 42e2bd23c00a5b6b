package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"NewsDigest/internal/classify"
	"NewsDigest/internal/config"
	"NewsDigest/internal/digest"
	"NewsDigest/internal/domain"
	"NewsDigest/internal/infrastructure/console"
	"NewsDigest/internal/infrastructure/httpapi"
	"NewsDigest/internal/infrastructure/parser"
	"NewsDigest/internal/infrastructure/slack"
	"NewsDigest/internal/infrastructure/storage"
	"NewsDigest/internal/infrastructure/telegram"
	"NewsDigest/internal/logging"
	"NewsDigest/internal/ports"
	"NewsDigest/internal/scanner"
	"NewsDigest/internal/usecase"
	"NewsDigest/pkg/logger"
)

// Options adjust a loaded config for a single invocation.
type Options struct {
	// DryRun prints the digest to Stdout and keeps seen articles in memory only.
	DryRun bool
	// NoDelivery builds the application without a chat notifier (HTTP surface).
	NoDelivery  bool
	MaxPerGroup int
	Stdout      io.Writer
}

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg      config.Config
	log      *slog.Logger
	pipeline *usecase.Pipeline
	handler  *httpapi.Handler
	closers  []func() error
}

// New validates cfg and builds every adapter it selects.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger, opts Options) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}

	if opts.DryRun {
		cfg.Delivery.Channel = config.ChannelStdout
		cfg.Storage.Driver = config.DriverNone
	}
	if opts.NoDelivery {
		cfg.Delivery.Channel = config.ChannelStdout
	}
	if opts.MaxPerGroup > 0 {
		cfg.Digest.MaxPerGroup = opts.MaxPerGroup
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	a := &Application{cfg: cfg, log: baseLogger}

	httpClient := &http.Client{Timeout: cfg.HTTP.Timeout}

	registry := scanner.NewRegistry()
	registry.Register(parser.NewRSSScanner(httpClient, cfg.HTTP.UserAgent))
	registry.Register(parser.NewGoogleNewsScanner(httpClient, cfg.HTTP.UserAgent))
	source := parser.NewStrategySource(registry, cfg.Sources, cfg.Topic.Query, baseLogger.With("component", "source"))

	classifier := classify.New(rulesFromConfig(cfg.Rules))
	composer := composerFromConfig(cfg.Digest, cfg.Delivery.Channel)

	repo, lister, err := a.openStorage(ctx, cfg.Storage)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	var notifier ports.Notifier
	if !opts.NoDelivery {
		notifier = newNotifier(cfg, httpClient, opts.Stdout)
	}

	a.pipeline = usecase.NewPipeline(usecase.PipelineDeps{
		Source:     source,
		Classifier: classifier,
		Repository: repo,
		Composer:   composer,
		Notifier:   notifier,
		Logger:     baseLogger.With("component", "pipeline"),
		Query:      cfg.Topic.Query,
		Label:      cfg.Topic.Label,
	})
	a.handler = httpapi.NewHandler(classifier, composer, lister, cfg.Topic.Label)

	return a, nil
}

// Run performs a single pipeline execution.
func (a *Application) Run(ctx context.Context) (domain.RunReport, error) {
	now := time.Now().In(a.cfg.Digest.Location())
	return a.pipeline.Run(ctx, now)
}

// Serve exposes the health and preview endpoints until ctx is cancelled.
func (a *Application) Serve(ctx context.Context, addr string) error {
	if addr == "" {
		addr = a.cfg.Server.Addr
	}
	gin.SetMode(gin.ReleaseMode)
	a.log.Info("http server listening", "addr", addr)
	return httpapi.Serve(ctx, addr, httpapi.NewServer(a.handler, a.log.With("component", "http")))
}

// Close releases storage connections.
func (a *Application) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *Application) openStorage(ctx context.Context, cfg config.StorageConfig) (ports.ArticleRepository, ports.ArticleLister, error) {
	switch cfg.Driver {
	case config.DriverPostgres, config.DriverMySQL, config.DriverSQLite:
		db, err := storage.Open(ctx, cfg.Driver, cfg.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open storage: %w", err)
		}
		a.closers = append(a.closers, db.Close)

		if cfg.AutoMigrate() {
			version, dirty, err := storage.Migrate(db, cfg.Driver, logger.New(a.log, "migrate", false))
			if err != nil {
				return nil, nil, fmt.Errorf("migrate storage: %w", err)
			}
			a.log.Info("storage migrated", "driver", cfg.Driver, "version", version, "dirty", dirty)
		}

		repo, err := storage.NewSQLRepository(db, cfg.Driver)
		if err != nil {
			return nil, nil, err
		}
		return repo, repo, nil

	case config.DriverRedis:
		client, err := storage.NewRedisClient(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, nil, fmt.Errorf("open storage: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		return storage.NewRedisRepository(client, cfg.RedisTTL), nil, nil

	default:
		repo := storage.NewMemoryRepository()
		return repo, repo, nil
	}
}

func newNotifier(cfg config.Config, client *http.Client, stdout io.Writer) ports.Notifier {
	switch cfg.Delivery.Channel {
	case config.ChannelSlack:
		s := cfg.Delivery.Slack
		return slack.NewNotifier(client, s.BotToken, s.ChannelID, s.APIURL)
	case config.ChannelTelegram:
		t := cfg.Delivery.Telegram
		return telegram.NewNotifier(client, t.BotToken, t.ChatID, t.APIURL)
	default:
		return console.NewNotifier(stdout)
	}
}

func rulesFromConfig(r config.RulesConfig) classify.Rules {
	return classify.Rules{
		Strong:     r.Strong,
		Software:   r.Software,
		Category:   r.Category,
		Security:   r.Security,
		Regulation: r.Regulation,
		Incident:   r.Incident,
		Exclude:    r.Exclude,
	}
}

// composerFromConfig overlays configured strings on the layout of the
// delivery channel: Slack mrkdwn by default, plain text for Telegram.
// Unknown message keys are ignored; Validate reports them.
func composerFromConfig(d config.DigestConfig, channel string) *digest.Composer {
	c := digest.NewComposer(d.MaxPerGroup)
	c.Location = d.Location()
	if d.TimeFormat != "" {
		c.TimeFormat = d.TimeFormat
	}

	msgs := c.Messages
	if channel == config.ChannelTelegram {
		msgs = digest.PlainMessages()
	}
	if d.Title != "" {
		msgs.Title = d.Title
	}
	fields := map[string]*string{
		"titleLine":     &msgs.TitleLine,
		"topicLine":     &msgs.TopicLine,
		"timeLine":      &msgs.TimeLine,
		"totalLine":     &msgs.TotalLine,
		"groupHeader":   &msgs.GroupHeader,
		"moreLine":      &msgs.MoreLine,
		"overflowTitle": &msgs.OverflowTitle,
		"overflowGroup": &msgs.OverflowGroup,
		"itemLine":      &msgs.ItemLine,
	}
	for key, value := range d.Messages {
		if field, ok := fields[key]; ok && value != "" {
			*field = value
		}
	}

	labels := make(map[domain.Tag]string, len(msgs.TagLabels)+len(d.TagLabels))
	for tag, label := range msgs.TagLabels {
		labels[tag] = label
	}
	for tag, label := range d.TagLabels {
		if label != "" {
			labels[domain.Tag(tag)] = label
		}
	}
	msgs.TagLabels = labels

	c.Messages = msgs
	return c
}
