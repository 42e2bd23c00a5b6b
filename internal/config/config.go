package config

import (
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone = "Asia/Seoul"
	defaultEnvFile  = ".env"
)

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"
	DriverRedis    = "redis"
	DriverNone     = "none"
)

// Delivery channels.
const (
	ChannelSlack    = "slack"
	ChannelTelegram = "telegram"
	ChannelStdout   = "stdout"
)

// Config holds high-level settings required across the application.
type Config struct {
	Topic    TopicConfig    `yaml:"topic"`
	Sources  []SourceConfig `yaml:"sources"`
	Rules    RulesConfig    `yaml:"rules"`
	Digest   DigestConfig   `yaml:"digest"`
	Storage  StorageConfig  `yaml:"storage"`
	Delivery DeliveryConfig `yaml:"delivery"`
	HTTP     HTTPConfig     `yaml:"http"`
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// TopicConfig is the feed search query and its human-readable label.
type TopicConfig struct {
	Query string `yaml:"query"`
	Label string `yaml:"label"`
}

// SourceConfig describes a single feed with its scanner strategy.
type SourceConfig struct {
	Name    string            `yaml:"name"`
	Scanner string            `yaml:"scanner"`
	URL     string            `yaml:"url"`
	Limit   int               `yaml:"limit"`
	Options map[string]string `yaml:"options"`
}

// RulesConfig lists the classifier keyword families.
type RulesConfig struct {
	Strong     []string `yaml:"strong"`
	Software   []string `yaml:"software"`
	Category   []string `yaml:"category"`
	Security   []string `yaml:"security"`
	Regulation []string `yaml:"regulation"`
	Incident   []string `yaml:"incident"`
	Exclude    []string `yaml:"exclude"`
}

// DigestConfig shapes the rendered messages.
type DigestConfig struct {
	Title       string            `yaml:"title"`
	MaxPerGroup int               `yaml:"maxPerGroup"`
	Timezone    string            `yaml:"timezone"`
	TimeFormat  string            `yaml:"timeFormat"`
	Messages    map[string]string `yaml:"messages"`
	TagLabels   map[string]string `yaml:"tagLabels"`
	location    *time.Location    `yaml:"-"`
}

// Location resolves the digest timezone string to a time.Location.
func (d DigestConfig) Location() *time.Location {
	if d.location != nil {
		return d.location
	}
	loc, err := time.LoadLocation(defaultTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// StorageConfig selects where seen articles are remembered.
type StorageConfig struct {
	Driver    string        `yaml:"driver"`
	DSN       string        `yaml:"dsn"`
	RedisAddr string        `yaml:"redisAddr"`
	RedisTTL  time.Duration `yaml:"redisTTL"`
	Migrate   *bool         `yaml:"migrate"`
}

// AutoMigrate reports whether schema migrations run on startup; defaults to true.
func (s StorageConfig) AutoMigrate() bool {
	return s.Migrate == nil || *s.Migrate
}

// DeliveryConfig encapsulates outbound channels.
type DeliveryConfig struct {
	Channel  string         `yaml:"channel"`
	Slack    SlackConfig    `yaml:"slack"`
	Telegram TelegramConfig `yaml:"telegram"`
}

// SlackConfig wires the bot token and the channel to post into.
type SlackConfig struct {
	BotToken  string `yaml:"botToken"`
	ChannelID string `yaml:"channelId"`
	APIURL    string `yaml:"apiUrl"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
	APIURL   string `yaml:"apiUrl"`
}

// HTTPConfig tunes outbound HTTP clients.
type HTTPConfig struct {
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"userAgent"`
}

// ServerConfig configures the health/preview HTTP surface.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// LoggingConfig controls the slog level and handler format (text or json).
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// envOverrides are read from the process environment (and .env, if present).
type envOverrides struct {
	ConfigPath       string `envconfig:"NEWSDIGEST_CONFIG"`
	LogLevel         string `envconfig:"LOG_LEVEL"`
	StorageDriver    string `envconfig:"STORAGE_DRIVER"`
	DatabaseDSN      string `envconfig:"DATABASE_DSN"`
	RedisAddr        string `envconfig:"REDIS_ADDR"`
	DeliveryChannel  string `envconfig:"DELIVERY_CHANNEL"`
	SlackBotToken    string `envconfig:"SLACK_BOT_TOKEN"`
	SlackChannelID   string `envconfig:"SLACK_CHANNEL_ID"`
	TelegramBotToken string `envconfig:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID   string `envconfig:"TELEGRAM_CHAT_ID"`
	MySQLHost        string `envconfig:"MYSQL_HOST"`
	MySQLPort        string `envconfig:"MYSQL_PORT" default:"3306"`
	MySQLUser        string `envconfig:"MYSQL_USER"`
	MySQLPassword    string `envconfig:"MYSQL_PASSWORD"`
	MySQLDB          string `envconfig:"MYSQL_DB"`
}

// Load reads .env, the YAML configuration (if present) and applies environment overrides.
// An empty path falls back to NEWSDIGEST_CONFIG.
func Load(path string) Config {
	loadDotEnv(defaultEnvFile)

	cfg := defaultConfig()

	var env envOverrides
	if err := envconfig.Process("", &env); err != nil {
		log.Printf("config: cannot read environment: %v (ignoring overrides)", err)
		env = envOverrides{}
	}

	if path == "" {
		path = env.ConfigPath
	}
	if path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides(env)
	cfg.bindTimezone()

	return cfg
}

// Validate reports settings that would make a run fail later.
func (c Config) Validate() error {
	var errs []error

	if c.Digest.MaxPerGroup < 1 {
		errs = append(errs, fmt.Errorf("digest.maxPerGroup must be >= 1, got %d", c.Digest.MaxPerGroup))
	}
	if len(c.Sources) == 0 {
		errs = append(errs, errors.New("no sources configured"))
	}

	errs = append(errs, validateMessages(c.Digest.Messages)...)

	switch c.Storage.Driver {
	case DriverPostgres, DriverMySQL, DriverSQLite:
		if c.Storage.DSN == "" {
			errs = append(errs, fmt.Errorf("storage.dsn is required for driver %s", c.Storage.Driver))
		}
	case DriverRedis:
		if c.Storage.RedisAddr == "" {
			errs = append(errs, errors.New("storage.redisAddr is required for driver redis"))
		}
	case DriverNone:
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.Storage.Driver))
	}

	switch c.Delivery.Channel {
	case ChannelSlack:
		if c.Delivery.Slack.BotToken == "" || c.Delivery.Slack.ChannelID == "" {
			errs = append(errs, errors.New("SLACK_BOT_TOKEN / SLACK_CHANNEL_ID are required for slack delivery"))
		}
	case ChannelTelegram:
		if c.Delivery.Telegram.BotToken == "" || c.Delivery.Telegram.ChatID == "" {
			errs = append(errs, errors.New("TELEGRAM_BOT_TOKEN / TELEGRAM_CHAT_ID are required for telegram delivery"))
		}
	case ChannelStdout:
	default:
		errs = append(errs, fmt.Errorf("unknown delivery channel %q", c.Delivery.Channel))
	}

	return errors.Join(errs...)
}

// messageArgs holds sample arguments for each digest.messages key, in the
// order the composer passes them.
var messageArgs = map[string][]any{
	"titleLine":     {"Daily News"},
	"topicLine":     {"topic"},
	"timeLine":      {"2006-01-02 15:04"},
	"totalLine":     {1},
	"groupHeader":   {"[SW]", 1},
	"moreLine":      {1},
	"overflowTitle": {1},
	"overflowGroup": {"[SW]", 1},
	"itemLine":      {1, "https://example.com", "title"},
}

// validateMessages renders every configured format with sample arguments and
// rejects unknown keys and formats whose verbs do not match.
func validateMessages(messages map[string]string) []error {
	keys := make([]string, 0, len(messages))
	for key := range messages {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var errs []error
	for _, key := range keys {
		format := messages[key]
		args, ok := messageArgs[key]
		if !ok {
			errs = append(errs, fmt.Errorf("digest.messages: unknown key %q", key))
			continue
		}
		if format == "" {
			continue
		}
		if out := fmt.Sprintf(format, args...); strings.Contains(out, "%!") {
			errs = append(errs, fmt.Errorf("digest.messages.%s: format %q does not match its arguments: %s", key, format, out))
		}
	}
	return errs
}

func loadDotEnv(path string) {
	if _, err := os.Stat(path); err != nil {
		return
	}
	if err := godotenv.Load(path); err != nil {
		log.Printf("config: cannot load %s: %v", path, err)
	}
}

func (c *Config) applyEnvOverrides(env envOverrides) {
	if env.LogLevel != "" {
		c.Logging.Level = env.LogLevel
	}

	if env.StorageDriver != "" {
		c.Storage.Driver = strings.ToLower(env.StorageDriver)
	}
	if env.DatabaseDSN != "" {
		c.Storage.DSN = env.DatabaseDSN
	} else if dsn := mysqlDSN(env); dsn != "" && c.Storage.Driver == DriverMySQL {
		c.Storage.DSN = dsn
	}
	if env.RedisAddr != "" {
		c.Storage.RedisAddr = env.RedisAddr
	}

	if env.DeliveryChannel != "" {
		c.Delivery.Channel = strings.ToLower(env.DeliveryChannel)
	}
	if env.SlackBotToken != "" {
		c.Delivery.Slack.BotToken = env.SlackBotToken
	}
	if env.SlackChannelID != "" {
		c.Delivery.Slack.ChannelID = env.SlackChannelID
	}
	if env.TelegramBotToken != "" {
		c.Delivery.Telegram.BotToken = env.TelegramBotToken
	}
	if env.TelegramChatID != "" {
		c.Delivery.Telegram.ChatID = env.TelegramChatID
	}
}

// mysqlDSN assembles a DSN from the MYSQL_* variables when a host is set.
func mysqlDSN(env envOverrides) string {
	if env.MySQLHost == "" || env.MySQLDB == "" {
		return ""
	}

	mc := mysql.NewConfig()
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(env.MySQLHost, env.MySQLPort)
	mc.User = env.MySQLUser
	mc.Passwd = env.MySQLPassword
	mc.DBName = env.MySQLDB
	mc.Params = map[string]string{"charset": "utf8mb4"}
	return mc.FormatDSN()
}

func (c *Config) bindTimezone() {
	tz := c.Digest.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to UTC", tz)
		loc = time.UTC
	}
	c.Digest.location = loc
}

func mergeConfig(base, override Config) Config {
	if override.Topic.Query != "" {
		base.Topic.Query = override.Topic.Query
	}
	if override.Topic.Label != "" {
		base.Topic.Label = override.Topic.Label
	}

	if len(override.Sources) > 0 {
		base.Sources = override.Sources
	}

	base.Rules = mergeRules(base.Rules, override.Rules)

	if override.Digest.Title != "" {
		base.Digest.Title = override.Digest.Title
	}
	if override.Digest.MaxPerGroup != 0 {
		base.Digest.MaxPerGroup = override.Digest.MaxPerGroup
	}
	if override.Digest.Timezone != "" {
		base.Digest.Timezone = override.Digest.Timezone
	}
	if override.Digest.TimeFormat != "" {
		base.Digest.TimeFormat = override.Digest.TimeFormat
	}
	if len(override.Digest.Messages) > 0 {
		base.Digest.Messages = override.Digest.Messages
	}
	if len(override.Digest.TagLabels) > 0 {
		base.Digest.TagLabels = override.Digest.TagLabels
	}

	if override.Storage.Driver != "" {
		base.Storage.Driver = strings.ToLower(override.Storage.Driver)
	}
	if override.Storage.DSN != "" {
		base.Storage.DSN = override.Storage.DSN
	}
	if override.Storage.RedisAddr != "" {
		base.Storage.RedisAddr = override.Storage.RedisAddr
	}
	if override.Storage.RedisTTL != 0 {
		base.Storage.RedisTTL = override.Storage.RedisTTL
	}
	if override.Storage.Migrate != nil {
		base.Storage.Migrate = override.Storage.Migrate
	}

	if override.Delivery.Channel != "" {
		base.Delivery.Channel = strings.ToLower(override.Delivery.Channel)
	}
	if override.Delivery.Slack.BotToken != "" {
		base.Delivery.Slack.BotToken = override.Delivery.Slack.BotToken
	}
	if override.Delivery.Slack.ChannelID != "" {
		base.Delivery.Slack.ChannelID = override.Delivery.Slack.ChannelID
	}
	if override.Delivery.Slack.APIURL != "" {
		base.Delivery.Slack.APIURL = override.Delivery.Slack.APIURL
	}
	if override.Delivery.Telegram.BotToken != "" {
		base.Delivery.Telegram.BotToken = override.Delivery.Telegram.BotToken
	}
	if override.Delivery.Telegram.ChatID != "" {
		base.Delivery.Telegram.ChatID = override.Delivery.Telegram.ChatID
	}
	if override.Delivery.Telegram.APIURL != "" {
		base.Delivery.Telegram.APIURL = override.Delivery.Telegram.APIURL
	}

	if override.HTTP.Timeout != 0 {
		base.HTTP.Timeout = override.HTTP.Timeout
	}
	if override.HTTP.UserAgent != "" {
		base.HTTP.UserAgent = override.HTTP.UserAgent
	}

	if override.Server.Addr != "" {
		base.Server.Addr = override.Server.Addr
	}

	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		base.Logging.Format = override.Logging.Format
	}

	return base
}

// mergeRules replaces a keyword family only when the override lists it.
func mergeRules(base, override RulesConfig) RulesConfig {
	pick := func(b, o []string) []string {
		if len(o) > 0 {
			return o
		}
		return b
	}
	return RulesConfig{
		Strong:     pick(base.Strong, override.Strong),
		Software:   pick(base.Software, override.Software),
		Category:   pick(base.Category, override.Category),
		Security:   pick(base.Security, override.Security),
		Regulation: pick(base.Regulation, override.Regulation),
		Incident:   pick(base.Incident, override.Incident),
		Exclude:    pick(base.Exclude, override.Exclude),
	}
}

func defaultConfig() Config {
	return Config{
		Topic: TopicConfig{
			Query: `("자동차 SW" OR 자동차SW OR "차량 소프트웨어" OR SDV)`,
			Label: "자동차 SW · 자동차SW · 차량 소프트웨어 · SDV",
		},
		Sources: []SourceConfig{
			{
				Name:    "google-news-kr",
				Scanner: "googlenews",
				Limit:   50,
				Options: map[string]string{"hl": "ko", "gl": "KR", "ceid": "KR:ko"},
			},
		},
		Rules: RulesConfig{
			Strong:     []string{"자동차sw", "자동차 sw", "차량 소프트웨어", "sdv"},
			Software:   []string{"소프트웨어", "software", "ota 업데이트", "무선 업데이트", "펌웨어", "차량용 os", "운영체제", "인포테인먼트"},
			Security:   []string{"보안", "사이버", "해킹", "취약점", "공격", "랜섬웨어"},
			Regulation: []string{"unece", "r155", "r156", "iso", "규제", "법규", "인증"},
			Incident:   []string{"사고", "화재", "리콜", "결함"},
			Exclude:    []string{"부고", "채용 공고", "[광고]", "[인사]"},
		},
		Digest: DigestConfig{
			Title:       "Daily Auto SW News",
			MaxPerGroup: 5,
			Timezone:    defaultTimezone,
			TimeFormat:  "2006-01-02 15:04",
		},
		Storage: StorageConfig{
			Driver:   DriverNone,
			RedisTTL: 30 * 24 * time.Hour,
		},
		Delivery: DeliveryConfig{
			Channel: ChannelSlack,
			Slack:   SlackConfig{APIURL: "https://slack.com/api"},
			Telegram: TelegramConfig{
				APIURL: "https://api.telegram.org",
			},
		},
		HTTP: HTTPConfig{
			Timeout:   10 * time.Second,
			UserAgent: "NewsDigest/1.0",
		},
		Server:  ServerConfig{Addr: ":8080"},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}
