package digest

import (
	"fmt"
	"strings"
	"time"

	"NewsDigest/internal/domain"
)

const (
	defaultMaxPerGroup = 5
	defaultTimeFormat  = "2006-01-02 15:04"
	defaultItemLine    = "%d. <%s|%s>"
)

var titleEscaper = strings.NewReplacer("<", "＜", ">", "＞")

// Messages holds the format strings of both bodies.
type Messages struct {
	Title         string
	TitleLine     string // %s: Title
	TopicLine     string // %s: topic label
	TimeLine      string // %s: formatted timestamp
	TotalLine     string // %d: article count
	GroupHeader   string // %s: combination label, %d: group size
	MoreLine      string // %d: items moved to the overflow body
	OverflowTitle string // %d: overflow item count
	OverflowGroup string // %s: combination label, %d: remaining items
	ItemLine      string // %d: position, %s: url, %s: title
	// EscapeTitles replaces < and > in titles so they cannot close a <url|title> link.
	EscapeTitles bool
	TagLabels    map[domain.Tag]string
}

// DefaultMessages returns the Korean chat layout.
func DefaultMessages() Messages {
	return Messages{
		Title:         "Daily Auto SW News",
		TitleLine:     "📌 *%s*",
		TopicLine:     "- 키워드: *%s*",
		TimeLine:      "- 시간: %s",
		TotalLine:     "- 신규 기사: %d건",
		GroupHeader:   "*%s* (%d)",
		MoreLine:      "… 외 %d건 (스레드 참고)",
		OverflowTitle: "*상세 기사 목록(외 %d건)*",
		OverflowGroup: "*%s 추가 %d건*",
		ItemLine:      defaultItemLine,
		EscapeTitles:  true,
		TagLabels: map[domain.Tag]string{
			domain.TagSecurity:   "보안",
			domain.TagRegulation: "규제",
			domain.TagIncident:   "사고",
			domain.TagSoftware:   "SW",
			domain.TagOther:      "기타",
		},
	}
}

// PlainMessages returns the Korean layout without Slack mrkdwn, for chats
// that show text verbatim: no bold markers and the URL on its own line.
func PlainMessages() Messages {
	m := DefaultMessages()
	m.TitleLine = "📌 %s"
	m.TopicLine = "- 키워드: %s"
	m.GroupHeader = "%s (%d)"
	m.MoreLine = "… 외 %d건 (답글 참고)"
	m.OverflowTitle = "상세 기사 목록(외 %d건)"
	m.OverflowGroup = "%s 추가 %d건"
	m.ItemLine = "%d. %[3]s\n   %[2]s"
	m.EscapeTitles = false
	return m
}

// ShownKeys is the set of article identity keys rendered in the headline body.
type ShownKeys map[string]struct{}

// Has reports whether the key was shown.
func (s ShownKeys) Has(key string) bool {
	_, ok := s[key]
	return ok
}

// Digest is the composed output of one run.
type Digest struct {
	Headline string
	Overflow string
	Shown    ShownKeys
	Groups   []Group
	Total    int
}

// Composer renders grouped articles into a headline and an overflow body.
type Composer struct {
	MaxPerGroup int
	Messages    Messages
	TimeFormat  string
	Location    *time.Location
}

// NewComposer returns a composer with default messages; a non-positive
// maxPerGroup selects the default cap of 5.
func NewComposer(maxPerGroup int) *Composer {
	if maxPerGroup <= 0 {
		maxPerGroup = defaultMaxPerGroup
	}
	return &Composer{
		MaxPerGroup: maxPerGroup,
		Messages:    DefaultMessages(),
		TimeFormat:  defaultTimeFormat,
	}
}

// Compose groups articles and renders both bodies. Articles repeating an
// identity key are presented once; every other article lands in exactly one
// body. An empty Overflow means nothing exceeded the per-group cap.
func (c *Composer) Compose(topic string, articles []domain.Article, now time.Time) Digest {
	unique := UniqueByIdentity(articles)
	groups := GroupByCombination(unique)
	headline, shown := c.Headline(topic, groups, now)

	return Digest{
		Headline: headline,
		Overflow: c.Overflow(groups, shown),
		Shown:    shown,
		Groups:   groups,
		Total:    len(unique),
	}
}

// Headline renders the size-bounded body and returns the identity keys it shows.
func (c *Composer) Headline(topic string, groups []Group, now time.Time) (string, ShownKeys) {
	limit := c.maxPerGroup()
	msgs := c.Messages

	total := 0
	for _, g := range groups {
		total += len(g.Articles)
	}

	lines := []string{
		fmt.Sprintf(msgs.TitleLine, msgs.Title),
		fmt.Sprintf(msgs.TopicLine, topic),
		fmt.Sprintf(msgs.TimeLine, c.timestamp(now)),
		fmt.Sprintf(msgs.TotalLine, total),
		"",
	}

	shown := make(ShownKeys)
	for _, g := range groups {
		lines = append(lines, fmt.Sprintf(msgs.GroupHeader, c.label(g.Combination), len(g.Articles)))

		visible := g.Articles
		if len(visible) > limit {
			visible = visible[:limit]
		}
		for i, article := range visible {
			shown[article.IdentityKey()] = struct{}{}
			lines = append(lines, c.itemLine(i+1, article))
		}

		if rest := len(g.Articles) - len(visible); rest > 0 {
			lines = append(lines, fmt.Sprintf(msgs.MoreLine, rest))
		}
		lines = append(lines, "")
	}

	return strings.Join(lines, "\n"), shown
}

// Overflow renders every grouped article not in shown, or "" when none remain.
func (c *Composer) Overflow(groups []Group, shown ShownKeys) string {
	var (
		blocks []string
		count  int
	)

	for _, g := range groups {
		var rest []domain.Article
		for _, article := range g.Articles {
			if !shown.Has(article.IdentityKey()) {
				rest = append(rest, article)
			}
		}
		if len(rest) == 0 {
			continue
		}

		count += len(rest)
		blocks = append(blocks, fmt.Sprintf(c.Messages.OverflowGroup, c.label(g.Combination), len(rest)))
		for i, article := range rest {
			blocks = append(blocks, c.itemLine(i+1, article))
		}
		blocks = append(blocks, "")
	}

	if count == 0 {
		return ""
	}

	lines := append([]string{fmt.Sprintf(c.Messages.OverflowTitle, count), ""}, blocks...)
	return strings.Join(lines, "\n")
}

// UniqueByIdentity drops articles whose identity key was already seen, keeping the first.
func UniqueByIdentity(articles []domain.Article) []domain.Article {
	seen := make(map[string]struct{}, len(articles))
	out := make([]domain.Article, 0, len(articles))
	for _, article := range articles {
		key := article.IdentityKey()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, article)
	}
	return out
}

func (c *Composer) itemLine(n int, article domain.Article) string {
	layout := c.Messages.ItemLine
	if layout == "" {
		layout = defaultItemLine
	}
	title := article.Title
	if c.Messages.EscapeTitles {
		title = titleEscaper.Replace(title)
	}
	return fmt.Sprintf(layout, n, strings.TrimSpace(article.URL), title)
}

func (c *Composer) label(combo Combination) string {
	var b strings.Builder
	for _, tag := range combo {
		text := string(tag)
		if l, ok := c.Messages.TagLabels[tag]; ok && l != "" {
			text = l
		}
		b.WriteString("[" + text + "]")
	}
	return b.String()
}

func (c *Composer) maxPerGroup() int {
	if c.MaxPerGroup < 1 {
		return 1
	}
	return c.MaxPerGroup
}

func (c *Composer) timestamp(now time.Time) string {
	if now.IsZero() {
		now = time.Now()
	}
	if c.Location != nil {
		now = now.In(c.Location)
	}
	layout := c.TimeFormat
	if layout == "" {
		layout = defaultTimeFormat
	}
	return now.Format(layout)
}
