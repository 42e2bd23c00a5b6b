package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"NewsDigest/internal/classify"
	"NewsDigest/internal/dedup"
	"NewsDigest/internal/digest"
	"NewsDigest/internal/domain"
	"NewsDigest/internal/ports"
)

const (
	defaultListLimit = 20
	maxListLimit     = 200
)

// Handler serves the preview and read-only endpoints. Nothing it does is
// persisted or delivered.
type Handler struct {
	classifier *classify.Classifier
	composer   digest.Composer
	lister     ports.ArticleLister
	label      string
	now        func() time.Time
}

// NewHandler wires the classifier and a template composer. lister may be nil.
func NewHandler(classifier *classify.Classifier, composer *digest.Composer, lister ports.ArticleLister, label string) *Handler {
	if composer == nil {
		composer = digest.NewComposer(0)
	}
	return &Handler{
		classifier: classifier,
		composer:   *composer,
		lister:     lister,
		label:      label,
		now:        time.Now,
	}
}

type previewArticle struct {
	Title     string `json:"title"`
	URL       string `json:"url"`
	Published string `json:"published"`
	Source    string `json:"source"`
}

type previewRequest struct {
	Topic       string           `json:"topic"`
	MaxPerGroup int              `json:"maxPerGroup"`
	Articles    []previewArticle `json:"articles"`
}

type groupSummary struct {
	Combination string   `json:"combination"`
	Tags        []string `json:"tags"`
	Count       int      `json:"count"`
}

type previewResponse struct {
	Headline string         `json:"headline"`
	Overflow string         `json:"overflow"`
	Relevant int            `json:"relevant"`
	Groups   []groupSummary `json:"groups"`
}

type articleView struct {
	Title     string   `json:"title"`
	URL       string   `json:"url"`
	Published string   `json:"published"`
	Source    string   `json:"source"`
	Tags      []string `json:"tags"`
}

// Health reports liveness.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Info describes the service and its endpoints.
func (h *Handler) Info(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service":     "NewsDigest",
		"description": "News feed dedup, classification and digest composition",
		"endpoints": map[string]string{
			"health":   "/health",
			"preview":  "/api/v1/digest/preview (POST)",
			"articles": "/api/v1/articles?limit=<n>",
		},
	})
}

// Preview classifies, collapses and composes the posted articles.
func (h *Handler) Preview(c *gin.Context) {
	var req previewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	articles := make([]domain.Article, 0, len(req.Articles))
	for _, a := range req.Articles {
		articles = append(articles, domain.Article{
			Title:     a.Title,
			URL:       a.URL,
			Published: a.Published,
			Source:    a.Source,
		})
	}

	relevant := articles
	if h.classifier != nil {
		relevant = h.classifier.Apply(articles)
	}
	collapsed := dedup.CollapseNearDuplicates(relevant)

	composer := h.composer
	if req.MaxPerGroup > 0 {
		composer.MaxPerGroup = req.MaxPerGroup
	}
	topic := req.Topic
	if topic == "" {
		topic = h.label
	}

	out := composer.Compose(topic, collapsed, h.now())

	groups := make([]groupSummary, 0, len(out.Groups))
	for _, g := range out.Groups {
		groups = append(groups, groupSummary{
			Combination: g.Combination.Key(),
			Tags:        tagStrings(g.Combination),
			Count:       len(g.Articles),
		})
	}

	c.JSON(http.StatusOK, previewResponse{
		Headline: out.Headline,
		Overflow: out.Overflow,
		Relevant: len(relevant),
		Groups:   groups,
	})
}

// RecentArticles lists stored articles, newest first.
func (h *Handler) RecentArticles(c *gin.Context) {
	if h.lister == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "storage driver does not support listing"})
		return
	}

	limit := defaultListLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(parsed, maxListLimit)
	}

	stored, err := h.lister.Recent(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	views := make([]articleView, 0, len(stored))
	for _, a := range stored {
		views = append(views, articleView{
			Title:     a.Title,
			URL:       a.URL,
			Published: a.Published,
			Source:    a.Source,
			Tags:      tagStrings(a.Tags),
		})
	}
	c.JSON(http.StatusOK, gin.H{"articles": views, "count": len(views)})
}

func tagStrings(tags []domain.Tag) []string {
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = string(t)
	}
	return out
}
