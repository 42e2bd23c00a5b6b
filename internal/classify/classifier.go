package classify

import (
	"strings"

	"NewsDigest/internal/domain"
)

// Rules lists the keyword families the classifier matches against.
// Category is the umbrella security/regulation/incident family; when it is
// empty the union of Security, Regulation and Incident is used.
type Rules struct {
	Strong     []string
	Software   []string
	Category   []string
	Security   []string
	Regulation []string
	Incident   []string
	Exclude    []string
}

// Classifier decides topic relevance and assigns category tags from Rules.
// It holds no mutable state and is safe for concurrent use.
type Classifier struct {
	strong     []string
	software   []string
	category   []string
	security   []string
	regulation []string
	incident   []string
	exclude    []string

	// whitespace-free variants used by IsRelevant
	softwareCompact []string
	categoryCompact []string
}

// New prepares keyword lists: lower-cased, trimmed, empties removed.
func New(rules Rules) *Classifier {
	category := rules.Category
	if len(category) == 0 {
		category = append(append(append([]string{}, rules.Security...), rules.Regulation...), rules.Incident...)
	}

	c := &Classifier{
		strong:     compactAll(prepare(rules.Strong)),
		software:   prepare(rules.Software),
		category:   prepare(category),
		security:   prepare(rules.Security),
		regulation: prepare(rules.Regulation),
		incident:   prepare(rules.Incident),
		exclude:    prepare(rules.Exclude),
	}
	c.softwareCompact = compactAll(c.software)
	c.categoryCompact = compactAll(c.category)
	return c
}

// IsRelevant rejects titles containing an exclusion phrase, then accepts a
// strong topic phrase or any software or category keyword. Matching ignores
// case and whitespace.
func (c *Classifier) IsRelevant(title string) bool {
	t := strings.ToLower(title)
	if containsAny(t, c.exclude) {
		return false
	}

	compact := removeSpaces(t)
	if containsAny(compact, c.strong) {
		return true
	}
	return containsAny(compact, c.softwareCompact) || containsAny(compact, c.categoryCompact)
}

// ClassifyTags returns SOFTWARE when a software keyword matches, followed by
// exactly one of SECURITY, REGULATION, INCIDENT or OTHER when a category
// keyword matches. The slice is in append order, not priority order.
func (c *Classifier) ClassifyTags(title string) []domain.Tag {
	t := strings.ToLower(title)
	tags := make([]domain.Tag, 0, 2)

	if containsAny(t, c.software) {
		tags = append(tags, domain.TagSoftware)
	}

	if containsAny(t, c.category) {
		switch {
		case containsAny(t, c.security):
			tags = append(tags, domain.TagSecurity)
		case containsAny(t, c.regulation):
			tags = append(tags, domain.TagRegulation)
		case containsAny(t, c.incident):
			tags = append(tags, domain.TagIncident)
		default:
			tags = append(tags, domain.TagOther)
		}
	}

	return tags
}

// Apply keeps relevant articles in input order and attaches their tags.
func (c *Classifier) Apply(articles []domain.Article) []domain.Article {
	relevant := make([]domain.Article, 0, len(articles))
	for _, article := range articles {
		if !c.IsRelevant(article.Title) {
			continue
		}
		article.Tags = c.ClassifyTags(article.Title)
		relevant = append(relevant, article)
	}
	return relevant
}

func prepare(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			out = append(out, k)
		}
	}
	return out
}

func compactAll(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = removeSpaces(k); k != "" {
			out = append(out, k)
		}
	}
	return out
}

func removeSpaces(s string) string {
	return strings.Join(strings.Fields(s), "")
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}
