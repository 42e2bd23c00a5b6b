package digest

import (
	"cmp"
	"slices"
	"strings"

	"NewsDigest/internal/domain"
)

// Combination is a deduplicated, priority-sorted tag sequence used as a grouping key.
type Combination []domain.Tag

// Key returns a stable string form of the combination, e.g. "SECURITY+SOFTWARE".
func (c Combination) Key() string {
	parts := make([]string, len(c))
	for i, tag := range c {
		parts[i] = string(tag)
	}
	return strings.Join(parts, "+")
}

// Group holds the articles sharing one combination, in presentation order.
type Group struct {
	Combination Combination
	Articles    []domain.Article
}

// CombinationOf builds the grouping key for a tag slice. An empty slice maps
// to (OTHER); unknown tags sort after known ones by their text.
func CombinationOf(tags []domain.Tag) Combination {
	if len(tags) == 0 {
		return Combination{domain.TagOther}
	}

	combo := make(Combination, 0, len(tags))
	for _, tag := range tags {
		if !slices.Contains(combo, tag) {
			combo = append(combo, tag)
		}
	}
	slices.SortFunc(combo, compareTags)
	return combo
}

// GroupByCombination partitions articles by tag combination. Groups are
// ordered by first-tag rank, then combination length, then tag text;
// articles inside a group by descending (Published, Title) text, ties
// keeping input order.
func GroupByCombination(articles []domain.Article) []Group {
	index := make(map[string]int)
	var groups []Group

	for _, article := range articles {
		combo := CombinationOf(article.Tags)
		key := combo.Key()
		pos, ok := index[key]
		if !ok {
			pos = len(groups)
			index[key] = pos
			groups = append(groups, Group{Combination: combo})
		}
		groups[pos].Articles = append(groups[pos].Articles, article)
	}

	slices.SortFunc(groups, func(a, b Group) int {
		return compareCombinations(a.Combination, b.Combination)
	})
	for i := range groups {
		slices.SortStableFunc(groups[i].Articles, newestFirst)
	}

	return groups
}

func compareTags(a, b domain.Tag) int {
	if c := cmp.Compare(a.Rank(), b.Rank()); c != 0 {
		return c
	}
	return cmp.Compare(a, b)
}

func compareCombinations(a, b Combination) int {
	if c := cmp.Compare(a[0].Rank(), b[0].Rank()); c != 0 {
		return c
	}
	if c := cmp.Compare(len(a), len(b)); c != 0 {
		return c
	}
	return slices.Compare(a, b)
}

func newestFirst(a, b domain.Article) int {
	if c := cmp.Compare(b.Published, a.Published); c != 0 {
		return c
	}
	return cmp.Compare(b.Title, a.Title)
}
