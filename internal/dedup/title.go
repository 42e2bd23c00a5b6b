package dedup

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"NewsDigest/internal/domain"
)

var (
	quoteChars   = strings.NewReplacer("“", "", "”", "", `"`, "", "'", "", "‘", "", "’", "")
	outletSuffix = regexp.MustCompile(`\s*[-|:]\s*[^-|:]{2,30}\s*$`)
)

// maxNormalizePasses bounds the fixed-point loop in NormalizeTitle.
const maxNormalizePasses = 8

// NormalizeTitle returns the near-duplicate key of a headline. A trailing
// "- Outlet" style segment of 2 to 30 characters is treated as the outlet name
// and removed. "" means the title has no usable key.
//
// Dropping punctuation can leave a base rune next to a combining mark or a
// conjoining jamo that NFKC would compose, so the pass is repeated until the
// key stops changing. This keeps the result idempotent.
func NormalizeTitle(title string) string {
	t := title
	for i := 0; i < maxNormalizePasses; i++ {
		next := normalizeTitleOnce(t)
		if next == t {
			break
		}
		t = next
	}
	return t
}

func normalizeTitleOnce(title string) string {
	t := norm.NFKC.String(strings.TrimSpace(title))
	t = cases.Lower(language.Und).String(t)
	t = quoteChars.Replace(t)
	t = outletSuffix.ReplaceAllString(t, "")
	t = strings.Map(keepWordRune, t)
	return strings.Join(strings.Fields(t), " ")
}

func keepWordRune(r rune) rune {
	switch {
	case r == '_',
		unicode.IsLetter(r),
		unicode.IsNumber(r),
		unicode.IsMark(r),
		unicode.IsSpace(r):
		return r
	default:
		return -1
	}
}

// CollapseNearDuplicates keeps the first article seen for every normalized
// title key and drops the rest.
//
// The result depends on input order: callers must sort articles by the
// priority they want to keep (most relevant or most recent first) before
// calling it. Articles whose title normalizes to "" are dropped as well.
func CollapseNearDuplicates(articles []domain.Article) []domain.Article {
	seen := make(map[string]struct{}, len(articles))
	kept := make([]domain.Article, 0, len(articles))
	for _, article := range articles {
		key := NormalizeTitle(article.Title)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		kept = append(kept, article)
	}
	return kept
}
