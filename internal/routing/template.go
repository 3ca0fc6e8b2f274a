package routing

import (
	"strings"

	"github.com/KanishkKundu05/scrapeX/pkg/models"
)

// Render substitutes the template placeholders with mention data. Unknown
// placeholders are left as-is; a template with no placeholders passes
// through unchanged.
func Render(template string, tweet *models.Tweet, keyword string) string {
	return strings.NewReplacer(
		"{handle}", tweet.AuthorHandle,
		"{name}", tweet.AuthorName,
		"{keyword}", keyword,
		"{tweet_id}", tweet.TweetID,
	).Replace(template)
}

// matchKeyword returns the first keyword with a case-insensitive substring
// hit in the text, or "" when none match. Empty keywords never match.
func matchKeyword(text string, keywords []string) string {
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(kw)) {
			return kw
		}
	}
	return ""
}
