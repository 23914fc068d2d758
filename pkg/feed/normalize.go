package feed

import (
	"html"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/umputun/folio/pkg/domain"
)

// DateLayout is the ISO-8601 format with milliseconds used for generated publish dates
const DateLayout = "2006-01-02T15:04:05.000Z"

// Profile controls how raw feed items turn into posts
type Profile struct {
	MaxItems       int    // keep only the first MaxItems items, 0 keeps all
	TitleDefault   string // title for items without one
	SnippetDefault string // snippet for items with neither excerpt nor body
	LinkDefault    string // link for items without one
	BodyRunes      int    // truncate body to this many characters when used as snippet, 0 keeps the full body
	Ellipsis       string // appended to the truncated body
	DateNow        bool   // use the current time for items without publish date
}

// PlaybookProfile normalizes posts for the paginated playbook feed
var PlaybookProfile = Profile{
	TitleDefault:   "Untitled Post",
	SnippetDefault: "No content available",
	LinkDefault:    "#",
	BodyRunes:      200,
	Ellipsis:       "...",
	DateNow:        true,
}

// LegacyProfile normalizes posts for the legacy thoughts feed, empty defaults and at most 10 items
var LegacyProfile = Profile{MaxItems: 10}

var strictPolicy = bluemonday.StrictPolicy()

// Normalize maps raw items to posts according to the profile, now is used for missing dates
func Normalize(items []domain.FeedItem, prof Profile, now time.Time) []domain.Post {
	if prof.MaxItems > 0 && len(items) > prof.MaxItems {
		items = items[:prof.MaxItems]
	}

	res := make([]domain.Post, 0, len(items))
	for _, item := range items {
		res = append(res, prof.post(item, now))
	}
	return res
}

func (p Profile) post(item domain.FeedItem, now time.Time) domain.Post {
	post := domain.Post{
		Title:          strings.TrimSpace(item.Title),
		ContentSnippet: excerpt(item.Description),
		Link:           strings.TrimSpace(item.Link),
		PubDate:        strings.TrimSpace(item.Published),
	}

	if post.Title == "" {
		post.Title = p.TitleDefault
	}
	if post.Link == "" {
		post.Link = p.LinkDefault
	}
	if post.PubDate == "" && p.DateNow {
		post.PubDate = now.UTC().Format(DateLayout)
	}

	if post.ContentSnippet == "" {
		switch {
		case item.Content == "":
			post.ContentSnippet = p.SnippetDefault
		case p.BodyRunes > 0:
			post.ContentSnippet = truncate(item.Content, p.BodyRunes) + p.Ellipsis
		default:
			post.ContentSnippet = item.Content
		}
	}
	return post
}

// excerpt strips markup from a short description and collapses whitespace
func excerpt(s string) string {
	if s == "" {
		return ""
	}
	text := html.UnescapeString(strictPolicy.Sanitize(s))
	return strings.Join(strings.Fields(text), " ")
}

// truncate returns the first n characters of s
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
