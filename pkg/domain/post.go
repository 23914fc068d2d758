package domain

// FeedItem is a raw entry as it comes out of the upstream feed, before normalization
type FeedItem struct {
	Title       string
	Link        string
	Description string // short excerpt, may contain HTML
	Content     string // full body, may contain HTML
	Published   string // publish date exactly as the feed states it
}

// Post is a normalized feed entry served to the frontend
type Post struct {
	Title          string `json:"title"`
	ContentSnippet string `json:"contentSnippet"`
	Link           string `json:"link"`
	PubDate        string `json:"pubDate"`
}

// LegacyPost is the post shape of the legacy thoughts endpoint
type LegacyPost struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	PubDate     string `json:"pubDate"`
	Link        string `json:"link"`
}

// Legacy converts post to the legacy shape, snippet becomes description
func (p Post) Legacy() LegacyPost {
	return LegacyPost{Title: p.Title, Description: p.ContentSnippet, PubDate: p.PubDate, Link: p.Link}
}
