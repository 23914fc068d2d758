package domain

// Source is an upstream syndication feed served by one endpoint
type Source struct {
	Name string // short name used in logs and status, e.g. "playbook"
	URL  string
}

// CacheKey returns the cache key for the source, one per distinct feed URL and name
func (s Source) CacheKey() string {
	return s.Name + "-feed-" + s.URL
}
