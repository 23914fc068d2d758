package feed

import "net/http"

// feedAccept lists the content types accepted from the upstream
const feedAccept = "application/rss+xml, application/xml, text/xml"

// addFeedHeaders sets the accepted content types for feed fetching.
// compression is left to the transport, it negotiates and decodes gzip itself.
func addFeedHeaders(req *http.Request) {
	req.Header.Set("Accept", feedAccept)
	req.Header.Set("Cache-Control", "no-cache")
}
