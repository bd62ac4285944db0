package upstream

import (
	"net/http"
	"strings"
)

const (
	defaultAccept  = "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8"
	DefaultReferer = "https://grok.com/"
)

// Cookie builds the origin credential cookie with an optional clearance fragment.
func Cookie(token, clearance string) string {
	cookie := "sso-rw=" + token + ";sso=" + token
	if clearance = NormalizeClearance(clearance); clearance != "" {
		cookie += ";" + clearance
	}
	return cookie
}

// RequestHeaders builds the headers sent with every origin request. Extra
// headers are applied first so the browser-navigation set always wins.
func RequestHeaders(token Token, settings Settings, referer string) http.Header {
	headers := http.Header{}
	for name, value := range settings.ExtraHeaders {
		if strings.TrimSpace(name) == "" {
			continue
		}
		headers.Set(name, value)
	}
	if settings.UserAgent != "" {
		headers.Set("User-Agent", settings.UserAgent)
	}
	if referer == "" {
		referer = DefaultReferer
	}

	headers.Del("Content-Type")
	headers.Set("Cookie", Cookie(token.Value, settings.CFClearance))
	headers.Set("Accept", defaultAccept)
	headers.Set("Sec-Fetch-Dest", "document")
	headers.Set("Sec-Fetch-Mode", "navigate")
	headers.Set("Sec-Fetch-Site", "same-site")
	headers.Set("Sec-Fetch-User", "?1")
	headers.Set("Upgrade-Insecure-Requests", "1")
	headers.Set("Referer", referer)
	return headers
}
