package link

import "net/url"

// ExtractRESTPath returns the path and query of an http(s) URL:
// "https://site.com/foo/bar?x=1" gives "/foo/bar?x=1", a bare host gives
// "/". Anything else reports false.
func ExtractRESTPath(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", false
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return path, true
}
