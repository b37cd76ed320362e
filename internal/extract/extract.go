// Package extract scans text for douyin short links.
package extract

import "regexp"

// Short links look like https://v.douyin.com/dd80aeXR4M8/ — an opaque
// alphanumeric id (plus - and _) with an optional trailing slash.
var linkPattern = regexp.MustCompile(`https://v\.douyin\.com/[A-Za-z0-9_-]+/?`)

var idPattern = regexp.MustCompile(`https://v\.douyin\.com/([A-Za-z0-9_-]+)/?`)

// Links returns all non-overlapping short links in text, left to right.
// The function is pure: repeated calls on the same input yield identical
// results.
func Links(text string) []string {
	return linkPattern.FindAllString(text, -1)
}

// VideoID returns the opaque id segment of a short link, or false if link
// does not match the expected shape.
func VideoID(link string) (string, bool) {
	m := idPattern.FindStringSubmatch(link)
	if m == nil {
		return "", false
	}
	return m[1], true
}
