// Package media turns short-form video links posted in chat into files that
// fit under Discord's upload limit.
package media

import (
	"net/url"
	"regexp"
	"strings"
)

type Platform int

const (
	PlatformUnknown Platform = iota
	PlatformTikTok
	PlatformTwitter
	// PlatformAttachment is a file uploaded to Discord directly. Classify
	// never returns it.
	PlatformAttachment
)

func (p Platform) String() string {
	switch p {
	case PlatformTikTok:
		return "tiktok"
	case PlatformTwitter:
		return "twitter"
	case PlatformAttachment:
		return "attachment"
	default:
		return "unknown"
	}
}

type Link struct {
	URL      string
	Platform Platform
}

var urlPattern = regexp.MustCompile(`https?://[^\s<>"']+`)

// Classify reports which supported platform rawURL belongs to.
func Classify(rawURL string) Platform {
	u, err := url.Parse(rawURL)
	if err != nil {
		return PlatformUnknown
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	switch {
	case host == "tiktok.com" || strings.HasSuffix(host, ".tiktok.com"):
		return PlatformTikTok
	case host == "twitter.com" || host == "x.com" || host == "mobile.twitter.com" ||
		host == "fxtwitter.com" || host == "vxtwitter.com":
		return PlatformTwitter
	default:
		return PlatformUnknown
	}
}

// ExtractLinks returns the supported links in text, in order, without
// duplicates.
func ExtractLinks(text string) []Link {
	var links []Link
	seen := make(map[string]struct{})
	for _, raw := range urlPattern.FindAllString(text, -1) {
		raw = strings.TrimRight(raw, ".,!?)>]")
		if _, ok := seen[raw]; ok {
			continue
		}
		platform := Classify(raw)
		if platform == PlatformUnknown {
			continue
		}
		seen[raw] = struct{}{}
		links = append(links, Link{URL: raw, Platform: platform})
	}
	return links
}

// canonical rewrites links into the form the downloader handles best.
func canonical(link Link) string {
	if link.Platform != PlatformTwitter {
		return link.URL
	}
	u, err := url.Parse(link.URL)
	if err != nil {
		return link.URL
	}
	u.Host = "twitter.com"
	return u.String()
}
