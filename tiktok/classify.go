// Package tiktok recognizes TikTok video links in chat text, resolves them
// to canonical numeric video ids, and fetches video metadata from the
// upstream detail API.
package tiktok

import "regexp"

// LinkKind identifies which URL shape a piece of text matched.
type LinkKind int

const (
	// LinkLong is a profile link: tiktok.com/@handle/video/<id>.
	LinkLong LinkKind = iota
	// LinkShort is a redirect link: vm.tiktok.com/<code> (any 2-letter subdomain).
	LinkShort
	// LinkMedium is a mobile link: m.tiktok.com/v/<id>.
	LinkMedium
)

func (k LinkKind) String() string {
	switch k {
	case LinkLong:
		return "long"
	case LinkShort:
		return "short"
	case LinkMedium:
		return "medium"
	default:
		return "unknown"
	}
}

// Link is the structured result of classifying raw text. RawID carries the
// numeric video id for long/medium links and the opaque short code for
// short links. URL is always absolute and scheme-qualified.
type Link struct {
	Kind  LinkKind
	RawID string
	URL   string
}

// Match groups: 1 = scheme (optional), last = id / short code.
var (
	longLinkPattern   = regexp.MustCompile(`(https?://)?(www\.)?tiktok\.com/@[\w.]{1,24}/video/(\d{15,30})`)
	shortLinkPattern  = regexp.MustCompile(`(https?://)?[A-Za-z]{2}\.tiktok\.com/([A-Za-z0-9]{5,15})`)
	mediumLinkPattern = regexp.MustCompile(`(https?://)?m\.tiktok\.com/v/(\d{15,30})`)
)

// Classify scans text for the first recognizable TikTok video link.
// Patterns are tried in fixed priority order (long, short, medium) and the
// first family that matches anywhere in the text wins. Returns nil when no
// pattern matches; that is a valid negative result, not an error.
//
// When the matched substring omits a scheme, https:// is synthesized so the
// returned URL is always absolute.
func Classify(text string) *Link {
	if m := longLinkPattern.FindStringSubmatch(text); m != nil {
		return &Link{Kind: LinkLong, RawID: m[3], URL: absolute(m[0], m[1])}
	}
	if m := shortLinkPattern.FindStringSubmatch(text); m != nil {
		return &Link{Kind: LinkShort, RawID: m[2], URL: absolute(m[0], m[1])}
	}
	if m := mediumLinkPattern.FindStringSubmatch(text); m != nil {
		return &Link{Kind: LinkMedium, RawID: m[2], URL: absolute(m[0], m[1])}
	}
	return nil
}

func absolute(matched, scheme string) string {
	if scheme == "" {
		return "https://" + matched
	}
	return matched
}
