package domain

import (
	"net/url"
	"strings"
)

// PlatformID identifies a supported source platform
type PlatformID string

const (
	PlatformYouTube   PlatformID = "youtube"
	PlatformFacebook  PlatformID = "facebook"
	PlatformTwitter   PlatformID = "twitter"
	PlatformInstagram PlatformID = "instagram"
	PlatformTikTok    PlatformID = "tiktok"
	PlatformReddit    PlatformID = "reddit"
)

// PlatformDescriptor is the static configuration for a supported site: its
// URL-matching rules, the cookie domains and names relevant for authentication,
// and the origin context some sites require alongside session cookies.
type PlatformDescriptor struct {
	ID             PlatformID
	DomainSuffixes []string // matched in declaration order against the hostname
	CookieDomains  []string
	CookieNames    []string // empty means keep everything when CollectAll is set
	CollectAll     bool
	Origin         string // canonical site URL; attached as Referer/Origin when cookies exist

	validate  func(u *url.URL) bool
	normalize func(u *url.URL) string
}

// platforms is the closed registry of supported platforms. Declaration order
// matters: hostname suffixes are tried in this order and the first match wins,
// so more specific suffixes must come before generic ones.
var platforms = []*PlatformDescriptor{
	{
		ID:             PlatformYouTube,
		DomainSuffixes: []string{"youtube.com", "youtu.be"},
		CookieDomains:  []string{"youtube.com", "www.youtube.com", "google.com", "accounts.google.com", "www.google.com"},
		CookieNames: []string{
			"LOGIN_INFO", "CONSENT", "VISITOR_INFO1_LIVE", "YSC", "PREF",
			"SID", "HSID", "SSID", "APISID", "SAPISID",
			"__Secure-1PSID", "__Secure-3PSID", "__Secure-1PAPISID", "__Secure-3PAPISID",
		},
		Origin:    "https://www.youtube.com",
		validate:  validateYouTube,
		normalize: normalizeYouTube,
	},
	{
		ID:             PlatformFacebook,
		DomainSuffixes: []string{"facebook.com", "fb.watch", "fb.com"},
		CookieDomains:  []string{"facebook.com", "fb.com"},
		CookieNames:    []string{"c_user", "xs", "fr", "datr", "sb"},
	},
	{
		ID:             PlatformTwitter,
		DomainSuffixes: []string{"twitter.com", "x.com"},
		CookieDomains:  []string{"twitter.com", "x.com"},
		CookieNames:    []string{"auth_token", "ct0", "twid", "_twitter_sess"},
	},
	{
		ID:             PlatformInstagram,
		DomainSuffixes: []string{"instagram.com"},
		CookieDomains:  []string{"instagram.com", "cdninstagram.com"},
		CookieNames:    []string{"sessionid", "ds_user_id", "csrftoken", "ig_did", "mid"},
	},
	{
		ID:             PlatformTikTok,
		DomainSuffixes: []string{"tiktok.com"},
		CookieDomains:  []string{"tiktok.com", "tiktokcdn.com"},
		CookieNames:    []string{"sessionid", "tt_webid", "tt_webid_v2", "sid_tt"},
	},
	{
		ID:             PlatformReddit,
		DomainSuffixes: []string{"reddit.com", "redd.it"},
		CookieDomains:  []string{"reddit.com", "redd.it"},
		CookieNames:    []string{"reddit_session", "token", "csrf_token"},
	},
}

// Platforms returns all registered platform descriptors in matching order.
func Platforms() []*PlatformDescriptor {
	return platforms
}

// LookupPlatform returns the descriptor for a platform ID.
func LookupPlatform(id PlatformID) (*PlatformDescriptor, bool) {
	for _, p := range platforms {
		if p.ID == id {
			return p, true
		}
	}
	return nil, false
}

// Resolve classifies a URL into a supported platform. It returns false when
// the URL does not parse, uses a non-http(s) scheme, matches no registered
// suffix, or matches a platform but lacks the identifier that platform needs
// for extraction (e.g. a youtube.com URL without a v parameter).
func Resolve(rawURL string) (*PlatformDescriptor, bool) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, false
	}

	hostname := strings.ToLower(u.Hostname())
	for _, p := range platforms {
		for _, suffix := range p.DomainSuffixes {
			if !matchesSuffix(hostname, suffix) {
				continue
			}
			if p.validate != nil && !p.validate(u) {
				return nil, false
			}
			return p, true
		}
	}
	return nil, false
}

// matchesSuffix reports whether hostname equals the suffix or is a subdomain
// of it. Plain substring checks are not enough: "myx.com" must not match
// the "x.com" suffix.
func matchesSuffix(hostname, suffix string) bool {
	return hostname == suffix || strings.HasSuffix(hostname, "."+suffix)
}

// Normalize rewrites a URL into the canonical form for the platform. It is
// best-effort: unrecognized shapes are returned unchanged, never an error.
func (p *PlatformDescriptor) Normalize(rawURL string) string {
	if p.normalize == nil {
		return rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return p.normalize(u)
}

func validateYouTube(u *url.URL) bool {
	hostname := strings.ToLower(u.Hostname())
	if matchesSuffix(hostname, "youtu.be") {
		return len(strings.Trim(u.Path, "/")) > 0
	}
	return u.Query().Get("v") != ""
}

// normalizeYouTube rewrites short links to the long watch form and strips
// tracking parameters from canonical links, keeping only the video ID.
func normalizeYouTube(u *url.URL) string {
	hostname := strings.ToLower(u.Hostname())
	if matchesSuffix(hostname, "youtu.be") {
		videoID := strings.Trim(u.Path, "/")
		if videoID == "" {
			return u.String()
		}
		return "https://www.youtube.com/watch?v=" + videoID
	}
	videoID := u.Query().Get("v")
	if videoID == "" {
		return u.String()
	}
	return "https://www.youtube.com/watch?v=" + videoID
}

// FormatOptions describes the extraction options sent to the backend for a
// given format/quality selection.
type FormatOptions struct {
	Format       string `json:"format"`
	VideoQuality string `json:"videoQuality,omitempty"`
	AudioQuality string `json:"audioQuality,omitempty"`
}

var youtubeQualityMap = map[Quality]string{
	QualityHighest: "best",
	Quality1080p:   "1080",
	Quality720p:    "720",
	Quality480p:    "480",
	Quality360p:    "360",
}

// FormatOptions maps a format/quality selection onto the options the backend
// extractor understands for this platform.
func (p *PlatformDescriptor) FormatOptions(format Format, quality Quality) FormatOptions {
	if p.ID == PlatformYouTube {
		if format == FormatAudio {
			return FormatOptions{Format: "bestaudio", AudioQuality: "best"}
		}
		vq, ok := youtubeQualityMap[quality]
		if !ok {
			vq = "720"
		}
		return FormatOptions{Format: "video", VideoQuality: vq}
	}

	opts := FormatOptions{Format: "bestvideo"}
	if format == FormatAudio {
		opts.Format = "bestaudio"
	}
	if quality == QualityHighest {
		opts.VideoQuality = "best"
	} else {
		opts.VideoQuality = strings.TrimSuffix(string(quality), "p")
	}
	return opts
}
