package media

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/C4T-BuT-S4D/reelbridge/internal/apperr"
)

type Kind string

const (
	KindPost  Kind = "p"
	KindReel  Kind = "reel"
	KindVideo Kind = "tv"
)

// Ref identifies a single media item.
type Ref struct {
	Kind      Kind
	Shortcode string
	Link      string
}

func (r Ref) String() string {
	return string(r.Kind) + "/" + r.Shortcode
}

var (
	urlPattern       = regexp.MustCompile(`https?://[^\s<>"']+`)
	shortcodePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
)

var kindSegments = map[string]Kind{
	"p":     KindPost,
	"reel":  KindReel,
	"reels": KindReel,
	"tv":    KindVideo,
}

// Resolve extracts the media reference from a post, reel or video URL.
func Resolve(link string) (Ref, error) {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Ref{}, apperr.UnresolvableLink(link)
	}

	segments := strings.FieldsFunc(u.Path, func(r rune) bool { return r == '/' })
	for i := 0; i+1 < len(segments); i++ {
		kind, ok := kindSegments[strings.ToLower(segments[i])]
		if !ok {
			continue
		}
		code := segments[i+1]
		if !shortcodePattern.MatchString(code) {
			break
		}
		return Ref{Kind: kind, Shortcode: code, Link: link}, nil
	}

	return Ref{}, apperr.UnresolvableLink(link)
}

// FindLink returns the first URL in free text that resolves to media.
func FindLink(text string) (string, bool) {
	for _, candidate := range urlPattern.FindAllString(text, -1) {
		candidate = strings.TrimRight(candidate, ".,;:!?)]}")
		if _, err := Resolve(candidate); err == nil {
			return candidate, true
		}
	}
	return "", false
}
