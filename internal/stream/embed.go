package stream

import (
	"net/url"
	"strings"
)

type EmbedType int

const (
	EmbedTypeNone EmbedType = iota
	EmbedTypeYouTube
	EmbedTypeTwitch
	EmbedTypeVideo
	EmbedTypeIframe
)

func (t EmbedType) String() string {
	switch t {
	case EmbedTypeYouTube:
		return "youtube"
	case EmbedTypeTwitch:
		return "twitch"
	case EmbedTypeVideo:
		return "video"
	case EmbedTypeIframe:
		return "iframe"
	default:
		return "none"
	}
}

type EmbedInfo struct {
	Type EmbedType
	URL  string
}

// GetEmbedInfo turns a tournament's stream link into something a page can
// embed. Twitch refuses to render without the embedding site's host, so parent
// is passed through as its parent parameter.
func GetEmbedInfo(link *string, parent string) EmbedInfo {
	if link == nil || strings.TrimSpace(*link) == "" {
		return EmbedInfo{Type: EmbedTypeNone}
	}

	l := strings.TrimSpace(*link)

	if strings.Contains(l, "youtube.com") || strings.Contains(l, "youtu.be") {
		if info, ok := youTubeEmbed(l); ok {
			return info
		}
	}

	if strings.Contains(l, "twitch.tv") {
		if info, ok := twitchEmbed(l, parent); ok {
			return info
		}
	}

	lower := strings.ToLower(l)
	if strings.HasSuffix(lower, ".mp4") || strings.HasSuffix(lower, ".webm") || strings.HasSuffix(lower, ".ogg") || strings.HasSuffix(lower, ".mov") {
		return EmbedInfo{Type: EmbedTypeVideo, URL: l}
	}

	// Default to generic iframe and hope for the best
	return EmbedInfo{Type: EmbedTypeIframe, URL: l}
}

func youTubeEmbed(l string) (EmbedInfo, bool) {
	if strings.Contains(l, "youtube.com/embed/") {
		return EmbedInfo{Type: EmbedTypeYouTube, URL: l}, true
	}

	videoID := ""
	if strings.Contains(l, "youtube.com/watch?v=") {
		parts := strings.Split(l, "v=")
		if len(parts) > 1 {
			videoID = parts[1]
			if idx := strings.Index(videoID, "&"); idx != -1 {
				videoID = videoID[:idx]
			}
		}
	} else if strings.Contains(l, "youtu.be/") {
		parts := strings.Split(l, "youtu.be/")
		if len(parts) > 1 {
			videoID = parts[1]
			if idx := strings.Index(videoID, "?"); idx != -1 {
				videoID = videoID[:idx]
			}
		}
	}

	if videoID == "" {
		return EmbedInfo{}, false
	}
	return EmbedInfo{Type: EmbedTypeYouTube, URL: "https://www.youtube.com/embed/" + videoID}, true
}

func twitchEmbed(l, parent string) (EmbedInfo, bool) {
	u, err := url.Parse(l)
	if err != nil {
		return EmbedInfo{}, false
	}
	if u.Host == "player.twitch.tv" {
		return EmbedInfo{Type: EmbedTypeTwitch, URL: l}, true
	}

	channel := strings.Trim(u.Path, "/")
	if idx := strings.Index(channel, "/"); idx != -1 {
		channel = channel[:idx]
	}
	if channel == "" {
		return EmbedInfo{}, false
	}

	q := url.Values{}
	q.Set("channel", channel)
	if parent != "" {
		q.Set("parent", parent)
	}
	return EmbedInfo{Type: EmbedTypeTwitch, URL: "https://player.twitch.tv/?" + q.Encode()}, true
}
