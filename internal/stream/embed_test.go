package stream

import (
	"testing"

	"github.com/AdamBeresnev/tourney/internal/utils"
	"github.com/stretchr/testify/assert"
)

func TestGetEmbedInfo(t *testing.T) {
	tests := []struct {
		name     string
		link     *string
		wantType EmbedType
		wantURL  string
	}{
		{"nil link", nil, EmbedTypeNone, ""},
		{"blank link", utils.Ptr("  "), EmbedTypeNone, ""},
		{"youtube watch", utils.Ptr("https://www.youtube.com/watch?v=abc123&t=42"), EmbedTypeYouTube, "https://www.youtube.com/embed/abc123"},
		{"youtube short", utils.Ptr("https://youtu.be/abc123?si=xyz"), EmbedTypeYouTube, "https://www.youtube.com/embed/abc123"},
		{"youtube embed", utils.Ptr("https://www.youtube.com/embed/abc123"), EmbedTypeYouTube, "https://www.youtube.com/embed/abc123"},
		{"twitch channel", utils.Ptr("https://www.twitch.tv/somechannel"), EmbedTypeTwitch, "https://player.twitch.tv/?channel=somechannel&parent=example.com"},
		{"twitch player", utils.Ptr("https://player.twitch.tv/?channel=x&parent=a.com"), EmbedTypeTwitch, "https://player.twitch.tv/?channel=x&parent=a.com"},
		{"video file", utils.Ptr("https://cdn.example.com/final.MP4"), EmbedTypeVideo, "https://cdn.example.com/final.MP4"},
		{"anything else", utils.Ptr("https://kick.com/someone"), EmbedTypeIframe, "https://kick.com/someone"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := GetEmbedInfo(tt.link, "example.com")
			assert.Equal(t, tt.wantType, info.Type)
			assert.Equal(t, tt.wantURL, info.URL)
		})
	}
}
