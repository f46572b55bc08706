package emote

import (
	"fmt"
	"net/url"
)

// TwitchURLTemplate builds the CDN image URL for a twitch emote id.
const TwitchURLTemplate = "https://static-cdn.jtvnw.net/emoticons/v2/%s/default/dark/1.0"

// Emote marks the code points Start through End (inclusive) of a chat message as an emote.
type Emote struct {
	ID    string `json:"id"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

func (e Emote) valid(cursor, length int) bool {
	return e.Start >= cursor && e.End >= e.Start && e.End < length
}

func imageURL(template, id string) string {
	return fmt.Sprintf(template, url.PathEscape(id))
}
