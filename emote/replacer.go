package emote

import (
	"cmp"
	"slices"
	"strings"

	"github.com/julez-dev/chatoverlay/markup"
	"github.com/rs/zerolog/log"
)

type Replacer struct {
	urlTemplate string
}

// NewReplacer returns a Replacer resolving emote images through urlTemplate, which must contain
// exactly one %s verb for the emote id. An empty template falls back to TwitchURLTemplate.
func NewReplacer(urlTemplate string) *Replacer {
	if urlTemplate == "" {
		urlTemplate = TwitchURLTemplate
	}

	return &Replacer{
		urlTemplate: urlTemplate,
	}
}

// Replace renders content as markup, substituting every emote range with an image.
// Text outside of emote ranges is escaped. Ranges are applied in start order; a range that is
// reversed, out of bounds or overlaps an earlier range is skipped and its text stays plain.
func (r *Replacer) Replace(content string, emoteList []Emote) string {
	// twitch positions are code point offsets, not byte offsets
	runes := []rune(content)

	sorted := slices.Clone(emoteList)
	slices.SortStableFunc(sorted, func(a, b Emote) int {
		return cmp.Compare(a.Start, b.Start)
	})

	var (
		out    strings.Builder
		cursor int
	)

	for _, e := range sorted {
		if !e.valid(cursor, len(runes)) {
			log.Debug().Str("id", e.ID).Int("start", e.Start).Int("end", e.End).Int("length", len(runes)).Msg("skipped invalid emote range")
			continue
		}

		out.WriteString(markup.Escape(string(runes[cursor:e.Start])))

		code := markup.Escape(string(runes[e.Start : e.End+1]))
		out.WriteString(`<img src="`)
		out.WriteString(markup.Escape(imageURL(r.urlTemplate, e.ID)))
		out.WriteString(`" alt="`)
		out.WriteString(code)
		out.WriteString(`" title="`)
		out.WriteString(code)
		out.WriteString(`" class="chat-emote">`)

		cursor = e.End + 1
	}

	out.WriteString(markup.Escape(string(runes[cursor:])))

	return out.String()
}
