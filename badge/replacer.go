package badge

import (
	"strings"

	"github.com/julez-dev/chatoverlay/markup"
)

type MappingSource interface {
	Mapping() Mapping
}

type Replacer struct {
	source MappingSource
}

func NewReplacer(source MappingSource) *Replacer {
	return &Replacer{
		source: source,
	}
}

// Replace renders badgeList against the current mapping. Nothing is rendered if the message has no
// badges or no mapping was received yet.
func (r *Replacer) Replace(badgeList []Badge) string {
	if len(badgeList) == 0 {
		return ""
	}

	mapping := r.source.Mapping()
	if len(mapping) == 0 {
		return ""
	}

	return Render(badgeList, mapping)
}

// Render returns one image fragment per badge found in mapping, in input order.
// Badges without a matching set or version are left out.
func Render(badgeList []Badge, mapping Mapping) string {
	var out strings.Builder

	for _, b := range badgeList {
		url, ok := mapping.Lookup(b.ID, b.Version)
		if !ok {
			continue
		}

		out.WriteString(`<img src="`)
		out.WriteString(markup.Escape(url))
		out.WriteString(`" alt="`)
		out.WriteString(markup.Escape(b.ID))
		out.WriteString(`" class="chat-badge">`)
	}

	return out.String()
}
