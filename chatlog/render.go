package chatlog

import (
	"bytes"
	"html/template"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/julez-dev/chatoverlay/badge"
	"github.com/julez-dev/chatoverlay/emote"
	"github.com/julez-dev/chatoverlay/markup"
	"github.com/julez-dev/chatoverlay/relay"
	"github.com/rs/zerolog"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	fallbackColor   = "#a970ff"
	timestampLayout = "15:04"
)

var (
	// hex colors or plain color keywords, anything else would end up inside a style attribute
	cssColor = regexp.MustCompile(`^(#(?:[0-9a-fA-F]{3,4}|[0-9a-fA-F]{6}|[0-9a-fA-F]{8})|[a-zA-Z]{1,32})$`)

	platformStyles = map[relay.Platform]template.CSS{
		relay.PlatformYouTube: "border-left: 3px solid #ff0000; background-color: rgba(255, 0, 0, 0.05)",
	}

	templates = template.Must(template.New("chatlog").Parse(
		`{{define "chat"}}<div class="message{{with .Platform}} platform-{{.}}{{end}}"{{with .Style}} style="{{.}}"{{end}}>` +
			`<span class="timestamp">{{.Time}}</span> ` +
			`<span class="badges">{{.Badges}}</span> ` +
			`<span class="username" style="color: {{.Color}}">{{.User}}:</span> ` +
			`<span class="text">{{.Body}}</span></div>{{end}}` +
			`{{define "notice"}}<div class="message system-notice">[System] {{.}}</div>{{end}}` +
			`{{define "error"}}<div class="message system-notice system-error">[System] ❌ ERROR: {{.}}</div>{{end}}` +
			`{{define "system_event"}}<div class="message system-event">` +
			`<div class="system-event-type">{{.Type}}</div>` +
			`<div class="system-event-message">{{.Message}}</div></div>{{end}}`,
	))
)

type chatLine struct {
	Platform relay.Platform
	Style    template.CSS
	Time     string
	Badges   template.HTML
	Color    template.CSS
	User     template.HTML
	Body     template.HTML
}

type systemEventBlock struct {
	Type    template.HTML
	Message template.HTML
}

// Renderer turns relay events into log entries. Every piece of text coming from the relay is
// escaped with markup.Escape before it is placed into a template.
type Renderer struct {
	logger zerolog.Logger
	log    *Log
	emotes *emote.Replacer
	badges *badge.Replacer
	now    func() time.Time
}

func NewRenderer(logger zerolog.Logger, log *Log, emotes *emote.Replacer, badges *badge.Replacer) *Renderer {
	return &Renderer{
		logger: logger.With().Str("component", "renderer").Logger(),
		log:    log,
		emotes: emotes,
		badges: badges,
		now:    time.Now,
	}
}

func (r *Renderer) RenderChat(msg relay.ChatMessage) {
	var body string
	if len(msg.Emotes) > 0 {
		body = r.emotes.Replace(msg.Message, msg.Emotes)
	} else {
		body = markup.Escape(msg.Message)
	}

	line := chatLine{
		Platform: msg.Platform,
		Style:    platformStyles[msg.Platform],
		Time:     r.now().Local().Format(timestampLayout),
		Badges:   template.HTML(r.badges.Replace(msg.Badges)),
		Color:    template.CSS(displayColor(msg.Color)),
		User:     template.HTML(markup.Escape(msg.User)),
		Body:     template.HTML(body),
	}

	r.append(KindChat, "chat", line)
}

func (r *Renderer) RenderSystemEvent(event relay.SystemEvent) {
	block := systemEventBlock{
		Type:    template.HTML(markup.Escape(cases.Upper(language.Und).String(event.Type))),
		Message: template.HTML(markup.Escape(event.Message)),
	}

	r.append(KindSystemEvent, "system_event", block)
}

func (r *Renderer) RenderNotice(text string) {
	r.append(KindNotice, "notice", template.HTML(markup.Escape(text)))
}

func (r *Renderer) RenderError(text string) {
	r.append(KindError, "error", template.HTML(markup.Escape(text)))
}

func (r *Renderer) append(kind Kind, name string, data any) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		r.logger.Error().Err(err).Str("template", name).Msg("failed to render log entry")
		return
	}

	r.log.Append(Entry{
		ID:        uuid.NewString(),
		Kind:      kind,
		HTML:      template.HTML(buf.String()),
		CreatedAt: r.now(),
	})
}

func displayColor(color string) string {
	if !cssColor.MatchString(color) {
		return fallbackColor
	}

	return color
}
