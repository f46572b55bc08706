// Package input handles what the user types into the overlay and the action buttons next to it.
package input

import (
	"context"
	"strings"

	"github.com/julez-dev/chatoverlay/relay"
	"github.com/rs/zerolog"
)

const EnterKey = "Enter"

// Field is the text input the user types into.
type Field interface {
	Value() string
	SetValue(value string)
}

type Sender interface {
	Send(ctx context.Context, action relay.Action) error
}

type Notifier interface {
	RenderNotice(text string)
}

type Controller struct {
	logger   zerolog.Logger
	sender   Sender
	notifier Notifier
}

func NewController(logger zerolog.Logger, sender Sender, notifier Notifier) *Controller {
	return &Controller{
		logger:   logger.With().Str("component", "input").Logger(),
		sender:   sender,
		notifier: notifier,
	}
}

// Submit sends the trimmed field value as chat message and clears the field.
// Blank input is ignored. If sending fails the field keeps its value; the sender already
// told the user why.
func (c *Controller) Submit(ctx context.Context, field Field) bool {
	text := strings.TrimSpace(field.Value())
	if text == "" {
		return false
	}

	if err := c.sender.Send(ctx, relay.SendChat(text)); err != nil {
		c.logger.Warn().Err(err).Msg("could not send chat message")
		return false
	}

	field.SetValue("")
	return true
}

// KeyPress submits on Enter and ignores every other key.
func (c *Controller) KeyPress(ctx context.Context, field Field, key string) bool {
	if key != EnterKey {
		return false
	}

	return c.Submit(ctx, field)
}

// RequestStreamSearch asks the relay to look for a live youtube stream.
func (c *Controller) RequestStreamSearch(ctx context.Context) bool {
	if err := c.sender.Send(ctx, relay.YouTubeStreamStart()); err != nil {
		c.logger.Warn().Err(err).Msg("could not request stream search")
		return false
	}

	c.notifier.RenderNotice("YouTube stream search requested...")
	return true
}

// TextField is a Field backed by a plain string, used for values that arrive with a request.
type TextField struct {
	value string
}

func NewTextField(value string) *TextField {
	return &TextField{value: value}
}

func (f *TextField) Value() string {
	return f.value
}

func (f *TextField) SetValue(value string) {
	f.value = value
}
