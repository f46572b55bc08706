package relay

import (
	"encoding/json"
	"fmt"

	"github.com/julez-dev/chatoverlay/badge"
	"github.com/julez-dev/chatoverlay/emote"
)

type EventTag string

const (
	TagChatMessage  EventTag = "ChatMessage"
	TagBotStatus    EventTag = "BotStatus"
	TagSystemEvent  EventTag = "SystemEvent"
	TagBadgeMapping EventTag = "BadgeMapping"
	TagError        EventTag = "Error"
)

type Platform string

const (
	PlatformTwitch  Platform = "twitch"
	PlatformYouTube Platform = "youtube"
)

// Event is one decoded inbound frame. The concrete type is one of ChatMessage, BotStatus,
// SystemEvent, BadgeMapping, ErrorEvent or UnknownEvent.
type Event interface {
	Tag() EventTag
}

type ChatMessage struct {
	User     string        `json:"user"`
	Color    string        `json:"color"`
	Platform Platform      `json:"platform"`
	Message  string        `json:"message"`
	Badges   []badge.Badge `json:"badges"`
	Emotes   []emote.Emote `json:"emotes"`
}

func (ChatMessage) Tag() EventTag { return TagChatMessage }

type BotStatus struct {
	Status string `json:"status"`
}

func (BotStatus) Tag() EventTag { return TagBotStatus }

// SystemEvent is a structured notice like a follow or subscription alert.
type SystemEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (SystemEvent) Tag() EventTag { return TagSystemEvent }

type BadgeMapping struct {
	Mapping badge.Mapping
}

func (BadgeMapping) Tag() EventTag { return TagBadgeMapping }

type ErrorEvent struct {
	Message string `json:"message"`
}

func (ErrorEvent) Tag() EventTag { return TagError }

// UnknownEvent is returned for tags this client does not know about.
type UnknownEvent struct {
	EventTag EventTag
}

func (u UnknownEvent) Tag() EventTag { return u.EventTag }

type envelope struct {
	Event EventTag        `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Decode parses a raw `{event, data}` frame.
func Decode(frame []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("failed to decode envelope: %w", err)
	}

	switch env.Event {
	case TagChatMessage:
		return decodeData[ChatMessage](env)
	case TagBotStatus:
		return decodeData[BotStatus](env)
	case TagSystemEvent:
		return decodeData[SystemEvent](env)
	case TagBadgeMapping:
		mapping, err := decodeData[badge.Mapping](env)
		if err != nil {
			return nil, err
		}
		return BadgeMapping{Mapping: mapping}, nil
	case TagError:
		return decodeData[ErrorEvent](env)
	}

	return UnknownEvent{EventTag: env.Event}, nil
}

func decodeData[T any](env envelope) (T, error) {
	var data T

	if len(env.Data) == 0 {
		return data, fmt.Errorf("event %s has no data", env.Event)
	}

	if err := json.Unmarshal(env.Data, &data); err != nil {
		return data, fmt.Errorf("failed to decode %s data: %w", env.Event, err)
	}

	return data, nil
}

type ActionTag string

const (
	ActionGetBadges          ActionTag = "get_badges"
	ActionSendChat           ActionTag = "send_chat"
	ActionYouTubeStreamStart ActionTag = "youtube_stream_start"
)

// Action is an outbound `{action, ...payload}` frame. The payload fields sit next to the tag.
type Action struct {
	Action  ActionTag `json:"action"`
	Message string    `json:"message,omitempty"`
}

func GetBadges() Action {
	return Action{Action: ActionGetBadges}
}

func SendChat(message string) Action {
	return Action{Action: ActionSendChat, Message: message}
}

func YouTubeStreamStart() Action {
	return Action{Action: ActionYouTubeStreamStart}
}
