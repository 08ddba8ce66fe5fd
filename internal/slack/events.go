package slack

import (
	"fmt"
	"sort"
	"time"
)

// EventType identifies the type of bot event.
type EventType string

// Event types for Slack notifications.
const (
	EventUserRegistered    EventType = "user_registered"
	EventAuthFailed        EventType = "auth_failed"
	EventPortalUnavailable EventType = "portal_unavailable"
	EventStoreError        EventType = "store_error"
)

// Field keys used in notification payloads.
const (
	FieldUserID   = "user_id"
	FieldName     = "name"
	FieldBadge    = "badge"
	FieldEndpoint = "endpoint"
	FieldError    = "error"
	FieldCommand  = "command"
)

// eventConfig holds display configuration for each event type.
type eventConfig struct {
	emoji string
	title string
}

var eventConfigs = map[EventType]eventConfig{
	EventUserRegistered:    {emoji: "✨", title: "New user"},
	EventAuthFailed:        {emoji: "⛔", title: "Wrong access password"},
	EventPortalUnavailable: {emoji: "📡", title: "ACS portal unavailable"},
	EventStoreError:        {emoji: "💾", title: "User store write failed"},
}

// formatMessage creates a Slack message for the given event.
func formatMessage(event EventType, fields map[string]string) *slackMessage {
	cfg, ok := eventConfigs[event]
	if !ok {
		cfg = eventConfig{emoji: "📢", title: string(event)}
	}

	header := fmt.Sprintf("%s *%s*", cfg.emoji, cfg.title)

	var fieldBlocks []slackText
	switch event {
	case EventUserRegistered, EventAuthFailed:
		fieldBlocks = formatUserFields(fields)
	case EventPortalUnavailable, EventStoreError:
		fieldBlocks = formatFailureFields(fields)
	default:
		fieldBlocks = formatGenericFields(fields)
	}

	blocks := []slackBlock{
		{
			Type: "section",
			Text: &slackText{Type: "mrkdwn", Text: header},
		},
	}

	if len(fieldBlocks) > 0 {
		blocks = append(blocks, slackBlock{
			Type:   "section",
			Fields: fieldBlocks,
		})
	}

	blocks = append(blocks, slackBlock{
		Type: "context",
		Fields: []slackText{
			{Type: "mrkdwn", Text: fmt.Sprintf("_acsbot • %s_", time.Now().Format("Jan 2, 15:04 MST"))},
		},
	})

	return &slackMessage{
		Text:   fmt.Sprintf("%s %s", cfg.emoji, cfg.title), // Fallback text
		Blocks: blocks,
	}
}

func formatUserFields(fields map[string]string) []slackText {
	var result []slackText
	if v := fields[FieldName]; v != "" {
		result = append(result, slackText{Type: "mrkdwn", Text: fmt.Sprintf("*User:*\n%s", truncate(v, 50))})
	}
	if v := fields[FieldUserID]; v != "" {
		result = append(result, slackText{Type: "mrkdwn", Text: fmt.Sprintf("*Chat id:*\n`%s`", v)})
	}
	if v := fields[FieldBadge]; v != "" {
		result = append(result, slackText{Type: "mrkdwn", Text: fmt.Sprintf("*Badge:*\n`%s`", v)})
	}
	return result
}

func formatFailureFields(fields map[string]string) []slackText {
	var result []slackText
	if v := fields[FieldEndpoint]; v != "" {
		result = append(result, slackText{Type: "mrkdwn", Text: fmt.Sprintf("*Endpoint:*\n%s", v)})
	}
	if v := fields[FieldCommand]; v != "" {
		result = append(result, slackText{Type: "mrkdwn", Text: fmt.Sprintf("*Command:*\n`%s`", v)})
	}
	if v := fields[FieldError]; v != "" {
		result = append(result, slackText{Type: "mrkdwn", Text: fmt.Sprintf("*Error:*\n```%s```", truncate(v, 200))})
	}
	return result
}

func formatGenericFields(fields map[string]string) []slackText {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var result []slackText
	for _, k := range keys {
		if v := fields[k]; v != "" {
			result = append(result, slackText{Type: "mrkdwn", Text: fmt.Sprintf("*%s:*\n%s", k, truncate(v, 100))})
		}
	}
	return result
}

// truncate shortens s to maxLen runes, adding "..." if truncated. Names are
// mostly Cyrillic, so cutting bytes would leave broken characters.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
