// internal/services/events.go
package services

import "time"

// EventType 编辑器推送事件类型
type EventType string

const (
	EventGraphUpdated  EventType = "graph_updated"
	EventIssuesUpdated EventType = "issues_updated"
	EventStorySaved    EventType = "story_saved"
	EventModeChanged   EventType = "mode_changed"
	EventAssetsUpdated EventType = "assets_updated"
)

// Event is pushed to every client watching a story.
type Event struct {
	Type      EventType   `json:"type"`
	StoryID   string      `json:"story_id"`
	Version   uint64      `json:"version"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Publisher delivers events. Implementations must not block.
type Publisher interface {
	Publish(ev Event)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ev Event)

func (f PublisherFunc) Publish(ev Event) { f(ev) }

type nopPublisher struct{}

func (nopPublisher) Publish(Event) {}
