// Package stream provides the event envelope published by a stage and the
// plumbing that carries it: an in-memory broker for live subscribers, a
// websocket client for remote viewers and a compressed trace recorder.
package stream

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType identifies the type of message in the stream.
type MessageType string

const (
	// MessageTypeSprite is a sprite state update.
	MessageTypeSprite MessageType = "sprite"
	// MessageTypeCollision is a collision status update.
	MessageTypeCollision MessageType = "collision"
	// MessageTypeRun marks the start of a run.
	MessageTypeRun MessageType = "run"
	// MessageTypeDone marks the end of one sprite's activation.
	MessageTypeDone MessageType = "done"
	// MessageTypeReset marks a stage reset.
	MessageTypeReset MessageType = "reset"
)

// Event represents a message in the stream.
type Event struct {
	// Seq is the sequence number assigned by the Broker.
	// Zero for events not yet published.
	Seq uint64 `json:"seq,omitempty"`

	// Type identifies what kind of event this is.
	Type MessageType `json:"type"`

	// Timestamp is when the event was created.
	Timestamp time.Time `json:"timestamp"`

	// Data contains the type-specific payload.
	// Use the typed accessor methods to get the concrete type.
	Data json.RawMessage `json:"data"`
}

// NewEvent creates a new Event with the given type and data.
func NewEvent(msgType MessageType, data any) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event data: %w", err)
	}

	return &Event{
		Type:      msgType,
		Timestamp: time.Now().UTC(),
		Data:      dataBytes,
	}, nil
}

// MustNewEvent creates a new Event, panicking on error.
// Use only when the data is known to be serializable.
func MustNewEvent(msgType MessageType, data any) *Event {
	e, err := NewEvent(msgType, data)
	if err != nil {
		panic(err)
	}
	return e
}

// Marshal serializes the event to JSON bytes.
func (e *Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// UnmarshalEvent deserializes an Event from JSON bytes.
func UnmarshalEvent(data []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	return &e, nil
}

func (e *Event) decode(want MessageType, into any) error {
	if e.Type != want {
		return fmt.Errorf("event is not a %s event: %s", want, e.Type)
	}
	if err := json.Unmarshal(e.Data, into); err != nil {
		return fmt.Errorf("failed to unmarshal %s data: %w", want, err)
	}
	return nil
}

// SpriteData returns the sprite data if this is a sprite event.
func (e *Event) SpriteData() (*SpriteEvent, error) {
	var data SpriteEvent
	if err := e.decode(MessageTypeSprite, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// CollisionData returns the collision data if this is a collision event.
func (e *Event) CollisionData() (*CollisionEvent, error) {
	var data CollisionEvent
	if err := e.decode(MessageTypeCollision, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// RunData returns the run data if this is a run event.
func (e *Event) RunData() (*RunEvent, error) {
	var data RunEvent
	if err := e.decode(MessageTypeRun, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// DoneData returns the done data if this is a done event.
func (e *Event) DoneData() (*DoneEvent, error) {
	var data DoneEvent
	if err := e.decode(MessageTypeDone, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// ResetData returns the reset data if this is a reset event.
func (e *Event) ResetData() (*ResetEvent, error) {
	var data ResetEvent
	if err := e.decode(MessageTypeReset, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// SpriteEvent carries the observable state of one sprite.
type SpriteEvent struct {
	ID         int     `json:"id"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Heading    float64 `json:"heading"`
	Active     bool    `json:"active"`
	Hero       bool    `json:"hero"`
	Selected   bool    `json:"selected"`
	SayText    string  `json:"say_text,omitempty"`
	ThinkText  string  `json:"think_text,omitempty"`
	Animation  string  `json:"animation,omitempty"`
	Colliding  bool    `json:"colliding"`
	BlockCount int     `json:"block_count"`

	// Removed is set once when the sprite leaves the stage.
	Removed bool `json:"removed,omitempty"`
}

// CollisionPair is the collision status of two sprites, A < B.
type CollisionPair struct {
	A         int  `json:"a"`
	B         int  `json:"b"`
	Colliding bool `json:"colliding"`
}

// CollisionEvent carries the latest collision status list.
type CollisionEvent struct {
	Policy string          `json:"policy"`
	Pairs  []CollisionPair `json:"pairs"`
	// Swapped lists the pairs whose block lists were exchanged.
	Swapped []CollisionPair `json:"swapped,omitempty"`
}

// RunEvent marks the start of a run; Runs maps sprite id to run id.
type RunEvent struct {
	Runs map[int]string `json:"runs"`
}

// DoneEvent marks the end of one sprite's activation.
type DoneEvent struct {
	SpriteID int    `json:"sprite_id"`
	RunID    string `json:"run_id"`
	Reason   string `json:"reason"`
	Steps    int    `json:"steps"`
	Faults   int    `json:"faults,omitempty"`
}

// ResetEvent marks a stage reset.
type ResetEvent struct {
	ClearedBlocks bool `json:"cleared_blocks"`
}
