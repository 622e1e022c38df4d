package game

import (
	"fmt"

	"github.com/sippey/fog-city-dispatch-sub000/internal/cards"
)

// EventType represents the type of a journal event
type EventType string

const (
	EventStarted   EventType = "started"
	EventResolved  EventType = "resolved"
	EventDelivered EventType = "delivered"
	EventTimeUp    EventType = "time_up"
	EventEnded     EventType = "ended"
)

// Event is one entry of a session journal
type Event struct {
	Seq           int                `json:"seq"`
	Type          EventType          `json:"type"`
	TimeRemaining int                `json:"time_remaining"`
	CardID        int                `json:"card_id,omitempty"`
	StoryArc      string             `json:"story_arc,omitempty"`
	Response      cards.ResponseType `json:"response,omitempty"`
	Delta         cards.Delta        `json:"delta"`
	Outcome       string             `json:"outcome,omitempty"`
	Details       string             `json:"details"`
}

// Journal stores session events in order
type Journal struct {
	events []Event
}

// Record appends an event and assigns its sequence number
func (j *Journal) Record(event Event) Event {
	event.Seq = len(j.events) + 1
	j.events = append(j.events, event)
	return event
}

// Events returns a copy of all recorded events
func (j *Journal) Events() []Event {
	result := make([]Event, len(j.events))
	copy(result, j.events)
	return result
}

// EventsOfType returns the events of the given type, in order
func EventsOfType(events []Event, t EventType) []Event {
	var result []Event
	for _, e := range events {
		if e.Type == t {
			result = append(result, e)
		}
	}
	return result
}

func newResolvedEvent(timeRemaining int, card *cards.Card, res *cards.Resolution) Event {
	return Event{
		Type:          EventResolved,
		TimeRemaining: timeRemaining,
		CardID:        card.ID,
		StoryArc:      card.StoryArc,
		Response:      res.Response,
		Delta:         res.Delta,
		Outcome:       res.Outcome,
		Details:       fmt.Sprintf("card %d answered with %s (%s)", card.ID, res.Response, res.DeckAction),
	}
}

func newDeliveredEvent(timeRemaining int, pending *PendingDelta) Event {
	return Event{
		Type:          EventDelivered,
		TimeRemaining: timeRemaining,
		Delta:         pending.Delta,
		Details:       fmt.Sprintf("delta #%d applied", pending.Seq),
	}
}
