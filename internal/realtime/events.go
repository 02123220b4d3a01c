// internal/realtime/events.go
package realtime

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type EventType string

// All is the wildcard key; listeners under it receive every event after the
// type-specific listeners.
const All EventType = "all"

const (
	PropertyCreated            EventType = "property_created"
	PropertyUpdated            EventType = "property_updated"
	PropertyDeleted            EventType = "property_deleted"
	PropertyApproved           EventType = "property_approved"
	PropertyRejected           EventType = "property_rejected"
	PropertyViewed             EventType = "property_viewed"
	NewInquiry                 EventType = "new_inquiry"
	NewReview                  EventType = "new_review"
	FavoriteAdded              EventType = "favorite_added"
	FavoriteRemoved            EventType = "favorite_removed"
	NewMessage                 EventType = "new_message"
	MessageUpdated             EventType = "message_updated"
	MessageDeleted             EventType = "message_deleted"
	MessageRead                EventType = "message_read"
	TypingStart                EventType = "typing_start"
	TypingStop                 EventType = "typing_stop"
	UserOnline                 EventType = "user_online"
	UserOffline                EventType = "user_offline"
	Notification               EventType = "notification"
	VendorApplicationSubmitted EventType = "vendor_application_submitted"
	VendorApplicationUpdated   EventType = "vendor_application_updated"
	SubscriptionUpdated        EventType = "subscription_updated"
)

// PropertyTypes are the listing-related events a property dashboard follows.
var PropertyTypes = []EventType{
	PropertyCreated, PropertyUpdated, PropertyDeleted, PropertyApproved, PropertyRejected,
	PropertyViewed, NewInquiry, NewReview, FavoriteAdded, FavoriteRemoved,
}

// MessagingTypes are the events a conversation view follows.
var MessagingTypes = []EventType{
	NewMessage, MessageUpdated, MessageDeleted, MessageRead,
	TypingStart, TypingStop, UserOnline, UserOffline,
}

// Event is ephemeral: it exists only while being dispatched.
type Event struct {
	ID        string          `json:"id"`
	Type      EventType       `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewEvent marshals data and stamps a fresh id.
func NewEvent(eventType EventType, data interface{}, at time.Time) (Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Event{}, err
	}
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Data:      raw,
		Timestamp: at,
	}, nil
}

// Decode unmarshals the payload into v.
func (e Event) Decode(v interface{}) error {
	if len(e.Data) == 0 {
		return json.Unmarshal([]byte("null"), v)
	}
	return json.Unmarshal(e.Data, v)
}
