// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"
)

// LoadCatalog reads a catalog file. Definitions present in the file replace
// the built-in ones of the same type; built-in types absent from the file are kept.
func LoadCatalog(path string) (*EventCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file EventCatalog
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse event catalog %s: %w", path, err)
	}

	merged := DefaultCatalog()
	merged.Version = file.Version
	merged.LastUpdated = file.LastUpdated
	for _, def := range file.Events {
		merged.Put(def)
	}
	return merged, nil
}

// Lookup returns the definition for eventType.
func (c *EventCatalog) Lookup(eventType string) (EventDefinition, bool) {
	for _, def := range c.Events {
		if def.Type == eventType {
			return def, true
		}
	}
	return EventDefinition{}, false
}

// Put adds or replaces a definition.
func (c *EventCatalog) Put(def EventDefinition) {
	for i := range c.Events {
		if c.Events[i].Type == def.Type {
			c.Events[i] = def
			return
		}
	}
	c.Events = append(c.Events, def)
}

// Types lists every catalogued event type in catalog order.
func (c *EventCatalog) Types() []string {
	out := make([]string, 0, len(c.Events))
	for _, def := range c.Events {
		out = append(out, def.Type)
	}
	return out
}

// SyntheticTypes lists the types the demo simulator may generate.
func (c *EventCatalog) SyntheticTypes() []string {
	var out []string
	for _, def := range c.Events {
		if def.Synthetic {
			out = append(out, def.Type)
		}
	}
	return out
}

// ByCategory lists the types in category.
func (c *EventCatalog) ByCategory(category string) []string {
	var out []string
	for _, def := range c.Events {
		if def.Category == category {
			out = append(out, def.Type)
		}
	}
	return out
}

// IDPayload builds an object schema requiring a non-empty idField, with extra
// optional string properties.
func IDPayload(idField string, extra ...string) map[string]interface{} {
	props := map[string]interface{}{
		idField: map[string]interface{}{"type": "string", "minLength": 1},
	}
	for _, f := range extra {
		props[f] = map[string]interface{}{"type": "string"}
	}
	return map[string]interface{}{
		"type":       "object",
		"required":   []interface{}{idField},
		"properties": props,
	}
}

// AnyObject accepts any JSON object.
var AnyObject = map[string]interface{}{"type": "object"}

// DefaultCatalog returns the built-in event vocabulary.
func DefaultCatalog() *EventCatalog {
	return &EventCatalog{
		Version: "builtin",
		Events: []EventDefinition{
			{Type: "property_created", Category: CategoryProperty, Description: "A listing was created", Schema: IDPayload("propertyId", "title")},
			{Type: "property_updated", Category: CategoryProperty, Description: "A listing changed", Schema: IDPayload("propertyId", "title")},
			{Type: "property_deleted", Category: CategoryProperty, Description: "A listing was removed", Schema: IDPayload("propertyId")},
			{Type: "property_approved", Category: CategoryProperty, Description: "A listing passed review", Schema: IDPayload("propertyId")},
			{Type: "property_rejected", Category: CategoryProperty, Description: "A listing failed review", Schema: IDPayload("propertyId", "reason")},
			{Type: "property_viewed", Category: CategoryProperty, Description: "A listing was viewed", Schema: IDPayload("propertyId"), Synthetic: true},
			{Type: "new_inquiry", Category: CategoryProperty, Description: "A customer asked about a listing", Schema: IDPayload("propertyId", "customerName"), Synthetic: true},
			{Type: "new_review", Category: CategoryProperty, Description: "A review was posted", Schema: IDPayload("propertyId"), Synthetic: true},
			{Type: "favorite_added", Category: CategoryProperty, Description: "A listing was favorited", Schema: IDPayload("propertyId"), Synthetic: true},
			{Type: "favorite_removed", Category: CategoryProperty, Description: "A listing was unfavorited", Schema: IDPayload("propertyId")},
			{Type: "new_message", Category: CategoryMessaging, Description: "A message arrived", Schema: IDPayload("_id", "conversationId", "message")},
			{Type: "message_updated", Category: CategoryMessaging, Description: "A message was edited", Schema: IDPayload("_id", "message")},
			{Type: "message_deleted", Category: CategoryMessaging, Description: "A message was deleted", Schema: IDPayload("_id", "conversationId")},
			{Type: "message_read", Category: CategoryMessaging, Description: "A conversation was read", Schema: IDPayload("conversationId", "userId")},
			{Type: "typing_start", Category: CategoryMessaging, Description: "A participant started typing", Schema: IDPayload("conversationId", "userId")},
			{Type: "typing_stop", Category: CategoryMessaging, Description: "A participant stopped typing", Schema: IDPayload("conversationId", "userId")},
			{Type: "user_online", Category: CategoryPresence, Description: "A user came online", Schema: IDPayload("userId")},
			{Type: "user_offline", Category: CategoryPresence, Description: "A user went offline", Schema: IDPayload("userId")},
			{Type: "notification", Category: CategoryNotification, Description: "A notification was created", Schema: AnyObject, Synthetic: true},
			{Type: "vendor_application_submitted", Category: CategoryVendor, Description: "A vendor applied", Schema: IDPayload("applicationId")},
			{Type: "vendor_application_updated", Category: CategoryVendor, Description: "A vendor application changed state", Schema: IDPayload("applicationId", "status")},
			{Type: "subscription_updated", Category: CategoryBilling, Description: "A vendor plan or addon changed", Schema: AnyObject},
		},
	}
}
