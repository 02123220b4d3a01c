// pkg/registry/schema.go
package registry

// EventCatalog describes every realtime event type the console understands.
type EventCatalog struct {
	Version     string            `json:"version"`
	LastUpdated string            `json:"lastUpdated"`
	Events      []EventDefinition `json:"events"`
}

type EventDefinition struct {
	Type        string                 `json:"type"`
	Category    string                 `json:"category"`
	Description string                 `json:"description"`
	Schema      map[string]interface{} `json:"schema,omitempty"`
	Synthetic   bool                   `json:"synthetic"`
}

// Categories.
const (
	CategoryProperty     = "property"
	CategoryMessaging    = "messaging"
	CategoryPresence     = "presence"
	CategoryNotification = "notification"
	CategoryVendor       = "vendor"
	CategoryBilling      = "billing"
)

// Categories lists every known category.
var Categories = []string{
	CategoryProperty,
	CategoryMessaging,
	CategoryPresence,
	CategoryNotification,
	CategoryVendor,
	CategoryBilling,
}
