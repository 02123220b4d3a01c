package validation

import (
	"fmt"
	"strings"

	"marketplace-console/internal/common/errors"
	"marketplace-console/pkg/registry"

	"github.com/xeipuuv/gojsonschema"
)

// EventValidator checks inbound realtime payloads against the event catalog.
// It is immutable after construction and safe for concurrent use.
type EventValidator struct {
	catalog  *registry.EventCatalog
	compiled map[string]*gojsonschema.Schema
}

// NewEventValidator compiles every schema in catalog. A nil catalog uses the built-in one.
func NewEventValidator(catalog *registry.EventCatalog) (*EventValidator, error) {
	if catalog == nil {
		catalog = registry.DefaultCatalog()
	}
	v := &EventValidator{
		catalog:  catalog,
		compiled: make(map[string]*gojsonschema.Schema, len(catalog.Events)),
	}
	for _, def := range catalog.Events {
		if def.Schema == nil {
			continue
		}
		schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(def.Schema))
		if err != nil {
			return nil, fmt.Errorf("compile schema for %s: %w", def.Type, err)
		}
		v.compiled[def.Type] = schema
	}
	return v, nil
}

// Catalog returns the catalog the validator was built from.
func (v *EventValidator) Catalog() *registry.EventCatalog {
	return v.catalog
}

// Known reports whether eventType is catalogued.
func (v *EventValidator) Known(eventType string) bool {
	_, ok := v.catalog.Lookup(eventType)
	return ok
}

// Validate checks a raw JSON payload for eventType.
func (v *EventValidator) Validate(eventType string, payload []byte) error {
	if !v.Known(eventType) {
		return errors.NewInvalidEventError(fmt.Sprintf("unknown event type %q", eventType))
	}

	schema, ok := v.compiled[eventType]
	if !ok {
		return nil
	}

	if len(payload) == 0 {
		payload = []byte("null")
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(payload))
	if err != nil {
		return errors.NewInvalidEventError(fmt.Sprintf("%s: %v", eventType, err))
	}
	if !result.Valid() {
		msgs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			msgs[i] = desc.String()
		}
		return errors.NewInvalidEventError(fmt.Sprintf("%s: %s", eventType, strings.Join(msgs, "; ")))
	}
	return nil
}
