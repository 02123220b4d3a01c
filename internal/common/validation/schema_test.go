package validation

import (
	"testing"

	"marketplace-console/internal/common/errors"
	"marketplace-console/pkg/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventValidator_Validate(t *testing.T) {
	v, err := NewEventValidator(nil)
	require.NoError(t, err)

	tests := []struct {
		name      string
		eventType string
		payload   string
		wantErr   bool
	}{
		{"valid message", "new_message", `{"_id":"m1","conversationId":"c1","message":"hi"}`, false},
		{"missing id", "new_message", `{"conversationId":"c1"}`, true},
		{"empty id", "property_viewed", `{"propertyId":""}`, true},
		{"wrong type", "property_viewed", `{"propertyId":42}`, true},
		{"free form notification", "notification", `{"title":"x"}`, false},
		{"notification must be object", "notification", `"text"`, true},
		{"unknown type", "rocket_launched", `{}`, true},
		{"empty payload rejected by schema", "user_online", ``, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.eventType, []byte(tt.payload))
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidEvent))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestEventValidator_CustomSchemaOverridesBuiltin(t *testing.T) {
	catalog := registry.DefaultCatalog()
	catalog.Put(registry.EventDefinition{
		Type:     "subscription_updated",
		Category: registry.CategoryBilling,
		Schema: map[string]interface{}{
			"type":     "object",
			"required": []interface{}{"planId"},
		},
	})

	v, err := NewEventValidator(catalog)
	require.NoError(t, err)

	assert.Error(t, v.Validate("subscription_updated", []byte(`{}`)))
	assert.NoError(t, v.Validate("subscription_updated", []byte(`{"planId":"gold"}`)))
}

func TestNewEventValidator_BadSchema(t *testing.T) {
	catalog := &registry.EventCatalog{Events: []registry.EventDefinition{
		{Type: "x", Schema: map[string]interface{}{"type": "banana"}},
	}}
	_, err := NewEventValidator(catalog)
	assert.Error(t, err)
}
