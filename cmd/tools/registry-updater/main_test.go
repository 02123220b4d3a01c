// cmd/tools/registry-updater/main_test.go
package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"marketplace-console/pkg/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogLifecycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "configs", "event-catalog.json")

	require.NoError(t, addEvent(path, registry.EventDefinition{
		Type:      "open_house_scheduled",
		Category:  registry.CategoryProperty,
		Schema:    registry.IDPayload("propertyId", "date"),
		Synthetic: true,
	}))

	err := addEvent(path, registry.EventDefinition{Type: "open_house_scheduled", Category: registry.CategoryProperty})
	assert.ErrorContains(t, err, "already exists")

	require.NoError(t, updateEvent(path, "open_house_scheduled", "synthetic", "false"))
	require.NoError(t, updateEvent(path, "open_house_scheduled", "description", "Viewing booked"))

	c, err := readCatalog(path)
	require.NoError(t, err)
	require.Len(t, c.Events, 1)
	assert.False(t, c.Events[0].Synthetic)
	assert.Equal(t, "Viewing booked", c.Events[0].Description)
	assert.NotEmpty(t, c.LastUpdated)

	var out bytes.Buffer
	require.NoError(t, validateCatalog(&out, path))
	assert.Contains(t, out.String(), "1 events in file, 23 after merging built-ins")
}

func TestUpdateEvent_Errors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	require.NoError(t, addEvent(path, registry.EventDefinition{Type: "x", Category: registry.CategoryBilling}))

	assert.ErrorContains(t, updateEvent(path, "missing", "description", "d"), "not found")
	assert.ErrorContains(t, updateEvent(path, "x", "synthetic", "maybe"), "invalid synthetic value")
	assert.ErrorContains(t, updateEvent(path, "x", "category", "weather"), "unknown category")
	assert.ErrorContains(t, updateEvent(path, "x", "schema", "{}"), "unknown field")
}

func TestInitCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")

	require.NoError(t, initCatalog(path, false))
	assert.ErrorContains(t, initCatalog(path, false), "already exists")
	require.NoError(t, initCatalog(path, true))

	c, err := readCatalog(path)
	require.NoError(t, err)
	assert.Len(t, c.Events, len(registry.DefaultCatalog().Events))
}

func TestValidateCatalog_Rejects(t *testing.T) {
	tests := map[string]struct {
		content string
		wantErr string
	}{
		"duplicate type": {
			content: `{"events":[{"type":"a","category":"vendor"},{"type":"a","category":"vendor"}]}`,
			wantErr: "duplicate event type",
		},
		"unknown category": {
			content: `{"events":[{"type":"a","category":"weather"}]}`,
			wantErr: "unknown category",
		},
		"missing type": {
			content: `{"events":[{"category":"vendor"}]}`,
			wantErr: "missing required field",
		},
		"schema does not compile": {
			content: `{"events":[{"type":"a","category":"vendor","schema":{"type":"nonsense"}}]}`,
			wantErr: "compile schema for a",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "catalog.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))
			err := validateCatalog(&bytes.Buffer{}, path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
