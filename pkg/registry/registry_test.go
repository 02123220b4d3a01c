// pkg/registry/registry_test.go
package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	c := DefaultCatalog()

	assert.Len(t, c.Types(), 22)
	assert.ElementsMatch(t,
		[]string{"property_viewed", "new_inquiry", "new_review", "favorite_added", "notification"},
		c.SyntheticTypes())
	assert.Contains(t, c.ByCategory(CategoryMessaging), "new_message")

	def, ok := c.Lookup("vendor_application_updated")
	require.True(t, ok)
	assert.Equal(t, CategoryVendor, def.Category)
}

func TestLoadCatalog_MergesWithBuiltin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"version": "2024.1",
		"events": [
			{"type": "property_viewed", "category": "property", "synthetic": false},
			{"type": "open_house_scheduled", "category": "property", "synthetic": true}
		]
	}`), 0o600))

	c, err := LoadCatalog(path)
	require.NoError(t, err)

	assert.Equal(t, "2024.1", c.Version)
	assert.Len(t, c.Types(), 23)
	assert.Contains(t, c.SyntheticTypes(), "open_house_scheduled")
	assert.NotContains(t, c.SyntheticTypes(), "property_viewed")
}

func TestLoadCatalog_Errors(t *testing.T) {
	_, err := LoadCatalog(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{`), 0o600))
	_, err = LoadCatalog(path)
	assert.Error(t, err)
}
