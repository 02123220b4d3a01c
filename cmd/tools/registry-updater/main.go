// cmd/tools/registry-updater/main.go
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"marketplace-console/internal/common/validation"
	"marketplace-console/pkg/registry"

	"github.com/spf13/cobra"
)

var (
	catalogPath string

	initForce bool

	addType        string
	addCategory    string
	addDescription string
	addIDField     string
	addFields      []string
	addSynthetic   bool

	updateType  string
	updateField string
	updateValue string
)

var rootCmd = &cobra.Command{
	Use:   "registry-updater",
	Short: "Maintain the realtime event catalog file",
	Example: `  registry-updater init --path configs/event-catalog.json
  registry-updater add --type open_house_scheduled --category property --id-field propertyId --fields date --synthetic
  registry-updater update --type open_house_scheduled --field synthetic --value false
  registry-updater validate --path configs/event-catalog.json`,
	SilenceUsage: true,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the built-in catalog to --path",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := initCatalog(catalogPath, initForce); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote built-in catalog to %s\n", catalogPath)
		return nil
	},
}

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Add an event type",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		def := registry.EventDefinition{
			Type:        addType,
			Category:    addCategory,
			Description: addDescription,
			Synthetic:   addSynthetic,
			Schema:      registry.AnyObject,
		}
		if addIDField != "" {
			def.Schema = registry.IDPayload(addIDField, addFields...)
		}
		if err := addEvent(catalogPath, def); err != nil {
			return fmt.Errorf("error adding event: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Added event: %s\n", addType)
		return nil
	},
}

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update a field of an existing event type",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := updateEvent(catalogPath, updateType, updateField, updateValue); err != nil {
			return fmt.Errorf("error updating event: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Updated event %s, field %s to %s\n", updateType, updateField, updateValue)
		return nil
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the catalog file and compile every schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return validateCatalog(cmd.OutOrStdout(), catalogPath)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&catalogPath, "path", "configs/event-catalog.json", "Path to the catalog file")

	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing file")

	addCmd.Flags().StringVar(&addType, "type", "", "Event type (e.g. open_house_scheduled)")
	addCmd.Flags().StringVar(&addCategory, "category", "", "Category (property, messaging, presence, notification, vendor, billing)")
	addCmd.Flags().StringVar(&addDescription, "description", "", "Description")
	addCmd.Flags().StringVar(&addIDField, "id-field", "", "Required identifier field in the payload; empty accepts any object")
	addCmd.Flags().StringSliceVar(&addFields, "fields", nil, "Optional string fields in the payload")
	addCmd.Flags().BoolVar(&addSynthetic, "synthetic", false, "Let the simulator generate this type")
	_ = addCmd.MarkFlagRequired("type")
	_ = addCmd.MarkFlagRequired("category")

	updateCmd.Flags().StringVar(&updateType, "type", "", "Event type to update")
	updateCmd.Flags().StringVar(&updateField, "field", "", "Field to update (category, description, synthetic)")
	updateCmd.Flags().StringVar(&updateValue, "value", "", "New value for the field")
	_ = updateCmd.MarkFlagRequired("type")
	_ = updateCmd.MarkFlagRequired("field")
	_ = updateCmd.MarkFlagRequired("value")

	rootCmd.AddCommand(initCmd, addCmd, updateCmd, validateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initCatalog(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists, use --force to overwrite", path)
	}
	c := registry.DefaultCatalog()
	c.Version = "1.0.0"
	c.LastUpdated = time.Now().Format(time.RFC3339)
	return saveCatalog(c, path)
}

// readCatalog reads only the entries stored in the file, without merging the
// built-in ones, so that saving it back does not copy them in.
func readCatalog(path string) (*registry.EventCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c registry.EventCatalog
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &c, nil
}

func addEvent(path string, def registry.EventDefinition) error {
	if !slices.Contains(registry.Categories, def.Category) {
		return fmt.Errorf("unknown category %q", def.Category)
	}

	c, err := readCatalog(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to load catalog: %w", err)
		}
		c = &registry.EventCatalog{Version: "1.0.0"}
	}

	if _, exists := c.Lookup(def.Type); exists {
		return fmt.Errorf("event type %s already exists", def.Type)
	}

	c.Put(def)
	c.LastUpdated = time.Now().Format(time.RFC3339)
	return saveCatalog(c, path)
}

func updateEvent(path, eventType, field, value string) error {
	c, err := readCatalog(path)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}

	def, ok := c.Lookup(eventType)
	if !ok {
		return fmt.Errorf("event type %s not found", eventType)
	}

	switch field {
	case "category":
		if !slices.Contains(registry.Categories, value) {
			return fmt.Errorf("unknown category %q", value)
		}
		def.Category = value
	case "description":
		def.Description = value
	case "synthetic":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid synthetic value: %w", err)
		}
		def.Synthetic = b
	default:
		return fmt.Errorf("unknown field: %s", field)
	}

	c.Put(def)
	c.LastUpdated = time.Now().Format(time.RFC3339)
	return saveCatalog(c, path)
}

func validateCatalog(out io.Writer, path string) error {
	file, err := readCatalog(path)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}

	seen := make(map[string]bool)
	for _, def := range file.Events {
		if def.Type == "" {
			return fmt.Errorf("event missing required field: type")
		}
		if seen[def.Type] {
			return fmt.Errorf("duplicate event type: %s", def.Type)
		}
		seen[def.Type] = true
		if !slices.Contains(registry.Categories, def.Category) {
			return fmt.Errorf("event %s has unknown category %q", def.Type, def.Category)
		}
	}

	merged, err := registry.LoadCatalog(path)
	if err != nil {
		return err
	}
	if _, err := validation.NewEventValidator(merged); err != nil {
		return err
	}

	fmt.Fprintf(out, "Catalog validation passed. %d events in file, %d after merging built-ins, %d synthetic.\n",
		len(file.Events), len(merged.Events), len(merged.SyntheticTypes()))
	return nil
}

func saveCatalog(c *registry.EventCatalog, path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal catalog: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write catalog file: %w", err)
	}
	return nil
}
