package odoo

import (
	"sort"
	"time"
)

// Mapping describes where a scanned text lands in Odoo: the target model,
// the text field that receives the scan, and the extra values the model
// needs so the created record is valid.
type Mapping struct {
	Model    string         // Odoo model technical name (res.partner, ...)
	Field    string         // Text field that receives the scan
	Defaults map[string]any // Required companion values for the model
}

var defaultMappings = map[string]Mapping{
	"contacts": {
		Model:    "res.partner",
		Field:    "comment",
		Defaults: map[string]any{"is_company": false},
	},
	"invoices": {
		Model: "account.move",
		Field: "narration",
		Defaults: map[string]any{
			"move_type":  "in_invoice",
			"partner_id": 1,
		},
	},
	"tasks": {
		Model:    "project.task",
		Field:    "description",
		Defaults: map[string]any{"project_id": 1},
	},
}

// MappingFor returns the mapping for a document type.
func MappingFor(mappingType string) (Mapping, bool) {
	m, ok := defaultMappings[mappingType]
	return m, ok
}

// MappingTypes lists the supported mapping types in stable order.
func MappingTypes() []string {
	types := make([]string, 0, len(defaultMappings))
	for name := range defaultMappings {
		types = append(types, name)
	}
	sort.Strings(types)
	return types
}

// RecordValues builds the create payload for a scan. Every record gets a
// name of the form "OCR - <timestamp>" so it is findable in Odoo later.
func (m Mapping) RecordValues(text string, now time.Time) map[string]any {
	values := map[string]any{
		m.Field: text,
		"name":  "OCR - " + now.Format("2006-01-02 15:04:05"),
	}
	for key, value := range m.Defaults {
		values[key] = value
	}
	return values
}
