package gateway

import (
	"fmt"
	"strings"
)

// ConfigField describes one entry of a gateway's credential bag.
type ConfigField struct {
	Key         string `json:"key"`
	Required    bool   `json:"required"`
	Type        string `json:"type"` // "string", "url", "boolean"
	Description string `json:"description"`
}

// ValidateConfigFields validates a credential bag against the adapter's
// field definitions.
func ValidateConfigFields(gatewayName string, settings map[string]string, fields []ConfigField) error {
	for _, field := range fields {
		value, exists := settings[field.Key]

		if !exists || strings.TrimSpace(value) == "" {
			if field.Required {
				return &ValidationError{Gateway: gatewayName, Field: field.Key}
			}
			continue
		}

		if err := validateFieldType(gatewayName, field, value); err != nil {
			return err
		}
	}

	return nil
}

// validateFieldType validates a field based on its declared type
func validateFieldType(gatewayName string, field ConfigField, value string) error {
	switch field.Type {
	case "boolean":
		if value != "true" && value != "false" {
			return &ValidationError{
				Gateway: gatewayName,
				Field:   field.Key,
				Reason:  fmt.Sprintf("must be 'true' or 'false', got '%s'", value),
			}
		}
	case "url":
		if !strings.HasPrefix(value, "http://") && !strings.HasPrefix(value, "https://") {
			return &ValidationError{
				Gateway: gatewayName,
				Field:   field.Key,
				Reason:  "must be an absolute http(s) URL",
			}
		}
	}

	return nil
}
