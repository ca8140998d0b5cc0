package tools

import (
	"fmt"
)

// getString reads a required string field, erroring if absent/blank.
func getString(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", fmt.Errorf("%q is required", key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("%q must be a non-empty string", key)
	}
	return s, nil
}

func getOptionalString(args map[string]any, key, def string) string {
	v, ok := args[key]
	if !ok {
		return def
	}
	s, ok := v.(string)
	if !ok {
		return def
	}
	return s
}

func getOptionalBool(args map[string]any, key string) bool {
	v, ok := args[key]
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

func getOptionalFloat(args map[string]any, key string) *float64 {
	v, ok := args[key]
	if !ok {
		return nil
	}
	f, ok := v.(float64)
	if !ok {
		return nil
	}
	return &f
}

func getOptionalInt(args map[string]any, key string, def int) int {
	v, ok := args[key]
	if !ok {
		return def
	}
	f, ok := v.(float64)
	if !ok {
		return def
	}
	return int(f)
}

func getStringSlice(args map[string]any, key string) ([]string, error) {
	v, ok := args[key]
	if !ok {
		return nil, fmt.Errorf("%q is required", key)
	}
	raw, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%q must be an array of strings", key)
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		s, ok := item.(string)
		if !ok || s == "" {
			return nil, fmt.Errorf("%q must contain only non-empty strings", key)
		}
		out = append(out, s)
	}
	return out, nil
}

func validateTemperature(t *float64) error {
	if t == nil {
		return nil
	}
	if *t < 0 || *t > 2 {
		return fmt.Errorf("temperature must be in [0,2], got %v", *t)
	}
	return nil
}

func validateModelCount(models []string, min, max int) error {
	if len(models) < min || len(models) > max {
		return fmt.Errorf("models must contain between %d and %d entries, got %d", min, max, len(models))
	}
	return nil
}
