package prompt

import "fmt"

// Get returns one prompt map from a loaded collection.
func Get(prompts map[string]map[string]string, name string, label string) (map[string]string, error) {
	if prompts == nil {
		if label == "" {
			return nil, fmt.Errorf("prompts not initialized")
		}
		return nil, fmt.Errorf("%s prompts not initialized", label)
	}
	promptMap, ok := prompts[name]
	if !ok {
		return nil, fmt.Errorf("prompt not found: %s", name)
	}
	return promptMap, nil
}

// Field returns one field from a prompt map.
func Field(data map[string]string, key string, label string) (string, error) {
	value, ok := data[key]
	if !ok {
		return "", fmt.Errorf("prompt field missing: %s", label)
	}
	return value, nil
}
