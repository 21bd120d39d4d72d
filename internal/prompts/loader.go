// Package prompts provides a loader for externalized LLM prompt templates.
// Templates are stored as JSON files and embedded at compile time, keyed by
// pipeline stage: question generation and evaluation.
package prompts

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

//go:embed *.json
var templateFS embed.FS

// fileCache holds parsed template files so each file is decoded once.
type fileCache struct {
	mu    sync.RWMutex
	files map[string]map[string]string
}

var cache = &fileCache{files: make(map[string]map[string]string)}

func (c *fileCache) get(filename string) (map[string]string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entries, ok := c.files[filename]
	return entries, ok
}

func (c *fileCache) put(filename string, entries map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.files[filename] = entries
}

// Get retrieves a template by filename and key. The filename should not
// include a path (e.g. "evaluation.json"). Returns an error if the file or
// key is not found.
func Get(filename, key string) (string, error) {
	entries, err := loadFile(filename)
	if err != nil {
		return "", err
	}

	template, exists := entries[key]
	if !exists {
		return "", fmt.Errorf("prompt key %q not found in %s", key, filename)
	}

	return template, nil
}

// MustGet retrieves a template by filename and key, panicking if not found.
// Use this for templates that are required at initialization time.
func MustGet(filename, key string) string {
	template, err := Get(filename, key)
	if err != nil {
		panic(fmt.Sprintf("failed to load prompt: %v", err))
	}
	return template
}

// Format replaces placeholders in the form {{.Key}} with values from data.
// Placeholders with no matching key are left in place.
func Format(template string, data map[string]string) string {
	result := template
	for key, value := range data {
		placeholder := fmt.Sprintf("{{.%s}}", key)
		result = strings.ReplaceAll(result, placeholder, value)
	}
	return result
}

func loadFile(filename string) (map[string]string, error) {
	if entries, ok := cache.get(filename); ok {
		return entries, nil
	}

	data, err := templateFS.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt file %s: %w", filename, err)
	}

	var entries map[string]string
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse prompt file %s: %w", filename, err)
	}

	cache.put(filename, entries)
	return entries, nil
}

// ClearCache drops all parsed template files. Useful for testing.
func ClearCache() {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	cache.files = make(map[string]map[string]string)
}
