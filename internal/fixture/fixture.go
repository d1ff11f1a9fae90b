// Package fixture loads event fixtures used by the CLI to replay or
// simulate reported events.
package fixture

import (
	"fmt"
	"os"
	"strings"

	"github.com/CosmoTheDev/slacknotify/internal/store"
	"go.yaml.in/yaml/v3"
)

// File is a YAML document describing events for one project.
type File struct {
	// Project is the slug events are recorded under. The CLI --project flag
	// overrides it.
	Project string `yaml:"project"`
	// Rule, when set, fires the notify-room action for every event instead
	// of the generic notify path.
	Rule   *Rule              `yaml:"rule,omitempty"`
	Events []store.EventInput `yaml:"events"`
}

// Rule mirrors the notify-room action options.
type Rule struct {
	Room  string `yaml:"room"`
	Label string `yaml:"label"`
}

// Load reads and validates the fixture at path.
func Load(path string) (*File, error) {
	// #nosec G304 -- path is an operator-supplied fixture file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading fixture %s: %w", path, err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("fixture %s: %w", path, err)
	}
	return f, nil
}

// Parse decodes and validates a fixture document.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing yaml: %w", err)
	}
	if len(f.Events) == 0 {
		return nil, fmt.Errorf("no events defined")
	}
	for i, e := range f.Events {
		if strings.TrimSpace(e.Message) == "" {
			return nil, fmt.Errorf("event %d: message is required", i+1)
		}
	}
	return &f, nil
}
