// Package personas holds the interviewer persona catalog. Personas are loaded
// from an embedded YAML file with a built-in fallback set so the catalog is
// never empty.
package personas

import (
	_ "embed"
	"fmt"
	"log/slog"

	"gopkg.in/yaml.v3"
)

//go:embed personas.yaml
var catalogYAML []byte

// Persona describes one AI interviewer.
type Persona struct {
	ID      string `yaml:"id" json:"id"`
	Name    string `yaml:"name" json:"name"`
	VoiceID string `yaml:"voice_id" json:"voice_id"`
	Gender  string `yaml:"gender" json:"gender"`
	Accent  string `yaml:"accent" json:"accent"`
}

// Catalog is an in-memory persona lookup.
type Catalog struct {
	personas []Persona
	byID     map[string]Persona
}

// defaults cover the catalog when the YAML file is empty or broken.
var defaults = []Persona{
	{ID: "1", Name: "Priya Sharma", VoiceID: "shimmer", Gender: "Female", Accent: "Indian English"},
	{ID: "2", Name: "Sarah Johnson", VoiceID: "coral", Gender: "Female", Accent: "US English"},
	{ID: "3", Name: "Arjun Patel", VoiceID: "echo", Gender: "Male", Accent: "Indian English"},
	{ID: "4", Name: "Michael Chen", VoiceID: "alloy", Gender: "Male", Accent: "US English"},
}

// Load parses the embedded catalog, falling back to the default personas.
func Load() *Catalog {
	var doc struct {
		Interviewers []Persona `yaml:"interviewers"`
	}
	if err := yaml.Unmarshal(catalogYAML, &doc); err != nil {
		slog.Warn("persona catalog unreadable, using defaults", slog.Any("error", err))
		doc.Interviewers = nil
	}
	if len(doc.Interviewers) == 0 {
		doc.Interviewers = defaults
	}
	return newCatalog(doc.Interviewers)
}

func newCatalog(personas []Persona) *Catalog {
	byID := make(map[string]Persona, len(personas))
	for _, p := range personas {
		byID[p.ID] = p
	}
	return &Catalog{personas: personas, byID: byID}
}

// All returns every persona in catalog order.
func (c *Catalog) All() []Persona {
	out := make([]Persona, len(c.personas))
	copy(out, c.personas)
	return out
}

// Get returns the persona for an id, or the first persona when the id is
// unknown so sessions can always be created.
func (c *Catalog) Get(id string) (Persona, error) {
	if p, ok := c.byID[id]; ok {
		return p, nil
	}
	if len(c.personas) == 0 {
		return Persona{}, fmt.Errorf("persona catalog is empty")
	}
	slog.Warn("unknown interviewer id, using first persona", slog.String("id", id))
	return c.personas[0], nil
}
