package conceptgraph

import (
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// catalogFile is the on-disk YAML layout of a concept catalog.
type catalogFile struct {
	Concepts []catalogConcept `yaml:"concepts"`
}

type catalogConcept struct {
	ID            string                `yaml:"id"`
	Name          string                `yaml:"name"`
	Course        string                `yaml:"course"`
	Complexity    string                `yaml:"complexity"`
	CreatedAt     time.Time             `yaml:"created_at"`
	Prerequisites []catalogPrerequisite `yaml:"prerequisites"`
}

type catalogPrerequisite struct {
	ID       string  `yaml:"id"`
	Strength float64 `yaml:"strength"`
}

// LoadFile reads and validates a YAML concept catalog.
func LoadFile(path string) (*Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load parses and validates a YAML concept catalog.
func Load(r io.Reader) (*Graph, error) {
	var cf catalogFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cf); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	concepts := make([]Concept, 0, len(cf.Concepts))
	for _, cc := range cf.Concepts {
		complexity, err := ParseComplexity(cc.Complexity)
		if err != nil {
			return nil, fmt.Errorf("concept %q: %w", cc.ID, err)
		}
		c := Concept{
			ID:         cc.ID,
			Name:       cc.Name,
			CourseID:   cc.Course,
			Complexity: complexity,
			CreatedAt:  cc.CreatedAt,
		}
		for _, p := range cc.Prerequisites {
			c.Prerequisites = append(c.Prerequisites, Prerequisite{ConceptID: p.ID, Strength: p.Strength})
		}
		concepts = append(concepts, c)
	}

	return New(concepts)
}
