package installer

import (
	"os"

	pkgerrors "github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Environment is a conda environment.yaml file. Dependencies is left loosely
// typed because conda mixes plain package specs with a nested pip section.
type Environment struct {
	Name         string        `yaml:"name"`
	Channels     []string      `yaml:"channels"`
	Dependencies []interface{} `yaml:"dependencies"`
}

// ParseEnvironmentFile reads and validates a conda environment.yaml.
func ParseEnvironmentFile(path string) (*Environment, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to read %s", path)
	}

	var env Environment
	if err := yaml.Unmarshal(b, &env); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to parse %s", path)
	}
	if env.Name == "" {
		return nil, pkgerrors.Errorf("%s has no environment name", path)
	}

	return &env, nil
}

// DependencyCount counts the package specs in the file, including the ones
// nested under a pip section.
func (e *Environment) DependencyCount() int {
	count := 0
	for _, dep := range e.Dependencies {
		switch d := dep.(type) {
		case string:
			count++
		case map[string]interface{}:
			for _, nested := range d {
				if list, ok := nested.([]interface{}); ok {
					count += len(list)
				}
			}
		}
	}

	return count
}
