package devcontainer

import (
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"vortex/internal/errors"
)

// composeFile is the subset of a docker-compose document the importer needs
// to expand a multi-service descriptor
type composeFile struct {
	Services map[string]*composeService `yaml:"services"`
}

// composeService is one service block from a compose file
type composeService struct {
	Image       string        `yaml:"image"`
	Command     stringOrSlice `yaml:"command"`
	Environment environment   `yaml:"environment"`
	Ports       []string      `yaml:"ports"`
	Volumes     []string      `yaml:"volumes"`
	DependsOn   stringOrSlice `yaml:"depends_on"`
}

// stringOrSlice accepts either a YAML string or a sequence of strings
type stringOrSlice []string

func (s *stringOrSlice) UnmarshalYAML(value *yaml.Node) error {
	var multi []string
	if err := value.Decode(&multi); err == nil {
		*s = multi
		return nil
	}
	var single string
	if err := value.Decode(&single); err != nil {
		return err
	}
	*s = []string{single}
	return nil
}

// environment accepts both the map form and the KEY=VALUE list form
type environment map[string]string

func (e *environment) UnmarshalYAML(value *yaml.Node) error {
	asMap := map[string]string{}
	if err := value.Decode(&asMap); err == nil {
		*e = asMap
		return nil
	}

	var asList []string
	if err := value.Decode(&asList); err != nil {
		return err
	}
	result := make(map[string]string, len(asList))
	for _, entry := range asList {
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) == 2 {
			result[parts[0]] = parts[1]
		} else {
			result[parts[0]] = ""
		}
	}
	*e = result
	return nil
}

// parseComposeFile reads the compose document a descriptor points at and
// returns its services in stable name order.
func parseComposeFile(path string) ([]string, map[string]*composeService, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, errors.ImportIncomplete("compose file not found: " + path)
		}
		return nil, nil, errors.Wrap(errors.ErrFileRead, "failed to read compose file", err)
	}

	var cf composeFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, nil, errors.ImportIncomplete("compose file is not valid YAML: " + err.Error())
	}
	if len(cf.Services) == 0 {
		return nil, nil, errors.ImportIncomplete("compose file declares no services")
	}

	names := make([]string, 0, len(cf.Services))
	for name := range cf.Services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, cf.Services, nil
}
