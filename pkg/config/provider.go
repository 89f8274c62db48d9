package config

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"

	"gopkg.in/yaml.v3"
)

// Sources return flat maps keyed by dotted config path, e.g. "server.port".

type cliProvider struct {
	values map[string]any
}

// NewCLIProvider wraps flag values that are already keyed by config path.
func NewCLIProvider(values map[string]any) Source {
	return &cliProvider{values: values}
}

func (c *cliProvider) Load() (map[string]any, error) {
	return maps.Clone(c.values), nil
}

func (c *cliProvider) Type() SourceType {
	return SourceCLI
}

type yamlProvider struct {
	path string
}

// NewYAMLProvider reads a config file. A missing file contributes nothing so
// the default path can always be passed.
func NewYAMLProvider(path string) Source {
	return &yamlProvider{path: path}
}

func (y *yamlProvider) Load() (map[string]any, error) {
	data, err := os.ReadFile(y.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", y.path, err)
	}
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", y.path, err)
	}
	out := make(map[string]any)
	flattenInto(out, "", doc)
	return out, nil
}

func (y *yamlProvider) Type() SourceType {
	return SourceYAML
}

// flattenInto writes the leaves of doc under dotted keys. Null leaves are
// skipped so an empty YAML key keeps the default.
func flattenInto(out map[string]any, prefix string, doc map[string]any) {
	for k, v := range doc {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch typed := v.(type) {
		case nil:
		case map[string]any:
			flattenInto(out, key, typed)
		default:
			out[key] = v
		}
	}
}
