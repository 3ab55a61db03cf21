package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is looked up in the working directory when --config is
// not given.
const DefaultConfigFile = ".eagerpath.yaml"

// Project holds the defaults of a project file. Command-line flags override
// every value.
//
//	format: json
//	strict: true
//	statics: [strings, time]
//	entrypoints: [./internal/store]
//	database: .eagerpath/plans.db
type Project struct {
	Format      string   `yaml:"format"`
	Strict      bool     `yaml:"strict"`
	Statics     []string `yaml:"statics"`
	Entrypoints []string `yaml:"entrypoints"`
	Database    string   `yaml:"database"`

	// Path is the file the project was read from, empty for defaults.
	Path string `yaml:"-"`
}

// LoadProject reads a project file. An empty path reads DefaultConfigFile if
// it exists and returns defaults otherwise; an explicit path must exist.
//
// Relative entrypoints and database paths are resolved against the
// directory of the file.
func LoadProject(path string) (Project, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return Project{}, nil
		}
		return Project{}, fmt.Errorf("read config: %w", err)
	}

	var p Project
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Project{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if p.Format != "" && !isValidFormat(p.Format) {
		return Project{}, fmt.Errorf("config %s: invalid format %q: must be one of %v", path, p.Format, ValidFormats)
	}

	base := filepath.Dir(path)
	for i, e := range p.Entrypoints {
		p.Entrypoints[i] = resolve(base, e)
	}
	if p.Database != "" {
		p.Database = resolve(base, p.Database)
	}
	p.Path = path
	return p, nil
}

func resolve(base, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}
