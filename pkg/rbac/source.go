package rbac

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// DefinitionSource supplies catalog definitions
type DefinitionSource interface {
	Load(ctx context.Context) (*Definition, error)
}

// StaticSource serves a fixed in-memory definition
type StaticSource struct {
	def *Definition
}

// NewStaticSource creates a source that always returns def
func NewStaticSource(def *Definition) *StaticSource {
	return &StaticSource{def: def}
}

// Load returns a copy of the definition
func (s *StaticSource) Load(ctx context.Context) (*Definition, error) {
	if s.def == nil {
		return nil, fmt.Errorf("no definition configured")
	}
	return cloneDefinition(s.def), nil
}

// FileSource reads a YAML (or JSON) catalog definition from disk
type FileSource struct {
	path string
	log  *logrus.Logger
}

// NewFileSource creates a file backed source
func NewFileSource(path string, log *logrus.Logger) *FileSource {
	if log == nil {
		log = logrus.New()
	}

	return &FileSource{
		path: path,
		log:  log,
	}
}

// Path returns the file the source reads
func (s *FileSource) Path() string {
	return s.path
}

// Load reads and decodes the definition file
func (s *FileSource) Load(ctx context.Context) (*Definition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file %s: %w", s.path, err)
	}

	def, err := ParseDefinition(data)
	if err != nil {
		s.log.Warnf("Failed to parse catalog file %s: %v", s.path, err)
		return nil, fmt.Errorf("failed to parse catalog file %s: %w", s.path, err)
	}

	s.log.Debugf("Loaded catalog %s with %d roles from %s", def.Version, len(def.Roles), s.path)
	return def, nil
}

// ParseDefinition decodes a YAML catalog definition. JSON is accepted as a
// YAML subset. Unknown fields are rejected.
func ParseDefinition(data []byte) (*Definition, error) {
	var def Definition
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&def); err != nil {
		return nil, err
	}
	return &def, nil
}

// MarshalDefinition encodes a definition as YAML
func MarshalDefinition(def *Definition) ([]byte, error) {
	return yaml.Marshal(def)
}

func cloneDefinition(def *Definition) *Definition {
	out := &Definition{
		Version: def.Version,
		Roles:   make([]RoleDefinition, len(def.Roles)),
	}
	for i, rd := range def.Roles {
		rd.Permissions = append([]string(nil), rd.Permissions...)
		out.Roles[i] = rd
	}
	return out
}
