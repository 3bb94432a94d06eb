package orgs

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Seed is the on-disk form of an initial directory
type Seed struct {
	Organizations []Organization `yaml:"organizations"`
	Users         []User         `yaml:"users"`
}

// LoadSeedFile reads a YAML seed file
func LoadSeedFile(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	return ParseSeed(data)
}

// ParseSeed decodes a YAML seed document
func ParseSeed(data []byte) (*Seed, error) {
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed: %w", err)
	}

	seen := make(map[string]bool, len(seed.Organizations))
	for i, org := range seed.Organizations {
		if org.ID == "" {
			return nil, fmt.Errorf("organization %d: id is required", i)
		}
		if seen[org.ID] {
			return nil, fmt.Errorf("organization %s: duplicate id", org.ID)
		}
		seen[org.ID] = true
		if org.Plan == "" {
			seed.Organizations[i].Plan = PlanFree
		} else if !org.Plan.Valid() {
			return nil, fmt.Errorf("organization %s: unknown plan %q", org.ID, org.Plan)
		}
	}

	users := make(map[string]bool, len(seed.Users))
	for i, u := range seed.Users {
		if u.ID == "" || u.RoleID == "" {
			return nil, fmt.Errorf("user %d: id and role_id are required", i)
		}
		if users[u.ID] {
			return nil, fmt.Errorf("user %s: duplicate id", u.ID)
		}
		users[u.ID] = true
		if u.OrganizationID != nil && !seen[*u.OrganizationID] {
			return nil, fmt.Errorf("user %s: %w: %s", u.ID, ErrOrganizationNotFound, *u.OrganizationID)
		}
	}

	return &seed, nil
}

// Apply loads the seed into a memory directory, replacing its contents
func (s *Seed) Apply(dir *MemoryDirectory) {
	dir.Replace(s.Organizations, s.Users)
}
