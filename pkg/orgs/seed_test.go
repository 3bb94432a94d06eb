package orgs

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSeed = `
organizations:
  - id: acme
    name: Acme Corp
    plan: enterprise
    is_active: true
  - id: globex
    name: Globex
    is_active: false
users:
  - id: root
    role_id: system_super_admin
    is_active: true
  - id: alice
    organization_id: acme
    role_id: client_account_manager
    is_active: true
`

func TestParseSeed(t *testing.T) {
	seed, err := ParseSeed([]byte(testSeed))
	require.NoError(t, err)
	require.Len(t, seed.Organizations, 2)
	assert.Equal(t, PlanFree, seed.Organizations[1].Plan)
	require.Len(t, seed.Users, 2)
	assert.Nil(t, seed.Users[0].OrganizationID)
	assert.Equal(t, "acme", seed.Users[1].OrgID())
}

func TestParseSeedErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"malformed yaml", "organizations: [:"},
		{"missing org id", "organizations:\n  - name: x\n"},
		{"duplicate org", "organizations:\n  - id: a\n  - id: a\n"},
		{"unknown plan", "organizations:\n  - id: a\n    plan: gold\n"},
		{"missing role", "users:\n  - id: u\n"},
		{"duplicate user", "users:\n  - id: u\n    role_id: r\n  - id: u\n    role_id: r\n"},
		{"unknown org", "users:\n  - id: u\n    role_id: r\n    organization_id: nope\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSeed([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadSeedFileApply(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testSeed), 0o644))

	seed, err := LoadSeedFile(path)
	require.NoError(t, err)

	dir := NewMemoryDirectory()
	seed.Apply(dir)

	org, err := dir.GetOrganization(context.Background(), "globex")
	require.NoError(t, err)
	assert.False(t, org.IsActive)

	_, err = LoadSeedFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
