package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/backoffice/config"
)

const testFixtures = `users:
  - {id: 1, name: Ana, email: ana@x.io}
  - {id: 2, name: Ann, email: ann@x.io}
  - {id: 3, name: Bob, email: bob@x.io}
posts:
  - {id: 10, user_id: 1, title: Lost cat, description: Grey tabby}
`

// memoryConfig returns a config backed by the memory store loaded with
// testFixtures.
func memoryConfig(t *testing.T) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixtures.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testFixtures), 0o600))

	cfg := config.DefaultConfig()
	cfg.Database.Driver = config.DriverMemory
	cfg.Database.Fixtures = path
	return cfg
}

func openMemory(ctx context.Context, cfg *config.Config) (*Backend, error) {
	return OpenBackend(ctx, cfg, BackendOptions{})
}
