package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	repo "github.com/baharkarakas/pix-reconciler/internal/repository"
	"github.com/baharkarakas/pix-reconciler/internal/repository/repotest"
)

func TestSQLiteStore(t *testing.T) {
	repotest.Run(t, func(t *testing.T) repo.Repositories {
		s, err := Open(filepath.Join(t.TempDir(), "pix.db"))
		require.NoError(t, err)
		r := NewRepositories(s)
		t.Cleanup(r.Close)
		return r
	})
}
