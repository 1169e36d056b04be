package memory

import (
	"testing"

	repo "github.com/baharkarakas/pix-reconciler/internal/repository"
	"github.com/baharkarakas/pix-reconciler/internal/repository/repotest"
)

func TestMemoryStore(t *testing.T) {
	repotest.Run(t, func(*testing.T) repo.Repositories { return NewRepositories() })
}
