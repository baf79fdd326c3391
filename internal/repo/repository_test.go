package repo_test

import (
	"testing"

	"github.com/hamed0406/pingmonitor/internal/repo"
	"github.com/hamed0406/pingmonitor/internal/repo/memory"
	pg "github.com/hamed0406/pingmonitor/internal/repo/postgres"
	"github.com/hamed0406/pingmonitor/internal/repo/sqlite"
)

// Compile-time interface satisfaction checks.
// Using external test package avoids import cycle.
func TestInterfaceSatisfaction(t *testing.T) {
	var _ repo.ResultStore = (*memory.Store)(nil)
	var _ repo.ResultStore = (*sqlite.Store)(nil)
	var _ repo.ResultStore = (*pg.Store)(nil)
}
