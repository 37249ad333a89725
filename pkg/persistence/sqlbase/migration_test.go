package sqlbase

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationManager_RejectsUnorderedMigrations(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := map[string][]Migration{
		"duplicate version": {{Version: 1, SQL: "SELECT 1"}, {Version: 1, SQL: "SELECT 1"}},
		"descending":        {{Version: 2, SQL: "SELECT 1"}, {Version: 1, SQL: "SELECT 1"}},
		"zero version":      {{Version: 0, SQL: "SELECT 1"}},
	}

	for name, migrations := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			// The order check runs before any connection is opened.
			err := NewMigrationManager(logger, nil, migrations).RunMigrations(context.Background())
			require.Error(t, err)
			assert.Contains(t, err.Error(), "out of order")
		})
	}
}

func TestMigrationManager_LatestVersion(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, NewMigrationManager(slog.Default(), nil, nil).LatestVersion())
	assert.Equal(t, 3, NewMigrationManager(slog.Default(), nil, []Migration{{Version: 1}, {Version: 3}}).LatestVersion())
}
