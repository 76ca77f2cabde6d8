package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew_StopsTracingOnInitFailure(t *testing.T) {
	stopped := 0
	orig := setupTracing
	setupTracing = func(context.Context, string, string, string) (func(context.Context) error, error) {
		return func(context.Context) error {
			stopped++
			return nil
		}, nil
	}
	t.Cleanup(func() { setupTracing = orig })

	dir := t.TempDir()
	cfg := Config{
		DatabaseFile: filepath.Join(dir, "modernauth.db"),
		// A directory cannot be read as a pepper file.
		PepperFile: dir,
	}

	app, err := New(context.Background(), cfg)
	require.ErrorContains(t, err, "failed to load pepper")
	require.Nil(t, app)
	require.Equal(t, 1, stopped)
}
