package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pereirasil/corrida-app-sub000/internal/config"
	"github.com/pereirasil/corrida-app-sub000/internal/db"
	"github.com/pereirasil/corrida-app-sub000/internal/serialmux"
	"github.com/pereirasil/corrida-app-sub000/internal/terrain"
	"github.com/pereirasil/corrida-app-sub000/internal/testutil"
)

func TestFlagDefaults(t *testing.T) {
	assert.Equal(t, ":8080", *listen)
	assert.Equal(t, "corrida.db", *dbPath)
	assert.Empty(t, *port, "the receiver is opt-in")
	assert.False(t, *noStore)

	opts, err := serialmux.ParsePortOptions(*serialOpts)
	require.NoError(t, err)
	assert.Equal(t, *serialOpts, opts.String())
}

func TestLoadSettings(t *testing.T) {
	cfg, err := loadSettings("")
	require.NoError(t, err)
	assert.Equal(t, config.DefaultAcquisitionTimeout, cfg.GetAcquisitionTimeout())

	path := filepath.Join(t.TempDir(), "tracker.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"acquisition_timeout":"10s"}`), 0o644))
	cfg, err = loadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, cfg.GetAcquisitionTimeout())

	_, err = loadSettings(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestLoadClassifier_MergesGeofenceFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fences.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
parks:
  - name: Parque da Aclimação
    south: -23.5740
    west: -46.6330
    north: -23.5690
    east: -46.6270
`), 0o644))

	settings := config.EmptyTrackerConfig()
	settings.GeofencesPath = &path
	cls, err := loadClassifier(settings)
	require.NoError(t, err)
	assert.Equal(t, terrain.Park, cls.ClassifyPoint(-23.5715, -46.6300, 3, terrain.Unknown))

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("parks:\n  - south: 1\n"), 0o644))
	settings.GeofencesPath = &bad
	_, err = loadClassifier(settings)
	assert.Error(t, err)
}

func TestRunExport(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sessions.db")
	database, err := db.NewDB(path)
	require.NoError(t, err)
	s := testutil.StraightRun(61, 5).Session("0f1e2d3c-run", testutil.T0)
	require.NoError(t, database.SaveSession(context.Background(), s))
	require.NoError(t, database.Close())

	var out bytes.Buffer
	exportDir := filepath.Join(dir, "exports")
	require.NoError(t, runExport(&out, path, exportDir, []string{s.ID}))
	assert.Contains(t, out.String(), s.ID)

	entries, err := os.ReadDir(exportDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "corrida-20260301-0700-0f1e2d3c.fit", entries[0].Name())

	assert.Error(t, runExport(&out, path, exportDir, nil))
	assert.ErrorIs(t, runExport(&out, path, exportDir, []string{"missing"}), db.ErrNotFound)
}
