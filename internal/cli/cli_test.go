package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/registry/internal/sqlite"
	"github.com/mesh-intelligence/registry/pkg/types"
)

// run executes the CLI with args and returns stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

type dirs struct {
	config string
	data   string
}

func newDirs(t *testing.T) dirs {
	base := t.TempDir()
	return dirs{config: filepath.Join(base, "config"), data: filepath.Join(base, "data")}
}

func (d dirs) args(args ...string) []string {
	return append([]string{"--config-dir", d.config, "--data-dir", d.data}, args...)
}

type reading struct {
	Name string
}

// seed deposits rows directly into the store under d.data.
func seed(t *testing.T, d dirs, c types.DataModelCategory, names []string, expiration time.Time) {
	t.Helper()
	b := sqlite.NewBackend()
	require.NoError(t, b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: d.data}))
	defer b.Detach()

	objects := make([]reading, len(names))
	for i, n := range names {
		objects[i] = reading{Name: n}
	}
	_, err := b.Put(context.Background(), types.CacheDeposit[reading]{
		Category: c,
		Accessors: []types.PropertyAccessor[reading]{
			types.NewAccessor(types.NewPropertyDescriptor("name", types.TypeString), func(r reading) string { return r.Name }),
		},
		Objects:    objects,
		Expiration: expiration,
	}, nil)
	require.NoError(t, err)
}

func TestInit(t *testing.T) {
	d := newDirs(t)
	out, err := run(t, d.args("init")...)
	require.NoError(t, err)
	assert.Contains(t, out, "Registry initialized successfully")

	_, err = os.Stat(filepath.Join(d.config, configFileExt))
	assert.NoError(t, err, "default config.yaml is written")
	_, err = os.Stat(filepath.Join(d.data, sqlite.DatabaseFile))
	assert.NoError(t, err, "database is created")
}

func TestVersion(t *testing.T) {
	d := newDirs(t)
	out, err := run(t, d.args("version")...)
	require.NoError(t, err)
	assert.Contains(t, out, "registry v"+Version)
}

func TestStatsAndCategories(t *testing.T) {
	d := newDirs(t)
	vessels := types.NewDataModelCategory("wfs", "tracks", "vessels")
	seed(t, d, vessels, []string{"a", "b", "c"}, time.Time{})
	seed(t, d, types.NewDataModelCategory("wfs", "stations", "weather"), []string{"d"}, time.Time{})

	out, err := run(t, d.args("--json", "stats")...)
	require.NoError(t, err)
	var st statsJSON
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	require.Len(t, st.Categories, 2)
	assert.Equal(t, categoryJSON{Source: "wfs", Family: "tracks", Category: "vessels", Rows: 3, Columns: 1}, st.Categories[0])
	assert.Equal(t, int64(4), st.LastID)

	out, err = run(t, d.args("categories")...)
	require.NoError(t, err)
	assert.Contains(t, out, "wfs/tracks/vessels")
	assert.Contains(t, out, "wfs/stations/weather")
}

func TestPurge(t *testing.T) {
	d := newDirs(t)
	seed(t, d, types.NewDataModelCategory("wfs", "tracks", "vessels"), []string{"old", "older"}, time.Now().Add(-time.Hour))
	seed(t, d, types.NewDataModelCategory("wfs", "tracks", "vessels"), []string{"fresh"}, time.Time{})

	out, err := run(t, d.args("--json", "purge")...)
	require.NoError(t, err)
	assert.JSONEq(t, `{"purged": 2}`, out)
}

func TestClear(t *testing.T) {
	d := newDirs(t)
	seed(t, d, types.NewDataModelCategory("wfs", "tracks", "vessels"), []string{"a"}, time.Time{})

	_, err := run(t, d.args("clear")...)
	var ee *exitError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, exitUserError, ee.code)

	out, err := run(t, d.args("clear", "--yes")...)
	require.NoError(t, err)
	assert.Contains(t, out, "Registry cleared")

	out, err = run(t, d.args("--json", "stats")...)
	require.NoError(t, err)
	var st statsJSON
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.Empty(t, st.Categories)
	assert.Equal(t, int64(1), st.LastID)
}

func TestConfigFromFileAndEnv(t *testing.T) {
	d := newDirs(t)
	require.NoError(t, os.MkdirAll(d.config, 0o755))
	dataFromFile := filepath.Join(t.TempDir(), "from-file")
	require.NoError(t, os.WriteFile(filepath.Join(d.config, configFileExt),
		[]byte("backend: sqlite\ndata_dir: "+dataFromFile+"\nsize_limit_bytes: 1048576\n"), 0o644))

	v, err := loadConfig(d.config)
	require.NoError(t, err)
	flags = rootFlags{}
	cfg, err := storeConfig(v)
	require.NoError(t, err)
	assert.Equal(t, dataFromFile, cfg.DataDir)
	assert.Equal(t, int64(1048576), cfg.SizeLimitBytes)

	t.Setenv("REGISTRY_SIZE_LIMIT_BYTES", "2048")
	t.Setenv("REGISTRY_SWEEP_INTERVAL", "30s")
	v, err = loadConfig(d.config)
	require.NoError(t, err)
	cfg, err = storeConfig(v)
	require.NoError(t, err)
	assert.Equal(t, int64(2048), cfg.SizeLimitBytes)
	assert.Equal(t, 30*time.Second, cfg.SweepInterval)

	t.Setenv("REGISTRY_BACKEND", "postgres")
	v, err = loadConfig(d.config)
	require.NoError(t, err)
	_, err = storeConfig(v)
	assert.ErrorIs(t, err, types.ErrBackendUnknown)
}
