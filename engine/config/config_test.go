package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/kepler/engine/core"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kepler.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
planet_count = 12
eccentricity = 0.7
topology = "line"
trail_enabled = true
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, uint32(12), cfg.PlanetCount)
	assert.Equal(t, float32(0.7), cfg.Eccentricity)
	assert.Equal(t, "line", cfg.Topology)
	assert.True(t, cfg.TrailEnabled)

	// Unset fields keep their defaults.
	assert.Equal(t, Default().LatBands, cfg.LatBands)
	assert.Equal(t, Default().CheckInterval, cfg.CheckInterval)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := writeConfig(t, `eccentricity = 1.5`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*SimulationConfig)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*SimulationConfig) {}},
		{name: "bad bands", mutate: func(c *SimulationConfig) { c.LatBands = 1 }, wantErr: true},
		{name: "zero radius", mutate: func(c *SimulationConfig) { c.RadiusMin = 0 }, wantErr: true},
		{name: "inverted radius", mutate: func(c *SimulationConfig) { c.RadiusMax = c.RadiusMin / 2 }, wantErr: true},
		{name: "zero axis", mutate: func(c *SimulationConfig) { c.EllipseA = 0 }, wantErr: true},
		{name: "eccentricity one", mutate: func(c *SimulationConfig) { c.Eccentricity = 1 }, wantErr: true},
		{name: "zero interval", mutate: func(c *SimulationConfig) { c.CheckInterval = 0 }, wantErr: true},
		{name: "unknown topology", mutate: func(c *SimulationConfig) { c.Topology = "fan" }, wantErr: true},
		{name: "point topology", mutate: func(c *SimulationConfig) { c.Topology = "point" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPublishChangesOnlyDiffs(t *testing.T) {
	bus := core.NewParameterBus()

	var topics []string
	record := func(topic string, value core.ParamValue) bool {
		topics = append(topics, topic)
		return false
	}
	for _, topic := range []string{
		core.TopicPlanetCount, core.TopicLatBands, core.TopicLongBands,
		core.TopicEllipseAxis, core.TopicEccentricity, core.TopicTopology,
		core.TopicTrailEnabled, core.TopicCollisionEnabled,
	} {
		bus.Subscribe(topic, "recorder", record)
	}

	old := Default()
	next := old
	next.PlanetCount = 20
	next.Eccentricity = 0.9
	next.Topology = "point"

	PublishChanges(bus, old, next)
	assert.Equal(t, []string{core.TopicPlanetCount, core.TopicEccentricity, core.TopicTopology}, topics)

	// Identical snapshots publish nothing.
	topics = nil
	PublishChanges(bus, old, old)
	assert.Empty(t, topics)
}

func TestPublishChangesPayloads(t *testing.T) {
	bus := core.NewParameterBus()

	var topology string
	bus.Subscribe(core.TopicTopology, "recorder", func(topic string, value core.ParamValue) bool {
		topology, _ = value.Any.(string)
		return false
	})
	var count uint32
	bus.Subscribe(core.TopicPlanetCount, "recorder", func(topic string, value core.ParamValue) bool {
		count = value.U32[0]
		return false
	})

	old := Default()
	next := old
	next.Topology = "line"
	next.PlanetCount = 3
	PublishChanges(bus, old, next)

	assert.Equal(t, "line", topology)
	assert.Equal(t, uint32(3), count)
}

func TestWatchDeliversSnapshotsOverChannel(t *testing.T) {
	path := writeConfig(t, `planet_count = 8`)
	watcher, err := Watch(path)
	require.NoError(t, err)
	defer watcher.Close()

	require.NoError(t, os.WriteFile(path, []byte(`planet_count = 12`), 0o644))

	// The watcher goroutine only loads and hands over snapshots; it never
	// publishes. The consumer picks them up here, on its own goroutine.
	select {
	case next := <-watcher.Snapshots():
		assert.Equal(t, uint32(12), next.PlanetCount)
	case <-time.After(5 * time.Second):
		t.Fatal("no snapshot delivered")
	}
}

func TestWatchIgnoresInvalidReload(t *testing.T) {
	path := writeConfig(t, `planet_count = 8`)
	watcher, err := Watch(path)
	require.NoError(t, err)
	defer watcher.Close()

	require.NoError(t, os.WriteFile(path, []byte(`eccentricity = 2.0`), 0o644))
	require.NoError(t, os.WriteFile(path, []byte(`planet_count = 9`), 0o644))

	// Only the valid edit comes through.
	select {
	case next := <-watcher.Snapshots():
		assert.Equal(t, uint32(9), next.PlanetCount)
	case <-time.After(5 * time.Second):
		t.Fatal("no snapshot delivered")
	}
}

func TestDeliverKeepsNewestSnapshot(t *testing.T) {
	w := &Watcher{snapshots: make(chan SimulationConfig, 1)}

	first := Default()
	first.PlanetCount = 5
	second := Default()
	second.PlanetCount = 7

	// An undelivered snapshot is replaced, never queued behind.
	w.deliver(first)
	w.deliver(second)

	got := <-w.Snapshots()
	assert.Equal(t, uint32(7), got.PlanetCount)
	select {
	case <-w.Snapshots():
		t.Fatal("stale snapshot left in channel")
	default:
	}
}
