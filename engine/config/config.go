package config

import (
	"fmt"
	"os"

	"github.com/fsnotify/fsnotify"
	"github.com/pelletier/go-toml/v2"

	"github.com/spaghettifunk/kepler/engine/core"
)

/**
 * @brief SimulationConfig is the immutable startup snapshot of every tunable
 * simulation parameter. A snapshot is decoded once from TOML; runtime
 * changes travel over the ParameterBus instead of mutating the snapshot.
 */
type SimulationConfig struct {
	PlanetCount   uint32  `toml:"planet_count"`
	RadiusMin     float32 `toml:"radius_min"`
	RadiusMax     float32 `toml:"radius_max"`
	LatBands      uint32  `toml:"lat_bands"`
	LongBands     uint32  `toml:"long_bands"`
	EllipseA      float32 `toml:"ellipse_a"`
	Eccentricity  float32 `toml:"eccentricity"`
	Topology      string  `toml:"topology"`
	TrailEnabled  bool    `toml:"trail_enabled"`
	CollisionOn   bool    `toml:"collision_enabled"`
	CheckInterval uint32  `toml:"check_interval"`
	TextureDir    string  `toml:"texture_dir"`
	Seed          uint64  `toml:"seed"`
}

// Default returns the snapshot used when no config file is present.
func Default() SimulationConfig {
	return SimulationConfig{
		PlanetCount:   8,
		RadiusMin:     0.5,
		RadiusMax:     1.5,
		LatBands:      16,
		LongBands:     16,
		EllipseA:      10,
		Eccentricity:  0.4,
		Topology:      "triangle",
		TrailEnabled:  false,
		CollisionOn:   true,
		CheckInterval: 30,
		TextureDir:    "assets/textures",
		Seed:          1,
	}
}

// Load decodes a SimulationConfig snapshot from a TOML file and validates
// it.
func Load(path string) (SimulationConfig, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("func Load: cannot read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("func Load: cannot parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects configuration values the simulation cannot start with.
func (sc SimulationConfig) Validate() error {
	if sc.LatBands < 2 || sc.LongBands < 2 {
		return fmt.Errorf("func Validate: band counts must be >= 2, got lat=%d long=%d", sc.LatBands, sc.LongBands)
	}
	if sc.RadiusMin <= 0 || sc.RadiusMax < sc.RadiusMin {
		return fmt.Errorf("func Validate: invalid radius range [%f, %f]", sc.RadiusMin, sc.RadiusMax)
	}
	if sc.EllipseA <= 0 {
		return fmt.Errorf("func Validate: ellipse semi-major axis must be > 0, got %f", sc.EllipseA)
	}
	if sc.Eccentricity < 0 || sc.Eccentricity >= 1 {
		return fmt.Errorf("func Validate: eccentricity must be in [0, 1), got %f", sc.Eccentricity)
	}
	if sc.CheckInterval == 0 {
		return fmt.Errorf("func Validate: check interval must be >= 1 frame")
	}
	switch sc.Topology {
	case "point", "line", "triangle":
	default:
		return fmt.Errorf("func Validate: unknown topology %q", sc.Topology)
	}
	return nil
}

/**
 * @brief Watcher reloads the config file on edit and delivers validated
 * snapshots over a channel. The watcher goroutine never touches the parameter
 * bus or any simulation state: the frame loop drains Snapshots at a safe
 * point and republishes from its own goroutine, so subscribers only ever run
 * on the frame thread.
 */
type Watcher struct {
	watcher   *fsnotify.Watcher
	done      chan struct{}
	snapshots chan SimulationConfig
}

func Watch(path string) (*Watcher, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("func Watch: %w", err)
	}
	if err := fsWatch.Add(path); err != nil {
		fsWatch.Close()
		return nil, fmt.Errorf("func Watch: cannot watch %s: %w", path, err)
	}

	w := &Watcher{
		watcher:   fsWatch,
		done:      make(chan struct{}),
		snapshots: make(chan SimulationConfig, 1),
	}

	go func() {
		for {
			select {
			case <-w.done:
				return
			case event, ok := <-fsWatch.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				next, err := Load(path)
				if err != nil {
					core.LogWarn("config reload rejected: %s", err)
					continue
				}
				w.deliver(next)
			case err, ok := <-fsWatch.Errors:
				if !ok {
					return
				}
				core.LogWarn("config watcher: %s", err)
			}
		}
	}()

	return w, nil
}

// deliver hands a snapshot to the consumer, replacing any undelivered one.
// Only the newest snapshot matters.
func (w *Watcher) deliver(next SimulationConfig) {
	for {
		select {
		case w.snapshots <- next:
			return
		default:
			select {
			case <-w.snapshots:
			default:
			}
		}
	}
}

// Snapshots returns the channel reloaded configs arrive on.
func (w *Watcher) Snapshots() <-chan SimulationConfig {
	return w.snapshots
}

// PublishChanges diffs two snapshots and publishes one topic per changed
// parameter, in a fixed order. Must be called from the goroutine that owns
// the bus subscribers.
func PublishChanges(bus *core.ParameterBus, old, next SimulationConfig) {
	if next.PlanetCount != old.PlanetCount {
		bus.Publish(core.TopicPlanetCount, core.ParamValue{U32: [2]uint32{next.PlanetCount}})
	}
	if next.LatBands != old.LatBands {
		bus.Publish(core.TopicLatBands, core.ParamValue{U32: [2]uint32{next.LatBands}})
	}
	if next.LongBands != old.LongBands {
		bus.Publish(core.TopicLongBands, core.ParamValue{U32: [2]uint32{next.LongBands}})
	}
	if next.EllipseA != old.EllipseA {
		bus.Publish(core.TopicEllipseAxis, core.ParamValue{F32: [2]float32{next.EllipseA}})
	}
	if next.Eccentricity != old.Eccentricity {
		bus.Publish(core.TopicEccentricity, core.ParamValue{F32: [2]float32{next.Eccentricity}})
	}
	if next.Topology != old.Topology {
		bus.Publish(core.TopicTopology, core.ParamValue{Any: next.Topology})
	}
	if next.TrailEnabled != old.TrailEnabled {
		bus.Publish(core.TopicTrailEnabled, core.ParamValue{B: next.TrailEnabled})
	}
	if next.CollisionOn != old.CollisionOn {
		bus.Publish(core.TopicCollisionEnabled, core.ParamValue{B: next.CollisionOn})
	}
}

func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}
