package engine

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/spaghettifunk/kepler/engine/config"
	"github.com/spaghettifunk/kepler/engine/containers"
	"github.com/spaghettifunk/kepler/engine/core"
	"github.com/spaghettifunk/kepler/engine/math"
	"github.com/spaghettifunk/kepler/engine/platform"
	"github.com/spaghettifunk/kepler/engine/renderer"
	"github.com/spaghettifunk/kepler/engine/renderer/soft"
	"github.com/spaghettifunk/kepler/engine/renderer/vulkan"
	"github.com/spaghettifunk/kepler/engine/systems"
)

// FrameBackend is the device surface the frame driver needs: the system-level
// backend operations plus per-frame pass bracketing.
type FrameBackend interface {
	renderer.Backend
	FrameBegin() (renderer.RenderPass, error)
	FrameEnd(pass renderer.RenderPass) error
}

type ApplicationConfig struct {
	// Window starting position x axis, if applicable.
	StartPosX uint32
	// Window starting position y axis, if applicable.
	StartPosY uint32
	// Window starting width, if applicable.
	StartWidth uint32
	// Window starting height, if applicable.
	StartHeight uint32
	// The application name used in windowing, if applicable.
	Name string
	// Path to the TOML simulation config; empty runs on defaults without a
	// file watcher.
	ConfigPath string
	// Directory holding the compiled SPIR-V shaders.
	ShaderDir string
	// Headless runs the simulation on the software backend with no window.
	Headless bool
	LogLevel core.LogLevel
}

/**
 * @brief Application wires the platform, the device backend and every
 * simulation system together and drives the frame loop. Runtime parameter
 * changes flow exclusively over the parameter bus; the application itself
 * only keeps the per-frame snapshot it hands to the packer.
 */
type Application struct {
	config   ApplicationConfig
	sim      config.SimulationConfig
	platform *platform.Platform
	backend  FrameBackend
	bus      *core.ParameterBus

	camera    *systems.Camera
	pool      *systems.TexturePool
	packer    *systems.TransformPacker
	collision *systems.CollisionEngine
	trail     *systems.TrailHistory
	spawner   *systems.Spawner
	watcher   *config.Watcher

	// Per-frame snapshot, mutated only by bus callbacks.
	params           systems.FrameParams
	trailEnabled     bool
	collisionEnabled bool
	trailFrames      uint32

	subscriberID string
	running      atomic.Bool
}

func New(cfg ApplicationConfig) (*Application, error) {
	core.Initialize(cfg.LogLevel)

	sim := config.Default()
	if cfg.ConfigPath != "" {
		loaded, err := config.Load(cfg.ConfigPath)
		if err != nil {
			return nil, err
		}
		sim = loaded
	}

	app := &Application{
		config:           cfg,
		sim:              sim,
		bus:              core.NewParameterBus(),
		trailEnabled:     sim.TrailEnabled,
		collisionEnabled: sim.CollisionOn,
		subscriberID:     core.NewSubscriberID(),
	}
	app.params = systems.FrameParams{
		EllipseSemiMajor: sim.EllipseA,
		Eccentricity:     sim.Eccentricity,
		Topology:         topologyFromName(sim.Topology),
	}
	return app, nil
}

func topologyFromName(name string) renderer.Topology {
	switch name {
	case "point":
		return renderer.TopologyPointList
	case "line":
		return renderer.TopologyLineList
	default:
		return renderer.TopologyTriangleList
	}
}

func (app *Application) Initialize() error {
	if app.config.Headless {
		app.backend = soft.NewBackend()
	} else {
		p, err := platform.New()
		if err != nil {
			return err
		}
		if err := p.Startup(app.config.Name, app.config.StartPosX, app.config.StartPosY, app.config.StartWidth, app.config.StartHeight); err != nil {
			return err
		}
		app.platform = p

		backend := vulkan.NewBackend(p)
		if err := backend.Startup(app.config.Name, app.config.StartWidth, app.config.StartHeight, app.config.ShaderDir); err != nil {
			return err
		}
		app.backend = backend
	}

	aspect := float32(app.config.StartWidth) / float32(app.config.StartHeight)
	camera, err := systems.NewCamera(app.backend, app.bus, aspect)
	if err != nil {
		return err
	}
	app.camera = camera

	if app.sim.TextureDir != "" {
		if _, err := os.Stat(app.sim.TextureDir); err == nil {
			pool := systems.NewTexturePool()
			if err := pool.Load(app.sim.TextureDir); err != nil {
				return err
			}
			app.pool = pool
		} else {
			core.LogWarn("texture directory %s missing, planets render untextured", app.sim.TextureDir)
		}
	}

	packer, err := systems.NewTransformPacker(app.backend, app.bus, app.pool, systems.TransformPackerConfig{
		LatBands:  app.sim.LatBands,
		LongBands: app.sim.LongBands,
		RadiusMin: app.sim.RadiusMin,
		RadiusMax: app.sim.RadiusMax,
		Seed:      app.sim.Seed,
	})
	if err != nil {
		return err
	}
	app.packer = packer

	app.collision = systems.NewCollisionEngine(app.backend, app.bus)
	app.trail = systems.NewTrailHistory(app.backend)
	app.spawner = systems.NewSpawner(app.bus, app.packer)

	app.subscribeParams()

	if app.platform != nil {
		app.platform.OnScroll = func(delta float64) {
			if err := app.camera.Zoom(float32(delta)); err != nil {
				core.LogError("camera zoom failed: %s", err)
			}
		}
	}

	if app.config.ConfigPath != "" {
		watcher, err := config.Watch(app.config.ConfigPath)
		if err != nil {
			// A broken watcher only disables hot reload.
			core.LogWarn("config watcher disabled: %s", err)
		} else {
			app.watcher = watcher
		}
	}

	// Seed the initial planet set through the same topic a runtime change
	// would use.
	app.bus.Publish(core.TopicPlanetCount, core.ParamValue{U32: [2]uint32{app.sim.PlanetCount}})

	core.LogInfo("Application '%s' initialized with %d planet(s).", app.config.Name, app.sim.PlanetCount)
	return nil
}

func (app *Application) subscribeParams() {
	app.bus.Subscribe(core.TopicEllipseAxis, app.subscriberID, func(topic string, value core.ParamValue) bool {
		app.params.EllipseSemiMajor = value.F32[0]
		return false
	})
	app.bus.Subscribe(core.TopicEccentricity, app.subscriberID, func(topic string, value core.ParamValue) bool {
		app.params.Eccentricity = value.F32[0]
		return false
	})
	app.bus.Subscribe(core.TopicTopology, app.subscriberID, func(topic string, value core.ParamValue) bool {
		name, ok := value.Any.(string)
		if !ok {
			return false
		}
		app.params.Topology = topologyFromName(name)
		return false
	})
	app.bus.Subscribe(core.TopicTrailEnabled, app.subscriberID, func(topic string, value core.ParamValue) bool {
		app.SetTrailEnabled(value.B)
		return false
	})
	app.bus.Subscribe(core.TopicCollisionEnabled, app.subscriberID, func(topic string, value core.ParamValue) bool {
		app.collisionEnabled = value.B
		return false
	})
	// Planet-count and tessellation changes invalidate the recorded trail
	// indices, so the history restarts.
	resetTrail := func(topic string, value core.ParamValue) bool {
		app.trail.Reset()
		app.trailFrames = 0
		return false
	}
	app.bus.Subscribe(core.TopicPlanetCount, app.subscriberID+"-trail", resetTrail)
	app.bus.Subscribe(core.TopicLatBands, app.subscriberID+"-trail", resetTrail)
	app.bus.Subscribe(core.TopicLongBands, app.subscriberID+"-trail", resetTrail)
}

// applyConfig republishes the parameters that changed between the current
// snapshot and next, then adopts next. Runs on the frame thread so every bus
// subscriber does too.
func (app *Application) applyConfig(next config.SimulationConfig) {
	config.PublishChanges(app.bus, app.sim, next)
	app.sim = next
}

// drainConfigReloads applies any snapshot the config watcher delivered since
// the last frame. The watcher goroutine itself never publishes.
func (app *Application) drainConfigReloads() {
	if app.watcher == nil {
		return
	}
	for {
		select {
		case next := <-app.watcher.Snapshots():
			app.applyConfig(next)
		default:
			return
		}
	}
}

// SetTrailEnabled toggles trail recording. Turning trails off or on discards
// the accumulated history either way, so a re-enable starts from zero.
func (app *Application) SetTrailEnabled(enabled bool) {
	app.trailEnabled = enabled
	app.trail.Reset()
	app.trailFrames = 0
}

// Bus exposes the parameter bus so embedders can publish runtime changes.
func (app *Application) Bus() *core.ParameterBus {
	return app.bus
}

/**
 * @brief RunFrame advances the simulation by exactly one frame: recompute and
 * draw the planets, append and draw trails, kick or poll the collision pass.
 * frameIndex drives the collision check cadence.
 */
func (app *Application) RunFrame(frameIndex uint64) error {
	pass, err := app.backend.FrameBegin()
	if err != nil {
		return err
	}

	if err := app.packer.RenderPlanets(pass, app.params, app.camera.ViewProjection()); err != nil {
		return err
	}

	if app.trailEnabled && app.packer.PlanetCount() > 0 {
		for i, orbit := range app.packer.Orbits() {
			if err := app.trail.AppendSample(uint32(i), orbit.Center); err != nil {
				return err
			}
		}
		app.trailFrames++
		if err := app.trail.Draw(pass, app.camera.ViewProjection(), app.trailFrames, app.packer.PlanetCount()); err != nil {
			return err
		}
	}

	if app.collisionEnabled {
		if frameIndex%uint64(app.sim.CheckInterval) == 0 {
			if err := app.collision.Check(app.packer.Candidates()); err != nil {
				return err
			}
		}
		if _, _, err := app.collision.Collect(); err != nil {
			return err
		}
	}

	return app.backend.FrameEnd(pass)
}

// Frames between status log lines.
const statsInterval = 300

// Run drives frames until Shutdown or a window close.
func (app *Application) Run() error {
	app.running.Store(true)
	clock := core.NewClock()
	clock.Start()

	frameTimes := containers.NewRingQueue[float64](statsInterval)
	lastElapsed := 0.0

	var frameIndex uint64
	for app.running.Load() {
		if app.platform != nil {
			app.platform.PumpMessages()
			if app.platform.ShouldClose() {
				break
			}
		}
		app.drainConfigReloads()
		if err := app.RunFrame(frameIndex); err != nil {
			return err
		}
		frameIndex++

		clock.Update()
		frameTimes.Enqueue(clock.ElapsedSeconds() - lastElapsed)
		lastElapsed = clock.ElapsedSeconds()
		if frameIndex%statsInterval == 0 {
			total := 0.0
			frameTimes.Each(func(dt float64) { total += dt })
			core.LogDebug("avg frame %.2fms over last %d frames; %s",
				1000.0*total/float64(frameTimes.Len()), frameTimes.Len(), app.OrbitSummary())
		}

		if app.platform == nil {
			// Headless runs pace themselves; a window is paced by present.
			time.Sleep(16 * time.Millisecond)
		}
	}

	clock.Update()
	core.LogInfo("Application ran %d frame(s) in %.1fs.", frameIndex, clock.ElapsedSeconds())
	return app.destroy()
}

// Shutdown stops the frame loop; Run tears everything down on exit.
func (app *Application) Shutdown() error {
	app.running.Store(false)
	return nil
}

func (app *Application) destroy() error {
	if app.watcher != nil {
		if err := app.watcher.Close(); err != nil {
			core.LogWarn("config watcher close: %s", err)
		}
	}
	if app.spawner != nil {
		app.spawner.Destroy()
	}
	if app.trail != nil {
		app.trail.Destroy()
	}
	if app.collision != nil {
		app.collision.Destroy()
	}
	if app.packer != nil {
		app.packer.Destroy()
	}
	if app.camera != nil {
		app.camera.Destroy()
	}
	if app.backend != nil {
		if err := app.backend.Shutdown(); err != nil {
			return err
		}
	}
	if app.platform != nil {
		if err := app.platform.Shutdown(); err != nil {
			return err
		}
	}
	core.LogInfo("Application '%s' shut down.", app.config.Name)
	return nil
}

// OrbitSummary describes the simulated set for status logging.
func (app *Application) OrbitSummary() string {
	centers := app.packer.Orbits()
	var farthest math.Vec3
	for _, orbit := range centers {
		if orbit.Center.Length() > farthest.Length() {
			farthest = orbit.Center
		}
	}
	return fmt.Sprintf("%d planet(s), farthest center (%.1f, %.1f, %.1f)",
		len(centers), farthest.X, farthest.Y, farthest.Z)
}
