/*
Orbiting-planet simulation: chained elliptical orbits, GPU-packed model
transforms and a compute-shader collision pass that spawns new planets.
*/
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/spaghettifunk/kepler/engine"
	"github.com/spaghettifunk/kepler/engine/core"
)

func main() {
	configPath := flag.String("config", "assets/kepler.toml", "simulation config file")
	shaderDir := flag.String("shaders", "assets/shaders", "compiled shader directory")
	headless := flag.Bool("headless", false, "run without a window on the software backend")
	flag.Parse()

	app, err := engine.New(engine.ApplicationConfig{
		StartPosX:   100,
		StartPosY:   100,
		StartWidth:  1280,
		StartHeight: 720,
		Name:        "Kepler",
		ConfigPath:  *configPath,
		ShaderDir:   *shaderDir,
		Headless:    *headless,
		LogLevel:    core.LogLevelDebug,
	})
	if err != nil {
		panic(err)
	}

	if err := app.Initialize(); err != nil {
		panic(err)
	}

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)

	go func() {
		<-sigCh
		_ = app.Shutdown()
	}()

	if err := app.Run(); err != nil {
		panic(err)
	}
}
