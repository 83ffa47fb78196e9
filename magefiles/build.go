//go:build mage

package main

import (
	"strings"

	"github.com/magefile/mage/mg"
)

type Build mg.Namespace

var shaders = []struct {
	src string
	out string
}{
	{"assets/shaders/planet.vert.glsl", "assets/shaders/planet.vert.spv"},
	{"assets/shaders/planet.frag.glsl", "assets/shaders/planet.frag.spv"},
	{"assets/shaders/trail.vert.glsl", "assets/shaders/trail.vert.spv"},
	{"assets/shaders/collision.comp.glsl", "assets/shaders/collision.comp.spv"},
}

// Compiles every GLSL shader to SPIR-V with glslc.
func (Build) Shaders() error {
	for _, s := range shaders {
		stage := "-fshader-stage=vertex"
		switch {
		case strings.HasSuffix(s.src, ".frag.glsl"):
			stage = "-fshader-stage=fragment"
		case strings.HasSuffix(s.src, ".comp.glsl"):
			stage = "-fshader-stage=compute"
		}
		if _, err := executeCmd("glslc", withArgs(stage, s.src, "-o", s.out), withStream()); err != nil {
			return err
		}
	}
	return nil
}

// Builds the simulation binary.
func (Build) Binary() error {
	mg.Deps(Build.Shaders)
	if _, err := executeCmd("go", withArgs("build", "-o", "bin/kepler", "."), withStream()); err != nil {
		return err
	}
	return nil
}
