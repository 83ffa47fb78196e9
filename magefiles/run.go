//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Compiles the shaders and runs the simulation windowed.
func (Run) Sim() error {
	mg.Deps(Build.Shaders)
	fmt.Println("Run simulation...")
	if _, err := executeCmd("go", withArgs("run", "main.go"), withStream()); err != nil {
		return err
	}
	return nil
}

// Runs the simulation headless on the software backend.
func (Run) Headless() error {
	fmt.Println("Run simulation (headless)...")
	if _, err := executeCmd("go", withArgs("run", "main.go", "-headless"), withStream()); err != nil {
		return err
	}
	return nil
}
