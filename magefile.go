//go:build mage
// +build mage

package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/magefile/mage/mg"
)

// Default target to run when none is specified
// If not set, running mage will list available targets
var Default = Build

func Build() error {
	mg.Deps(BuildEvb)
	fmt.Println("Compilation finished")
	return nil
}

// BuildEvb builds ./bin/evb. HDF5 needs cgo, CGO_CFLAGS and CGO_LDFLAGS are
// passed through from the environment.
func BuildEvb() error {
	fmt.Println("Building evb executable...")
	return goCommand("build", "-o", "./bin/evb", "./evb")
}

// Test runs the unit tests of the library and the command.
func Test() error {
	fmt.Println("Running tests...")
	return goCommand("test", "./pkg/...", "./evb/...")
}

func goCommand(args ...string) error {
	ldflags := os.Getenv("CGO_LDFLAGS")
	cflags := os.Getenv("CGO_CFLAGS")
	cmd := exec.Command("go", args...)
	cmd.Env = append(os.Environ(),
		"CGO_ENABLED=1",
		fmt.Sprintf("CGO_LDFLAGS=%s", ldflags),
		fmt.Sprintf("CGO_CFLAGS=%s", cflags))
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
