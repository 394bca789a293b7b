package command

import (
	"bytes"
	"fmt"
	"os/exec"
	"strings"

	"github.com/sirupsen/logrus"
)

// Runner abstracts external tool invocation so the pipeline can be exercised
// in tests without hdiutil, pkgutil and friends installed.
type Runner interface {
	// Run executes the named tool and returns its standard output.
	Run(name string, args ...string) ([]byte, error)
	// RunIn is like Run but executes the tool with the given working
	// directory. Some tools (pax in particular) record paths relative to
	// where they were started.
	RunIn(dir, name string, args ...string) ([]byte, error)
}

// ExecRunner runs tools with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(name string, args ...string) ([]byte, error) {
	return run("", name, args...)
}

func (ExecRunner) RunIn(dir, name string, args ...string) ([]byte, error) {
	return run(dir, name, args...)
}

func run(dir, name string, args ...string) ([]byte, error) {
	logrus.Debugf("running %s %s", name, strings.Join(args, " "))

	cmd := exec.Command(name, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return stdout.Bytes(), fmt.Errorf("%s: %v", name, err)
		}
		return stdout.Bytes(), fmt.Errorf("%s: %v: %s", name, err, msg)
	}

	return stdout.Bytes(), nil
}
