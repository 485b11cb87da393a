//go:build mage

package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// rootDir the full path to the repo.
// mage runs with magefiles as the working directory, but the compiled binary can be put
// anywhere, so no guarantee as too location.
var rootDir = func() string {
	_, r, _, ok := runtime.Caller(0)
	if !ok {
		panic("could not find root path for module")
	}
	return filepath.Dir(filepath.Dir(r))
}()

var binDir = filepath.Join(rootDir, "bin")

var (
	goBuildFlags     = []string{`-ldflags=-s -w`}
	goBuildTestFlags = []string{"-race", `-gcflags=all=-d=checkptr`}
	lintFlags        = []string{
		"--timeout=2m",
		"--max-issues-per-linter=0",
		"--max-same-issues=0",
		"--modules-download-mode=readonly",
		"--config=" + filepath.Join(rootDir, ".golangci.yml"),
	}
)

// the CLI is built for both platforms, since the ETW writer is only available on Windows
var goosTargets = []string{"windows", "linux"}

func init() {
	if err := os.Chdir(rootDir); err != nil {
		panic(fmt.Errorf("could not change to root directory: %w", err))
	}
}

type varMap = map[string]string

var Default = Validate

var Aliases = map[string]interface{}{
	"pr":    Validate,
	"gen":   GoGenerate,
	"build": Build.All,
	"test":  Test.All,
	"lint":  Lint.All,
}

// Validate regenerates code, then lints and tests the repo.
func Validate(ctx context.Context) {
	mg.SerialCtxDeps(ctx, GoGenerate, Lint.All, Test.All)
}

// GoGenerate (re)generates files created by `//go:generate` directives (stringers and mocks).
func GoGenerate(ctx context.Context) error {
	_, err := Exec(ctx, goCmd(), []string{"generate", "-x", "./..."},
		execInDir(rootDir),
		execInheritEnv(),
		execWithEnv(varMap{"GOWORK": "off"}),
		execVerbose,
	)
	return err
}

type Build mg.Namespace

// All builds activitytrace for every supported OS.
func (Build) All(ctx context.Context) {
	fs := make([]interface{}, 0, len(goosTargets))
	for _, goos := range goosTargets {
		fs = append(fs, mg.F(Build.ActivityTrace, goos))
	}
	mg.CtxDeps(ctx, fs...)
}

// ActivityTrace builds the activitytrace CLI for goos into ./bin/<goos>.
func (Build) ActivityTrace(ctx context.Context, goos string) error {
	return buildGoExe(ctx, "./cmd/activitytrace", filepath.Join(binDir, goos), goos)
}

func buildGoExe(ctx context.Context, pkg, outDir, goos string) error {
	if err := mkdir(outDir); err != nil {
		return err
	}
	args := make([]string, 0, len(goBuildFlags)+4)
	args = append(args, "build")
	args = append(args, goBuildFlags...)
	args = append(args, "-o", outDir+string(os.PathSeparator), pkg)

	_, err := Exec(ctx, goCmd(), args,
		execInDir(rootDir),
		execInheritEnv(),
		execWithEnv(varMap{
			"GOOS":        goos,
			"GOWORK":      "off",
			"CGO_ENABLED": "0",
		}),
		execVerbose,
	)
	return err
}

type Test mg.Namespace

// All runs the unit tests with the race detector enabled.
func (Test) All(ctx context.Context) error {
	args := make([]string, 0, len(goBuildTestFlags)+3)
	args = append(args, "test")
	args = append(args, goBuildTestFlags...)
	if mg.Verbose() {
		args = append(args, "-v")
	}
	args = append(args, "./...")

	_, err := Exec(ctx, goCmd(), args,
		execInDir(rootDir),
		execInheritEnv(),
		execWithEnv(varMap{"GOWORK": "off", "CGO_ENABLED": "1"}),
		execVerbose,
	)
	return err
}

type Lint mg.Namespace

// All lints the repo for every supported OS.
func (Lint) All(ctx context.Context) {
	mg.SerialCtxDeps(ctx, Lint.Windows, Lint.Linux)
}

func (Lint) Windows(ctx context.Context) error {
	return lint(ctx, "windows")
}

func (Lint) Linux(ctx context.Context) error {
	return lint(ctx, "linux")
}

func lint(ctx context.Context, goos string) error {
	args := make([]string, 0, len(lintFlags)+3)
	args = append(args, "run")
	args = append(args, lintFlags...)
	if mg.Verbose() {
		args = append(args, "--verbose")
	}
	args = append(args, "./...")

	_, err := Exec(ctx, "golangci-lint", args,
		execInDir(rootDir),
		execInheritEnv(), // golangci-lint needs %LocalAppData% for caching
		execWithEnv(varMap{
			"GOOS":   goos,
			"GOWORK": "off",
		}),
		execVerbose,
	)
	return err
}

// Clean removes built executables.
func Clean(_ context.Context) error {
	return sh.Rm(binDir)
}

//
// Helpers
//

func goCmd() string {
	p, err := exec.LookPath(mg.GoCmd())
	if err != nil {
		panic(fmt.Sprintf("invalid go executable; "+
			"specify the location with the '%s' environment variable: %v",
			mg.GoCmdEnv, err))
	}
	return p
}

func mkdir(p string) error {
	if err := os.MkdirAll(p, 0750); err != nil {
		return fmt.Errorf("creating %q: %w", p, err)
	}
	return nil
}
