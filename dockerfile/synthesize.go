// Package dockerfile synthesizes a Dockerfile for a project that does not
// ship one of its own, detecting the runtime from the files present in the
// checkout. There is no teacher precedent for this step: the example repo
// assumes a Dockerfile already exists per deployment, so this package is new
// code written in the surrounding codebase's idiom (small detection
// functions, an explicit ordered policy, errors wrapped with context).
package dockerfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Sentinel is the first line written into every auto-generated Dockerfile.
// A Dockerfile present in the repo that does not start with this line is
// assumed hand-written and is left untouched.
const Sentinel = "# VersionGate:auto-generated"

// ErrUndetectableProjectType is returned when no candidate directory matches
// any of the known runtime signatures.
var ErrUndetectableProjectType = errors.New("could not detect project type: no package.json, requirements.txt, or go.mod found")

// Resolve ensures a Dockerfile exists for the build and returns the
// directory that should be used as the build context. If repoRoot already
// carries a hand-written Dockerfile at configuredContext, that directory is
// returned unchanged. Otherwise a Dockerfile is synthesized in the first
// candidate directory whose runtime is detected, and that directory is returned.
func Resolve(repoRoot, configuredContext string) (string, error) {
	configuredDir := filepath.Join(repoRoot, configuredContext)

	if hasHandwrittenDockerfile(configuredDir) {
		return configuredDir, nil
	}

	for _, candidate := range candidateDirs(repoRoot, configuredDir) {
		template, detected := detectRuntime(candidate)
		if !detected {
			continue
		}
		if err := writeDockerfile(candidate, template); err != nil {
			return "", fmt.Errorf("failed to write synthesized dockerfile in %q: %w", candidate, err)
		}
		return candidate, nil
	}

	return "", ErrUndetectableProjectType
}

// hasHandwrittenDockerfile reports whether dir/Dockerfile exists and its
// first line is not the synthesizer's own sentinel.
func hasHandwrittenDockerfile(dir string) bool {
	contents, err := os.ReadFile(filepath.Join(dir, "Dockerfile"))
	if err != nil {
		return false
	}
	firstLine := strings.SplitN(string(contents), "\n", 2)[0]
	return strings.TrimSpace(firstLine) != Sentinel
}

// candidateDirs enumerates detection roots in policy order: the configured
// build context, then the repo root (if different), then each immediate
// subdirectory of the repo root excluding hidden directories and node_modules.
func candidateDirs(repoRoot, configuredDir string) []string {
	var candidates []string
	candidates = append(candidates, configuredDir)
	if configuredDir != repoRoot {
		candidates = append(candidates, repoRoot)
	}

	entries, err := os.ReadDir(repoRoot)
	if err != nil {
		return candidates
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") || name == "node_modules" {
			continue
		}
		candidates = append(candidates, filepath.Join(repoRoot, name))
	}
	return candidates
}

// detectRuntime tries Node, then Python, then Go, in that order, against a
// single candidate directory.
func detectRuntime(dir string) (*dockerfileTemplate, bool) {
	if packageJSONPath := filepath.Join(dir, "package.json"); fileExists(packageJSONPath) {
		return buildNodeTemplate(dir, packageJSONPath), true
	}
	if fileExists(filepath.Join(dir, "requirements.txt")) {
		return pythonTemplate(), true
	}
	if fileExists(filepath.Join(dir, "go.mod")) {
		return goTemplate(), true
	}
	return nil, false
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// dockerfileTemplate is the fully rendered body written below the sentinel line.
type dockerfileTemplate struct {
	body string
}

func writeDockerfile(dir string, template *dockerfileTemplate) error {
	content := Sentinel + "\n" + template.body
	return os.WriteFile(filepath.Join(dir, "Dockerfile"), []byte(content), 0644)
}
