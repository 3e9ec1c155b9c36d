//go:build conformance

package conformance

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

var tiersyncBinary string

func init() {
	// Find the tiersync binary
	cwd, _ := os.Getwd()
	for {
		binPath := filepath.Join(cwd, "bin", "tiersync")
		if _, err := os.Stat(binPath); err == nil {
			tiersyncBinary = binPath
			return
		}
		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}
	// Fallback to PATH
	tiersyncBinary = "tiersync"
}

// testEnv is one isolated tiersync installation rooted in a temp dir.
type testEnv struct {
	root           string
	configHome     string
	runDir         string
	stateDir       string
	persistentRoot string
	runtimeDir     string
	mirrorArgsFile string
}

// setupEnv writes a config file and a fake mirror binary under a temp root,
// so every verb operates on throwaway paths.
func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	root := t.TempDir()

	env := &testEnv{
		root:           root,
		configHome:     filepath.Join(root, "config"),
		runDir:         filepath.Join(root, "run"),
		stateDir:       filepath.Join(root, "state"),
		persistentRoot: filepath.Join(root, "persist"),
		runtimeDir:     filepath.Join(root, "runtime"),
		mirrorArgsFile: filepath.Join(root, "mirror-args"),
	}

	mirrorBin := filepath.Join(root, "fake-rsync")
	script := "#!/bin/sh\n" +
		"printf '%s\\n' \"$@\" > " + env.mirrorArgsFile + "\n" +
		"echo 'Number of regular files transferred: 2'\n" +
		"echo 'Total transferred file size: 2,048 bytes'\n" +
		"echo 'Literal data: 2,048 bytes'\n" +
		"echo 'Matched data: 0 bytes'\n" +
		"exit 0\n"
	if err := os.WriteFile(mirrorBin, []byte(script), 0755); err != nil {
		t.Fatal(err)
	}

	config := fmt.Sprintf(`mirror_binary: %s
user:
  run_dir: %s
  state_dir: %s
  persistent_root: %s
  cache_sets:
    - name: demo-cache
      runtime_path: %s/demo
      persistent_path: %s/demo-cache
`, mirrorBin, env.runDir, env.stateDir, env.persistentRoot, env.runtimeDir, env.persistentRoot)

	configDir := filepath.Join(env.configHome, "tiersync")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(config), 0644); err != nil {
		t.Fatal(err)
	}
	return env
}

// run executes tiersync with the env's isolated config.
func (e *testEnv) run(t *testing.T, args ...string) (stdout, stderr string, exitCode int) {
	t.Helper()
	cmd := exec.Command(tiersyncBinary, args...)
	cmd.Env = append(os.Environ(),
		"XDG_CONFIG_HOME="+e.configHome,
		"NO_COLOR=1",
	)
	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	err := cmd.Run()
	stdout = stdoutBuf.String()
	stderr = stderrBuf.String()

	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = 1
		}
	}
	return
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
