// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package container

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockExecutor records calls and returns configured responses.
type mockExecutor struct {
	availableBins map[string]bool // binary -> whether LookPath succeeds
	runnableCmds  map[string]bool // "bin arg1 arg2" -> whether RunSilent succeeds
	runPipedFunc  func(name string, args []string, stdin io.Reader, stdout, stderr io.Writer) error
}

func (m *mockExecutor) LookPath(file string) (string, error) {
	if m.availableBins[file] {
		return "/usr/bin/" + file, nil
	}
	return "", errors.New("not found: " + file)
}

func (m *mockExecutor) RunSilent(_ context.Context, name string, args ...string) error {
	key := name + " " + strings.Join(args, " ")
	if m.runnableCmds[key] {
		return nil
	}
	return errors.New("command failed: " + key)
}

func (m *mockExecutor) RunPiped(_ context.Context, name string, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	if m.runPipedFunc != nil {
		return m.runPipedFunc(name, args, stdin, stdout, stderr)
	}
	return nil
}

func TestDetectRuntime(t *testing.T) {
	tests := []struct {
		name     string
		exec     *mockExecutor
		wantName string
		wantErr  bool
	}{
		{
			name: "docker available",
			exec: &mockExecutor{
				availableBins: map[string]bool{"docker": true},
				runnableCmds:  map[string]bool{"docker info": true},
			},
			wantName: "docker",
		},
		{
			name: "podman fallback",
			exec: &mockExecutor{
				availableBins: map[string]bool{"podman": true},
				runnableCmds:  map[string]bool{"podman info": true},
			},
			wantName: "podman",
		},
		{
			name: "docker daemon down",
			exec: &mockExecutor{
				availableBins: map[string]bool{"docker": true, "podman": true},
				runnableCmds:  map[string]bool{"podman info": true},
			},
			wantName: "podman",
		},
		{
			name:    "neither",
			exec:    &mockExecutor{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt, err := detectRuntime(context.Background(), tt.exec)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, rt.Name())
		})
	}
}

func TestImageExists(t *testing.T) {
	e := &mockExecutor{runnableCmds: map[string]bool{
		"docker image inspect markitdown:latest": true,
		"podman image exists markitdown:latest":  true,
	}}

	assert.NoError(t, newDockerRuntime(e).ImageExists(context.Background(), "markitdown:latest"))
	assert.NoError(t, newPodmanRuntime(e).ImageExists(context.Background(), "markitdown:latest"))
	assert.Error(t, newDockerRuntime(e).ImageExists(context.Background(), "other:latest"))
}

func TestRun(t *testing.T) {
	var gotArgs []string
	e := &mockExecutor{runPipedFunc: func(name string, args []string, stdin io.Reader, stdout, _ io.Writer) error {
		gotArgs = append([]string{name}, args...)
		data, _ := io.ReadAll(stdin)
		_, err := io.WriteString(stdout, "# "+string(data))
		return err
	}}

	var out strings.Builder
	err := newDockerRuntime(e).Run(context.Background(), "markitdown:latest", strings.NewReader("deck"), &out)
	require.NoError(t, err)
	assert.Equal(t, "# deck", out.String())
	assert.Equal(t, []string{"docker", "run", "--rm", "-i", "--network", "none", "markitdown:latest"}, gotArgs)
}

func TestRunIncludesStderr(t *testing.T) {
	e := &mockExecutor{runPipedFunc: func(_ string, _ []string, _ io.Reader, _, stderr io.Writer) error {
		io.WriteString(stderr, "unsupported file format\n")
		return errors.New("exit status 1")
	}}

	err := newPodmanRuntime(e).Run(context.Background(), "markitdown:latest", strings.NewReader(""), io.Discard)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported file format")
	assert.Contains(t, err.Error(), "podman")
}
