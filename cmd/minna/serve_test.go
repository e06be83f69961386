package main

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDaemonBinaryPath_PrefersSiblingOfExecutable(t *testing.T) {
	self, err := os.Executable()
	require.NoError(t, err)

	sibling := filepath.Join(filepath.Dir(self), "minnad")
	if _, err := os.Stat(sibling); err != nil {
		t.Skip("no minnad binary built alongside the test binary in this environment")
	}

	path, err := daemonBinaryPath()
	require.NoError(t, err)
	require.Equal(t, sibling, path)
}

func TestDaemonBinaryPath_FallsBackToPATH(t *testing.T) {
	_, err := exec.LookPath("minnad")
	if err != nil {
		t.Skip("minnad not on PATH in this environment")
	}
	path, err := daemonBinaryPath()
	require.NoError(t, err)
	require.NotEmpty(t, path)
}
