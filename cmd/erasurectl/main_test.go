// AngelaMos | 2026
// main_test.go

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandsRegistered(t *testing.T) {
	root := newRootCmd(&bytes.Buffer{})

	var names []string
	for _, cmd := range root.Commands() {
		names = append(names, cmd.Name())
	}

	for _, want := range []string{
		"pending", "failed", "due", "process-due", "recover",
		"status", "cancel", "execute", "migrate", "prune-tokens", "keygen",
	} {
		assert.Contains(t, names, want)
	}
}

func TestKeygenWritesKeyPair(t *testing.T) {
	dir := t.TempDir()
	priv := filepath.Join(dir, "private.pem")
	pub := filepath.Join(dir, "public.pem")

	root := newRootCmd(&bytes.Buffer{})
	root.SetArgs([]string{"keygen", "--private", priv, "--public", pub})
	require.NoError(t, root.Execute())

	info, err := os.Stat(priv)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	data, err := os.ReadFile(pub)
	require.NoError(t, err)
	assert.Contains(t, string(data), "PUBLIC KEY")
}

func TestStatusRequiresAccountID(t *testing.T) {
	root := newRootCmd(&bytes.Buffer{})
	root.SetArgs([]string{"status"})
	root.SetErr(&bytes.Buffer{})

	assert.Error(t, root.Execute())
}
