package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"laserdamage/model"
)

func writeConfig(t *testing.T, body string) {
	path := filepath.Join(t.TempDir(), "config.ini")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	t.Setenv("LASERDAMAGE_CONFIG", path)
}

func TestRunRejectsConfig(t *testing.T) {
	writeConfig(t, "[app]\nmode = gui\n")
	assert.ErrorIs(t, run(), model.ErrConfiguration)
}

func TestRunBatchStoresResults(t *testing.T) {
	db := filepath.Join(t.TempDir(), "runs.db")
	writeConfig(t, `
[log]
level = warn

[storage]
type = sqlite
path = `+db+`

[scenario A]
power = 1000
pulse_duration = 0.001
mode = pulsed
`)
	require.NoError(t, run())
	assert.FileExists(t, db)
}
