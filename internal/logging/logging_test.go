package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerKeyvals(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "info").With("component", "workflow")

	l.Info("step completed", "instance_id", 7, "err", errors.New("boom"))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "step completed", entry["msg"])
	assert.Equal(t, "workflow", entry["component"])
	assert.Equal(t, float64(7), entry["instance_id"])
	assert.Equal(t, "boom", entry["err"])
}

func TestLoggerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "warn")

	l.Debug("hidden")
	l.Info("hidden")
	assert.Zero(t, buf.Len())

	l.Warn("shown", "odd")
	assert.Contains(t, buf.String(), "(MISSING)")
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	_, err := New(Options{Level: "info", Format: "xml"})
	assert.Error(t, err)
}

func TestNewWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "fundops.log")
	l, err := New(Options{Level: "bogus", Format: "json", File: path, MaxSizeMB: 1})
	require.NoError(t, err)
	l.Info("hello")
	assert.FileExists(t, path)
}
