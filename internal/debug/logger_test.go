package debug

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitWithWriter(t *testing.T) {
	defer Init(false)

	var buf bytes.Buffer
	InitWithWriter(&buf, FormatJSON, true)
	assert.True(t, Enabled())

	Debug("compiled statement", "dialect", "postgres", "bound", 2)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "DEBUG", entry["level"])
	assert.Equal(t, "compiled statement", entry["msg"])
	assert.Equal(t, "postgres", entry["dialect"])
	assert.Equal(t, "dbi", entry["component"])
}

func TestDisabledDiscards(t *testing.T) {
	defer Init(false)

	var buf bytes.Buffer
	InitWithWriter(&buf, FormatText, false)
	assert.False(t, Enabled())

	Debug("hidden")
	Error("hidden too")
	With("k", "v").Info("hidden as well")
	assert.Empty(t, buf.String())
}
