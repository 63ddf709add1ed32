package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigYAML(t *testing.T) {
	def := defaultConfig()
	data, err := defaultConfigYAML(def)
	require.NoError(t, err)

	out := string(data)
	assert.Contains(t, out, "poll_interval: 1s")
	assert.Contains(t, out, "utterance_gap: 3s")
	assert.Contains(t, out, "# path to the .onnx voice model (required)")
	assert.Contains(t, out, "toggle_speech: ctrl+alt+t")

	// The generated file must read back to the same settings.
	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(bytes.NewReader(data)))
	var got Config
	require.NoError(t, v.Unmarshal(&got))
	assert.Equal(t, def, got)
}

func TestSetDefaultsEnvOverride(t *testing.T) {
	t.Setenv("CHATTTS_POLL_INTERVAL", "250ms")
	t.Setenv("CHATTTS_PIPER_MODEL", "/voices/amy.onnx")

	v := viper.New()
	v.SetEnvPrefix(appName)
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()
	setDefaults(v, defaultConfig())

	got := defaultConfig()
	require.NoError(t, v.Unmarshal(&got))
	assert.Equal(t, 250*time.Millisecond, got.PollInterval)
	assert.Equal(t, "/voices/amy.onnx", got.Piper.Model)
	assert.Equal(t, ";", got.Keys.Skip)
}
