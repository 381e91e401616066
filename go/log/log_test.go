/*
Copyright 2024 The Vexel Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package log

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterFlags(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)

	for _, name := range []string{"log-rotate-max-size", "log-fmt", "log-level"} {
		assert.NotNil(t, fs.Lookup(name), name)
	}
}

func TestInitNoopWithoutFormatFlag(t *testing.T) {
	require.NoError(t, Init(nil))

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	// Flag registered but never set: glog stays in charge.
	require.NoError(t, Init(fs))
	assert.False(t, structuredLoggingEnabled.Load())
}

func TestSlogLevelParsing(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"debug":  slog.LevelDebug,
		"INFO":   slog.LevelInfo,
		" warn ": slog.LevelWarn,
		"error":  slog.LevelError,
	} {
		got, err := slogLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := slogLevel("loud")
	require.Error(t, err)
}

func TestSlogHandlerSelection(t *testing.T) {
	opts := &slog.HandlerOptions{}
	h, err := slogHandler("json", opts)
	require.NoError(t, err)
	assert.IsType(t, &slog.JSONHandler{}, h)

	h, err = slogHandler("logfmt", opts)
	require.NoError(t, err)
	assert.IsType(t, &slog.TextHandler{}, h)

	_, err = slogHandler("xml", opts)
	require.Error(t, err)
}

func TestStructuredLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	restore := SetLogger(logger)
	defer restore()

	InfoS("codec built", "type", "tuple", "fields", 3)
	out := buf.String()
	assert.Contains(t, out, `"msg":"codec built"`)
	assert.Contains(t, out, `"type":"tuple"`)
	assert.Contains(t, out, `"fields":3`)

	assert.True(t, Enabled(slog.LevelInfo))
}
