// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fokus Contributors

package errutil_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fokushq/fokus/pkg/errutil"
)

func jsonLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewJSONHandler(&buf, nil)), &buf
}

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestLogError_OopsError(t *testing.T) {
	logger, buf := jsonLogger()
	err := oops.Code("AUTH_STORAGE_FAILED").With("operation", "login").Errorf("storage failure")

	errutil.LogError(logger, "account storage failed", err, "account_id", "01JNQ3Z7XG5Y8K2M4P6R8T0V2W")

	entry := decode(t, buf)
	assert.Equal(t, "ERROR", entry["level"])
	assert.Equal(t, "account storage failed", entry["msg"])
	assert.Equal(t, "AUTH_STORAGE_FAILED", entry["code"])
	assert.Equal(t, "storage failure", entry["error"])
	assert.Equal(t, "01JNQ3Z7XG5Y8K2M4P6R8T0V2W", entry["account_id"])
	assert.Equal(t, map[string]any{"operation": "login"}, entry["context"])
}

func TestLogError_StandardError(t *testing.T) {
	logger, buf := jsonLogger()

	errutil.LogError(logger, "request failed", errors.New("connection refused"))

	entry := decode(t, buf)
	assert.Equal(t, "connection refused", entry["error"])
	assert.NotContains(t, entry, "code")
	assert.NotContains(t, entry, "context")
}

func TestLogWarn(t *testing.T) {
	logger, buf := jsonLogger()

	errutil.LogWarn(logger, "best-effort notification failed", errors.New("relay down"), "operation", "notify_welcome")

	entry := decode(t, buf)
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "notify_welcome", entry["operation"])
	assert.Equal(t, "relay down", entry["error"])
}

func TestLog_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelError}))

	errutil.Log(context.Background(), logger, slog.LevelWarn, "ignored", errors.New("x"))

	assert.Empty(t, buf.String())
}

func TestCode(t *testing.T) {
	assert.Equal(t, "", errutil.Code(nil))
	assert.Equal(t, "", errutil.Code(errors.New("plain")))
	assert.Equal(t, "X", errutil.Code(oops.Code("X").Errorf("x")))
	assert.Equal(t, "INNER", errutil.Code(oops.Wrap(oops.Code("INNER").Errorf("x"))),
		"oops reports the deepest code in the chain")
}
