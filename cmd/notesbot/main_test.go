// AngelaMos | 2026
// main_test.go

package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/notesbot/internal/auth"
	"github.com/carterperez-dev/notesbot/internal/config"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootRegistersCommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd().Commands() {
		names[c.Name()] = true
	}

	for _, want := range []string{"serve", "migrate", "role", "keygen", "token"} {
		assert.True(t, names[want], want)
	}
}

func TestKeygenThenToken(t *testing.T) {
	dir := t.TempDir()
	privatePath := filepath.Join(dir, "keys", "private.pem")
	publicPath := filepath.Join(dir, "keys", "public.pem")
	t.Setenv("JWT_PRIVATE_KEY_PATH", privatePath)
	t.Setenv("JWT_PUBLIC_KEY_PATH", publicPath)
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("LOG_LEVEL", "error")

	out, err := run(t, "keygen")
	require.NoError(t, err)
	assert.Contains(t, out, privatePath)

	_, err = run(t, "keygen")
	assert.ErrorContains(t, err, "--force")

	_, err = run(t, "keygen", "--force")
	require.NoError(t, err)

	_, err = run(t, "token")
	assert.ErrorContains(t, err, "--subject")

	out, err = run(t, "token", "--subject", "ops@parish", "--ttl", "2h")
	require.NoError(t, err)

	tokens, err := auth.NewTokenManager(config.JWTConfig{
		PrivateKeyPath:    privatePath,
		PublicKeyPath:     publicPath,
		AccessTokenExpire: time.Hour,
		Issuer:            "notesbot",
		Audience:          "notesbot-operators",
	})
	require.NoError(t, err)

	claims, err := tokens.VerifyAccessToken(context.Background(), strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "ops@parish", claims.Subject)
	assert.Equal(t, "admin", claims.Role)
}

func TestRoleFlagValidation(t *testing.T) {
	_, err := run(t, "role", "--handle", "0", "--role", "admin")
	assert.ErrorContains(t, err, "--handle")

	_, err = run(t, "role", "--handle", "5", "--role", "bishop")
	assert.ErrorContains(t, err, "--role")
}

func TestSetupLogger(t *testing.T) {
	l := setupLogger(config.LogConfig{Level: "warn", Format: "json"})
	assert.False(t, l.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, l.Enabled(context.Background(), slog.LevelWarn))

	l = setupLogger(config.LogConfig{Level: "debug"})
	assert.True(t, l.Enabled(context.Background(), slog.LevelDebug))
}

func TestLoadLocation(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	assert.Equal(t, time.UTC, loadLocation("", logger))
	assert.Equal(t, time.UTC, loadLocation("Mars/Olympus", logger))
	assert.Equal(t, "Europe/Moscow", loadLocation("Europe/Moscow", logger).String())
}
