package app

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alexedwards/argon2id"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/GoPowerDNS-Admin/adminauth/internal/auth/credential"
	"github.com/GoPowerDNS-Admin/adminauth/internal/auth/scope"
	"github.com/GoPowerDNS-Admin/adminauth/internal/config"
)

func run(t *testing.T, stdin string, args ...string) string {
	t.Helper()

	var out bytes.Buffer

	rootCmd.SetOut(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)

	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		dumpJSON = false
		otpRemove = false
	})

	require.NoError(t, rootCmd.Execute())

	return out.String()
}

func TestHashPw(t *testing.T) {
	hash := strings.TrimSpace(run(t, "", "--config", "../etc/", "hash-pw", "s3cret"))
	require.True(t, strings.HasPrefix(hash, "$argon2id$"))

	ok, err := argon2id.ComparePasswordAndHash("s3cret", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	hash = strings.TrimSpace(run(t, "from-stdin\n", "--config", "../etc/", "hash-pw"))
	ok, err = argon2id.ComparePasswordAndHash("from-stdin", hash)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestConfigDump(t *testing.T) {
	out := run(t, "", "--config", "../etc/", "config", "dump")
	assert.Contains(t, out, "[Webserver]")
	assert.NotContains(t, out, "$2b$", "password hashes are masked")

	out = run(t, "", "--config", "../etc/", "config", "dump", "--json")
	assert.True(t, strings.HasPrefix(strings.TrimSpace(out), "{"))
}

func TestUserCommands(t *testing.T) {
	ctx := context.Background()

	t.Setenv(config.EnvPrefix+"_DB_DRIVER", "sqlite")
	t.Setenv(config.EnvPrefix+"_DB_PATH", filepath.Join(t.TempDir(), "users.db"))

	c, err := config.ReadConfig("../etc/")
	require.NoError(t, err)

	dir, err := directory(c)
	require.NoError(t, err)

	_, err = dir.Create(ctx, "ops", "initial", scope.New("read"))
	require.NoError(t, err)

	hasher, err := credential.NewHasher(c.Auth.Credentials.HashConfig)
	require.NoError(t, err)

	store, err := credential.NewStore(dir.Lookup, hasher)
	require.NoError(t, err)

	verify := func(secret, code string) error {
		_, err := store.Verify(ctx, credential.Credentials{Username: "ops", Secret: secret, OTP: code})

		return err
	}

	assert.Contains(t, run(t, "rotated\n", "--config", "../etc/", "user", "passwd", "ops"), "password of ops changed")
	require.NoError(t, verify("rotated", ""))

	assert.Contains(t, run(t, "", "--config", "../etc/", "user", "disable", "ops"), "ops disabled")
	require.Error(t, verify("rotated", ""))

	run(t, "", "--config", "../etc/", "user", "enable", "ops")
	require.NoError(t, verify("rotated", ""))

	out := run(t, "", "--config", "../etc/", "user", "otp", "ops")
	assert.Contains(t, out, "otpauth://totp/")

	rec, err := dir.Lookup(ctx, "ops")
	require.NoError(t, err)
	require.NotEmpty(t, rec.TOTPSecret)
	assert.Contains(t, out, rec.TOTPSecret)
	require.Error(t, verify("rotated", ""), "a code is required once enrolled")

	run(t, "", "--config", "../etc/", "user", "otp", "--remove", "ops")
	require.NoError(t, verify("rotated", ""))

	rootCmd.SetArgs([]string{"--config", "../etc/", "user", "disable", "ghost"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	assert.ErrorIs(t, rootCmd.Execute(), gorm.ErrRecordNotFound)
}
