package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("BOT_TOKEN", "")
	t.Setenv("CHANNEL_ID", "")

	cfg := Load()

	assert.Empty(t, cfg.BotToken)
	assert.EqualValues(t, 0, cfg.ChannelID)
	assert.Equal(t, 60*time.Minute, cfg.InviteValidity)
	assert.Equal(t, 30*time.Minute, cfg.SweepInterval)
	assert.Equal(t, 1, cfg.GrantDays)
	assert.Equal(t, "8080", cfg.Port)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("CHANNEL_ID", "-1001234567890")
	t.Setenv("INVITE_VALIDITY", "15m")
	t.Setenv("SWEEP_INTERVAL", "5m")
	t.Setenv("GRANT_DAYS", "30")

	cfg := Load()

	assert.Equal(t, "123:abc", cfg.BotToken)
	assert.EqualValues(t, -1001234567890, cfg.ChannelID)
	assert.Equal(t, 15*time.Minute, cfg.InviteValidity)
	assert.Equal(t, 5*time.Minute, cfg.SweepInterval)
	assert.Equal(t, 30, cfg.GrantDays)
}

func TestMalformedValuesFallBack(t *testing.T) {
	t.Setenv("CHANNEL_ID", "not-a-number")
	t.Setenv("INVITE_VALIDITY", "soon")
	t.Setenv("GRANT_DAYS", "many")

	cfg := Load()

	assert.EqualValues(t, 0, cfg.ChannelID)
	assert.Equal(t, 60*time.Minute, cfg.InviteValidity)
	assert.Equal(t, 1, cfg.GrantDays)
}

func TestDSN(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PASSWORD", "hunter2")

	cfg := Load()
	dsn := cfg.DSN()

	assert.Contains(t, dsn, "host=db.internal")
	assert.Contains(t, dsn, "password=hunter2")
	assert.Contains(t, dsn, "TimeZone=UTC")
}
