package config

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessDefaults(t *testing.T) {
	cfg := &Config{}
	err := envconfig.ProcessWith(context.Background(), cfg, envconfig.MapLookuper(map[string]string{
		"BOT_TOKEN":      "123:abc",
		"ADMIN_IDS":      "10,20",
		"PROVIDER_ORDER": " groq , ,gemini",
	}))
	require.NoError(t, err)

	assert.Equal(t, "ru", cfg.DefaultLanguage)
	assert.Equal(t, []string{"groq", "gemini"}, cfg.Providers())
	assert.Equal(t, []string{"gemini-2.5-flash", "gemini-2.0-flash", "gemini-2.0-flash-lite"}, cfg.GeminiModelQueue())
	assert.True(t, cfg.IsAdmin(20))
	assert.False(t, cfg.IsAdmin(30))
	assert.Equal(t, 150, cfg.QuietThreshold)
	assert.InDelta(t, 0.05, cfg.ReactionChance, 1e-9)
}

func TestProcessRequiresToken(t *testing.T) {
	err := envconfig.ProcessWith(context.Background(), &Config{}, envconfig.MapLookuper(map[string]string{}))
	assert.Error(t, err)
}

func TestLocation(t *testing.T) {
	assert.Equal(t, time.UTC, Config{TimeZone: "Nowhere/Atlantis"}.Location())
	assert.Equal(t, "UTC", Config{TimeZone: "UTC"}.Location().String())
}

func TestNbFormatter(t *testing.T) {
	entry := &log.Entry{
		Time:    time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		Level:   log.WarnLevel,
		Message: "two\nlines",
		Data: log.Fields{
			"component": "router",
			"error":     errors.New("boom"),
			"chat":      -100,
		},
	}
	out, err := (&NbFormatter{NoColor: true}).Format(entry)
	require.NoError(t, err)
	assert.Equal(t,
		`level=WARN ts=2024-06-01 12:00:00.000 chat=-100 component="router" error="boom" msg="two\nlines"`+"\n",
		string(out))
}
