// AngelaMos | 2026
// config_test.go

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	c, err := load("")
	require.NoError(t, err)

	assert.InDelta(t, 100.0, c.Notes.MinDonation, 0.001)
	assert.InDelta(t, 1000000.0, c.Notes.MaxDonation, 0.001)
	assert.Equal(t, 10, c.Notes.MaxNames)
	assert.Equal(t, "Пожертвование", c.Notes.PaymentDescription)
	assert.Equal(t, "RUB", c.Notes.Currency)
	assert.Equal(t, 30*time.Minute, c.Notes.FlowTTL)
	assert.Equal(t, 72*time.Hour, c.Notes.PendingTTL)
	assert.Equal(t, "/yookassa-webhook", c.YooKassa.WebhookPath)
	assert.Equal(t, "/webhook", c.Telegram.WebhookPath)
	assert.Equal(t, 8, c.Telegram.Workers)
	assert.False(t, c.YooKassa.VerifyNotifications)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("MIN_DONATION_AMOUNT", "50.5")
	t.Setenv("MAX_NAMES_PER_NOTE", "5")
	t.Setenv("FLOW_TTL", "10m")
	t.Setenv("TELEGRAM_WEBHOOK_URL", "https://bot.example/")
	t.Setenv("YOOKASSA_VERIFY", "true")
	t.Setenv("PORT", "9090")

	c, err := load("")
	require.NoError(t, err)

	assert.InDelta(t, 50.5, c.Notes.MinDonation, 0.001)
	assert.Equal(t, 5, c.Notes.MaxNames)
	assert.Equal(t, 10*time.Minute, c.Notes.FlowTTL)
	assert.Equal(t, 9090, c.Server.Port)
	assert.True(t, c.YooKassa.VerifyNotifications)
	assert.True(t, c.UseTelegramWebhook())
	assert.Equal(t, "https://bot.example/payment-success", c.YooKassa.ReturnURL)
}

func TestLoad_ExplicitReturnURLWins(t *testing.T) {
	t.Setenv("TELEGRAM_WEBHOOK_URL", "https://bot.example")
	t.Setenv("PAYMENT_RETURN_URL", "https://parish.example/thanks")

	c, err := load("")
	require.NoError(t, err)
	assert.Equal(t, "https://parish.example/thanks", c.YooKassa.ReturnURL)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
notes:
  max_names: 20
  payment_description: "Записка"
yookassa:
  shop_id: "shop-1"
`), 0o600))

	t.Setenv("MAX_NAMES_PER_NOTE", "15")

	c, err := load(path)
	require.NoError(t, err)
	assert.Equal(t, 15, c.Notes.MaxNames)
	assert.Equal(t, "Записка", c.Notes.PaymentDescription)
	assert.Equal(t, "shop-1", c.YooKassa.ShopID)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"zero min donation", "MIN_DONATION_AMOUNT", "0"},
		{"max below min", "MAX_DONATION_AMOUNT", "10"},
		{"no names allowed", "MAX_NAMES_PER_NOTE", "0"},
		{"zero flow ttl", "FLOW_TTL", "0s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := load("")
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidateServe(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("TELEGRAM_WEBHOOK_URL", "")
	t.Setenv("PAYMENT_RETURN_URL", "")

	c, err := load("")
	require.NoError(t, err)

	assert.ErrorContains(t, c.ValidateServe(), "DATABASE_URL")

	c.Database.URL = "postgres://localhost/notes"
	assert.ErrorContains(t, c.ValidateServe(), "TELEGRAM_BOT_TOKEN")

	c.Telegram.Token = "123:abc"
	c.Redis.URL = "redis://localhost:6379/0"
	c.YooKassa.ShopID = "shop"
	c.YooKassa.SecretKey = "secret"
	assert.ErrorContains(t, c.ValidateServe(), "PAYMENT_RETURN_URL")

	c.YooKassa.ReturnURL = "https://bot.example/payment-success"
	assert.NoError(t, c.ValidateServe())
}

func TestServerAddress(t *testing.T) {
	s := ServerConfig{Host: "127.0.0.1", Port: 8000}
	assert.Equal(t, "127.0.0.1:8000", s.Address())
}
