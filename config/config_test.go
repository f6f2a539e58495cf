package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
database:
  driver: sqlite
  dsn: "file::memory:"
schedule:
  timezone: Europe/Moscow
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "Europe/Moscow", cfg.Schedule.Location.String())
	assert.Equal(t, 8*time.Hour, cfg.Schedule.OpenOffset)
	assert.Equal(t, 23*time.Hour, cfg.Schedule.CloseOffset)
	assert.Equal(t, 90*time.Minute, cfg.Schedule.Slot)
	assert.Equal(t, 23*time.Hour, cfg.Schedule.Cutoff, "cutoff defaults to closing time")
	assert.Equal(t, time.Minute, cfg.Sweep.Interval)
	assert.Equal(t, 40*time.Minute, cfg.Sweep.Reminder)
	assert.Equal(t, 30*time.Minute, cfg.Sweep.Expiry)
	assert.Equal(t, "log", cfg.Notification.Backend)
	assert.Equal(t, "RU", cfg.Notification.DefaultLanguage)
	assert.Equal(t, time.Second, cfg.Notification.RetryBackoff)
	assert.Equal(t, 1, cfg.WorkerPool.Size)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
database:
  driver: postgres
  dsn: "host=file"
sweep:
  reminder_minutes: 40
  expiry_minutes: 30
`)
	t.Setenv("LAUNDRY_DATABASE_DSN", "host=env")
	t.Setenv("LAUNDRY_SWEEP_EXPIRY_MINUTES", "20")
	t.Setenv("LAUNDRY_SERVER_ADMIN_TOKEN", "secret")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "host=env", cfg.Database.DSN)
	assert.Equal(t, 20*time.Minute, cfg.Sweep.Expiry)
	assert.Equal(t, "secret", cfg.Server.AdminToken)
}

func TestLoad_CategorySlot(t *testing.T) {
	path := writeConfig(t, `
database:
  driver: sqlite
  dsn: "x.db"
schedule:
  slot_minutes: 90
  category_slot_minutes:
    DRY: 60
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 60*time.Minute, cfg.Schedule.SlotFor("DRY"))
	assert.Equal(t, 90*time.Minute, cfg.Schedule.SlotFor("WASH"))
}

func TestLoad_Invalid(t *testing.T) {
	testCases := []struct {
		name string
		body string
	}{
		{"missing dsn", "database:\n  driver: sqlite\n"},
		{"unknown driver", "database:\n  driver: mysql\n  dsn: x\n"},
		{"bad timezone", "database:\n  dsn: x\nschedule:\n  timezone: Mars/Olympus\n"},
		{"window reversed", "database:\n  dsn: x\nschedule:\n  open: \"23:00\"\n  close: \"08:00\"\n"},
		{"expiry after reminder", "database:\n  dsn: x\nsweep:\n  reminder_minutes: 30\n  expiry_minutes: 40\n"},
		{"unknown backend", "database:\n  dsn: x\nnotification:\n  backend: sms\n"},
		{"webpush without keys", "database:\n  dsn: x\nnotification:\n  backend: webpush\n"},
		{"amqp without url", "database:\n  dsn: x\nnotification:\n  backend: amqp\n"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.body))
			assert.Error(t, err)
		})
	}
}

func TestParseClock(t *testing.T) {
	d, err := ParseClock("08:30")
	require.NoError(t, err)
	assert.Equal(t, 8*time.Hour+30*time.Minute, d)

	_, err = ParseClock("8.30")
	assert.Error(t, err)
}
