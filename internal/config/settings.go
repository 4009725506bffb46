package config

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/openclass/dbans/internal/database"
	"github.com/openclass/dbans/pkg/log"
)

// Runtime setting keys stored in the config table.
const (
	KeyBanEmailEnabled   = "ban_email_enabled"
	KeyEscalationAddress = "escalation_address"
	KeyFromAddress       = "from_address"
	KeyMaxThreadsPerBan  = "max_threads_per_ban"
	KeyMaxCommentsPerBan = "max_comments_per_ban"
	KeyPurgeErrorLimit   = "purge_error_limit"
)

// Settings are the moderation settings read at the start of every ban
// escalation. A zero value for either cap means unbounded.
type Settings struct {
	BanEmailEnabled   bool
	EscalationAddress string
	FromAddress       string
	MaxThreadsPerBan  int
	MaxCommentsPerBan int
	PurgeErrorLimit   int
}

// DefaultSettings returns the values used when a key is absent from the
// config table.
func DefaultSettings() Settings {
	return Settings{
		BanEmailEnabled:   true,
		EscalationAddress: "partner-support@edx.org",
		FromAddress:       "no-reply@example.com",
		MaxThreadsPerBan:  0,
		MaxCommentsPerBan: 0,
		PurgeErrorLimit:   5,
	}
}

// SettingsRepository loads the raw runtime setting rows.
type SettingsRepository interface {
	Values(ctx context.Context) (map[string]string, error)
}

type settingsRepository struct {
	db database.Database
}

func NewSettingsRepository(db database.Database) SettingsRepository {
	return &settingsRepository{db: db}
}

func (r *settingsRepository) Values(ctx context.Context) (map[string]string, error) {
	rows, errRows := r.db.QueryBuilder(ctx, r.db.Builder().
		Select("key", "value").
		From("config"))
	if errRows != nil {
		return nil, database.DBErr(errRows)
	}

	defer rows.Close()

	values := map[string]string{}

	for rows.Next() {
		var key, value string
		if errScan := rows.Scan(&key, &value); errScan != nil {
			return nil, database.DBErr(errScan)
		}

		values[key] = value
	}

	return values, nil
}

// Configuration resolves runtime settings on demand. Each call to Snapshot
// reads the current rows so that an operator change takes effect on the next
// moderation action without a restart.
type Configuration struct {
	repository SettingsRepository
}

func NewConfiguration(repository SettingsRepository) *Configuration {
	return &Configuration{repository: repository}
}

// Snapshot returns the current runtime settings. Missing or malformed rows
// fall back to their defaults, an unreachable settings source falls back
// entirely. Fallbacks are logged at warning level but never fail the caller.
func (c *Configuration) Snapshot(ctx context.Context) Settings {
	settings := DefaultSettings()

	values, errValues := c.repository.Values(ctx)
	if errValues != nil {
		slog.Warn("Failed to load runtime settings, using defaults", log.ErrAttr(errValues))

		return settings
	}

	applyBool(values, KeyBanEmailEnabled, &settings.BanEmailEnabled)
	applyString(values, KeyEscalationAddress, &settings.EscalationAddress)
	applyString(values, KeyFromAddress, &settings.FromAddress)
	applyInt(values, KeyMaxThreadsPerBan, &settings.MaxThreadsPerBan)
	applyInt(values, KeyMaxCommentsPerBan, &settings.MaxCommentsPerBan)
	applyInt(values, KeyPurgeErrorLimit, &settings.PurgeErrorLimit)

	return settings
}

func applyString(values map[string]string, key string, target *string) {
	if value, found := values[key]; found && value != "" {
		*target = value
	}
}

func applyBool(values map[string]string, key string, target *bool) {
	value, found := values[key]
	if !found {
		return
	}

	parsed, errParse := strconv.ParseBool(value)
	if errParse != nil {
		slog.Warn("Ignoring malformed runtime setting",
			slog.String("key", key), log.ErrAttr(errParse))

		return
	}

	*target = parsed
}

func applyInt(values map[string]string, key string, target *int) {
	value, found := values[key]
	if !found {
		return
	}

	parsed, errParse := strconv.Atoi(value)
	if errParse != nil || parsed < 0 {
		slog.Warn("Ignoring malformed runtime setting",
			slog.String("key", key), slog.String("value", value))

		return
	}

	*target = parsed
}
