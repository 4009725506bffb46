package config_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openclass/dbans/internal/config"
)

type fakeRepository struct {
	values map[string]string
	err    error
}

func (f fakeRepository) Values(_ context.Context) (map[string]string, error) {
	return f.values, f.err
}

func TestSnapshotDefaults(t *testing.T) {
	configuration := config.NewConfiguration(fakeRepository{values: map[string]string{}})

	settings := configuration.Snapshot(context.Background())
	require.Equal(t, config.DefaultSettings(), settings)
	require.True(t, settings.BanEmailEnabled)
	require.Equal(t, "partner-support@edx.org", settings.EscalationAddress)
	require.Equal(t, "no-reply@example.com", settings.FromAddress)
	require.Zero(t, settings.MaxThreadsPerBan)
	require.Zero(t, settings.MaxCommentsPerBan)
	require.Equal(t, 5, settings.PurgeErrorLimit)
}

func TestSnapshotOverrides(t *testing.T) {
	configuration := config.NewConfiguration(fakeRepository{values: map[string]string{
		config.KeyBanEmailEnabled:   "false",
		config.KeyEscalationAddress: "custom-support@example.com",
		config.KeyFromAddress:       "noreply@edx.org",
		config.KeyMaxThreadsPerBan:  "100",
		config.KeyMaxCommentsPerBan: "250",
		config.KeyPurgeErrorLimit:   "1",
	}})

	settings := configuration.Snapshot(context.Background())
	require.False(t, settings.BanEmailEnabled)
	require.Equal(t, "custom-support@example.com", settings.EscalationAddress)
	require.Equal(t, "noreply@edx.org", settings.FromAddress)
	require.Equal(t, 100, settings.MaxThreadsPerBan)
	require.Equal(t, 250, settings.MaxCommentsPerBan)
	require.Equal(t, 1, settings.PurgeErrorLimit)
}

func TestSnapshotMalformedValuesFallBack(t *testing.T) {
	configuration := config.NewConfiguration(fakeRepository{values: map[string]string{
		config.KeyBanEmailEnabled:  "yes please",
		config.KeyMaxThreadsPerBan: "-3",
		config.KeyPurgeErrorLimit:  "many",
	}})

	settings := configuration.Snapshot(context.Background())
	require.Equal(t, config.DefaultSettings(), settings)
}

func TestSnapshotUnreachableSourceFallsBack(t *testing.T) {
	configuration := config.NewConfiguration(fakeRepository{err: errors.New("connection refused")})

	settings := configuration.Snapshot(context.Background())
	require.Equal(t, config.DefaultSettings(), settings)
}
