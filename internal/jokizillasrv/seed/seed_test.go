package seed

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jokizilla/jokizilla/internal/jokizillasrv/db/dbtest"
	"github.com/jokizilla/jokizilla/internal/jokizillasrv/db/models"
	"github.com/jokizilla/jokizilla/internal/jokizillasrv/db/store"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const lookups = `
Service:
  - Id: 3
    Name: Translation
    Price: 40
    PriceTypeId: 1
    AdditionalServiceIds: [2]
PriceType:
  - Id: 1
    Name: Hourly
AdditionalService:
  - Id: 2
    Name: Proofreading
    Price: 15.5
---
Country:
  - Id: 276
    Name: Germany
    Code: DE
`

func newStore(t *testing.T) (context.Context, *store.Store) {
	ctx := log.Logger.WithContext(context.Background())
	return ctx, store.New(dbtest.NewConn(t))
}

func TestParse(t *testing.T) {
	data, err := Parse([]byte(lookups))
	require.NoError(t, err)
	assert.Len(t, data, 4)
	assert.Len(t, data["Country"], 1)
	assert.Equal(t, "Translation", data["Service"][0]["Name"])

	_, err = Parse([]byte("Employee:\n  - Id: 1\n"))
	assert.ErrorContains(t, err, `unknown entity set "Employee"`)

	_, err = Parse([]byte("Country: [1, 2"))
	assert.ErrorContains(t, err, "failed to decode YAML")
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(lookups), 0o600))
	data, err := ParseFile(path)
	require.NoError(t, err)
	assert.Len(t, data["PriceType"], 1)

	_, err = ParseFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestApplyIsIdempotent(t *testing.T) {
	ctx, s := newStore(t)
	data, err := Parse([]byte(lookups))
	require.NoError(t, err)

	stats, err := Apply(ctx, s, data)
	require.NoError(t, err)
	assert.Equal(t, Stats{Created: 1}, stats["Service"])
	assert.Equal(t, Stats{Created: 1}, stats["Country"])

	svc, aerr := store.Services.Get(ctx, s, 3)
	require.NoError(t, aerr)
	assert.Equal(t, "Translation", svc.Name)
	assert.Equal(t, uint8(1), svc.PriceTypeID)

	services := []models.Service{*svc}
	require.NoError(t, store.LoadAdditionalServices(ctx, s, services))
	require.Len(t, services[0].AdditionalServices, 1)
	assert.Equal(t, uint16(2), services[0].AdditionalServices[0].AdditionalServiceID)

	stats, err = Apply(ctx, s, data)
	require.NoError(t, err)
	assert.Equal(t, Stats{Existing: 1}, stats["Service"])
	assert.Equal(t, Stats{Existing: 1}, stats["PriceType"])
}

func TestApplyRejectsInvalidEntities(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"missing id", "PriceType:\n  - Name: Hourly\n", "PriceType #1: missing Id"},
		{"negative id", "PriceType:\n  - Id: -1\n    Name: Hourly\n", "Id must be a positive integer"},
		{"id out of range", "PriceType:\n  - Id: 256\n    Name: Hourly\n", "Id 256 is out of range"},
		{"unknown property", "PriceType:\n  - Id: 1\n    Name: Hourly\n    Rate: 3\n", "PriceType #1"},
		{"failed validation", "Country:\n  - Id: 1\n    Name: Nowhere\n", "Code:"},
		{"missing reference", "Service:\n  - Id: 1\n    Name: Editing\n    PriceTypeId: 9\n", "Service #1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, s := newStore(t)
			data, err := Parse([]byte(tt.yaml))
			require.NoError(t, err)
			_, err = Apply(ctx, s, data)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestApplyInTxRollsBack(t *testing.T) {
	ctx, s := newStore(t)
	data, err := Parse([]byte("PriceType:\n  - Id: 1\n    Name: Hourly\nService:\n  - Id: 1\n    Name: Editing\n    PriceTypeId: 9\n"))
	require.NoError(t, err)

	err = s.InTx(ctx, func(tx *store.Store) error {
		_, err := Apply(ctx, tx, data)
		return err
	})
	require.Error(t, err)

	exists, aerr := store.PriceTypes.Exists(ctx, s, 1)
	require.NoError(t, aerr)
	assert.False(t, exists)
}

func TestSetNames(t *testing.T) {
	assert.Equal(t, []string{
		"AdditionalService", "Applicant", "ApplicantStatus", "Country", "PriceType",
		"ReferralSource", "Service", "Urgency", "WorkLevel",
	}, SetNames())
}
