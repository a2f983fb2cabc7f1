package store

import (
	"context"
	"errors"
	"testing"

	"github.com/jokizilla/jokizilla/internal/jokizillasrv/db/dberror"
	"github.com/jokizilla/jokizilla/internal/jokizillasrv/db/dbtest"
	"github.com/jokizilla/jokizilla/internal/jokizillasrv/db/models"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) (context.Context, *Store) {
	ctx := log.Logger.WithContext(context.Background())
	return ctx, New(dbtest.NewConn(t))
}

func strPtr(s string) *string { return &s }

func TestInsertAssignsKey(t *testing.T) {
	ctx, s := newStore(t)

	first := &models.PriceType{Name: "Hourly"}
	require.NoError(t, PriceTypes.Insert(ctx, s, first))
	second := &models.PriceType{Name: "Fixed", Description: strPtr("one price")}
	require.NoError(t, PriceTypes.Insert(ctx, s, second))

	assert.Equal(t, uint8(1), first.ID)
	assert.Equal(t, uint8(2), second.ID)

	got, err := PriceTypes.Get(ctx, s, 2)
	require.NoError(t, err)
	assert.Equal(t, "Fixed", got.Name)
	require.NotNil(t, got.Description)
	assert.Equal(t, "one price", *got.Description)
}

func TestInsertExplicitKey(t *testing.T) {
	ctx, s := newStore(t)

	require.NoError(t, Countries.Insert(ctx, s, &models.Country{ID: 40, Name: "Austria", Code: "AT"}))

	err := Countries.Insert(ctx, s, &models.Country{ID: 40, Name: "Australia", Code: "AU"})
	require.Error(t, err)
	assert.ErrorIs(t, err, dberror.ErrAlreadyExists)

	// keys assigned afterwards continue past the explicit one
	next := &models.Country{Name: "Belgium", Code: "BE"}
	require.NoError(t, Countries.Insert(ctx, s, next))
	assert.Equal(t, uint16(41), next.ID)
}

func TestInsertReferenceViolation(t *testing.T) {
	ctx, s := newStore(t)

	err := Services.Insert(ctx, s, &models.Service{Name: "Translation", PriceTypeID: 9})
	require.Error(t, err)
	assert.ErrorIs(t, err, dberror.ErrReferenceViolation)
}

func TestGetExistsNotFound(t *testing.T) {
	ctx, s := newStore(t)

	row, err := Urgencies.Get(ctx, s, 3)
	assert.Nil(t, row)
	assert.ErrorIs(t, err, dberror.ErrNotFound)

	ok, err := Urgencies.Exists(ctx, s, 3)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, Urgencies.Insert(ctx, s, &models.Urgency{ID: 3, Name: "High", PriceMultiplier: 1.5}))
	ok, err = Urgencies.Exists(ctx, s, 3)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUpdateAndDelete(t *testing.T) {
	ctx, s := newStore(t)

	w := &models.WorkLevel{Name: "Junior", PriceMultiplier: 1}
	require.NoError(t, WorkLevels.Insert(ctx, s, w))

	w.Name = "Intermediate"
	w.PriceMultiplier = 1.25
	require.NoError(t, WorkLevels.Update(ctx, s, w))

	got, err := WorkLevels.Get(ctx, s, uint64(w.ID))
	require.NoError(t, err)
	assert.Equal(t, "Intermediate", got.Name)
	assert.InDelta(t, 1.25, got.PriceMultiplier, 1e-9)

	assert.ErrorIs(t, WorkLevels.Update(ctx, s, &models.WorkLevel{ID: 99, Name: "x", PriceMultiplier: 1}), dberror.ErrNotFound)

	require.NoError(t, WorkLevels.Delete(ctx, s, uint64(w.ID)))
	assert.ErrorIs(t, WorkLevels.Delete(ctx, s, uint64(w.ID)), dberror.ErrNotFound)
}

func TestListAndCount(t *testing.T) {
	ctx, s := newStore(t)

	for _, name := range []string{"Web", "Friend", "Newspaper", "Fair"} {
		require.NoError(t, ReferralSources.Insert(ctx, s, &models.ReferralSource{Name: name}))
	}

	rows, err := ReferralSources.List(ctx, s, Query{
		Where:   "name LIKE ?",
		Args:    []any{"F%"},
		OrderBy: []Order{{Column: "name", Desc: true}},
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Friend", rows[0].Name)
	assert.Equal(t, "Fair", rows[1].Name)

	rows, err = ReferralSources.List(ctx, s, Query{OrderBy: []Order{{Column: "id"}}, Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, uint8(2), rows[0].ID)
	assert.Equal(t, uint8(3), rows[1].ID)

	rows, err = ReferralSources.List(ctx, s, Query{OrderBy: []Order{{Column: "id"}}, Offset: 3})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Fair", rows[0].Name)

	n, err := ReferralSources.Count(ctx, s, "")
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	n, err = ReferralSources.Count(ctx, s, "name = ?", "Web")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = ReferralSources.List(ctx, s, Query{OrderBy: []Order{{Column: "name; DROP TABLE x"}}})
	assert.ErrorIs(t, err, dberror.ErrInvalidInput)
}

func TestListEmptyIsNotNil(t *testing.T) {
	ctx, s := newStore(t)
	rows, err := Applicants.List(ctx, s, Query{})
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestNullableColumns(t *testing.T) {
	ctx, s := newStore(t)

	require.NoError(t, Countries.Insert(ctx, s, &models.Country{Name: "Croatia", Code: "HR", PhoneCode: strPtr("+385")}))
	require.NoError(t, ApplicantStatuses.Insert(ctx, s, &models.ApplicantStatus{Name: "New"}))

	a := &models.Applicant{FirstName: "Ana", LastName: "Horvat", Email: "ana@example.com", CountryID: 1, ApplicantStatusID: 1}
	require.NoError(t, Applicants.Insert(ctx, s, a))

	got, err := Applicants.Get(ctx, s, uint64(a.ID))
	require.NoError(t, err)
	assert.Nil(t, got.Phone)
	assert.Nil(t, got.ReferralSourceID)
	assert.Nil(t, got.Notes)
}

func TestInTxRollsBack(t *testing.T) {
	ctx, s := newStore(t)

	errBoom := errors.New("boom")
	err := s.InTx(ctx, func(tx *Store) error {
		if err := PriceTypes.Insert(ctx, tx, &models.PriceType{Name: "Hourly"}); err != nil {
			return err
		}
		return errBoom
	})
	assert.ErrorIs(t, err, errBoom)

	n, cerr := PriceTypes.Count(ctx, s, "")
	require.NoError(t, cerr)
	assert.Zero(t, n)

	require.NoError(t, s.InTx(ctx, func(tx *Store) error {
		return PriceTypes.Insert(ctx, tx, &models.PriceType{Name: "Hourly"})
	}))
	n, cerr = PriceTypes.Count(ctx, s, "")
	require.NoError(t, cerr)
	assert.Equal(t, int64(1), n)
}

func TestAdditionalServices(t *testing.T) {
	ctx, s := newStore(t)

	require.NoError(t, PriceTypes.Insert(ctx, s, &models.PriceType{Name: "Fixed"}))
	for _, name := range []string{"Express", "Proofreading", "Formatting"} {
		require.NoError(t, AdditionalServices.Insert(ctx, s, &models.AdditionalService{Name: name, Price: 10}))
	}
	svc := &models.Service{Name: "Translation", Price: 100, PriceTypeID: 1}
	require.NoError(t, Services.Insert(ctx, s, svc))
	other := &models.Service{Name: "Editing", Price: 50, PriceTypeID: 1}
	require.NoError(t, Services.Insert(ctx, s, other))

	require.NoError(t, s.InTx(ctx, func(tx *Store) error {
		return ReplaceAdditionalServices(ctx, tx, svc.ID, []uint16{3, 1, 3})
	}))

	list := []models.Service{*svc, *other}
	require.NoError(t, LoadAdditionalServices(ctx, s, list))
	require.Len(t, list[0].AdditionalServices, 2)
	assert.Equal(t, uint16(1), list[0].AdditionalServices[0].AdditionalServiceID)
	assert.Equal(t, "Express", list[0].AdditionalServices[0].AdditionalService.Name)
	assert.Equal(t, uint16(3), list[0].AdditionalServices[1].AdditionalServiceID)
	assert.NotNil(t, list[1].AdditionalServices)
	assert.Empty(t, list[1].AdditionalServices)

	err := s.InTx(ctx, func(tx *Store) error {
		return ReplaceAdditionalServices(ctx, tx, svc.ID, []uint16{2, 42})
	})
	assert.ErrorIs(t, err, dberror.ErrReferenceViolation)

	// the failed replacement left the original links in place
	list = []models.Service{*svc}
	require.NoError(t, LoadAdditionalServices(ctx, s, list))
	assert.Len(t, list[0].AdditionalServices, 2)

	// deleting an additional service cascades to the join rows
	require.NoError(t, AdditionalServices.Delete(ctx, s, 1))
	list = []models.Service{*svc}
	require.NoError(t, LoadAdditionalServices(ctx, s, list))
	require.Len(t, list[0].AdditionalServices, 1)
	assert.Equal(t, uint16(3), list[0].AdditionalServices[0].AdditionalServiceID)
}

func TestNewTablePanicsWithoutKey(t *testing.T) {
	type keyless struct {
		Name string `db:"name"`
	}
	assert.Panics(t, func() { NewTable[keyless]("keyless") })
}

func TestTableColumns(t *testing.T) {
	assert.Equal(t, []string{"id", "name", "description", "price", "price_type_id"}, Services.Columns())
	assert.False(t, Services.HasColumn("additional_services"))
	assert.Equal(t, 16, Services.KeyBits())

	svc := &models.Service{}
	Services.SetKey(svc, 7)
	assert.Equal(t, uint16(7), svc.ID)
	assert.Equal(t, uint64(7), Services.Key(svc))
}
