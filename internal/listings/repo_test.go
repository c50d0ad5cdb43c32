package listings

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/w3bsuki/driplo-final/pkg/db/dbtest"
	"github.com/w3bsuki/driplo-final/pkg/db/models"
	"github.com/w3bsuki/driplo-final/pkg/enums"
)

func TestRepositoryMarkSoldIsConditional(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	ctx := context.Background()

	listing := &models.Listing{
		SellerID:     uuid.New(),
		Title:        "Denim jacket",
		Price:        decimal.RequireFromString("40.00"),
		ShippingCost: decimal.RequireFromString("5.00"),
		Status:       enums.ListingStatusActive,
	}
	require.NoError(t, db.Create(listing).Error)

	now := time.Now().UTC()
	rows, err := repo.MarkSold(ctx, listing.ID, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)

	rows, err = repo.MarkSold(ctx, listing.ID, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(0), rows)

	got, err := repo.FindByID(ctx, listing.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, enums.ListingStatusSold, got.Status)
	require.NotNil(t, got.SoldAt)
	assert.WithinDuration(t, now, *got.SoldAt, time.Second)
}

func TestRepositoryFindByIDMissing(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	got, err := repo.FindByID(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRepositoryMarkSoldSkipsDraft(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)

	listing := &models.Listing{
		SellerID: uuid.New(),
		Title:    "Boots",
		Price:    decimal.NewFromInt(10),
		Status:   enums.ListingStatusDraft,
	}
	require.NoError(t, db.Create(listing).Error)

	rows, err := repo.MarkSold(context.Background(), listing.ID, time.Now())
	require.NoError(t, err)
	assert.Zero(t, rows)
}
