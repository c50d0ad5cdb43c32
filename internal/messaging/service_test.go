package messaging

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/w3bsuki/driplo-final/internal/listings"
	"github.com/w3bsuki/driplo-final/pkg/db/dbtest"
	"github.com/w3bsuki/driplo-final/pkg/db/models"
	"github.com/w3bsuki/driplo-final/pkg/enums"
	pkgerrors "github.com/w3bsuki/driplo-final/pkg/errors"
	"github.com/w3bsuki/driplo-final/pkg/outbox"
	"github.com/w3bsuki/driplo-final/pkg/pagination"
)

type harness struct {
	db    *gorm.DB
	svc   Service
	clock time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := dbtest.Open(t)
	h := &harness{db: db, clock: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	svc, err := NewService(ServiceParams{
		Tx:       dbtest.TxRunner{DB: db},
		Repo:     NewRepository(db),
		Listings: listings.NewRepository(db),
		Outbox:   outbox.NewService(outbox.NewRepository(db), nil),
		Now: func() time.Time {
			h.clock = h.clock.Add(time.Second)
			return h.clock
		},
	})
	require.NoError(t, err)
	h.svc = svc
	return h
}

func (h *harness) seedListing(t *testing.T) *models.Listing {
	t.Helper()
	listing := &models.Listing{
		SellerID: uuid.New(),
		Title:    "Wool coat",
		Price:    decimal.RequireFromString("60.00"),
		Status:   enums.ListingStatusActive,
	}
	require.NoError(t, h.db.Create(listing).Error)
	return listing
}

func (h *harness) start(t *testing.T, listing *models.Listing, buyer uuid.UUID, msg string) *models.Conversation {
	t.Helper()
	conv, err := h.svc.StartConversation(context.Background(), StartInput{ListingID: listing.ID, BuyerID: buyer, Message: msg})
	require.NoError(t, err)
	return conv
}

func (h *harness) countEvents(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, h.db.Model(&models.OutboxEvent{}).Where("event_type = ?", enums.EventMessageSent).Count(&n).Error)
	return n
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, code, pkgerrors.CodeOf(err))
}

func TestStartConversationReusesThreadForSamePair(t *testing.T) {
	h := newHarness(t)
	listing := h.seedListing(t)
	buyer := uuid.New()

	first := h.start(t, listing, buyer, "  Is this still available?  ")
	assert.Equal(t, listing.SellerID, first.SellerID)
	require.NotNil(t, first.LastMessageAt)

	second := h.start(t, listing, buyer, "Any flaws?")
	assert.Equal(t, first.ID, second.ID)

	thread, err := h.svc.GetConversation(context.Background(), first.ID, buyer)
	require.NoError(t, err)
	require.Len(t, thread.Messages, 2)
	assert.Equal(t, "Is this still available?", thread.Messages[0].Content)
	assert.Equal(t, "Any flaws?", thread.Messages[1].Content)
	assert.Equal(t, int64(2), h.countEvents(t))
}

func TestStartConversationWithoutMessage(t *testing.T) {
	h := newHarness(t)
	listing := h.seedListing(t)

	conv := h.start(t, listing, uuid.New(), "   ")
	assert.Nil(t, conv.LastMessageAt)
	assert.Zero(t, h.countEvents(t))
}

func TestStartConversationRejections(t *testing.T) {
	h := newHarness(t)
	listing := h.seedListing(t)
	ctx := context.Background()

	_, err := h.svc.StartConversation(ctx, StartInput{ListingID: listing.ID, BuyerID: listing.SellerID, Message: "hi"})
	requireCode(t, err, pkgerrors.CodeForbidden)

	_, err = h.svc.StartConversation(ctx, StartInput{ListingID: uuid.New(), BuyerID: uuid.New()})
	requireCode(t, err, pkgerrors.CodeNotFound)

	_, err = h.svc.StartConversation(ctx, StartInput{ListingID: listing.ID, BuyerID: uuid.Nil})
	requireCode(t, err, pkgerrors.CodeUnauthorized)

	_, err = h.svc.StartConversation(ctx, StartInput{ListingID: listing.ID, BuyerID: uuid.New(), Message: strings.Repeat("x", MaxMessageLength+1)})
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestSendMessageValidation(t *testing.T) {
	h := newHarness(t)
	listing := h.seedListing(t)
	buyer := uuid.New()
	conv := h.start(t, listing, buyer, "")
	ctx := context.Background()

	_, err := h.svc.SendMessage(ctx, conv.ID, buyer, " \n\t ")
	requireCode(t, err, pkgerrors.CodeValidation)
	assert.Equal(t, MsgEmptyMessage, pkgerrors.As(err).Message())

	_, err = h.svc.SendMessage(ctx, conv.ID, buyer, strings.Repeat("é", MaxMessageLength+1))
	requireCode(t, err, pkgerrors.CodeValidation)
	assert.Equal(t, MsgMessageTooLong, pkgerrors.As(err).Message())

	msg, err := h.svc.SendMessage(ctx, conv.ID, buyer, strings.Repeat("é", MaxMessageLength))
	require.NoError(t, err)
	assert.False(t, msg.IsRead)

	_, err = h.svc.SendMessage(ctx, conv.ID, uuid.New(), "hello")
	requireCode(t, err, pkgerrors.CodeForbidden)

	_, err = h.svc.SendMessage(ctx, uuid.New(), buyer, "hello")
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestGetConversationMarksOnlyOtherPartyRead(t *testing.T) {
	h := newHarness(t)
	listing := h.seedListing(t)
	buyer := uuid.New()
	ctx := context.Background()

	conv := h.start(t, listing, buyer, "Hi there")
	_, err := h.svc.SendMessage(ctx, conv.ID, listing.SellerID, "Hello, yes it is")
	require.NoError(t, err)

	thread, err := h.svc.GetConversation(ctx, conv.ID, listing.SellerID)
	require.NoError(t, err)
	require.Len(t, thread.Messages, 2)
	assert.True(t, thread.Messages[0].IsRead, "buyer message read by seller")
	assert.NotNil(t, thread.Messages[0].ReadAt)
	assert.False(t, thread.Messages[1].IsRead, "seller's own message stays unread")

	_, err = h.svc.GetConversation(ctx, conv.ID, uuid.New())
	requireCode(t, err, pkgerrors.CodeForbidden)
}

func TestListConversationsUnreadAndArchive(t *testing.T) {
	h := newHarness(t)
	listing := h.seedListing(t)
	buyer := uuid.New()
	seller := listing.SellerID
	ctx := context.Background()

	conv := h.start(t, listing, buyer, "first")
	_, err := h.svc.SendMessage(ctx, conv.ID, buyer, "second")
	require.NoError(t, err)

	page, err := h.svc.ListConversations(ctx, seller, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, page.Conversations, 1)
	assert.Equal(t, int64(2), page.Conversations[0].UnreadCount)

	page, err = h.svc.ListConversations(ctx, buyer, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, page.Conversations, 1)
	assert.Zero(t, page.Conversations[0].UnreadCount)

	require.NoError(t, h.svc.Archive(ctx, conv.ID, seller))

	page, err = h.svc.ListConversations(ctx, seller, pagination.Params{})
	require.NoError(t, err)
	assert.Empty(t, page.Conversations)
	archived, err := h.svc.ListArchived(ctx, seller, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, archived.Conversations, 1)

	page, err = h.svc.ListConversations(ctx, buyer, pagination.Params{})
	require.NoError(t, err)
	assert.Len(t, page.Conversations, 1, "archive only hides the thread for the caller")

	_, err = h.svc.SendMessage(ctx, conv.ID, buyer, "still there?")
	require.NoError(t, err)
	page, err = h.svc.ListConversations(ctx, seller, pagination.Params{})
	require.NoError(t, err)
	assert.Len(t, page.Conversations, 1, "new message unarchives for the recipient")

	require.NoError(t, h.svc.Archive(ctx, conv.ID, buyer))
	require.NoError(t, h.svc.Unarchive(ctx, conv.ID, buyer))
	page, err = h.svc.ListConversations(ctx, buyer, pagination.Params{})
	require.NoError(t, err)
	assert.Len(t, page.Conversations, 1)

	requireCode(t, h.svc.Archive(ctx, uuid.New(), buyer), pkgerrors.CodeNotFound)
}

func TestListConversationsPagesByRecency(t *testing.T) {
	h := newHarness(t)
	seller := uuid.New()
	ctx := context.Background()

	var convs []*models.Conversation
	for i := 0; i < 3; i++ {
		listing := &models.Listing{SellerID: seller, Title: "item", Price: decimal.NewFromInt(10), Status: enums.ListingStatusActive}
		require.NoError(t, h.db.Create(listing).Error)
		convs = append(convs, h.start(t, listing, uuid.New(), "hello"))
	}

	first, err := h.svc.ListConversations(ctx, seller, pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Conversations, 2)
	assert.Equal(t, convs[2].ID, first.Conversations[0].ID)
	assert.Equal(t, convs[1].ID, first.Conversations[1].ID)
	require.NotEmpty(t, first.NextCursor)

	second, err := h.svc.ListConversations(ctx, seller, pagination.Params{Limit: 2, Cursor: first.NextCursor})
	require.NoError(t, err)
	require.Len(t, second.Conversations, 1)
	assert.Equal(t, convs[0].ID, second.Conversations[0].ID)
	assert.Empty(t, second.NextCursor)

	_, err = h.svc.ListConversations(ctx, seller, pagination.Params{Cursor: "%%%"})
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestNewServiceRequiresCollaborators(t *testing.T) {
	_, err := NewService(ServiceParams{})
	require.Error(t, err)
}
