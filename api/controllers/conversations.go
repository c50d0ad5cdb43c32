package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/w3bsuki/driplo-final/api/middleware"
	"github.com/w3bsuki/driplo-final/api/responses"
	"github.com/w3bsuki/driplo-final/api/validators"
	"github.com/w3bsuki/driplo-final/internal/messaging"
	"github.com/w3bsuki/driplo-final/pkg/db/models"
	pkgerrors "github.com/w3bsuki/driplo-final/pkg/errors"
	"github.com/w3bsuki/driplo-final/pkg/logger"
	"github.com/w3bsuki/driplo-final/pkg/pagination"
)

type conversationDTO struct {
	ID               uuid.UUID  `json:"id"`
	ListingID        uuid.UUID  `json:"listing_id"`
	BuyerID          uuid.UUID  `json:"buyer_id"`
	SellerID         uuid.UUID  `json:"seller_id"`
	LastMessageAt    *time.Time `json:"last_message_at,omitempty"`
	ArchivedByBuyer  bool       `json:"archived_by_buyer"`
	ArchivedBySeller bool       `json:"archived_by_seller"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	UnreadCount      *int64     `json:"unread_count,omitempty"`
}

type messageDTO struct {
	ID             uuid.UUID  `json:"id"`
	ConversationID uuid.UUID  `json:"conversation_id"`
	SenderID       uuid.UUID  `json:"sender_id"`
	Content        string     `json:"content"`
	IsRead         bool       `json:"is_read"`
	ReadAt         *time.Time `json:"read_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

type conversationPageDTO struct {
	Conversations []conversationDTO `json:"conversations"`
	NextCursor    string            `json:"next_cursor,omitempty"`
}

type conversationThreadDTO struct {
	Conversation conversationDTO `json:"conversation"`
	Messages     []messageDTO    `json:"messages"`
}

func toConversationDTO(c models.Conversation) conversationDTO {
	return conversationDTO{
		ID:               c.ID,
		ListingID:        c.ListingID,
		BuyerID:          c.BuyerID,
		SellerID:         c.SellerID,
		LastMessageAt:    c.LastMessageAt,
		ArchivedByBuyer:  c.ArchivedByBuyer,
		ArchivedBySeller: c.ArchivedBySeller,
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
	}
}

func toMessageDTO(m models.Message) messageDTO {
	return messageDTO{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Content:        m.Content,
		IsRead:         m.IsRead,
		ReadAt:         m.ReadAt,
		CreatedAt:      m.CreatedAt,
	}
}

func toPageDTO(page *messaging.Page) conversationPageDTO {
	out := conversationPageDTO{Conversations: make([]conversationDTO, 0)}
	if page == nil {
		return out
	}
	for _, summary := range page.Conversations {
		dto := toConversationDTO(summary.Conversation)
		unread := summary.UnreadCount
		dto.UnreadCount = &unread
		out.Conversations = append(out.Conversations, dto)
	}
	out.NextCursor = page.NextCursor
	return out
}

func parsePageParams(r *http.Request) (pagination.Params, error) {
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return pagination.Params{}, err
	}
	return pagination.Params{
		Limit:  limit,
		Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
	}, nil
}

func conversationIDParam(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "conversationId"))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "conversation id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid conversation id")
	}
	return id, nil
}

// ListConversations returns the caller's active threads, most recent first.
func ListConversations(svc messaging.Service, logg *logger.Logger) http.HandlerFunc {
	return listConversations(svc, logg, false)
}

// ListArchivedConversations returns the threads the caller has archived.
func ListArchivedConversations(svc messaging.Service, logg *logger.Logger) http.HandlerFunc {
	return listConversations(svc, logg, true)
}

func listConversations(svc messaging.Service, logg *logger.Logger, archived bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "messaging service unavailable"))
			return
		}

		params, err := parsePageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		userID := middleware.UserUUIDFromContext(r.Context())
		var page *messaging.Page
		if archived {
			page, err = svc.ListArchived(r.Context(), userID, params)
		} else {
			page, err = svc.ListConversations(r.Context(), userID, params)
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toPageDTO(page))
	}
}

type startConversationRequest struct {
	ListingID uuid.UUID `json:"listing_id" validate:"required"`
	Message   string    `json:"message,omitempty"`
}

// StartConversation opens (or reuses) the caller's thread about a listing.
func StartConversation(svc messaging.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "messaging service unavailable"))
			return
		}

		var payload startConversationRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		conv, err := svc.StartConversation(r.Context(), messaging.StartInput{
			ListingID: payload.ListingID,
			BuyerID:   middleware.UserUUIDFromContext(r.Context()),
			Message:   payload.Message,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toConversationDTO(*conv))
	}
}

// GetConversation returns a thread with its messages and marks the counterpart's messages read.
func GetConversation(svc messaging.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "messaging service unavailable"))
			return
		}

		convID, err := conversationIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		thread, err := svc.GetConversation(r.Context(), convID, middleware.UserUUIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := conversationThreadDTO{
			Conversation: toConversationDTO(thread.Conversation),
			Messages:     make([]messageDTO, 0, len(thread.Messages)),
		}
		for _, msg := range thread.Messages {
			out.Messages = append(out.Messages, toMessageDTO(msg))
		}
		responses.WriteSuccess(w, out)
	}
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

func SendMessage(svc messaging.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "messaging service unavailable"))
			return
		}

		convID, err := conversationIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload sendMessageRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		msg, err := svc.SendMessage(r.Context(), convID, middleware.UserUUIDFromContext(r.Context()), payload.Content)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toMessageDTO(*msg))
	}
}

func ArchiveConversation(svc messaging.Service, logg *logger.Logger) http.HandlerFunc {
	return setArchived(svc, logg, true)
}

func UnarchiveConversation(svc messaging.Service, logg *logger.Logger) http.HandlerFunc {
	return setArchived(svc, logg, false)
}

func setArchived(svc messaging.Service, logg *logger.Logger, archived bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "messaging service unavailable"))
			return
		}

		convID, err := conversationIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		userID := middleware.UserUUIDFromContext(r.Context())
		if archived {
			err = svc.Archive(r.Context(), convID, userID)
		} else {
			err = svc.Unarchive(r.Context(), convID, userID)
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"archived": archived})
	}
}
