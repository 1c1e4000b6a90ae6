package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/kursadbilgin/push-fanout/internal/domain"
	"github.com/kursadbilgin/push-fanout/internal/observability"
	"github.com/kursadbilgin/push-fanout/internal/queue"
	"github.com/kursadbilgin/push-fanout/internal/repository"
	"go.uber.org/zap"
)

const (
	defaultMessageTitle  = "Yeni Mesaj"
	defaultMessageBody   = "Bir mesaj aldınız"
	defaultRequesterName = "Birisi"

	invitationTitle = "Etkinlik Davetiyesi"
	badgeTitle      = "🏆 Yeni Rozet Kazandınız!"
	friendTitle     = "Arkadaşlık İsteği"
	eventTitle      = "Etkinlik Güncelleme"
	testTitle       = "Test Bildirimi"
	testBody        = "Bu bir test bildirimidir. Sistem düzgün çalışıyor!"

	updateTypeEventDetails = "event_details"
)

var payloadValidator = validator.New()

// Trigger results reported as metric labels.
const (
	resultDispatched = "dispatched"
	resultSuppressed = "suppressed"
	resultAborted    = "aborted"
	resultFailed     = "failed"
	resultPanicked   = "panicked"
)

// EventHandlers resolve recipients and build intents for each entry point, then hand off to the Dispatcher.
type EventHandlers struct {
	dispatcher *Dispatcher
	users      repository.UserRepository
	chats      repository.ChatRepository
	events     repository.EventRepository
	badges     repository.BadgeRepository
	logger     *zap.Logger
	metrics    *observability.Metrics
}

func NewEventHandlers(
	dispatcher *Dispatcher,
	users repository.UserRepository,
	chats repository.ChatRepository,
	events repository.EventRepository,
	badges repository.BadgeRepository,
	logger *zap.Logger,
) (*EventHandlers, error) {
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if users == nil || chats == nil || events == nil || badges == nil {
		return nil, fmt.Errorf("all repositories are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &EventHandlers{
		dispatcher: dispatcher,
		users:      users,
		chats:      chats,
		events:     events,
		badges:     badges,
		logger:     logger,
	}, nil
}

func (h *EventHandlers) SetMetrics(metrics *observability.Metrics) {
	if h == nil {
		return
	}
	h.metrics = metrics
}

// HandleTrigger decodes a broker message and runs the matching trigger. Only a payload
// that cannot be decoded for its kind is returned as an error.
func (h *EventHandlers) HandleTrigger(ctx context.Context, msg queue.TriggerMessage) error {
	correlationID := msg.CorrelationID
	if correlationID == "" {
		correlationID = msg.ID
	}
	ctx = observability.WithCorrelationID(ctx, correlationID)

	switch msg.Kind {
	case domain.TriggerMessageCreated:
		var evt domain.MessageCreated
		if err := decodePayload(msg, &evt); err != nil {
			return err
		}
		h.OnMessageCreated(ctx, evt)
	case domain.TriggerInvitationCreated:
		var evt domain.InvitationCreated
		if err := decodePayload(msg, &evt); err != nil {
			return err
		}
		h.OnInvitationCreated(ctx, evt)
	case domain.TriggerBadgeEarned:
		var evt domain.BadgeEarned
		if err := decodePayload(msg, &evt); err != nil {
			return err
		}
		h.OnBadgeEarned(ctx, evt)
	case domain.TriggerFriendRequestCreated:
		var evt domain.FriendRequestCreated
		if err := decodePayload(msg, &evt); err != nil {
			return err
		}
		h.OnFriendRequestCreated(ctx, evt)
	case domain.TriggerEventUpdated:
		var evt domain.EventUpdated
		if err := decodePayload(msg, &evt); err != nil {
			return err
		}
		h.OnEventUpdated(ctx, evt)
	default:
		return fmt.Errorf("%w: unsupported trigger kind %q", domain.ErrValidation, msg.Kind)
	}

	return nil
}

func decodePayload(msg queue.TriggerMessage, target any) error {
	if err := json.Unmarshal(msg.Payload, target); err != nil {
		return fmt.Errorf("%w: invalid %s payload: %v", domain.ErrValidation, msg.Kind, err)
	}
	if err := payloadValidator.Struct(target); err != nil {
		return fmt.Errorf("%w: incomplete %s payload: %v", domain.ErrValidation, msg.Kind, err)
	}
	return nil
}

func (h *EventHandlers) OnMessageCreated(ctx context.Context, evt domain.MessageCreated) {
	h.runBestEffort(ctx, domain.TriggerMessageCreated, func(ctx context.Context) (bool, error) {
		chat, err := h.chats.GetByID(ctx, evt.ChatID)
		if err != nil {
			return false, fmt.Errorf("chat %q: %w", evt.ChatID, err)
		}

		recipients := make([]string, 0, len(chat.Participants))
		for _, participant := range chat.Participants {
			if participant != evt.SenderID {
				recipients = append(recipients, participant)
			}
		}

		actionURL := "/chat/" + evt.ChatID
		intent := domain.Intent{
			Title: orDefault(evt.SenderName, defaultMessageTitle),
			Body:  orDefault(evt.Text, defaultMessageBody),
			Type:  domain.TypeNewMessage,
			Data: map[string]string{
				"chatId":    evt.ChatID,
				"messageId": evt.MessageID,
				"senderId":  evt.SenderID,
				"actionUrl": actionURL,
			},
			ActionURL: &actionURL,
		}

		h.dispatcher.Dispatch(ctx, recipients, intent)
		return true, nil
	})
}

func (h *EventHandlers) OnInvitationCreated(ctx context.Context, evt domain.InvitationCreated) {
	h.runBestEffort(ctx, domain.TriggerInvitationCreated, func(ctx context.Context) (bool, error) {
		event, err := h.events.GetByID(ctx, evt.EventID)
		if err != nil {
			return false, fmt.Errorf("event %q: %w", evt.EventID, err)
		}

		actionURL := "/event/" + evt.EventID
		intent := domain.Intent{
			Title: invitationTitle,
			Body:  fmt.Sprintf("%s etkinliğine davet edildiniz", event.Title),
			Type:  domain.TypeEventInvitation,
			Data: map[string]string{
				"eventId":      evt.EventID,
				"invitationId": evt.InvitationID,
				"inviterId":    evt.InviterID,
				"actionUrl":    actionURL,
			},
			ActionURL: &actionURL,
		}

		h.dispatcher.Dispatch(ctx, []string{evt.InviteeID}, intent)
		return true, nil
	})
}

func (h *EventHandlers) OnBadgeEarned(ctx context.Context, evt domain.BadgeEarned) {
	h.runBestEffort(ctx, domain.TriggerBadgeEarned, func(ctx context.Context) (bool, error) {
		badge, err := h.badges.GetByID(ctx, evt.BadgeID)
		if err != nil {
			return false, fmt.Errorf("badge %q: %w", evt.BadgeID, err)
		}

		actionURL := "/profile"
		intent := domain.Intent{
			Title: badgeTitle,
			Body:  fmt.Sprintf("\"%s\" rozetini kazandınız", badge.Name),
			Type:  domain.TypeBadgeEarned,
			Data: map[string]string{
				"badgeId":   evt.BadgeID,
				"badgeName": badge.Name,
				"actionUrl": actionURL,
			},
			ActionURL: &actionURL,
		}

		h.dispatcher.Dispatch(ctx, []string{evt.UserID}, intent)
		return true, nil
	})
}

func (h *EventHandlers) OnFriendRequestCreated(ctx context.Context, evt domain.FriendRequestCreated) {
	h.runBestEffort(ctx, domain.TriggerFriendRequestCreated, func(ctx context.Context) (bool, error) {
		requester, err := h.users.GetByID(ctx, evt.FromUserID)
		if err != nil {
			return false, fmt.Errorf("requester %q: %w", evt.FromUserID, err)
		}

		name := orDefault(requester.DisplayName, defaultRequesterName)
		actionURL := "/friend-requests"
		intent := domain.Intent{
			Title: friendTitle,
			Body:  fmt.Sprintf("%s size arkadaşlık isteği gönderdi", name),
			Type:  domain.TypeFriendRequest,
			Data: map[string]string{
				"requestId":     evt.RequestID,
				"requesterId":   evt.FromUserID,
				"requesterName": requester.DisplayName,
				"actionUrl":     actionURL,
			},
			ActionURL: &actionURL,
		}

		h.dispatcher.Dispatch(ctx, []string{evt.ToUserID}, intent)
		return true, nil
	})
}

func (h *EventHandlers) OnEventUpdated(ctx context.Context, evt domain.EventUpdated) {
	h.runBestEffort(ctx, domain.TriggerEventUpdated, func(ctx context.Context) (bool, error) {
		if !evt.Before.HasImportantChange(evt.After) {
			return false, nil
		}

		participants, err := h.events.ListAcceptedParticipantIDs(ctx, evt.EventID)
		if err != nil {
			return false, fmt.Errorf("participants of event %q: %w", evt.EventID, err)
		}

		actionURL := "/event/" + evt.EventID
		intent := domain.Intent{
			Title: eventTitle,
			Body:  fmt.Sprintf("\"%s\" etkinliğinde güncelleme yapıldı", evt.After.Title),
			Type:  domain.TypeEventUpdate,
			Data: map[string]string{
				"eventId":    evt.EventID,
				"updateType": updateTypeEventDetails,
				"actionUrl":  actionURL,
			},
			ActionURL: &actionURL,
		}

		h.dispatcher.Dispatch(ctx, participants, intent)
		return true, nil
	})
}

// runBestEffort runs one trigger to completion. Errors and panics are logged and never returned.
func (h *EventHandlers) runBestEffort(ctx context.Context, kind domain.TriggerKind, fn func(ctx context.Context) (bool, error)) {
	ctx = observability.WithTrigger(ctx, kind.String())
	logger := observability.WithContextLogger(h.logger, ctx)

	result := resultFailed
	defer func() {
		if r := recover(); r != nil {
			result = resultPanicked
			logger.Error("trigger handler panicked", zap.Any("panic", r))
		}
		h.metrics.IncTriggerHandled(kind.String(), result)
	}()

	dispatched, err := fn(ctx)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		result = resultAborted
		logger.Info("trigger aborted: referenced entity not found", zap.Error(err))
	case err != nil:
		result = resultFailed
		logger.Error("trigger handler failed", zap.Error(err))
	case !dispatched:
		result = resultSuppressed
		logger.Debug("trigger suppressed")
	default:
		result = resultDispatched
	}
}

type BroadcastRequest struct {
	Title string
	Body  string
	// TargetUsers nil means every user; a non-nil empty slice means nobody.
	TargetUsers *[]string
	Data        map[string]string
}

type BroadcastResult struct {
	// Recipients is the size of the resolved target list as given, duplicates included.
	Recipients int
	Summary    domain.Summary
}

// Broadcast sends a system announcement and waits for every dispatch to settle.
func (h *EventHandlers) Broadcast(ctx context.Context, req BroadcastRequest) (BroadcastResult, error) {
	if strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.Body) == "" {
		return BroadcastResult{}, fmt.Errorf("%w: title and body are required", domain.ErrValidation)
	}

	var recipients []string
	if req.TargetUsers != nil {
		recipients = *req.TargetUsers
	} else {
		ids, err := h.users.ListIDs(ctx)
		if err != nil {
			return BroadcastResult{}, fmt.Errorf("failed to list users: %w", err)
		}
		recipients = ids
	}

	data := make(map[string]string, len(req.Data))
	for k, v := range req.Data {
		data[k] = v
	}

	intent := domain.Intent{
		Title: req.Title,
		Body:  req.Body,
		Type:  domain.TypeSystemAnnouncement,
		Data:  data,
	}

	outcomes := h.dispatcher.Dispatch(ctx, recipients, intent)
	summary := domain.Summarize(outcomes)

	observability.WithContextLogger(h.logger, ctx).Info("system announcement dispatched",
		zap.Int("recipients", summary.Total),
		zap.Int("sent", summary.Sent),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
	)

	return BroadcastResult{Recipients: len(recipients), Summary: summary}, nil
}

// SendTest dispatches the fixed test notification to one user.
func (h *EventHandlers) SendTest(ctx context.Context, userID string) (domain.Outcome, error) {
	trimmed := strings.TrimSpace(userID)
	if trimmed == "" {
		return domain.Outcome{}, fmt.Errorf("%w: user id is required", domain.ErrValidation)
	}

	intent := domain.Intent{
		Title: testTitle,
		Body:  testBody,
		Type:  domain.TypeSystemAnnouncement,
		Data:  map[string]string{"test": "true"},
	}

	outcomes := h.dispatcher.Dispatch(ctx, []string{trimmed}, intent)
	if len(outcomes) != 1 {
		return domain.Outcome{}, fmt.Errorf("expected one outcome, got %d", len(outcomes))
	}
	return outcomes[0], nil
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
