package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/push-fanout/internal/domain"
	"github.com/kursadbilgin/push-fanout/internal/observability"
	"github.com/kursadbilgin/push-fanout/internal/service"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 100

	msgMethodNotAllowed   = "Method not allowed"
	msgTitleBodyRequired  = "Title and body are required"
	msgUserIDRequired     = "User ID is required"
	msgInvalidRequestBody = "invalid request body"
	msgTestSent           = "Test notification sent successfully"
)

type NotificationService interface {
	Broadcast(ctx context.Context, req service.BroadcastRequest) (service.BroadcastResult, error)
	SendTest(ctx context.Context, userID string) (domain.Outcome, error)
}

type HistoryReader interface {
	ListByUser(ctx context.Context, userID string, limit int) ([]domain.DeliveryRecord, error)
}

type NotificationHandler struct {
	service NotificationService
	history HistoryReader
}

func NewNotificationHandler(service NotificationService, history HistoryReader) (*NotificationHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("notification service is required")
	}
	if history == nil {
		return nil, fmt.Errorf("history reader is required")
	}
	return &NotificationHandler{service: service, history: history}, nil
}

func RegisterNotificationRoutes(router fiber.Router, service NotificationService, history HistoryReader) error {
	h, err := NewNotificationHandler(service, history)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.All("/announcements", h.Broadcast)
	v1.Post("/notifications/test", h.SendTest)
	v1.Get("/users/:id/notifications", h.ListHistory)

	return nil
}

type broadcastRequest struct {
	Title       string         `json:"title"`
	Body        string         `json:"body"`
	TargetUsers *[]string      `json:"targetUsers"`
	Data        map[string]any `json:"data"`
}

type broadcastResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Sent    int    `json:"sent"`
	Skipped int    `json:"skipped"`
	Failed  int    `json:"failed"`
}

type testSendRequest struct {
	UserID string `json:"userId"`
}

type testSendResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	Status     string `json:"status"`
	SkipReason string `json:"skipReason,omitempty"`
	DeliveryID string `json:"deliveryId,omitempty"`
}

type historyResponse struct {
	Data []deliveryRecordResponse `json:"data"`
}

type deliveryRecordResponse struct {
	ID         string            `json:"id"`
	DeliveryID string            `json:"deliveryId"`
	Title      string            `json:"title"`
	Body       string            `json:"body"`
	Type       string            `json:"type"`
	Data       map[string]string `json:"data"`
	Timestamp  time.Time         `json:"timestamp"`
	IsRead     bool              `json:"isRead"`
	ImageURL   *string           `json:"imageUrl,omitempty"`
	ActionURL  *string           `json:"actionUrl,omitempty"`
}

// Broadcast is mounted for every method so non-POST requests get the JSON 405 body.
func (h *NotificationHandler) Broadcast(c *fiber.Ctx) error {
	if c.Method() != fiber.MethodPost {
		return c.Status(fiber.StatusMethodNotAllowed).JSON(fiber.Map{"error": msgMethodNotAllowed})
	}

	var req broadcastRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, msgInvalidRequestBody)
		}
	}
	if strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.Body) == "" {
		return fiber.NewError(fiber.StatusBadRequest, msgTitleBodyRequired)
	}

	data, err := stringifyData(req.Data)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, msgInvalidRequestBody)
	}

	result, err := h.service.Broadcast(requestContext(c), service.BroadcastRequest{
		Title:       req.Title,
		Body:        req.Body,
		TargetUsers: req.TargetUsers,
		Data:        data,
	})
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			return fiber.NewError(fiber.StatusBadRequest, msgTitleBodyRequired)
		}
		return err
	}

	return c.Status(fiber.StatusOK).JSON(broadcastResponse{
		Success: true,
		Message: fmt.Sprintf("System announcement sent to %d users", result.Recipients),
		Sent:    result.Summary.Sent,
		Skipped: result.Summary.Skipped,
		Failed:  result.Summary.Failed,
	})
}

func (h *NotificationHandler) SendTest(c *fiber.Ctx) error {
	var req testSendRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, msgInvalidRequestBody)
		}
	}
	if strings.TrimSpace(req.UserID) == "" {
		return fiber.NewError(fiber.StatusBadRequest, msgUserIDRequired)
	}

	outcome, err := h.service.SendTest(requestContext(c), req.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			return fiber.NewError(fiber.StatusBadRequest, msgUserIDRequired)
		}
		return err
	}

	return c.Status(fiber.StatusOK).JSON(testSendResponse{
		Success:    true,
		Message:    msgTestSent,
		Status:     outcome.Status.String(),
		SkipReason: string(outcome.SkipReason),
		DeliveryID: outcome.DeliveryID,
	})
}

func (h *NotificationHandler) ListHistory(c *fiber.Ctx) error {
	userID := strings.TrimSpace(c.Params("id"))
	if userID == "" {
		return fiber.NewError(fiber.StatusBadRequest, msgUserIDRequired)
	}

	limit, err := parseLimit(c.Query("limit"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	records, err := h.history.ListByUser(requestContext(c), userID, limit)
	if err != nil {
		return err
	}

	response := historyResponse{Data: make([]deliveryRecordResponse, 0, len(records))}
	for _, r := range records {
		response.Data = append(response.Data, deliveryRecordResponse{
			ID:         r.ID,
			DeliveryID: r.DeliveryID,
			Title:      r.Title,
			Body:       r.Body,
			Type:       r.Type.String(),
			Data:       r.Data,
			Timestamp:  r.Timestamp,
			IsRead:     r.IsRead,
			ImageURL:   r.ImageURL,
			ActionURL:  r.ActionURL,
		})
	}

	return c.Status(fiber.StatusOK).JSON(response)
}

func parseLimit(raw string) (int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return defaultHistoryLimit, nil
	}

	limit, err := strconv.Atoi(trimmed)
	if err != nil || limit < 1 {
		return 0, fmt.Errorf("limit must be a positive integer")
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return limit, nil
}

// stringifyData keeps string values and JSON-encodes everything else.
func stringifyData(data map[string]any) (map[string]string, error) {
	out := make(map[string]string, len(data))
	for k, v := range data {
		if s, ok := v.(string); ok {
			out[k] = s
			continue
		}
		encoded, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		out[k] = string(encoded)
	}
	return out, nil
}

func requestContext(c *fiber.Ctx) context.Context {
	return observability.WithCorrelationID(c.UserContext(), requestCorrelationID(c))
}

func requestCorrelationID(c *fiber.Ctx) string {
	if value := strings.TrimSpace(c.Get(fiber.HeaderXRequestID)); value != "" {
		return value
	}
	if value, ok := c.Locals("requestid").(string); ok {
		return strings.TrimSpace(value)
	}
	return ""
}
