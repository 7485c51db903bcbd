package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/architeacher/svc-msg-queue/internal/adapters/http/handlers"
	"github.com/architeacher/svc-msg-queue/internal/domain"
	"github.com/architeacher/svc-msg-queue/internal/infrastructure"
	"github.com/architeacher/svc-msg-queue/internal/ports"
	"github.com/architeacher/svc-msg-queue/pkg/queue"
)

// RequestHandler exposes a queue and the service health over HTTP.
type RequestHandler struct {
	queue         queue.Queue
	healthChecker ports.HealthChecker
	logger        infrastructure.Logger
}

func NewRequestHandler(q queue.Queue, healthChecker ports.HealthChecker, logger infrastructure.Logger) *RequestHandler {
	return &RequestHandler{
		queue:         q,
		healthChecker: healthChecker,
		logger:        logger,
	}
}

var _ handlers.ServerInterface = (*RequestHandler)(nil)

func (h *RequestHandler) DescribeQueue(w http.ResponseWriter, _ *http.Request) {
	capabilities := h.queue.Capabilities()

	h.writeJSON(w, http.StatusOK, handlers.QueueResponse{
		Id:    h.queue.ID(),
		Label: h.queue.Label(),
		Capabilities: handlers.Capabilities{
			Peek:          capabilities.Peek,
			Reservation:   capabilities.Reservation,
			Subscriptions: capabilities.Subscriptions,
		},
	})
}

// PutMessage stamps the message with the X-Sender-ID header when one is sent.
func (h *RequestHandler) PutMessage(w http.ResponseWriter, r *http.Request, params handlers.PutMessageParams) {
	var req handlers.PutMessageJSONRequestBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, "bad_request", "Invalid request body", err.Error())

		return
	}

	ctx := r.Context()
	if params.XSenderID != nil {
		ctx = queue.ContextWithSender(ctx, *params.XSenderID)
	}

	ok, err := h.queue.Put(ctx, req.Body, queue.WithCategory(deref(req.Category)))
	if err != nil {
		h.writeQueueError(w, "Failed to put message", err)

		return
	}

	status := http.StatusAccepted
	if !ok {
		status = http.StatusConflict
	}

	h.writeJSON(w, status, handlers.PutResponse{Accepted: ok})
}

func (h *RequestHandler) PeekMessages(w http.ResponseWriter, r *http.Request, params handlers.PeekMessagesParams) {
	opts, err := peekOptions(params)
	if err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, "bad_request", "Invalid query parameters", err.Error())

		return
	}

	msgs, err := h.queue.Peek(r.Context(), opts...)
	if err != nil {
		h.writeQueueError(w, "Failed to peek messages", err)

		return
	}

	h.writeJSON(w, http.StatusOK, orEmpty(msgs))
}

func (h *RequestHandler) PullMessages(w http.ResponseWriter, r *http.Request) {
	var req handlers.PullMessagesJSONRequestBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, "bad_request", "Invalid request body", err.Error())

		return
	}

	opts := []queue.ReadOption{queue.WithSubscriber(deref(req.SubscriberId))}
	if req.Limit != nil {
		opts = append(opts, queue.WithLimit(*req.Limit))
	}

	if reservation := deref(req.Reservation); reservation != "" {
		d, err := time.ParseDuration(reservation)
		if err != nil || d <= 0 {
			h.writeErrorResponse(w, http.StatusBadRequest, "bad_request", "Invalid reservation", reservation)

			return
		}

		opts = append(opts, queue.WithReservation(d))
	}

	msgs, err := h.queue.Pull(r.Context(), opts...)
	if err != nil && len(msgs) == 0 {
		h.writeQueueError(w, "Failed to pull messages", err)

		return
	}

	if err != nil {
		h.logger.Warn().Err(err).Int("count", len(msgs)).Msg("pull returned partial result")
	}

	h.writeJSON(w, http.StatusOK, orEmpty(msgs))
}

func (h *RequestHandler) DeleteMessages(w http.ResponseWriter, r *http.Request) {
	h.updateMessages(w, r, "Failed to delete messages", h.queue.Delete)
}

func (h *RequestHandler) ReleaseMessages(w http.ResponseWriter, r *http.Request) {
	h.updateMessages(w, r, "Failed to release messages", h.queue.Release)
}

func (h *RequestHandler) ReleaseTimedoutMessages(w http.ResponseWriter, r *http.Request) {
	ids, err := h.queue.ReleaseTimedout(r.Context())
	if err != nil {
		h.writeQueueError(w, "Failed to release timed out messages", err)

		return
	}

	h.writeJSON(w, http.StatusOK, handlers.IDsResponse{Ids: orEmpty(ids)})
}

func (h *RequestHandler) ListSubscriptions(w http.ResponseWriter, r *http.Request, params handlers.ListSubscriptionsParams) {
	subs, err := h.queue.Subscriptions(r.Context(), deref(params.SubscriberId))
	if err != nil {
		h.writeQueueError(w, "Failed to list subscriptions", err)

		return
	}

	h.writeJSON(w, http.StatusOK, orEmpty(subs))
}

func (h *RequestHandler) Subscribe(w http.ResponseWriter, r *http.Request, subscriberID string) {
	var req handlers.SubscribeJSONRequestBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, "bad_request", "Invalid request body", err.Error())

		return
	}

	err := h.queue.Subscribe(r.Context(), subscriberID, deref(req.Label), deref(req.Categories), deref(req.Exceptions))
	if err != nil {
		h.writeQueueError(w, "Failed to subscribe", err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *RequestHandler) Unsubscribe(w http.ResponseWriter, r *http.Request, subscriberID string) {
	// An empty body removes the whole subscription.
	var req handlers.UnsubscribeJSONRequestBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.writeErrorResponse(w, http.StatusBadRequest, "bad_request", "Invalid request body", err.Error())

		return
	}

	if err := h.queue.Unsubscribe(r.Context(), subscriberID, deref(req.Categories)); err != nil {
		h.writeQueueError(w, "Failed to unsubscribe", err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *RequestHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	result := h.healthChecker.CheckHealth(r.Context())

	statusCode := http.StatusOK
	if result.OverallStatus == domain.HealthResponseStatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	h.writeJSON(w, statusCode, result)
}

func (h *RequestHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	result := h.healthChecker.CheckReadiness(r.Context())

	statusCode := http.StatusOK
	if result.OverallStatus == domain.ReadinessResponseStatusNotReady {
		statusCode = http.StatusServiceUnavailable
	}

	h.writeJSON(w, statusCode, result)
}

func (h *RequestHandler) LivenessCheck(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, handlers.LivenessResponse{Status: handlers.Alive})
}

// HandleParamError answers requests whose parameters could not be bound.
func (h *RequestHandler) HandleParamError(w http.ResponseWriter, _ *http.Request, err error) {
	h.writeErrorResponse(w, http.StatusBadRequest, "bad_request", "Invalid parameters", err.Error())
}

func (h *RequestHandler) updateMessages(
	w http.ResponseWriter,
	r *http.Request,
	failure string,
	fn func(ctx context.Context, ids ...string) ([]string, error),
) {
	var req handlers.IDsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, "bad_request", "Invalid request body", err.Error())

		return
	}

	ids, err := fn(r.Context(), req.Ids...)
	if err != nil {
		h.writeQueueError(w, failure, err)

		return
	}

	h.writeJSON(w, http.StatusOK, handlers.IDsResponse{Ids: orEmpty(ids)})
}

// writeQueueError maps queue errors onto HTTP status codes.
func (h *RequestHandler) writeQueueError(w http.ResponseWriter, message string, err error) {
	switch {
	case errors.Is(err, queue.ErrUnsupported):
		h.writeErrorResponse(w, http.StatusNotImplemented, "not_implemented", message, err.Error())
	case errors.Is(err, queue.ErrMissingSubscriber):
		h.writeErrorResponse(w, http.StatusBadRequest, "bad_request", message, err.Error())
	case errors.Is(err, ErrBackendUnavailable):
		h.writeErrorResponse(w, http.StatusServiceUnavailable, "service_unavailable", message, err.Error())
	default:
		h.logger.Error().Err(err).Msg(message)
		h.writeErrorResponse(w, http.StatusInternalServerError, "internal_server_error", message, err.Error())
	}
}

func (h *RequestHandler) writeErrorResponse(w http.ResponseWriter, statusCode int, errorType, message, details string) {
	resp := handlers.ErrorResponse{
		Error:      errorType,
		Message:    message,
		StatusCode: statusCode,
		Timestamp:  time.Now().UTC(),
	}

	if details != "" {
		resp.Details = &details
	}

	h.writeJSON(w, statusCode, resp)
}

func (h *RequestHandler) writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error().Err(err).Msg("failed to encode response")
	}
}

func peekOptions(params handlers.PeekMessagesParams) ([]queue.ReadOption, error) {
	opts := []queue.ReadOption{queue.WithSubscriber(deref(params.SubscriberId))}

	if params.Limit != nil {
		opts = append(opts, queue.WithLimit(*params.Limit))
	}

	if params.Status != nil {
		status, err := queue.ParseStatus(string(*params.Status))
		if err != nil {
			return nil, err
		}

		opts = append(opts, queue.WithStatus(status))
	}

	return opts, nil
}

func deref[T any](value *T) T {
	if value == nil {
		var zero T

		return zero
	}

	return *value
}

func orEmpty[T any](values []T) []T {
	if values == nil {
		return []T{}
	}

	return values
}
