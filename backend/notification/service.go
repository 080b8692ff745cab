package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/corvid/threadview/backend/event"
	"github.com/corvid/threadview/shared"
)

// SendRequest describes one notification to deliver.
type SendRequest struct {
	UserID    string         `json:"user_id"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Type      string         `json:"type"`
	Category  string         `json:"category,omitempty"`
	ThreadID  string         `json:"thread_id,omitempty"`
	SendEmail bool           `json:"send_email"`
	SendPush  bool           `json:"send_push"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// SendResult reports what actually went out.
type SendResult struct {
	NotificationID string `json:"notification_id"`
	EmailSent      bool   `json:"email_sent"`
	PushSent       bool   `json:"push_sent"`
}

// Service delivers notifications through email and push, gated by per-user
// preferences. The notification record is persisted before any delivery
// attempt so a crashed delivery never loses the record.
type Service struct {
	store   Store
	pusher  Pusher
	mailer  Mailer
	bus     *event.Bus
	limiter *rate.Limiter
	logger  *slog.Logger
}

type ServiceOption func(*Service)

func WithBus(bus *event.Bus) ServiceOption {
	return func(s *Service) { s.bus = bus }
}

func WithBatchRateLimit(limit rate.Limit, burst int) ServiceOption {
	return func(s *Service) { s.limiter = rate.NewLimiter(limit, burst) }
}

func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = logger }
}

func NewService(store Store, pusher Pusher, mailer Mailer, opts ...ServiceOption) *Service {
	s := &Service{
		store:   store,
		pusher:  pusher,
		mailer:  mailer,
		limiter: rate.NewLimiter(rate.Limit(5), 10),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send persists and delivers one notification.
func (s *Service) Send(ctx context.Context, req SendRequest) (SendResult, error) {
	if req.UserID == "" {
		return SendResult{}, shared.Errorf(shared.ErrorSourceNotifier, "user id is required")
	}
	if req.Type == "" {
		req.Type = TypeInfo
	}

	prefs, err := s.store.GetPreferences(ctx, req.UserID)
	if err != nil {
		return SendResult{}, shared.Wrap(shared.ErrorSourceNotifier, err, "load preferences")
	}

	record, err := s.store.Insert(ctx, Notification{
		UserID:   req.UserID,
		Title:    req.Title,
		Message:  req.Message,
		Type:     req.Type,
		Category: req.Category,
		ThreadID: req.ThreadID,
		Metadata: req.Metadata,
	})
	if err != nil {
		return SendResult{}, shared.Wrap(shared.ErrorSourceNotifier, err, "persist notification")
	}

	update := s.deliver(ctx, req, prefs, record.ID)

	if err := s.store.UpdateDelivery(ctx, record.ID, update); err != nil {
		s.logger.ErrorContext(ctx, "failed to record delivery status",
			"notification_id", record.ID, "error", err)
	}

	if s.bus != nil {
		event.Publish(s.bus, event.NotificationSentEvent{
			NotificationID: record.ID,
			UserID:         req.UserID,
			Type:           req.Type,
			EmailSent:      update.EmailSent,
			PushSent:       update.PushSent,
		})
	}

	return SendResult{
		NotificationID: record.ID,
		EmailSent:      update.EmailSent,
		PushSent:       update.PushSent,
	}, nil
}

func (s *Service) deliver(ctx context.Context, req SendRequest, prefs Preferences, notificationID string) DeliveryUpdate {
	var update DeliveryUpdate

	if req.SendEmail && prefs.AllowsEmail(req.Category) {
		switch {
		case prefs.Email == "":
			update.EmailError = "no email address on file"
		default:
			err := s.sendEmail(ctx, prefs.Email, req)
			if err != nil {
				update.EmailError = err.Error()
				s.logger.ErrorContext(ctx, "email delivery failed",
					"notification_id", notificationID, "error", err)
			} else {
				now := time.Now().UTC()
				update.EmailSent = true
				update.EmailSentAt = &now
			}
		}
	}

	if req.SendPush && prefs.AllowsPush(req.Category) && prefs.PushToken != "" {
		err := s.sendPush(ctx, prefs.PushToken, req, notificationID)
		if err != nil {
			update.PushError = err.Error()
			s.logger.ErrorContext(ctx, "push delivery failed",
				"notification_id", notificationID, "error", err)

			// A dead token is cleared so the app re-registers on next open.
			if errors.Is(err, ErrTokenInvalid) {
				if clearErr := s.store.ClearPushToken(ctx, req.UserID, prefs.PushToken); clearErr != nil {
					s.logger.ErrorContext(ctx, "failed to clear invalid push token",
						"user_id", req.UserID, "error", clearErr)
				}
			}
		} else {
			now := time.Now().UTC()
			update.PushSent = true
			update.PushSentAt = &now
		}
	}

	return update
}

func (s *Service) sendEmail(ctx context.Context, to string, req SendRequest) error {
	email, err := RenderEmail(to, req.Title, req.Message, req.Type)
	if err != nil {
		return err
	}
	return s.mailer.Send(ctx, email)
}

func (s *Service) sendPush(ctx context.Context, token string, req SendRequest, notificationID string) error {
	return s.pusher.Send(ctx, PushMessage{
		To:    token,
		Title: req.Title,
		Body:  req.Message,
		Data: map[string]any{
			"notification_id": notificationID,
			"thread_id":       req.ThreadID,
		},
		Sound:    "default",
		Priority: "default",
		Channel:  "default",
		Badge:    1,
	})
}

// BatchOutcome is the per-user result of a batch send.
type BatchOutcome struct {
	UserID         string `json:"user_id"`
	NotificationID string `json:"notification_id,omitempty"`
	EmailSent      bool   `json:"email_sent"`
	PushSent       bool   `json:"push_sent"`
	Error          string `json:"error,omitempty"`
}

// CreateBatch persists a pending batch record. Delivery happens in RunBatch,
// so the admin call returns immediately with the batch id.
func (s *Service) CreateBatch(ctx context.Context, userIDs []string, req SendRequest) (Batch, error) {
	if len(userIDs) == 0 {
		return Batch{}, shared.Errorf(shared.ErrorSourceNotifier, "batch needs at least one recipient")
	}
	if req.Type == "" {
		req.Type = TypeInfo
	}

	batch, err := s.store.InsertBatch(ctx, Batch{
		Title:     req.Title,
		Message:   req.Message,
		Type:      req.Type,
		Category:  req.Category,
		SendEmail: req.SendEmail,
		SendPush:  req.SendPush,
		Metadata:  req.Metadata,
		UserIDs:   userIDs,
	})
	if err != nil {
		return Batch{}, shared.Wrap(shared.ErrorSourceNotifier, err, "persist batch")
	}
	return batch, nil
}

// RunBatch delivers a pending batch, paced by the batch rate limiter. The
// stored status is re-read before every recipient, so a cancel takes effect
// at the next checkpoint. A failed recipient does not stop the batch.
func (s *Service) RunBatch(ctx context.Context, batchID string) ([]BatchOutcome, error) {
	if err := s.store.MarkBatchSending(ctx, batchID); err != nil {
		if errors.Is(err, ErrBatchFinished) {
			// Cancelled before the first send.
			return nil, nil
		}
		return nil, shared.Wrap(shared.ErrorSourceNotifier, err, "start batch")
	}

	batch, err := s.store.GetBatch(ctx, batchID)
	if err != nil {
		return nil, shared.Wrap(shared.ErrorSourceNotifier, err, "load batch")
	}

	req := SendRequest{
		Title:     batch.Title,
		Message:   batch.Message,
		Type:      batch.Type,
		Category:  batch.Category,
		SendEmail: batch.SendEmail,
		SendPush:  batch.SendPush,
		Metadata:  batch.Metadata,
	}

	outcomes := make([]BatchOutcome, 0, len(batch.UserIDs))
	for _, userID := range batch.UserIDs {
		current, err := s.store.GetBatch(ctx, batchID)
		if err != nil {
			return outcomes, shared.Wrap(shared.ErrorSourceNotifier, err, "check batch status")
		}
		if current.Status == BatchCancelled {
			s.logger.InfoContext(ctx, "batch cancelled",
				"batch_id", batchID, "delivered", len(outcomes), "recipients", len(batch.UserIDs))
			return outcomes, nil
		}

		if err := s.limiter.Wait(ctx); err != nil {
			return outcomes, fmt.Errorf("batch interrupted: %w", err)
		}

		userReq := req
		userReq.UserID = userID

		result, err := s.Send(ctx, userReq)
		outcome := BatchOutcome{UserID: userID}
		if err != nil {
			outcome.Error = err.Error()
		} else {
			outcome.NotificationID = result.NotificationID
			outcome.EmailSent = result.EmailSent
			outcome.PushSent = result.PushSent
		}
		outcomes = append(outcomes, outcome)

		stats := Summarize(outcomes)
		if err := s.store.UpdateBatchProgress(ctx, batchID, BatchProgress{
			EmailsSent: stats.EmailSent,
			PushesSent: stats.PushSent,
			Failed:     stats.Failed,
			Outcomes:   outcomes,
		}); err != nil {
			s.logger.ErrorContext(ctx, "failed to record batch progress",
				"batch_id", batchID, "error", err)
		}
	}

	if _, err := s.store.CompleteBatch(ctx, batchID); err != nil {
		s.logger.ErrorContext(ctx, "failed to complete batch",
			"batch_id", batchID, "error", err)
	}
	return outcomes, nil
}

// Stats summarizes batch outcomes for the admin surface.
type Stats struct {
	Total     int `json:"total"`
	EmailSent int `json:"email_sent"`
	PushSent  int `json:"push_sent"`
	Failed    int `json:"failed"`
}

func Summarize(outcomes []BatchOutcome) Stats {
	stats := Stats{Total: len(outcomes)}
	for _, o := range outcomes {
		if o.Error != "" {
			stats.Failed++
			continue
		}
		if o.EmailSent {
			stats.EmailSent++
		}
		if o.PushSent {
			stats.PushSent++
		}
	}
	return stats
}
