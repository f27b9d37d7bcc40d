package usage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/creditmeter-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/creditmeter-backend/pkg/errors"
	"github.com/angelmondragon/creditmeter-backend/pkg/logger"
	"github.com/angelmondragon/creditmeter-backend/pkg/metrics"
	"github.com/angelmondragon/creditmeter-backend/pkg/pagination"
	"github.com/google/uuid"
)

// EventTypeUsageLogged is the analytics event emitted after each append.
const EventTypeUsageLogged = "usage.logged"

// EventPublisher forwards usage events to analytics.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, payload any) error
}

// Service is the usage ledger.
type Service interface {
	// LogUsage appends one event. Failures are logged and swallowed; the
	// returned event is nil when nothing was stored.
	LogUsage(ctx context.Context, input LogUsageInput) *models.UsageEvent
	GetUsageHistory(ctx context.Context, userID uuid.UUID, limit int) ([]models.UsageEvent, error)
}

// LogUsageInput describes one metered operation.
type LogUsageInput struct {
	UserID       uuid.UUID `json:"user_id"`
	Endpoint     string    `json:"endpoint"`
	Model        string    `json:"model"`
	InputTokens  int64     `json:"input_tokens"`
	OutputTokens int64     `json:"output_tokens"`
	CostCents    int64     `json:"cost_cents"`
}

func (in LogUsageInput) validate() error {
	if in.UserID == uuid.Nil {
		return fmt.Errorf("user id is required")
	}
	if strings.TrimSpace(in.Endpoint) == "" {
		return fmt.Errorf("endpoint is required")
	}
	if in.InputTokens < 0 || in.OutputTokens < 0 {
		return fmt.Errorf("token counts must not be negative")
	}
	if in.CostCents < 0 {
		return fmt.Errorf("cost must not be negative")
	}
	return nil
}

// LoggedPayload is the analytics body for EventTypeUsageLogged.
type LoggedPayload struct {
	EventID      uuid.UUID `json:"event_id"`
	UserID       uuid.UUID `json:"user_id"`
	Endpoint     string    `json:"endpoint"`
	Model        string    `json:"model"`
	InputTokens  int64     `json:"input_tokens"`
	OutputTokens int64     `json:"output_tokens"`
	CostCents    int64     `json:"cost_cents"`
	CreatedAt    time.Time `json:"created_at"`
}

func newLoggedPayload(event *models.UsageEvent) LoggedPayload {
	return LoggedPayload{
		EventID:      event.ID,
		UserID:       event.UserID,
		Endpoint:     event.Endpoint,
		Model:        event.Model,
		InputTokens:  event.InputTokens,
		OutputTokens: event.OutputTokens,
		CostCents:    event.CostCents,
		CreatedAt:    event.CreatedAt,
	}
}

type ServiceParams struct {
	Repo      Repository
	Logger    *logger.Logger
	Metrics   *metrics.LedgerMetrics
	Publisher EventPublisher
	Now       func() time.Time
}

type service struct {
	repo      Repository
	logg      *logger.Logger
	metrics   *metrics.LedgerMetrics
	publisher EventPublisher
	now       func() time.Time
}

// NewService wires the usage ledger. Publisher and Metrics are optional.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("usage repository required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:      params.Repo,
		logg:      params.Logger,
		metrics:   params.Metrics,
		publisher: params.Publisher,
		now:       now,
	}, nil
}

func (s *service) LogUsage(ctx context.Context, input LogUsageInput) *models.UsageEvent {
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"user_id":    input.UserID.String(),
		"endpoint":   input.Endpoint,
		"model":      input.Model,
		"cost_cents": input.CostCents,
	})

	if err := input.validate(); err != nil {
		s.metrics.IncUsageFailure("validation")
		s.logg.Error(logCtx, "usage.log.invalid", err)
		return nil
	}

	event := &models.UsageEvent{
		ID:           uuid.New(),
		UserID:       input.UserID,
		Endpoint:     strings.TrimSpace(input.Endpoint),
		Model:        strings.TrimSpace(input.Model),
		InputTokens:  input.InputTokens,
		OutputTokens: input.OutputTokens,
		CostCents:    input.CostCents,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.repo.Create(ctx, event); err != nil {
		s.metrics.IncUsageFailure("storage")
		s.logg.Error(logCtx, "usage.log.store_failed", err)
		return nil
	}

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, EventTypeUsageLogged, newLoggedPayload(event)); err != nil {
			s.metrics.IncUsageFailure("publish")
			s.logg.Warn(s.logg.WithField(logCtx, "error", err.Error()), "usage.log.publish_failed")
		}
	}
	return event
}

func (s *service) GetUsageHistory(ctx context.Context, userID uuid.UUID, limit int) ([]models.UsageEvent, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	events, err := s.repo.ListRecentByUser(ctx, userID, pagination.NormalizeLimit(limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list usage events")
	}
	return events, nil
}
