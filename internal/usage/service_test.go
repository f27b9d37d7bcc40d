package usage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/creditmeter-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/creditmeter-backend/pkg/errors"
	"github.com/angelmondragon/creditmeter-backend/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := conn.AutoMigrate(&models.UsageEvent{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

type stepClock struct {
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.now = c.now.Add(time.Second)
	return c.now
}

type recordingPublisher struct {
	events []string
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, eventType string, payload any) error {
	p.events = append(p.events, eventType)
	if _, ok := payload.(LoggedPayload); !ok {
		return fmt.Errorf("unexpected payload %T", payload)
	}
	return p.err
}

func newTestService(t *testing.T, repo Repository, pub EventPublisher) (Service, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	svc, err := NewService(ServiceParams{
		Repo:      repo,
		Logger:    logger.New(logger.Options{ServiceName: "test", Output: buf, Format: "json"}),
		Publisher: pub,
		Now:       (&stepClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}).Now,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, buf
}

func TestLogUsageAndHistoryNewestFirst(t *testing.T) {
	pub := &recordingPublisher{}
	svc, _ := newTestService(t, NewRepository(openTestDB(t)), pub)
	ctx := context.Background()
	user := uuid.New()
	other := uuid.New()

	for i, cost := range []int64{10, 20, 30} {
		event := svc.LogUsage(ctx, LogUsageInput{
			UserID:       user,
			Endpoint:     "completions",
			Model:        "gpt-4o",
			InputTokens:  int64(100 * (i + 1)),
			OutputTokens: 50,
			CostCents:    cost,
		})
		if event == nil {
			t.Fatalf("expected event %d to be stored", i)
		}
	}
	svc.LogUsage(ctx, LogUsageInput{UserID: other, Endpoint: "completions", Model: "gpt-4o", CostCents: 99})

	history, err := svc.GetUsageHistory(ctx, user, 2)
	if err != nil {
		t.Fatalf("GetUsageHistory: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 events, got %d", len(history))
	}
	if history[0].CostCents != 30 || history[1].CostCents != 20 {
		t.Fatalf("expected newest first, got %d then %d", history[0].CostCents, history[1].CostCents)
	}

	all, err := svc.GetUsageHistory(ctx, user, 0)
	if err != nil {
		t.Fatalf("GetUsageHistory: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("default limit should return all 3 events, got %d", len(all))
	}
	if len(pub.events) != 4 || pub.events[0] != EventTypeUsageLogged {
		t.Fatalf("expected 4 published events, got %v", pub.events)
	}
}

type failingRepo struct{}

func (failingRepo) Create(context.Context, *models.UsageEvent) error {
	return errors.New("disk full")
}
func (failingRepo) ListRecentByUser(context.Context, uuid.UUID, int) ([]models.UsageEvent, error) {
	return nil, errors.New("disk full")
}

func TestLogUsageSwallowsStorageErrors(t *testing.T) {
	pub := &recordingPublisher{}
	svc, buf := newTestService(t, failingRepo{}, pub)

	event := svc.LogUsage(context.Background(), LogUsageInput{
		UserID:    uuid.New(),
		Endpoint:  "completions",
		Model:     "gpt-4o",
		CostCents: 5,
	})
	if event != nil {
		t.Fatalf("expected nil event on storage failure")
	}
	if !strings.Contains(buf.String(), "usage.log.store_failed") {
		t.Fatalf("expected failure to be logged, got %s", buf.String())
	}
	if len(pub.events) != 0 {
		t.Fatalf("nothing should be published when the append fails")
	}

	if _, err := svc.GetUsageHistory(context.Background(), uuid.New(), 10); !pkgerrors.Is(err, pkgerrors.CodeDependency) {
		t.Fatalf("history errors must be reported, got %v", err)
	}
}

func TestLogUsageRejectsInvalidInputWithoutPanicking(t *testing.T) {
	svc, buf := newTestService(t, NewRepository(openTestDB(t)), nil)

	if event := svc.LogUsage(context.Background(), LogUsageInput{Endpoint: "completions"}); event != nil {
		t.Fatalf("expected nil event for missing user")
	}
	if event := svc.LogUsage(context.Background(), LogUsageInput{UserID: uuid.New(), Endpoint: "completions", CostCents: -1}); event != nil {
		t.Fatalf("expected nil event for negative cost")
	}
	if !strings.Contains(buf.String(), "usage.log.invalid") {
		t.Fatalf("expected invalid input to be logged")
	}
}

func TestLogUsageKeepsEventWhenPublishFails(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("topic gone")}
	svc, buf := newTestService(t, NewRepository(openTestDB(t)), pub)

	event := svc.LogUsage(context.Background(), LogUsageInput{UserID: uuid.New(), Endpoint: "completions", Model: "gpt-4o", CostCents: 1})
	if event == nil {
		t.Fatalf("publish failures must not drop the stored event")
	}
	if !strings.Contains(buf.String(), "usage.log.publish_failed") {
		t.Fatalf("expected publish failure warning")
	}
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	if _, err := NewService(ServiceParams{Logger: logger.Nop()}); err == nil {
		t.Fatal("expected missing repo error")
	}
	if _, err := NewService(ServiceParams{Repo: failingRepo{}}); err == nil {
		t.Fatal("expected missing logger error")
	}
}
