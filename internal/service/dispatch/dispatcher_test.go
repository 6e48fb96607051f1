package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/outreachly/drip-engine/internal/model"
	"github.com/outreachly/drip-engine/internal/schedule"
	"github.com/outreachly/drip-engine/internal/service/resolver"
	apperrors "github.com/outreachly/drip-engine/pkg/errors"
	"github.com/outreachly/drip-engine/pkg/logger"
	"github.com/outreachly/drip-engine/pkg/metrics"
	"github.com/outreachly/drip-engine/pkg/sms"
)

type fakeSender struct {
	err      error
	requests []sms.SendRequest
}

func (f *fakeSender) Send(_ context.Context, req sms.SendRequest) (*sms.SendResult, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &sms.SendResult{ProviderID: "prov-123"}, nil
}

type fakeTenantRepo struct {
	balance  int64
	deducted []int64
}

func (f *fakeTenantRepo) Get(_ context.Context, id uuid.UUID) (*model.Tenant, error) {
	return &model.Tenant{ID: id, Credits: f.balance}, nil
}

func (f *fakeTenantRepo) Deduct(_ context.Context, _ uuid.UUID, amount int64) (int64, error) {
	f.deducted = append(f.deducted, amount)
	f.balance -= amount
	if f.balance < 0 {
		f.balance = 0
	}
	return f.balance, nil
}

func (f *fakeTenantRepo) MarkLowCreditAlerted(_ context.Context, _ uuid.UUID) error {
	return nil
}

type fakeMessageRepo struct {
	appended []*model.ThreadMessage
}

func (f *fakeMessageRepo) GetRecent(_ context.Context, _ uuid.UUID, _ int) ([]*model.ThreadMessage, error) {
	return nil, nil
}

func (f *fakeMessageRepo) AppendOutbound(_ context.Context, msg *model.ThreadMessage) error {
	f.appended = append(f.appended, msg)
	return nil
}

type fakeNotifier struct {
	notified []uuid.UUID
}

func (f *fakeNotifier) NotifyLowCredit(_ context.Context, tenantID uuid.UUID) error {
	f.notified = append(f.notified, tenantID)
	return nil
}

type dispatchFixture struct {
	d       *Dispatcher
	sender  *fakeSender
	tenants *fakeTenantRepo
	msgs    *fakeMessageRepo
	alerts  *fakeNotifier
}

func newFixture(t *testing.T, cfg Config) *dispatchFixture {
	t.Helper()
	f := &dispatchFixture{
		sender:  &fakeSender{},
		tenants: &fakeTenantRepo{balance: 100},
		msgs:    &fakeMessageRepo{},
		alerts:  &fakeNotifier{},
	}
	window := schedule.MustWindow("America/New_York", 21, 9)
	f.d = NewDispatcher(f.sender, f.tenants, f.msgs, window, f.alerts, cfg, metrics.NewNop(), logger.NewLogger(nil))
	return f
}

func activeEnrollment(kind model.EnrollmentKind) *model.Enrollment {
	return &model.Enrollment{
		ID:         uuid.New(),
		TenantID:   uuid.New(),
		LeadID:     uuid.New(),
		SequenceID: uuid.New(),
		ThreadID:   uuid.New(),
		Kind:       kind,
		Status:     model.EnrollmentStatusActive,
	}
}

func threeStepSequence() *model.Sequence {
	return &model.Sequence{
		Kind: model.EnrollmentKindStatic,
		Steps: []*model.SequenceStep{
			{StepNumber: 1, Content: "one"},
			{StepNumber: 2, DelayDays: 3, Content: "two"},
			{StepNumber: 3, DelayDays: 4, Content: "three"},
		},
	}
}

// Noon eastern, comfortably inside the send window.
var noon = time.Date(2026, 8, 12, 16, 0, 0, 0, time.UTC)

func TestDispatchDoNotContact(t *testing.T) {
	f := newFixture(t, Config{})
	e := activeEnrollment(model.EnrollmentKindStatic)

	err := f.d.Dispatch(context.Background(), noon, e, threeStepSequence(),
		&model.Lead{Phone: "+15550001111", OptedOut: true}, &resolver.Content{Body: "hi"})
	assert.ErrorIs(t, err, apperrors.ErrDoNotContact)
	assert.Empty(t, f.sender.requests, "opted-out leads must never reach the carrier")
}

func TestDispatchMissingPhoneIsDoNotContact(t *testing.T) {
	f := newFixture(t, Config{})
	e := activeEnrollment(model.EnrollmentKindStatic)

	err := f.d.Dispatch(context.Background(), noon, e, threeStepSequence(),
		&model.Lead{}, &resolver.Content{Body: "hi"})
	assert.ErrorIs(t, err, apperrors.ErrDoNotContact)
}

func TestDispatchSendFailureLeavesEnrollmentUntouched(t *testing.T) {
	f := newFixture(t, Config{})
	f.sender.err = errors.New("carrier 503")
	e := activeEnrollment(model.EnrollmentKindStatic)

	err := f.d.Dispatch(context.Background(), noon, e, threeStepSequence(),
		&model.Lead{Phone: "+15550001111"}, &resolver.Content{Body: "hi"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, apperrors.ErrDoNotContact)

	assert.Equal(t, 0, e.CurrentStep)
	assert.Equal(t, 0, e.MessagesSent)
	assert.Empty(t, f.tenants.deducted, "failed sends must not cost credits")
	assert.Empty(t, f.msgs.appended)
}

func TestDispatchSuccessAdvancesAndMeters(t *testing.T) {
	f := newFixture(t, Config{CostPerMessage: 2})
	e := activeEnrollment(model.EnrollmentKindStatic)
	e.SendAttempts = 3
	prev := "carrier 503"
	e.LastError = &prev

	err := f.d.Dispatch(context.Background(), noon, e, threeStepSequence(),
		&model.Lead{Phone: "+15550001111", FirstName: "Sam"}, &resolver.Content{Body: "hello"})
	require.NoError(t, err)

	assert.Equal(t, 1, e.CurrentStep)
	assert.Equal(t, 1, e.MessagesSent)
	assert.Equal(t, model.EnrollmentStatusActive, e.Status)
	assert.Zero(t, e.SendAttempts, "a success resets the retry counter")
	assert.Nil(t, e.LastError)

	require.NotNil(t, e.NextSendAt)
	assert.Equal(t, noon.Add(3*24*time.Hour), e.NextSendAt.UTC())

	require.Len(t, f.tenants.deducted, 1)
	assert.Equal(t, int64(2), f.tenants.deducted[0])

	require.Len(t, f.msgs.appended, 1)
	assert.Equal(t, "hello", f.msgs.appended[0].Body)
	require.NotNil(t, f.msgs.appended[0].ProviderID)
	assert.Equal(t, "prov-123", *f.msgs.appended[0].ProviderID)
	assert.Empty(t, f.alerts.notified)
}

func TestDispatchLastStepCompletes(t *testing.T) {
	f := newFixture(t, Config{})
	e := activeEnrollment(model.EnrollmentKindStatic)
	e.CurrentStep = 2
	e.MessagesSent = 2

	err := f.d.Dispatch(context.Background(), noon, e, threeStepSequence(),
		&model.Lead{Phone: "+15550001111"}, &resolver.Content{Body: "three"})
	require.NoError(t, err)

	assert.Equal(t, model.EnrollmentStatusCompleted, e.Status)
	assert.Nil(t, e.NextSendAt)
	require.NotNil(t, e.CompletedAt)
}

func TestDispatchNextFireClampedOutOfQuietHours(t *testing.T) {
	f := newFixture(t, Config{})
	e := activeEnrollment(model.EnrollmentKindStatic)
	e.CurrentStep = 1
	e.MessagesSent = 1

	// 19:00 eastern + the next step's 4d4h delay lands at 23:00 eastern,
	// inside quiet hours, so the fire time must be pushed to 09:00.
	evening := time.Date(2026, 8, 12, 23, 0, 0, 0, time.UTC)
	seq := threeStepSequence()
	seq.Steps[2].DelayDays = 4
	seq.Steps[2].DelayHours = 4

	err := f.d.Dispatch(context.Background(), evening, e, seq,
		&model.Lead{Phone: "+15550001111"}, &resolver.Content{Body: "two"})
	require.NoError(t, err)

	require.NotNil(t, e.NextSendAt)
	eastern, loadErr := time.LoadLocation("America/New_York")
	require.NoError(t, loadErr)
	local := e.NextSendAt.In(eastern)
	assert.Equal(t, 9, local.Hour())
	assert.Equal(t, 0, local.Minute())
}

func TestDispatchDripDelayAndCap(t *testing.T) {
	f := newFixture(t, Config{DripDelay: 48 * time.Hour})
	e := activeEnrollment(model.EnrollmentKindAIDrip)
	e.MaxMessages = 5
	e.MessagesSent = 2

	err := f.d.Dispatch(context.Background(), noon, e, &model.Sequence{Kind: model.EnrollmentKindAIDrip},
		&model.Lead{Phone: "+15550001111"}, &resolver.Content{Body: "follow up"})
	require.NoError(t, err)

	assert.Equal(t, model.EnrollmentStatusActive, e.Status)
	require.NotNil(t, e.NextSendAt)
	assert.Equal(t, noon.Add(48*time.Hour), e.NextSendAt.UTC())

	// Last allowed message completes the drip.
	e.MessagesSent = 4
	err = f.d.Dispatch(context.Background(), noon, e, &model.Sequence{Kind: model.EnrollmentKindAIDrip},
		&model.Lead{Phone: "+15550001111"}, &resolver.Content{Body: "final"})
	require.NoError(t, err)
	assert.Equal(t, model.EnrollmentStatusCompleted, e.Status)
	assert.Nil(t, e.NextSendAt)
}

func TestDispatchZeroBalanceTriggersAlert(t *testing.T) {
	f := newFixture(t, Config{CostPerMessage: 1})
	f.tenants.balance = 1
	e := activeEnrollment(model.EnrollmentKindStatic)

	err := f.d.Dispatch(context.Background(), noon, e, threeStepSequence(),
		&model.Lead{Phone: "+15550001111"}, &resolver.Content{Body: "hi"})
	require.NoError(t, err)

	require.Len(t, f.alerts.notified, 1)
	assert.Equal(t, e.TenantID, f.alerts.notified[0])
}
