package enrollment

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/outreachly/drip-engine/internal/model"
	"github.com/outreachly/drip-engine/internal/schedule"
	apperrors "github.com/outreachly/drip-engine/pkg/errors"
	"github.com/outreachly/drip-engine/pkg/logger"
)

type fakeEnrollmentRepo struct {
	byID    map[uuid.UUID]*model.Enrollment
	created []*model.Enrollment
	saved   int
	active  bool
}

func (f *fakeEnrollmentRepo) Create(_ context.Context, e *model.Enrollment) error {
	f.created = append(f.created, e)
	return nil
}

func (f *fakeEnrollmentRepo) Get(_ context.Context, id uuid.UUID) (*model.Enrollment, error) {
	if e, ok := f.byID[id]; ok {
		return e, nil
	}
	return nil, apperrors.NotFound("enrollment", nil)
}

func (f *fakeEnrollmentRepo) Save(_ context.Context, _ *model.Enrollment) error {
	f.saved++
	return nil
}

func (f *fakeEnrollmentRepo) FetchDue(_ context.Context, _ time.Time, _ int) ([]*model.Enrollment, error) {
	return nil, nil
}

func (f *fakeEnrollmentRepo) RescheduleAllDue(_ context.Context, _, _ time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeEnrollmentRepo) ActiveForLead(_ context.Context, _, _ uuid.UUID) (bool, error) {
	return f.active, nil
}

type fakeSequenceRepo struct{ seq *model.Sequence }

func (f *fakeSequenceRepo) Get(_ context.Context, _ uuid.UUID) (*model.Sequence, error) {
	return f.seq, nil
}

type fakeLeadRepo struct{ lead *model.Lead }

func (f *fakeLeadRepo) Get(_ context.Context, _ uuid.UUID) (*model.Lead, error) {
	return f.lead, nil
}

type fixture struct {
	svc         *Service
	enrollments *fakeEnrollmentRepo
	sequences   *fakeSequenceRepo
	leads       *fakeLeadRepo
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		enrollments: &fakeEnrollmentRepo{byID: map[uuid.UUID]*model.Enrollment{}},
		sequences: &fakeSequenceRepo{seq: &model.Sequence{
			Kind:   model.EnrollmentKindStatic,
			Status: model.SequenceStatusActive,
			Steps:  []*model.SequenceStep{{StepNumber: 1, DelayHours: 1, Content: "hi {{first}}"}},
		}},
		leads: &fakeLeadRepo{lead: &model.Lead{Phone: "+15550001111"}},
	}
	f.svc = NewService(f.enrollments, f.sequences, f.leads,
		schedule.MustWindow("America/New_York", 21, 9), logger.NewLogger(nil))
	return f
}

func enrollRequest() *EnrollRequest {
	return &EnrollRequest{
		TenantID:   uuid.New(),
		SequenceID: uuid.New(),
		LeadID:     uuid.New(),
		ThreadID:   uuid.New(),
	}
}

func assertAppErrorCode(t *testing.T, err error, code apperrors.ErrorCode) {
	t.Helper()
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, code, appErr.Code)
}

func TestEnroll(t *testing.T) {
	f := newFixture(t)

	e, err := f.svc.Enroll(context.Background(), enrollRequest())
	require.NoError(t, err)

	assert.Equal(t, model.EnrollmentStatusActive, e.Status)
	assert.Equal(t, model.EnrollmentKindStatic, e.Kind)
	assert.Zero(t, e.CurrentStep)
	require.NotNil(t, e.NextSendAt)
	window := schedule.MustWindow("America/New_York", 21, 9)
	want := window.Clamp(time.Now().Add(time.Hour))
	assert.WithinDuration(t, want, *e.NextSendAt, time.Minute,
		"first fire honors the first step's delay, clamped out of quiet hours")
	require.Len(t, f.enrollments.created, 1)
}

func TestEnrollInactiveSequence(t *testing.T) {
	f := newFixture(t)
	f.sequences.seq.Status = model.SequenceStatusDraft

	_, err := f.svc.Enroll(context.Background(), enrollRequest())
	assertAppErrorCode(t, err, apperrors.ErrBadRequest)
}

func TestEnrollOptedOutLead(t *testing.T) {
	f := newFixture(t)
	f.leads.lead.OptedOut = true

	_, err := f.svc.Enroll(context.Background(), enrollRequest())
	assertAppErrorCode(t, err, apperrors.ErrBadRequest)
	assert.Empty(t, f.enrollments.created)
}

func TestEnrollDuplicateConflicts(t *testing.T) {
	f := newFixture(t)
	f.enrollments.active = true

	_, err := f.svc.Enroll(context.Background(), enrollRequest())
	assertAppErrorCode(t, err, apperrors.ErrConflict)
}

func TestEnrollBatchSkipsFailures(t *testing.T) {
	f := newFixture(t)
	reqs := []*EnrollRequest{enrollRequest(), enrollRequest(), enrollRequest()}

	enrolled, failures := f.svc.EnrollBatch(context.Background(), reqs)
	assert.Len(t, enrolled, 3)
	assert.Empty(t, failures)

	f.leads.lead.OptedOut = true
	enrolled, failures = f.svc.EnrollBatch(context.Background(), reqs)
	assert.Empty(t, enrolled)
	assert.Len(t, failures, 3)
}

func TestPauseResume(t *testing.T) {
	f := newFixture(t)
	now := time.Now()
	e := &model.Enrollment{
		ID:         uuid.New(),
		Kind:       model.EnrollmentKindStatic,
		Status:     model.EnrollmentStatusActive,
		NextSendAt: &now,
	}
	f.enrollments.byID[e.ID] = e

	paused, err := f.svc.Pause(context.Background(), e.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EnrollmentStatusPaused, paused.Status)
	assert.Nil(t, paused.NextSendAt, "paused enrollments must not be fetchable as due")

	// Pausing twice is rejected.
	_, err = f.svc.Pause(context.Background(), e.ID)
	assertAppErrorCode(t, err, apperrors.ErrBadRequest)

	resumed, err := f.svc.Resume(context.Background(), e.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EnrollmentStatusActive, resumed.Status)
	require.NotNil(t, resumed.NextSendAt)
}

func TestPauseAIDripRejected(t *testing.T) {
	f := newFixture(t)
	e := &model.Enrollment{ID: uuid.New(), Kind: model.EnrollmentKindAIDrip, Status: model.EnrollmentStatusActive}
	f.enrollments.byID[e.ID] = e

	_, err := f.svc.Pause(context.Background(), e.ID)
	assertAppErrorCode(t, err, apperrors.ErrBadRequest)
}

func TestResumeRequiresPaused(t *testing.T) {
	f := newFixture(t)
	e := &model.Enrollment{ID: uuid.New(), Kind: model.EnrollmentKindStatic, Status: model.EnrollmentStatusActive}
	f.enrollments.byID[e.ID] = e

	_, err := f.svc.Resume(context.Background(), e.ID)
	assertAppErrorCode(t, err, apperrors.ErrBadRequest)
}

func TestCancelIdempotent(t *testing.T) {
	f := newFixture(t)
	now := time.Now()
	e := &model.Enrollment{
		ID:         uuid.New(),
		Kind:       model.EnrollmentKindStatic,
		Status:     model.EnrollmentStatusActive,
		NextSendAt: &now,
	}
	f.enrollments.byID[e.ID] = e

	cancelled, err := f.svc.Cancel(context.Background(), e.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EnrollmentStatusCancelled, cancelled.Status)
	assert.Nil(t, cancelled.NextSendAt)
	savesAfterFirst := f.enrollments.saved

	// A second cancel is a no-op, not an error.
	again, err := f.svc.Cancel(context.Background(), e.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EnrollmentStatusCancelled, again.Status)
	assert.Equal(t, savesAfterFirst, f.enrollments.saved)
}
