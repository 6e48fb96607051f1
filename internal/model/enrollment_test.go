package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnrollmentComplete(t *testing.T) {
	now := time.Date(2026, 8, 12, 16, 0, 0, 0, time.UTC)
	fire := now.Add(time.Hour)
	e := &Enrollment{Status: EnrollmentStatusActive, NextSendAt: &fire}

	e.Complete(now)
	assert.Equal(t, EnrollmentStatusCompleted, e.Status)
	assert.Nil(t, e.NextSendAt)
	require.NotNil(t, e.CompletedAt)
	assert.True(t, e.Terminal())

	// A second Complete keeps the first completion timestamp.
	first := *e.CompletedAt
	e.Complete(now.Add(time.Hour))
	assert.Equal(t, first, *e.CompletedAt)
}

func TestEnrollmentCancel(t *testing.T) {
	now := time.Now()
	fire := now.Add(time.Hour)
	e := &Enrollment{Status: EnrollmentStatusActive, NextSendAt: &fire}

	e.Cancel(now, "cancelled by user")
	assert.Equal(t, EnrollmentStatusCancelled, e.Status)
	assert.Nil(t, e.NextSendAt)
	require.NotNil(t, e.LastError)
	assert.Equal(t, "cancelled by user", *e.LastError)
	assert.True(t, e.Terminal())
}

func TestEnrollmentExpired(t *testing.T) {
	now := time.Now()
	e := &Enrollment{}
	assert.False(t, e.Expired(now), "no cutoff means never expired")

	cutoff := now.Add(-time.Minute)
	e.ExpiresAt = &cutoff
	assert.True(t, e.Expired(now))

	e.ExpiresAt = &now
	assert.False(t, e.Expired(now), "the cutoff instant itself is not expired")
}

func TestEnrollmentMaxReached(t *testing.T) {
	e := &Enrollment{MessagesSent: 50}
	assert.False(t, e.MaxReached(), "zero cap means unbounded")

	e.MaxMessages = 50
	assert.True(t, e.MaxReached())

	e.MessagesSent = 49
	assert.False(t, e.MaxReached())
}
