package tasks

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

type fakeStates struct {
	n   int64
	err error
}

func (f fakeStates) CleanupExpired(context.Context) (int64, error) { return f.n, f.err }

type fakeVerify struct {
	cutoff time.Time
	n      int64
}

func (f *fakeVerify) ClearExpiredVerifyTokens(_ context.Context, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	return f.n, nil
}

func TestOAuthStateCleanupJob(t *testing.T) {
	job := OAuthStateCleanupJob(fakeStates{n: 3}, zap.NewNop())
	if job.Name == "" || job.Interval <= 0 {
		t.Fatalf("bad job: %+v", job)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Errorf("Run: %v", err)
	}

	boom := errors.New("boom")
	job = OAuthStateCleanupJob(fakeStates{err: boom}, zap.NewNop())
	if err := job.Run(context.Background()); !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
}

func TestVerifyTokenCleanupJob_UsesClock(t *testing.T) {
	at := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	fv := &fakeVerify{n: 2}
	job := VerifyTokenCleanupJob(fv, zap.NewNop(), func() time.Time { return at })
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !fv.cutoff.Equal(at) {
		t.Errorf("cutoff = %v, want %v", fv.cutoff, at)
	}
}
