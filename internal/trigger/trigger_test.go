package trigger

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		spec    string
		wantErr bool
	}{
		{name: "daily", spec: "30 3 * * *"},
		{name: "descriptor", spec: "@daily"},
		{name: "interval", spec: "@every 1h"},
		{name: "garbage", spec: "whenever", wantErr: true},
		{name: "too many fields", spec: "* * * * * *", wantErr: true},
		{name: "empty", spec: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.spec)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAdd_RejectsInvalidSpec(t *testing.T) {
	s := New(testLogger())
	err := s.Add("not a schedule", func() {})
	require.Error(t, err)
	assert.ErrorContains(t, err, "invalid schedule")
}

func TestRun_FiresAndStops(t *testing.T) {
	s := New(testLogger())

	fired := make(chan struct{}, 1)
	require.NoError(t, s.Add("@every 10ms", func() {
		select {
		case fired <- struct{}{}:
		default:
		}
	}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	select {
	case <-fired:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduled job never fired")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop after cancellation")
	}
}

func TestRun_SkipsOverlappingFirings(t *testing.T) {
	s := New(testLogger())

	block := make(chan struct{})
	started := make(chan struct{}, 16)
	require.NoError(t, s.Add("@every 10ms", func() {
		started <- struct{}{}
		<-block
	}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	// The first firing blocks; give the scheduler time to attempt several more.
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduled job never started")
	}
	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, started, "overlapping firings must be skipped while a run is in flight")

	close(block)
	cancel()
	<-done
}
