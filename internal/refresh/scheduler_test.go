package refresh

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/glucoview/glucoview/internal/glucose"
	"github.com/glucoview/glucoview/internal/sessions"
	"github.com/stretchr/testify/require"
)

// fake gate that always authenticates
type okGate struct{}

func (okGate) Gate(ctx context.Context) (sessions.Verdict, *sessions.Session, error) {
	return sessions.Authenticated, &sessions.Session{Token: "T", UserID: "U1", AccountID: "A1"}, nil
}

// fake fetcher; blocks on release when set
type fakeFetcher struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
	batch   *glucose.Batch
	err     error
}

func (f *fakeFetcher) Fetch(ctx context.Context, s *sessions.Session) (*glucose.Batch, error) {
	f.calls.Add(1)
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	return f.batch, f.err
}

func sampleBatch() *glucose.Batch {
	return &glucose.Batch{
		Range:    glucose.TargetRange{Low: 70, High: 180},
		Readings: []glucose.Reading{{Value: 60}, {Value: 120}, {Value: 200}},
	}
}

func collector() (chan View, Option) {
	ch := make(chan View, 256)
	return ch, OnUpdate(func(v View) { ch <- v })
}

func waitFor(t *testing.T, ch chan View, state State) View {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case v := <-ch:
			if v.State == state {
				return v
			}
		case <-deadline:
			t.Fatalf("timed out waiting for state %s", state)
		}
	}
}

func TestInitialActivationPublishesSeries(t *testing.T) {
	f := &fakeFetcher{batch: sampleBatch()}
	updates, opt := collector()
	s := New(okGate{}, f, WithInterval(time.Hour), opt)
	require.Equal(t, Idle, s.View().State)

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	waitFor(t, updates, Loading)
	v := waitFor(t, updates, Ready)
	require.NotNil(t, v.Series)
	require.Len(t, v.Series.Points, 3)
	require.Equal(t, glucose.Low, v.Series.Points[0].Class)
	require.Equal(t, glucose.High, v.Series.Points[2].Class)
	require.Equal(t, Ready, s.View().State)

	require.Error(t, s.Start(context.Background()), "second Start should fail")
}

func TestTriggerIsSingleFlight(t *testing.T) {
	f := &fakeFetcher{batch: sampleBatch(), started: make(chan struct{}, 8), release: make(chan struct{})}
	updates, opt := collector()
	s := New(okGate{}, f, WithInterval(time.Hour), opt)
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	<-f.started
	require.False(t, s.Trigger())
	require.False(t, s.Trigger())
	require.EqualValues(t, 1, f.calls.Load())

	close(f.release)
	waitFor(t, updates, Ready)

	require.True(t, s.Trigger())
	<-f.started
	waitFor(t, updates, Ready)
	require.EqualValues(t, 2, f.calls.Load())
}

func TestTickerDrivesCycles(t *testing.T) {
	f := &fakeFetcher{batch: sampleBatch()}
	updates, opt := collector()
	s := New(okGate{}, f, WithInterval(20*time.Millisecond), opt)
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	for i := 0; i < 3; i++ {
		waitFor(t, updates, Ready)
	}
	require.GreaterOrEqual(t, f.calls.Load(), int32(3))
}

func TestUnauthorizedSignalsSessionInvalid(t *testing.T) {
	f := &fakeFetcher{err: &glucose.FetchError{Kind: glucose.Unauthorized, Status: 401}}
	invalid := make(chan struct{}, 1)
	updates, opt := collector()
	s := New(okGate{}, f, WithInterval(time.Hour), opt,
		OnSessionInvalid(func(ctx context.Context, rejected *sessions.Session) {
			require.Equal(t, "T", rejected.Token)
			invalid <- struct{}{}
		}))
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	v := waitFor(t, updates, SessionInvalid)
	require.Empty(t, v.Error)
	select {
	case <-invalid:
	case <-time.After(time.Second):
		t.Fatal("session invalid hook not called")
	}
}

func TestFetchFailureIsFailedWithShortMessage(t *testing.T) {
	f := &fakeFetcher{err: &glucose.FetchError{Kind: glucose.Network, Err: errors.New("dial tcp 1.2.3.4: i/o timeout")}}
	updates, opt := collector()
	s := New(okGate{}, f, WithInterval(time.Hour), opt)
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	v := waitFor(t, updates, Failed)
	require.Equal(t, ErrFetchFailed, v.Error)
	require.Nil(t, v.Series)
}

func TestExpiredSessionIsClearedBeforeAnyFetch(t *testing.T) {
	repo := sessions.NewMemoryRepository()
	ctx := context.Background()
	require.NoError(t, repo.Save(ctx, "authData", []byte(`{"token":"T","userId":"U1","issuedAt":0,"duration":1000}`), 0))
	store := sessions.NewStore(repo, "authData", sessions.WithClock(func() time.Time { return time.UnixMilli(2000) }))

	f := &fakeFetcher{batch: sampleBatch()}
	updates, opt := collector()
	s := New(store, f, WithInterval(time.Hour), opt)
	require.NoError(t, s.Start(ctx))
	defer s.Stop()

	v := waitFor(t, updates, SessionInvalid)
	require.Equal(t, sessions.Expired, v.Verdict)
	require.Zero(t, f.calls.Load())
	raw, err := repo.Load(ctx, "authData")
	require.NoError(t, err)
	require.Nil(t, raw)
}

func TestStopDiscardsLateResponse(t *testing.T) {
	f := &fakeFetcher{batch: sampleBatch(), started: make(chan struct{}, 1), release: make(chan struct{})}
	updates, opt := collector()
	s := New(okGate{}, f, WithInterval(time.Hour), opt)
	require.NoError(t, s.Start(context.Background()))

	<-f.started
	waitFor(t, updates, Loading)
	s.Stop()
	close(f.release)

	time.Sleep(50 * time.Millisecond)
	require.Equal(t, Loading, s.View().State)
	select {
	case v := <-updates:
		t.Fatalf("unexpected update after stop: %+v", v)
	default:
	}
	require.False(t, s.Trigger(), "stopped scheduler must not start cycles")
}

// fetcher whose n-th call blocks until replies[n] delivers its result
type scriptedFetcher struct {
	calls   atomic.Int32
	started chan int
	replies []chan fetchResult
}

type fetchResult struct {
	batch *glucose.Batch
	err   error
}

func newScriptedFetcher(n int) *scriptedFetcher {
	f := &scriptedFetcher{started: make(chan int, n), replies: make([]chan fetchResult, n)}
	for i := range f.replies {
		f.replies[i] = make(chan fetchResult, 1)
	}
	return f
}

func (f *scriptedFetcher) Fetch(ctx context.Context, s *sessions.Session) (*glucose.Batch, error) {
	n := int(f.calls.Add(1)) - 1
	f.started <- n
	r := <-f.replies[n]
	return r.batch, r.err
}

func TestRefreshAbandonsInFlightCycle(t *testing.T) {
	f := newScriptedFetcher(2)
	var hooks atomic.Int32
	updates, opt := collector()
	s := New(okGate{}, f, WithInterval(time.Hour), opt,
		OnSessionInvalid(func(ctx context.Context, rejected *sessions.Session) { hooks.Add(1) }))
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	require.Equal(t, 0, <-f.started)
	require.False(t, s.Trigger())
	require.True(t, s.Refresh())
	require.Equal(t, 1, <-f.started)

	// the abandoned cycle is rejected by the remote, the new one succeeds
	f.replies[0] <- fetchResult{err: &glucose.FetchError{Kind: glucose.Unauthorized, Status: 401}}
	f.replies[1] <- fetchResult{batch: sampleBatch()}
	waitFor(t, updates, Ready)

	time.Sleep(50 * time.Millisecond)
	require.Equal(t, Ready, s.View().State)
	require.Zero(t, hooks.Load())
drain:
	for {
		select {
		case v := <-updates:
			require.NotEqual(t, SessionInvalid, v.State)
		default:
			break drain
		}
	}
}

func TestRefreshOnStoppedScheduler(t *testing.T) {
	s := New(okGate{}, &fakeFetcher{batch: sampleBatch()})
	require.False(t, s.Refresh())
}

func TestUpdatesArriveInPublicationOrder(t *testing.T) {
	f := &fakeFetcher{batch: sampleBatch()}
	updates, opt := collector()
	s := New(okGate{}, f, WithInterval(time.Millisecond), opt)
	require.NoError(t, s.Start(context.Background()))

	seen := make([]State, 0, 100)
	for len(seen) < 100 {
		select {
		case v := <-updates:
			seen = append(seen, v.State)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out collecting updates")
		}
	}
	s.Stop()

	for i, st := range seen {
		want := Loading
		if i%2 == 1 {
			want = Ready
		}
		require.Equal(t, want, st, "update %d out of order: %v", i, seen[max(0, i-3):i+1])
	}
}
