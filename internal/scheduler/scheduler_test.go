package scheduler

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muzkat/reminder/internal/models"
	"github.com/muzkat/reminder/internal/notify"
)

// memStore keeps delivery state behind its own lock so tests can observe it
// while the scheduler goroutine runs.
type memStore struct {
	mu          sync.Mutex
	reminds     []*models.Reminder
	notified    map[int64]bool
	selectErr   error
	selectCalls int
}

func newMemStore(reminds ...*models.Reminder) *memStore {
	return &memStore{reminds: reminds, notified: make(map[int64]bool)}
}

func (s *memStore) SelectDue(_ context.Context, now time.Time) ([]*models.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selectCalls++
	if s.selectErr != nil {
		return nil, s.selectErr
	}
	var due []*models.Reminder
	for _, r := range s.reminds {
		if !s.notified[r.RemindID] && !r.RemindAt.After(now) {
			due = append(due, r)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].RemindAt.Equal(due[j].RemindAt) {
			return due[i].RemindID < due[j].RemindID
		}
		return due[i].RemindAt.Before(due[j].RemindAt)
	})
	return due, nil
}

func (s *memStore) MarkNotified(_ context.Context, remindID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notified[remindID] = true
	return nil
}

func (s *memStore) isNotified(remindID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.notified[remindID]
}

func (s *memStore) setSelectErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selectErr = err
}

func (s *memStore) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectCalls
}

type staticDirectory struct {
	users map[uuid.UUID]*models.User
}

func (d *staticDirectory) GetByID(_ context.Context, userID uuid.UUID) (*models.User, error) {
	u, ok := d.users[userID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return u, nil
}

// flakyEmail fails sends per recipient until told otherwise.
type flakyEmail struct {
	mu       sync.Mutex
	attempts map[string]int
	failFor  map[string]error
}

func newFlakyEmail() *flakyEmail {
	return &flakyEmail{attempts: make(map[string]int), failFor: make(map[string]error)}
}

func (e *flakyEmail) Send(_ context.Context, to, _, _ string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.attempts[to]++
	return e.failFor[to]
}

func (e *flakyEmail) setFailure(to string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err == nil {
		delete(e.failFor, to)
	} else {
		e.failFor[to] = err
	}
}

func (e *flakyEmail) sent(to string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.attempts[to]
}

type noopChat struct{}

func (noopChat) Send(_ context.Context, _ int64, _ string) error { return nil }

type fixture struct {
	store *memStore
	email *flakyEmail
	clock *clock.Mock
	sched *Scheduler
}

func newFixture(t *testing.T, base time.Time, users []*models.User, reminds ...*models.Reminder) *fixture {
	t.Helper()
	dir := &staticDirectory{users: make(map[uuid.UUID]*models.User)}
	for _, u := range users {
		dir.users[u.UserID] = u
	}
	store := newMemStore(reminds...)
	email := newFlakyEmail()
	mock := clock.NewMock()
	mock.Set(base)

	dispatcher := notify.NewDispatcher(store, dir, email, noopChat{}, time.Second, zerolog.Nop())
	return &fixture{
		store: store,
		email: email,
		clock: mock,
		sched: New(store, dispatcher, time.Minute, mock, zerolog.Nop()),
	}
}

func user(email string) *models.User {
	return &models.User{UserID: uuid.New(), Name: email, Email: email}
}

func remind(id int64, owner *models.User, at time.Time) *models.Reminder {
	return &models.Reminder{
		RemindID:    id,
		Title:       "r",
		Description: "d",
		RemindAt:    at,
		UserID:      owner.UserID,
	}
}

const (
	waitFor = 3 * time.Second
	tick    = 10 * time.Millisecond
)

func TestSchedulerDeliversDueInclusiveBoundary(t *testing.T) {
	base := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	alice := user("alice@example.com")
	bob := user("bob@example.com")
	// r1 is due exactly at the cycle's now; r2 only at the next tick
	r1 := remind(1, alice, base)
	r2 := remind(2, bob, base.Add(30*time.Second))
	f := newFixture(t, base, []*models.User{alice, bob}, r1, r2)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.sched.Start(ctx)

	require.Eventually(t, func() bool { return f.store.isNotified(1) }, waitFor, tick)
	assert.False(t, f.store.isNotified(2))
	assert.Equal(t, 1, f.email.sent("alice@example.com"))

	f.clock.Add(time.Minute)
	require.Eventually(t, func() bool { return f.store.isNotified(2) }, waitFor, tick)
	assert.Equal(t, 1, f.email.sent("bob@example.com"))
}

func TestSchedulerRetriesUntilSendSucceeds(t *testing.T) {
	base := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	alice := user("alice@example.com")
	r := remind(1, alice, base)
	f := newFixture(t, base, []*models.User{alice}, r)
	f.email.setFailure("alice@example.com", errors.New("connection refused"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.sched.Start(ctx)

	// First cycle attempts and fails; the reminder stays pending
	require.Eventually(t, func() bool { return f.email.sent("alice@example.com") >= 1 }, waitFor, tick)
	assert.False(t, f.store.isNotified(1))

	f.email.setFailure("alice@example.com", nil)
	f.clock.Add(time.Minute)
	require.Eventually(t, func() bool { return f.store.isNotified(1) }, waitFor, tick)
	assert.GreaterOrEqual(t, f.email.sent("alice@example.com"), 2)
}

func TestSchedulerIsolatesItemFailures(t *testing.T) {
	base := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	alice := user("alice@example.com")
	bob := user("bob@example.com")
	carol := user("carol@example.com")
	f := newFixture(t, base, []*models.User{alice, bob, carol},
		remind(1, alice, base), remind(2, bob, base), remind(3, carol, base))
	f.email.setFailure("bob@example.com", errors.New("mailbox on fire"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.sched.Start(ctx)

	// Siblings of the failing item are delivered in the same cycle
	require.Eventually(t, func() bool {
		return f.store.isNotified(1) && f.store.isNotified(3)
	}, waitFor, tick)
	assert.False(t, f.store.isNotified(2))
	assert.Equal(t, 1, f.email.sent("bob@example.com"))
}

func TestSchedulerNeverRedelivers(t *testing.T) {
	base := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	alice := user("alice@example.com")
	f := newFixture(t, base, []*models.User{alice}, remind(1, alice, base))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.sched.Start(ctx)

	require.Eventually(t, func() bool { return f.store.isNotified(1) }, waitFor, tick)
	calls := f.store.calls()

	for i := 0; i < 3; i++ {
		f.clock.Add(time.Minute)
	}
	require.Eventually(t, func() bool { return f.store.calls() > calls }, waitFor, tick)
	assert.Equal(t, 1, f.email.sent("alice@example.com"))
}

func TestSchedulerSurvivesSelectionFailure(t *testing.T) {
	base := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	alice := user("alice@example.com")
	f := newFixture(t, base, []*models.User{alice}, remind(1, alice, base))
	f.store.setSelectErr(errors.New("database is down"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.sched.Start(ctx)

	// The failing cycle aborts without delivering anything
	require.Eventually(t, func() bool { return f.store.calls() >= 1 }, waitFor, tick)
	assert.False(t, f.store.isNotified(1))
	assert.Equal(t, 0, f.email.sent("alice@example.com"))

	// The loop keeps ticking and recovers once selection works again
	f.store.setSelectErr(nil)
	f.clock.Add(time.Minute)
	require.Eventually(t, func() bool { return f.store.isNotified(1) }, waitFor, tick)
}

// blockingEmail holds its first send until released, keeping the cycle that
// issued it running.
type blockingEmail struct {
	mu       sync.Mutex
	attempts int
	release  chan struct{}
}

func (e *blockingEmail) Send(_ context.Context, _, _, _ string) error {
	e.mu.Lock()
	e.attempts++
	first := e.attempts == 1
	e.mu.Unlock()
	if first {
		<-e.release
	}
	return nil
}

func (e *blockingEmail) sent() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.attempts
}

func TestSchedulerSkipsTicksDuringSlowCycle(t *testing.T) {
	base := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	alice := user("alice@example.com")
	dir := &staticDirectory{users: map[uuid.UUID]*models.User{alice.UserID: alice}}
	store := newMemStore(remind(1, alice, base))
	email := &blockingEmail{release: make(chan struct{})}
	mock := clock.NewMock()
	mock.Set(base)

	dispatcher := notify.NewDispatcher(store, dir, email, noopChat{}, time.Second, zerolog.Nop())
	sched := New(store, dispatcher, time.Minute, mock, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sched.Start(ctx)

	// The first cycle is now stuck inside the email send
	require.Eventually(t, func() bool { return email.sent() == 1 }, waitFor, tick)
	require.Equal(t, 1, store.calls())

	// Two ticks elapse while the cycle is still running
	mock.Add(2 * time.Minute)
	close(email.release)

	// Exactly one of those ticks produces a cycle; the other is skipped
	require.Eventually(t, func() bool { return store.calls() == 2 }, waitFor, tick)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 2, store.calls())
	assert.True(t, store.isNotified(1))
}

func TestSchedulerStopsOnCancel(t *testing.T) {
	base := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	f := newFixture(t, base, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.sched.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return f.store.calls() >= 1 }, waitFor, tick)
	cancel()
	select {
	case <-done:
	case <-time.After(waitFor):
		t.Fatal("scheduler did not stop after cancellation")
	}
}
