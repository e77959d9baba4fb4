package attendance

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classportal/internal/queue"
	"classportal/internal/store"
)

var t0 = time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestRecorder(rows store.Rows, opts ...Option) (*Recorder, *Repository) {
	repo := NewRepository(rows)
	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	return NewRecorder(repo, opts...), repo
}

func TestRecordCreatesThenRefreshes(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryRows()
	rec, repo := newTestRecorder(mem)

	first := rec.Record(ctx, "u1", "s1", t0)
	require.Equal(t, Created, first.Status)
	require.NoError(t, first.Err)
	assert.True(t, first.OK())
	assert.True(t, first.Record.IsPresent)

	second := rec.Record(ctx, "u1", "s1", t0.Add(3*time.Minute))
	require.Equal(t, Refreshed, second.Status)
	assert.Equal(t, first.Record.ID, second.Record.ID)

	assert.Equal(t, 1, mem.Count(store.TableAttendance))
	got, err := repo.Find(ctx, "u1", "s1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.IsPresent)
	assert.True(t, got.JoinTime.Equal(t0.Add(3*time.Minute)))
}

func TestRecordSeparatesPairs(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryRows()
	rec, repo := newTestRecorder(mem)

	assert.Equal(t, Created, rec.Record(ctx, "u1", "s1", t0).Status)
	assert.Equal(t, Created, rec.Record(ctx, "u2", "s1", t0).Status)
	assert.Equal(t, Created, rec.Record(ctx, "u1", "s2", t0).Status)

	list, err := repo.ListBySession(ctx, "s1", 0)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestRecordConcurrentJoinsKeepOneRow(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryRows()
	rec, _ := newTestRecorder(mem)

	var wg sync.WaitGroup
	outcomes := make([]Outcome, 8)
	for i := range outcomes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i] = rec.Record(ctx, "u1", "s1", t0.Add(time.Duration(i)*time.Second))
		}(i)
	}
	wg.Wait()

	created := 0
	for _, o := range outcomes {
		require.True(t, o.OK(), "outcome %+v", o)
		if o.Status == Created {
			created++
		}
	}
	assert.Equal(t, 1, created)
	assert.Equal(t, 1, mem.Count(store.TableAttendance))
}

// racyRows reports not-found on the first lookup so Insert hits the unique constraint.
type racyRows struct {
	*store.Memory
	once sync.Once
}

func (r *racyRows) FindOne(ctx context.Context, table string, f store.Filter) (store.Row, error) {
	miss := false
	r.once.Do(func() { miss = true })
	if miss {
		return nil, store.ErrNotFound
	}
	return r.Memory.FindOne(ctx, table, f)
}

func TestRecordConflictBecomesRefresh(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryRows()
	repo := NewRepository(mem)
	_, err := repo.Insert(ctx, "u1", "s1", t0)
	require.NoError(t, err)

	rec, _ := newTestRecorder(&racyRows{Memory: mem})
	out := rec.Record(ctx, "u1", "s1", t0.Add(time.Minute))
	assert.Equal(t, Refreshed, out.Status)
	assert.Equal(t, 1, mem.Count(store.TableAttendance))
}

type failingRows struct{ store.Rows }

var errDown = errors.New("database down")

func (failingRows) FindOne(context.Context, string, store.Filter) (store.Row, error) {
	return nil, errDown
}

func TestRecordFailureIsReportedNotRaised(t *testing.T) {
	rec, _ := newTestRecorder(failingRows{})
	out := rec.Record(context.Background(), "u1", "s1", t0)
	assert.Equal(t, Failed, out.Status)
	assert.ErrorIs(t, out.Err, errDown)
	assert.False(t, out.OK())

	out = rec.Record(context.Background(), "", "s1", t0)
	assert.Equal(t, Failed, out.Status)
	assert.Error(t, out.Err)
}

type fakeGuard struct {
	mu       sync.Mutex
	held     map[string]bool
	err      error
	released int
}

func (g *fakeGuard) Acquire(_ context.Context, key string, _ time.Duration) (func(), bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return func() {}, false, g.err
	}
	if g.held[key] {
		return func() {}, false, nil
	}
	g.held[key] = true
	return func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		delete(g.held, key)
		g.released++
	}, true, nil
}

func TestRecordGuard(t *testing.T) {
	ctx := context.Background()

	t.Run("held key skips", func(t *testing.T) {
		g := &fakeGuard{held: map[string]bool{guardKey("u1", "s1"): true}}
		mem := store.NewMemoryRows()
		rec, _ := newTestRecorder(mem, WithGuard(g, time.Second))
		assert.Equal(t, Skipped, rec.Record(ctx, "u1", "s1", t0).Status)
		assert.Equal(t, 0, mem.Count(store.TableAttendance))
	})

	t.Run("released after record", func(t *testing.T) {
		g := &fakeGuard{held: map[string]bool{}}
		rec, _ := newTestRecorder(store.NewMemoryRows(), WithGuard(g, time.Second))
		assert.Equal(t, Created, rec.Record(ctx, "u1", "s1", t0).Status)
		assert.Equal(t, Refreshed, rec.Record(ctx, "u1", "s1", t0).Status)
		assert.Equal(t, 2, g.released)
	})

	t.Run("guard error degrades to unguarded", func(t *testing.T) {
		g := &fakeGuard{err: errors.New("redis down")}
		rec, _ := newTestRecorder(store.NewMemoryRows(), WithGuard(g, time.Second))
		assert.Equal(t, Created, rec.Record(ctx, "u1", "s1", t0).Status)
	})
}

func TestQueueSinkAndConsumer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mem := store.NewMemoryRows()
	rec, repo := newTestRecorder(mem)
	q := queue.NewInMemory(8)
	sink := QueueSink{Queue: q}

	require.NoError(t, q.Publish(ctx, queue.Message{Type: "other"}))
	require.NoError(t, q.Publish(ctx, queue.Message{Type: MessageType, Body: []byte("{bad")}))
	require.NoError(t, sink.Submit(ctx, Join{UserID: "u1", SessionID: "s1", At: t0}))

	done := make(chan error, 1)
	c := &Consumer{Queue: q, Recorder: rec, Log: quietLogger()}
	go func() { done <- c.Run(ctx) }()

	require.Eventually(t, func() bool {
		r, err := repo.Find(context.Background(), "u1", "s1")
		return err == nil && r != nil
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop")
	}
}

func TestInlineSink(t *testing.T) {
	rec, _ := newTestRecorder(store.NewMemoryRows())
	sink := InlineSink{Recorder: rec}
	assert.NoError(t, sink.Submit(context.Background(), Join{UserID: "u1", SessionID: "s1", At: t0}))

	failing, _ := newTestRecorder(failingRows{})
	assert.ErrorIs(t, InlineSink{Recorder: failing}.Submit(context.Background(), Join{UserID: "u1", SessionID: "s1", At: t0}), errDown)
}
