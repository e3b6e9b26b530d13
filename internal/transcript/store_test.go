package transcript

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type fakeBackend struct {
	history    []Record
	historyErr error
	askFn      func(ctx context.Context, question string) (Reply, error)
	deleteErr  error

	mu      sync.Mutex
	asked   []string
	deletes int
}

func (f *fakeBackend) FetchHistory(context.Context) ([]Record, error) {
	return f.history, f.historyErr
}

func (f *fakeBackend) Ask(ctx context.Context, question string) (Reply, error) {
	f.mu.Lock()
	f.asked = append(f.asked, question)
	f.mu.Unlock()
	if f.askFn == nil {
		return Reply{Answer: "answer: " + question, Images: []string{}}, nil
	}
	return f.askFn(ctx, question)
}

func (f *fakeBackend) DeleteHistory(context.Context) error {
	f.mu.Lock()
	f.deletes++
	f.mu.Unlock()
	return f.deleteErr
}

func sequentialIDs() func() string {
	var n atomic.Int64
	return func() string { return fmt.Sprintf("ex-%d", n.Add(1)) }
}

func newTestStore(t *testing.T, backend Backend, opts ...Option) *Store {
	t.Helper()
	opts = append([]Option{WithIDGenerator(sequentialIDs())}, opts...)
	s := NewStore(backend, opts...)
	t.Cleanup(s.Close)
	return s
}

func TestSubmitScenario(t *testing.T) {
	defer goleak.VerifyNone(t)

	backend := &fakeBackend{askFn: func(context.Context, string) (Reply, error) {
		return Reply{Answer: "X is Y", Images: []string{"a.png"}}, nil
	}}
	s := newTestStore(t, backend)

	ticket, err := s.Submit(context.Background(), "What is X?")
	require.NoError(t, err)
	require.NoError(t, ticket.Wait())
	s.Close()

	got := s.Exchanges()
	require.Len(t, got, 1)
	assert.Equal(t, "What is X?", got[0].Question)
	assert.Equal(t, "X is Y", got[0].Answer)
	assert.Equal(t, []string{"a.png"}, got[0].Images)
	assert.Equal(t, StatusAnswered, got[0].Status)
	assert.Empty(t, s.Error())
}

func TestSubmitSequentialKeepsOrder(t *testing.T) {
	backend := &fakeBackend{}
	s := newTestStore(t, backend)

	questions := []string{"first question", "second question", "third question", "fourth question"}
	for _, q := range questions {
		ticket, err := s.Submit(context.Background(), q)
		require.NoError(t, err)
		require.NoError(t, ticket.Wait())
	}

	got := s.Exchanges()
	require.Len(t, got, len(questions))
	for i, q := range questions {
		assert.Equal(t, q, got[i].Question)
		assert.Equal(t, "answer: "+q, got[i].Answer)
		assert.Equal(t, StatusAnswered, got[i].Status)
	}
}

func TestSubmitEmptyQuestion(t *testing.T) {
	s := newTestStore(t, &fakeBackend{})

	for _, text := range []string{"", "   ", "\t\n"} {
		ticket, err := s.Submit(context.Background(), text)
		require.ErrorIs(t, err, ErrEmptyQuestion)
		assert.Nil(t, ticket)
		assert.Empty(t, s.Exchanges())
		assert.Equal(t, EmptyQuestionMessage, s.Error())
	}
}

func TestSubmitClearsErrorAndInput(t *testing.T) {
	s := newTestStore(t, &fakeBackend{})

	_, err := s.Submit(context.Background(), "")
	require.Error(t, err)
	require.Equal(t, EmptyQuestionMessage, s.Error())

	s.SetInput("  How do I log in?  ")
	ticket, err := s.SubmitInput(context.Background())
	require.NoError(t, err)

	assert.Empty(t, s.Error())
	assert.Empty(t, s.Input())
	require.NoError(t, ticket.Wait())
	assert.Equal(t, "How do I log in?", s.Exchanges()[0].Question)
}

func TestSubmitInputIsClearedBeforeReply(t *testing.T) {
	release := make(chan struct{})
	backend := &fakeBackend{askFn: func(context.Context, string) (Reply, error) {
		<-release
		return Reply{Answer: "done"}, nil
	}}
	s := newTestStore(t, backend)

	s.SetInput("slow question")
	ticket, err := s.SubmitInput(context.Background())
	require.NoError(t, err)

	state := s.Snapshot()
	assert.Empty(t, state.Input)
	require.Len(t, state.Exchanges, 1)
	assert.Equal(t, StatusPending, state.Exchanges[0].Status)
	assert.Empty(t, state.Exchanges[0].Answer)

	close(release)
	require.NoError(t, ticket.Wait())
	assert.Equal(t, StatusAnswered, s.Exchanges()[0].Status)
}

func TestSubmitFailureKeepsQuestion(t *testing.T) {
	askErr := errors.New("connection refused")
	backend := &fakeBackend{askFn: func(context.Context, string) (Reply, error) {
		return Reply{}, askErr
	}}
	var logs bytes.Buffer
	s := newTestStore(t, backend, WithLogger(zerolog.New(&logs)))

	ticket, err := s.Submit(context.Background(), "Why is it broken?")
	require.NoError(t, err)
	require.ErrorIs(t, ticket.Wait(), askErr)
	s.Close()

	got := s.Exchanges()
	require.Len(t, got, 1)
	assert.Equal(t, "Why is it broken?", got[0].Question)
	assert.Empty(t, got[0].Answer)
	assert.Empty(t, got[0].Images)
	assert.Equal(t, StatusFailed, got[0].Status)
	assert.Equal(t, AskFailedMessage, s.Error())
	assert.Empty(t, logs.String(), "ask failures surface to the user, not the log")
}

func TestOverlappingSubmissionsReconcileByID(t *testing.T) {
	gates := map[string]chan struct{}{
		"first question":  make(chan struct{}),
		"second question": make(chan struct{}),
	}
	backend := &fakeBackend{askFn: func(_ context.Context, q string) (Reply, error) {
		<-gates[q]
		return Reply{Answer: "re: " + q, Images: []string{q + ".png"}}, nil
	}}
	s := newTestStore(t, backend)

	first, err := s.Submit(context.Background(), "first question")
	require.NoError(t, err)
	second, err := s.Submit(context.Background(), "second question")
	require.NoError(t, err)

	// Second reply arrives first.
	close(gates["second question"])
	require.NoError(t, second.Wait())
	select {
	case <-first.Done():
		t.Fatal("first question resolved before its reply arrived")
	default:
	}

	got := s.Exchanges()
	require.Len(t, got, 2)
	assert.Equal(t, StatusPending, got[0].Status)
	assert.Equal(t, "re: second question", got[1].Answer)

	close(gates["first question"])
	require.NoError(t, first.Wait())

	got = s.Exchanges()
	assert.Equal(t, "re: first question", got[0].Answer)
	assert.Equal(t, []string{"first question.png"}, got[0].Images)
	assert.Equal(t, "re: second question", got[1].Answer)
}

func TestInitializeReplacesTranscript(t *testing.T) {
	backend := &fakeBackend{history: []Record{
		{Question: "Hi", Answer: "Hello", Images: nil},
		{Question: "Where?", Answer: "Here", Images: []string{"map.png"}},
	}}
	s := newTestStore(t, backend)

	ticket, err := s.Submit(context.Background(), "local question")
	require.NoError(t, err)
	require.NoError(t, ticket.Wait())

	s.Initialize(context.Background())

	got := s.Exchanges()
	require.Len(t, got, 2)
	assert.Equal(t, "Hi", got[0].Question)
	assert.Equal(t, "Hello", got[0].Answer)
	assert.Equal(t, []string{}, got[0].Images)
	assert.Equal(t, []string{"map.png"}, got[1].Images)
	for _, e := range got {
		assert.Equal(t, StatusAnswered, e.Status)
		assert.NotEmpty(t, e.ID)
	}
}

func TestInitializeFailureIsSilent(t *testing.T) {
	var logs bytes.Buffer
	s := newTestStore(t, &fakeBackend{historyErr: errors.New("503")}, WithLogger(zerolog.New(&logs)))

	s.Initialize(context.Background())

	assert.Empty(t, s.Exchanges())
	assert.Empty(t, s.Error())
	assert.Contains(t, logs.String(), "History unavailable")
}

func TestClearHistoryRequiresConfirmation(t *testing.T) {
	backend := &fakeBackend{history: []Record{{Question: "Hi", Answer: "Hello"}}}
	s := newTestStore(t, backend)
	s.Initialize(context.Background())

	assert.False(t, s.ClearHistory(context.Background(), false))
	s.Close()

	assert.Len(t, s.Exchanges(), 1)
	assert.Zero(t, backend.deletes)
}

func TestClearHistoryIsImmediateAndIrreversible(t *testing.T) {
	defer goleak.VerifyNone(t)

	var logs bytes.Buffer
	backend := &fakeBackend{
		history:   []Record{{Question: "Hi", Answer: "Hello"}},
		deleteErr: errors.New("delete failed"),
	}
	s := newTestStore(t, backend, WithLogger(zerolog.New(&logs)))
	s.Initialize(context.Background())
	s.ToggleClearMenu()
	require.True(t, s.ClearMenuOpen())

	ctx, cancel := context.WithCancel(context.Background())
	require.True(t, s.ClearHistory(ctx, true))
	cancel()

	assert.Empty(t, s.Exchanges())
	assert.False(t, s.ClearMenuOpen())

	s.Close()
	assert.Empty(t, s.Exchanges())
	assert.Equal(t, 1, backend.deletes)
	assert.Empty(t, s.Error())
	assert.Contains(t, logs.String(), "Failed to delete remote history")
}

func TestReplyAfterClearIsDropped(t *testing.T) {
	release := make(chan struct{})
	backend := &fakeBackend{askFn: func(context.Context, string) (Reply, error) {
		<-release
		return Reply{Answer: "late"}, nil
	}}
	s := newTestStore(t, backend)

	ticket, err := s.Submit(context.Background(), "pending question")
	require.NoError(t, err)
	require.True(t, s.ClearHistory(context.Background(), true))

	close(release)
	require.NoError(t, ticket.Wait())
	assert.Empty(t, s.Exchanges())
}

func TestFailureAfterClearSetsNoError(t *testing.T) {
	release := make(chan struct{})
	backend := &fakeBackend{askFn: func(context.Context, string) (Reply, error) {
		<-release
		return Reply{}, errors.New("timeout")
	}}
	var changes atomic.Int32
	s := newTestStore(t, backend, WithOnChange(func() { changes.Add(1) }))

	ticket, err := s.Submit(context.Background(), "pending question")
	require.NoError(t, err)
	require.True(t, s.ClearHistory(context.Background(), true))
	before := changes.Load()

	close(release)
	require.Error(t, ticket.Wait())
	assert.Empty(t, s.Exchanges())
	assert.Empty(t, s.Error())
	assert.Equal(t, before, changes.Load())
}

func TestCloseDoesNotWaitForHungAsk(t *testing.T) {
	release := make(chan struct{})
	backend := &fakeBackend{askFn: func(context.Context, string) (Reply, error) {
		<-release // ignores cancellation
		return Reply{Answer: "too late"}, nil
	}}
	s := newTestStore(t, backend)

	ticket, err := s.Submit(context.Background(), "slow question")
	require.NoError(t, err)

	closed := make(chan struct{})
	go func() {
		s.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("Close blocked on an in-flight ask")
	}

	close(release)
	require.ErrorIs(t, ticket.Wait(), ErrClosed)
	got := s.Exchanges()
	require.Len(t, got, 1)
	assert.Equal(t, StatusPending, got[0].Status)
	assert.Empty(t, got[0].Answer)
}

func TestCloseCancelsAsks(t *testing.T) {
	defer goleak.VerifyNone(t)

	backend := &fakeBackend{askFn: func(ctx context.Context, _ string) (Reply, error) {
		<-ctx.Done()
		return Reply{}, ctx.Err()
	}}
	s := newTestStore(t, backend)

	ticket, err := s.Submit(context.Background(), "question for a dead service")
	require.NoError(t, err)

	s.Close()
	require.ErrorIs(t, ticket.Wait(), ErrClosed)
	assert.Empty(t, s.Error())
}

func TestImageSelection(t *testing.T) {
	var changes atomic.Int32
	s := newTestStore(t, &fakeBackend{}, WithOnChange(func() { changes.Add(1) }))

	s.DismissImage()
	_, open := s.SelectedImage()
	assert.False(t, open)
	assert.Zero(t, changes.Load(), "dismiss without selection must not notify")

	s.SelectImage("http://localhost:8080/images/a.png")
	ref, open := s.SelectedImage()
	assert.True(t, open)
	assert.Equal(t, "http://localhost:8080/images/a.png", ref)

	s.DismissImage()
	s.DismissImage()
	ref, open = s.SelectedImage()
	assert.False(t, open)
	assert.Empty(t, ref)
	assert.EqualValues(t, 2, changes.Load())
	assert.Empty(t, s.Exchanges())
}

func TestSnapshotIsDetached(t *testing.T) {
	backend := &fakeBackend{history: []Record{{Question: "Hi", Answer: "Hello", Images: []string{"a.png"}}}}
	s := newTestStore(t, backend)
	s.Initialize(context.Background())

	snap := s.Snapshot()
	snap.Exchanges[0].Images[0] = "mutated.png"
	snap.Exchanges[0].Answer = "mutated"

	got := s.Exchanges()
	assert.Equal(t, "Hello", got[0].Answer)
	assert.Equal(t, []string{"a.png"}, got[0].Images)
}
