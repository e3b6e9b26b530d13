package transcript

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// EmptyQuestionMessage is shown when a blank question is submitted.
	EmptyQuestionMessage = "Пожалуйста, введите сообщение"
	// AskFailedMessage is shown when the service could not answer.
	AskFailedMessage = "Не удалось получить ответ. Попробуйте ещё раз."
)

var (
	// ErrEmptyQuestion is returned by Submit for blank input.
	ErrEmptyQuestion = errors.New("question is empty")
	// ErrClosed is the ticket error for asks still in flight when the store closed.
	ErrClosed = errors.New("transcript store closed")
)

// State is a point-in-time copy of everything the presentation layer renders.
type State struct {
	Exchanges     []Exchange
	Input         string
	Error         string
	SelectedImage string
	ModalOpen     bool
	ClearMenuOpen bool
}

// Store owns the exchange list and mediates every change to it.
type Store struct {
	backend  Backend
	log      zerolog.Logger
	newID    func() string
	onChange func()

	mu            sync.Mutex
	exchanges     []Exchange
	input         string
	errMsg        string
	selectedImage string
	modalOpen     bool
	clearMenuOpen bool
	closed        bool

	// session is cancelled by Close; every ask runs under it.
	session context.Context
	cancel  context.CancelFunc
	deletes sync.WaitGroup
}

type Option func(*Store)

func WithLogger(log zerolog.Logger) Option {
	return func(s *Store) { s.log = log }
}

// WithIDGenerator overrides how exchange IDs are minted.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) { s.newID = gen }
}

// WithOnChange registers a callback run after every state change.
// It is called without the store lock held.
func WithOnChange(fn func()) Option {
	return func(s *Store) { s.onChange = fn }
}

// NewStore creates an empty store talking to backend.
func NewStore(backend Backend, opts ...Option) *Store {
	session, cancel := context.WithCancel(context.Background())
	s := &Store{
		backend:   backend,
		log:       zerolog.Nop(),
		newID:     uuid.NewString,
		exchanges: []Exchange{},
		session:   session,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With().Str("component", "transcript").Logger()
	return s
}

// Initialize loads the server-held history and replaces the local list with it.
// A failed fetch is logged and leaves the list untouched.
func (s *Store) Initialize(ctx context.Context) {
	records, err := s.backend.FetchHistory(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("History unavailable, starting without it")
		return
	}

	loaded := make([]Exchange, 0, len(records))
	for _, r := range records {
		images := r.Images
		if images == nil {
			images = []string{}
		}
		loaded = append(loaded, Exchange{
			ID:       s.newID(),
			Question: r.Question,
			Answer:   r.Answer,
			Images:   images,
			Status:   StatusAnswered,
		})
	}

	s.mu.Lock()
	s.exchanges = Reduce(s.exchanges, HistoryLoaded{Exchanges: loaded})
	s.mu.Unlock()

	s.log.Debug().Int("exchanges", len(loaded)).Msg("History loaded")
	s.changed()
}

func (s *Store) SetInput(text string) {
	s.mu.Lock()
	s.input = text
	s.mu.Unlock()
}

func (s *Store) Input() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.input
}

// Ticket tracks one submitted question until its reply is reconciled.
type Ticket struct {
	ID   string
	done chan struct{}
	err  error
}

// Done is closed once the reply is handled: reconciled, or dropped because
// the exchange was cleared or the store closed.
func (t *Ticket) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until Done is closed and returns the ask error, if any.
func (t *Ticket) Wait() error {
	<-t.done
	return t.err
}

// Submit appends text as a pending exchange and asks the service for an answer
// in the background. The append happens before Submit returns, so exchanges
// keep call order regardless of when replies arrive.
func (s *Store) Submit(ctx context.Context, text string) (*Ticket, error) {
	question := strings.TrimSpace(text)

	s.mu.Lock()
	s.errMsg = ""
	if question == "" {
		s.errMsg = EmptyQuestionMessage
		s.mu.Unlock()
		s.changed()
		return nil, ErrEmptyQuestion
	}

	t := &Ticket{ID: s.newID(), done: make(chan struct{})}
	s.exchanges = Reduce(s.exchanges, QuestionAsked{ID: t.ID, Question: question})
	s.input = ""
	s.mu.Unlock()
	s.changed()

	askCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.session, cancel)
	go func() {
		defer cancel()
		defer stop()
		s.ask(askCtx, t, question)
	}()
	return t, nil
}

// SubmitInput submits the current input text.
func (s *Store) SubmitInput(ctx context.Context) (*Ticket, error) {
	return s.Submit(ctx, s.Input())
}

func (s *Store) ask(ctx context.Context, t *Ticket, question string) {
	defer close(t.done)

	reply, err := s.backend.Ask(ctx, question)

	s.mu.Lock()
	t.err = err
	if s.closed {
		// Replies after teardown are not reconciled.
		t.err = ErrClosed
		s.mu.Unlock()
		return
	}
	if !s.isPending(t.ID) {
		// Cleared while in flight.
		s.mu.Unlock()
		return
	}
	if err != nil {
		s.exchanges = Reduce(s.exchanges, AskFailed{ID: t.ID})
		s.errMsg = AskFailedMessage
	} else {
		s.exchanges = Reduce(s.exchanges, AnswerReceived{ID: t.ID, Answer: reply.Answer, Images: reply.Images})
	}
	s.mu.Unlock()
	s.changed()
}

// isPending reports whether id names an unresolved exchange. Callers hold mu.
func (s *Store) isPending(id string) bool {
	for _, e := range s.exchanges {
		if e.ID == id {
			return e.Status == StatusPending
		}
	}
	return false
}

// ToggleClearMenu opens or closes the clear-history affordance.
func (s *Store) ToggleClearMenu() {
	s.mu.Lock()
	s.clearMenuOpen = !s.clearMenuOpen
	s.mu.Unlock()
	s.changed()
}

func (s *Store) ClearMenuOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clearMenuOpen
}

// ClearHistory empties the list once the user has confirmed, then asks the
// service to delete its copy. The delete outcome never touches local state;
// a failure is only logged. It reports whether the list was cleared.
func (s *Store) ClearHistory(ctx context.Context, confirmed bool) bool {
	if !confirmed {
		return false
	}

	s.mu.Lock()
	s.exchanges = Reduce(s.exchanges, HistoryCleared{})
	s.clearMenuOpen = false
	s.deletes.Add(1)
	s.mu.Unlock()
	s.changed()

	go func() {
		defer s.deletes.Done()
		if err := s.backend.DeleteHistory(context.WithoutCancel(ctx)); err != nil {
			s.log.Error().Err(err).Msg("Failed to delete remote history")
			return
		}
		s.log.Debug().Msg("Remote history deleted")
	}()
	return true
}

// SelectImage focuses ref for enlarged viewing.
func (s *Store) SelectImage(ref string) {
	s.mu.Lock()
	s.selectedImage = ref
	s.modalOpen = true
	s.mu.Unlock()
	s.changed()
}

// DismissImage closes the image modal. Dismissing with nothing selected is a no-op.
func (s *Store) DismissImage() {
	s.mu.Lock()
	if !s.modalOpen {
		s.mu.Unlock()
		return
	}
	s.selectedImage = ""
	s.modalOpen = false
	s.mu.Unlock()
	s.changed()
}

func (s *Store) SelectedImage() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedImage, s.modalOpen
}

func (s *Store) Exchanges() []Exchange {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyExchanges(s.exchanges)
}

func (s *Store) Error() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errMsg
}

func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		Exchanges:     copyExchanges(s.exchanges),
		Input:         s.input,
		Error:         s.errMsg,
		SelectedImage: s.selectedImage,
		ModalOpen:     s.modalOpen,
		ClearMenuOpen: s.clearMenuOpen,
	}
}

// Close cancels outstanding asks without waiting for them and waits for
// pending history deletes to reach the service. Replies that land afterwards
// are discarded.
func (s *Store) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()
	s.deletes.Wait()
}

func (s *Store) changed() {
	if s.onChange != nil {
		s.onChange()
	}
}
