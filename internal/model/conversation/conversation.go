package conversation

import (
	"sync"

	"github.com/pkg/errors"
	"max.ks1230/expenses-bot/internal/entity/expense"
)

// State of one chat's expense dialogue. Committed and Discarded are idle
// states, a new candidate can be proposed from them.
type State int

const (
	AwaitingInput State = iota
	AwaitingConfirmation
	Committed
	Discarded
)

func (s State) String() string {
	switch s {
	case AwaitingConfirmation:
		return "awaiting_confirmation"
	case Committed:
		return "committed"
	case Discarded:
		return "discarded"
	default:
		return "awaiting_input"
	}
}

var (
	ErrNoPending      = errors.New("no pending expense")
	ErrStaleCandidate = errors.New("candidate is no longer pending")
	ErrAwaiting       = errors.New("another expense is awaiting confirmation")
)

// Session is the dialogue state of one chat. It is only touched through
// Store.Do, which serializes access.
type Session struct {
	mu        sync.Mutex
	state     State
	pending   *expense.Candidate
	messageID int
	queue     []expense.Candidate
}

func (s *Session) State() State {
	return s.state
}

func (s *Session) Idle() bool {
	return s.state != AwaitingConfirmation
}

// Pending returns the candidate awaiting confirmation.
func (s *Session) Pending() (expense.Candidate, bool) {
	if s.state != AwaitingConfirmation || s.pending == nil {
		return expense.Candidate{}, false
	}
	return *s.pending, true
}

// MessageID is the chat message showing the pending candidate, zero if unknown.
func (s *Session) MessageID() int {
	return s.messageID
}

func (s *Session) SetMessageID(id int) {
	s.messageID = id
}

// Propose moves an idle session to AwaitingConfirmation.
func (s *Session) Propose(c expense.Candidate) error {
	if !s.Idle() {
		return ErrAwaiting
	}
	s.pending = &c
	s.messageID = 0
	s.state = AwaitingConfirmation
	return nil
}

func (s *Session) current(id string) (*expense.Candidate, error) {
	if s.state != AwaitingConfirmation || s.pending == nil {
		return nil, ErrNoPending
	}
	if s.pending.ID != id {
		return nil, ErrStaleCandidate
	}
	return s.pending, nil
}

// Accept commits the pending candidate through persist. When persist fails the
// candidate stays pending so the user can retry.
func (s *Session) Accept(id string, persist func(expense.Candidate) error) (expense.Candidate, error) {
	c, err := s.current(id)
	if err != nil {
		return expense.Candidate{}, err
	}
	if err = persist(*c); err != nil {
		return *c, err
	}
	accepted := *c
	s.finish(Committed)
	return accepted, nil
}

// Reject discards the pending candidate without persisting anything.
func (s *Session) Reject(id string) (expense.Candidate, error) {
	c, err := s.current(id)
	if err != nil {
		return expense.Candidate{}, err
	}
	rejected := *c
	s.finish(Discarded)
	return rejected, nil
}

// Interrupt discards whatever is pending because the user moved on.
// The message id of the abandoned card is returned so it can be updated.
func (s *Session) Interrupt() (expense.Candidate, int, bool) {
	if s.state != AwaitingConfirmation || s.pending == nil {
		return expense.Candidate{}, 0, false
	}
	discarded, messageID := *s.pending, s.messageID
	s.finish(Discarded)
	return discarded, messageID, true
}

// Amend edits the pending candidate in place.
func (s *Session) Amend(id string, fn func(*expense.Candidate)) (expense.Candidate, error) {
	c, err := s.current(id)
	if err != nil {
		return expense.Candidate{}, err
	}
	fn(c)
	return *c, nil
}

// Enqueue holds candidates to be proposed one by one once the session is idle.
func (s *Session) Enqueue(cands ...expense.Candidate) {
	s.queue = append(s.queue, cands...)
}

func (s *Session) Queued() int {
	return len(s.queue)
}

// Advance proposes the next queued candidate when the session is idle.
func (s *Session) Advance() (expense.Candidate, bool) {
	if !s.Idle() || len(s.queue) == 0 {
		return expense.Candidate{}, false
	}
	next := s.queue[0]
	s.queue = s.queue[1:]
	_ = s.Propose(next)
	return next, true
}

// Reset drops the pending candidate and the queue.
func (s *Session) Reset() int {
	dropped := len(s.queue)
	if s.pending != nil && s.state == AwaitingConfirmation {
		dropped++
	}
	s.queue = nil
	s.finish(Discarded)
	return dropped
}

func (s *Session) finish(state State) {
	s.pending = nil
	s.messageID = 0
	s.state = state
}

// Store keeps one session per chat.
type Store struct {
	mu       sync.Mutex
	sessions map[int64]*Session
}

func NewStore() *Store {
	return &Store{sessions: make(map[int64]*Session)}
}

// Do runs fn with exclusive access to the chat's session.
func (s *Store) Do(chatID int64, fn func(*Session) error) error {
	s.mu.Lock()
	sess, ok := s.sessions[chatID]
	if !ok {
		sess = &Session{}
		s.sessions[chatID] = sess
	}
	s.mu.Unlock()

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return fn(sess)
}
