package conversation

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"max.ks1230/expenses-bot/internal/entity/expense"
)

func candidate(amount string) expense.Candidate {
	return expense.NewCandidate(decimal.RequireFromString(amount), "MXN",
		expense.Category{Key: "transporte", Name: "Transporte"}, time.Now())
}

type SessionSuite struct {
	suite.Suite
	sess *Session
	c    expense.Candidate
}

func (s *SessionSuite) SetupTest() {
	s.sess = &Session{}
	s.c = candidate("150")
	s.Require().NoError(s.sess.Propose(s.c))
}

func (s *SessionSuite) TestProposeMovesToAwaitingConfirmation() {
	s.Equal(AwaitingConfirmation, s.sess.State())
	pending, ok := s.sess.Pending()
	s.True(ok)
	s.Equal(s.c.ID, pending.ID)
	s.ErrorIs(s.sess.Propose(candidate("1")), ErrAwaiting)
}

func (s *SessionSuite) TestAcceptPersistsExactlyTheShownAmount() {
	var persisted []expense.Candidate
	accepted, err := s.sess.Accept(s.c.ID, func(c expense.Candidate) error {
		persisted = append(persisted, c)
		return nil
	})
	s.Require().NoError(err)
	s.Equal(Committed, s.sess.State())
	s.Require().Len(persisted, 1)
	s.True(persisted[0].Amount.Equal(s.c.Amount))
	s.Equal(s.c.ID, accepted.ID)

	_, err = s.sess.Accept(s.c.ID, func(expense.Candidate) error { return nil })
	s.ErrorIs(err, ErrNoPending)
}

func (s *SessionSuite) TestFailedPersistKeepsCandidatePending() {
	_, err := s.sess.Accept(s.c.ID, func(expense.Candidate) error { return errors.New("disk full") })
	s.Error(err)
	s.Equal(AwaitingConfirmation, s.sess.State())

	_, err = s.sess.Accept(s.c.ID, func(expense.Candidate) error { return nil })
	s.NoError(err)
}

func (s *SessionSuite) TestRejectNeverPersists() {
	rejected, err := s.sess.Reject(s.c.ID)
	s.Require().NoError(err)
	s.Equal(s.c.ID, rejected.ID)
	s.Equal(Discarded, s.sess.State())
	_, ok := s.sess.Pending()
	s.False(ok)
}

func (s *SessionSuite) TestStaleIDsAreRejected() {
	_, err := s.sess.Accept("other", func(expense.Candidate) error {
		s.Fail("must not persist")
		return nil
	})
	s.ErrorIs(err, ErrStaleCandidate)
	_, err = s.sess.Reject("other")
	s.ErrorIs(err, ErrStaleCandidate)
	s.Equal(AwaitingConfirmation, s.sess.State())
}

func (s *SessionSuite) TestInterruptDiscards() {
	s.sess.SetMessageID(99)
	discarded, messageID, ok := s.sess.Interrupt()
	s.True(ok)
	s.Equal(99, messageID)
	s.Equal(s.c.ID, discarded.ID)
	s.Equal(Discarded, s.sess.State())

	_, _, ok = s.sess.Interrupt()
	s.False(ok)
}

func (s *SessionSuite) TestAmendEditsPendingCandidate() {
	amended, err := s.sess.Amend(s.c.ID, func(c *expense.Candidate) {
		c.PaymentMethod = expense.Cash
	})
	s.Require().NoError(err)
	s.Equal(expense.Cash, amended.PaymentMethod)
	pending, _ := s.sess.Pending()
	s.Equal(expense.Cash, pending.PaymentMethod)
}

func (s *SessionSuite) TestQueueAdvancesOnlyWhenIdle() {
	queued := candidate("20")
	s.sess.Enqueue(queued)
	_, ok := s.sess.Advance()
	s.False(ok)

	_, err := s.sess.Reject(s.c.ID)
	s.Require().NoError(err)
	next, ok := s.sess.Advance()
	s.True(ok)
	s.Equal(queued.ID, next.ID)
	s.Equal(AwaitingConfirmation, s.sess.State())
	s.Zero(s.sess.Queued())
}

func (s *SessionSuite) TestResetDropsEverything() {
	s.sess.Enqueue(candidate("1"), candidate("2"))
	s.Equal(3, s.sess.Reset())
	s.True(s.sess.Idle())
	s.Zero(s.sess.Queued())
}

func TestSessionSuite(t *testing.T) {
	suite.Run(t, new(SessionSuite))
}

func Test_Store_ShouldSerializeAccessPerChat(t *testing.T) {
	store := NewStore()
	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.Do(1, func(*Session) error {
				counter++
				return nil
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, counter)
}

func Test_Store_ShouldKeepSessionsApart(t *testing.T) {
	store := NewStore()
	c := candidate("10")
	require.NoError(t, store.Do(1, func(s *Session) error { return s.Propose(c) }))

	require.NoError(t, store.Do(2, func(s *Session) error {
		assert.True(t, s.Idle())
		return nil
	}))
	require.NoError(t, store.Do(1, func(s *Session) error {
		assert.Equal(t, AwaitingConfirmation, s.State())
		return nil
	}))
}
