package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/adworks/leadbot/internal/clock"
	"github.com/adworks/leadbot/internal/metrics"
	"github.com/adworks/leadbot/internal/telegram"
)

// FollowupText is the one-shot reminder sent to users who went quiet.
const FollowupText = "👋 Hi! You started talking to us yesterday. Still have questions? Just reply here and we will pick it right up."

// FollowupScheduler arms a one-shot reminder per user. Scheduling again for
// the same user rearms the timer; any activity should call Schedule so quiet
// users, and only quiet users, get the nudge.
type FollowupScheduler struct {
	mu      sync.Mutex
	pending map[int64]*followup
	stopped bool

	delay   time.Duration
	sender  telegram.Sender
	clk     clock.Clock
	logger  *zap.Logger
	metrics *metrics.Metrics
	wg      sync.WaitGroup
}

type followup struct {
	timer clock.Timer
	quit  chan struct{}
}

// NewFollowupScheduler creates a scheduler. metrics may be nil.
func NewFollowupScheduler(delay time.Duration, sender telegram.Sender, clk clock.Clock, logger *zap.Logger, m *metrics.Metrics) *FollowupScheduler {
	if clk == nil {
		clk = clock.New()
	}
	return &FollowupScheduler{
		pending: make(map[int64]*followup),
		delay:   delay,
		sender:  sender,
		clk:     clk,
		logger:  logger,
		metrics: m,
	}
}

// Schedule arms the reminder for chatID, replacing any pending one.
func (s *FollowupScheduler) Schedule(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}

	if prev, ok := s.pending[chatID]; ok {
		prev.timer.Stop()
		close(prev.quit)
		s.recordCanceled()
	}

	f := &followup{
		timer: s.clk.NewTimer(s.delay),
		quit:  make(chan struct{}),
	}
	s.pending[chatID] = f

	s.wg.Add(1)
	go s.await(chatID, f)

	if s.metrics != nil {
		s.metrics.RecordFollowupScheduled()
	}
}

// Cancel drops the pending reminder for chatID, if any.
func (s *FollowupScheduler) Cancel(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if f, ok := s.pending[chatID]; ok {
		f.timer.Stop()
		close(f.quit)
		delete(s.pending, chatID)
		s.recordCanceled()
	}
}

// Pending returns the number of armed reminders.
func (s *FollowupScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Stop cancels every pending reminder and waits for in-flight goroutines.
func (s *FollowupScheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	for chatID, f := range s.pending {
		f.timer.Stop()
		close(f.quit)
		delete(s.pending, chatID)
	}
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *FollowupScheduler) await(chatID int64, f *followup) {
	defer s.wg.Done()

	select {
	case <-f.timer.C():
	case <-f.quit:
		return
	}

	s.mu.Lock()
	// Only clear the entry if it is still ours; Schedule may have replaced it.
	if s.pending[chatID] == f {
		delete(s.pending, chatID)
	}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.sender.SendMessage(ctx, chatID, FollowupText); err != nil {
		s.logger.Warn("follow-up delivery failed",
			zap.Int64("chat_id", chatID),
			zap.Error(err),
		)
		return
	}

	s.logger.Info("follow-up sent", zap.Int64("chat_id", chatID))
	if s.metrics != nil {
		s.metrics.RecordFollowupFired()
	}
}

func (s *FollowupScheduler) recordCanceled() {
	if s.metrics != nil {
		s.metrics.RecordFollowupCanceled()
	}
}
