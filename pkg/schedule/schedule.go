// Package schedule runs RealConsole's periodic housekeeping jobs: sweeping
// the Conversation Manager for timed-out conversations and trimming
// completed ones, on a cron schedule. No log or memory housekeeping job is
// registered by default.
package schedule

import (
	"log/slog"

	"github.com/robfig/cron/v3"

	"realconsole/pkg/conversation"
)

// Scheduler wraps a robfig/cron instance with the jobs RealConsole needs at
// startup.
type Scheduler struct {
	cron *cron.Cron
}

// New builds an empty Scheduler; call RegisterHousekeeping then Start.
func New() *Scheduler {
	return &Scheduler{cron: cron.New()}
}

// RegisterHousekeeping wires the conversation-timeout sweep (every minute)
// and completed-conversation cleanup (every 5 minutes) against conv.
func (s *Scheduler) RegisterHousekeeping(conv *conversation.ConversationManager) error {
	if conv == nil {
		return nil
	}
	if _, err := s.cron.AddFunc("@every 1m", func() {
		timedOut := conv.CheckTimeouts()
		if len(timedOut) > 0 {
			slog.Info("conversation sweep timed out conversations", "count", len(timedOut), "ids", timedOut)
		}
	}); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("@every 5m", func() {
		n := conv.CleanupCompleted()
		if n > 0 {
			slog.Debug("conversation housekeeping removed completed conversations", "count", n)
		}
	}); err != nil {
		return err
	}
	return nil
}

// AddJob registers an arbitrary cron-spec job, for callers that need more
// than the default housekeeping (e.g. periodic memory persistence).
func (s *Scheduler) AddJob(spec string, job func()) error {
	_, err := s.cron.AddFunc(spec, job)
	return err
}

// Start begins running scheduled jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the scheduler, waiting for any in-flight job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
