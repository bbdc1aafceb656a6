// Package scheduler delivers configured reminder messages on a cron
// schedule. Uses robfig/cron for expression parsing and execution.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/akcware/sorbot/pkg/sorbot/channels"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// Config holds the reminder schedule.
type Config struct {
	// Timezone is the IANA zone cron expressions are evaluated in.
	Timezone string `yaml:"timezone"`

	// Jobs are the reminders to deliver.
	Jobs []Reminder `yaml:"jobs"`
}

// Reminder is one scheduled message.
type Reminder struct {
	// ID identifies the job in logs. Generated when empty.
	ID string `yaml:"id"`

	// Cron is a standard 5-field cron expression.
	Cron string `yaml:"cron"`

	// To is the recipient identity (JID).
	To string `yaml:"to"`

	// Message is the text to deliver.
	Message string `yaml:"message"`
}

// DefaultConfig returns an empty schedule in the Istanbul timezone. The
// stock morning/evening reminder slots are provided commented out in the
// example config; recipients are deployment-specific.
func DefaultConfig() Config {
	return Config{Timezone: "Europe/Istanbul"}
}

// Sender is the transport surface the scheduler needs. channels.Channel
// implements it.
type Sender interface {
	Send(ctx context.Context, to string, msg *channels.OutgoingMessage) error
}

// Scheduler runs the configured reminders.
type Scheduler struct {
	cfg    Config
	sender Sender
	cron   *cron.Cron
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a scheduler over the given transport.
func New(cfg Config, sender Sender, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cfg:    cfg,
		sender: sender,
		logger: logger.With("component", "scheduler"),
	}
}

// Start registers all configured jobs and starts the cron loop. Jobs with
// a missing recipient or an invalid expression are skipped with a warning;
// one bad entry must not take the rest of the schedule down.
func (s *Scheduler) Start(ctx context.Context) error {
	loc, err := time.LoadLocation(s.cfg.Timezone)
	if err != nil {
		return fmt.Errorf("loading timezone %q: %w", s.cfg.Timezone, err)
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.cron = cron.New(cron.WithLocation(loc))

	registered := 0
	for _, job := range s.cfg.Jobs {
		job := job
		if job.ID == "" {
			job.ID = uuid.NewString()[:8]
		}
		if job.To == "" {
			s.logger.Warn("skipping reminder without recipient", "job", job.ID)
			continue
		}
		if _, err := s.cron.AddFunc(job.Cron, func() { s.deliver(job) }); err != nil {
			s.logger.Warn("skipping reminder with invalid schedule",
				"job", job.ID, "cron", job.Cron, "error", err)
			continue
		}
		s.logger.Info("reminder registered", "job", job.ID, "cron", job.Cron, "to", job.To)
		registered++
	}

	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", registered, "timezone", s.cfg.Timezone)
	return nil
}

// Stop halts the cron loop, waiting for any running delivery to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
	s.logger.Info("scheduler stopped")
}

// deliver sends one reminder. Failures are logged, never fatal: the next
// scheduled run retries naturally.
func (s *Scheduler) deliver(job Reminder) {
	ctx, cancel := context.WithTimeout(s.ctx, 30*time.Second)
	defer cancel()

	s.logger.Info("executing reminder job", "job", job.ID)
	err := s.sender.Send(ctx, job.To, &channels.OutgoingMessage{Content: job.Message})
	if err != nil {
		s.logger.Error("failed to send reminder", "job", job.ID, "error", err)
		return
	}
	s.logger.Info("reminder sent", "job", job.ID)
}
