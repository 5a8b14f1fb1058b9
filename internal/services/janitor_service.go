package services

import (
	"fmt"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// JanitorService periodically closes sessions whose user no longer has a
// live connection. Disconnects normally close the session through the
// gateway; the janitor is the backstop for connections torn down without
// a clean close event.
type JanitorService struct {
	scheduler gocron.Scheduler
	sessions  *SessionService
	loop      *LoopService
	interval  time.Duration
}

// NewJanitorService creates the janitor with the given sweep interval.
func NewJanitorService(sessions *SessionService, loop *LoopService, interval time.Duration) (*JanitorService, error) {
	scheduler, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	return &JanitorService{
		scheduler: scheduler,
		sessions:  sessions,
		loop:      loop,
		interval:  interval,
	}, nil
}

// Start registers the sweep job and starts the scheduler.
func (j *JanitorService) Start() error {
	_, err := j.scheduler.NewJob(
		gocron.DurationJob(j.interval),
		gocron.NewTask(j.sweep),
	)
	if err != nil {
		return fmt.Errorf("failed to register janitor job: %w", err)
	}

	j.scheduler.Start()
	log.Printf("🧹 Session janitor started (every %v)", j.interval)
	return nil
}

// Stop shuts the scheduler down.
func (j *JanitorService) Stop() error {
	return j.scheduler.Shutdown()
}

func (j *JanitorService) sweep() {
	j.loop.Defer(func() {
		if closed := j.sessions.SweepDisconnected(); closed > 0 {
			log.Printf("🧹 Closed %d sessions for disconnected users", closed)
		}
	})
}
