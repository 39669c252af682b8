package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// ChallengeScheduler periodically ends challenges whose window has closed.
type ChallengeScheduler struct {
	sched      gocron.Scheduler
	challenges *ChallengeService
}

func NewChallengeScheduler(challenges *ChallengeService, interval time.Duration) (*ChallengeScheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	cs := &ChallengeScheduler{sched: sched, challenges: challenges}

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(cs.endExpired),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to schedule challenge expiry job: %w", err)
	}

	return cs, nil
}

func (cs *ChallengeScheduler) endExpired() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	n, err := cs.challenges.EndExpiredChallenges(ctx)
	if err != nil {
		log.Printf("[Scheduler] Failed to end expired challenges: %v", err)
		return
	}
	if n > 0 {
		log.Printf("[Scheduler] Ended %d expired challenges", n)
	}
}

func (cs *ChallengeScheduler) Start() {
	cs.sched.Start()
	log.Println("Challenge scheduler started")
}

func (cs *ChallengeScheduler) Shutdown() error {
	return cs.sched.Shutdown()
}
