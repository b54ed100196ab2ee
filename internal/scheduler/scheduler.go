package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/event-weather-advisor/internal/recommend"
)

// Runner is the batch entrypoint the scheduler drives.
type Runner interface {
	Run(ctx context.Context, userID string, forceRefresh bool) (recommend.Report, error)
}

// Scheduler periodically regenerates recommendations for configured users.
type Scheduler struct {
	scheduler *gocron.Scheduler
	pipeline  Runner
	users     []string
	interval  time.Duration
}

// New creates a new Scheduler.
func New(users []string, interval time.Duration, pipeline Runner) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	return &Scheduler{
		scheduler: s,
		pipeline:  pipeline,
		users:     users,
		interval:  interval,
	}
}

// Start schedules the periodic job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	if len(s.users) == 0 {
		log.Println("scheduler: no users configured; nothing to schedule")
		return nil
	}

	minutes := int(s.interval.Minutes())
	if minutes <= 0 {
		minutes = 60
	}

	_, err := s.scheduler.Every(minutes).Minutes().Do(func() {
		log.Println("scheduler: running recommendation job")

		var wg sync.WaitGroup
		for _, user := range s.users {
			user := user
			wg.Add(1)
			go func() {
				defer wg.Done()

				ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
				defer cancel()

				report, err := s.pipeline.Run(ctx, user, false)
				if err != nil {
					log.Printf("scheduler: run failed for user %s: %v", user, err)
					return
				}
				if report.Cached {
					log.Printf("scheduler: user %s still fresh, skipped", user)
					return
				}
				log.Printf("scheduler: user %s: %d/%d events produced recommendations", user, report.Succeeded, report.Attempted)
			}()
		}
		wg.Wait()
		log.Println("scheduler: completed recommendation job")
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
