package timescheduler

import (
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/vigil-btc/vigild/internal/core/ports"
)

type service struct {
	scheduler *gocron.Scheduler
}

func NewScheduler() ports.SchedulerService {
	svc := gocron.NewScheduler(time.UTC)
	return &service{svc}
}

func (s *service) Start() {
	s.scheduler.StartAsync()
}

func (s *service) Stop() {
	s.scheduler.Stop()
}

func (s *service) ScheduleTaskRecurring(intervalSeconds int64, task func()) error {
	if intervalSeconds <= 0 {
		return fmt.Errorf("invalid interval, must be at least 1 second")
	}

	_, err := s.scheduler.Every(int(intervalSeconds)).Seconds().Do(task)
	return err
}
