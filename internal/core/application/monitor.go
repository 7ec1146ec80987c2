package application

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/vigil-btc/vigild/internal/core/ports"

	log "github.com/sirupsen/logrus"
)

// monitor is an unexported service running while the main application
// service is started. On a recurring cadence it scans the projection for
// active switches past their deadline and offers each one to the executor.
// It never mutates state itself: the atomic claim-and-fire decision belongs
// to the executor, under the same per-switch exclusion used by check-ins.
type monitor struct {
	repoManager ports.RepoManager
	scheduler   ports.SchedulerService
	executor    *executor

	interval int64

	// cache of switches currently being executed, avoid offering the same
	// switch twice while a resolution is in flight
	locker   sync.Locker
	inflight map[string]struct{}
}

func newMonitor(
	repoManager ports.RepoManager,
	scheduler ports.SchedulerService,
	executor *executor,
	interval int64,
) *monitor {
	return &monitor{
		repoManager,
		scheduler,
		executor,
		interval,
		&sync.Mutex{},
		make(map[string]struct{}),
	}
}

func (m *monitor) start() error {
	m.scheduler.Start()

	ctx := context.Background()

	if ids, err := m.repoManager.Switches().GetAllActiveSwitchIds(ctx); err == nil {
		log.Infof("monitoring %d active switch(es)", len(ids))
	}

	// switches left pending by a crash mid-resolution are returned to
	// active before the first pass, otherwise nothing ever offers them
	// to the executor again
	if ids, err := m.repoManager.Switches().GetPendingSwitchIds(ctx); err != nil {
		log.WithError(err).Error("error while scanning for interrupted switches")
	} else {
		for _, id := range ids {
			if err := m.executor.recover(ctx, id); err != nil {
				log.WithError(err).Warnf("failed to recover switch %s", id)
			}
		}
	}

	// one immediate pass picks up switches that expired while the daemon
	// was down
	m.evaluate()

	return m.scheduler.ScheduleTaskRecurring(m.interval, m.evaluate)
}

func (m *monitor) stop() {
	m.scheduler.Stop()
}

func (m *monitor) evaluate() {
	ctx := context.Background()
	now := time.Now().Unix()

	ids, err := m.repoManager.Switches().GetExpiredSwitchIds(ctx, now)
	if err != nil {
		log.WithError(err).Error("error while scanning for expired switches")
		return
	}
	if len(ids) <= 0 {
		return
	}

	log.Debugf("monitor: %d expired switch(es)", len(ids))

	for _, id := range ids {
		if !m.claim(id) {
			continue
		}

		go func(id string) {
			defer m.release(id)

			if _, err := m.executor.execute(ctx, id, false); err != nil {
				var alreadyTriggered ErrAlreadyTriggered
				if errors.As(err, &alreadyTriggered) {
					return
				}
				log.WithError(err).Warnf("failed to execute trigger for switch %s", id)
			}
		}(id)
	}
}

func (m *monitor) claim(id string) bool {
	m.locker.Lock()
	defer m.locker.Unlock()
	if _, ok := m.inflight[id]; ok {
		return false
	}
	m.inflight[id] = struct{}{}
	return true
}

func (m *monitor) release(id string) {
	m.locker.Lock()
	defer m.locker.Unlock()
	delete(m.inflight, id)
}
