package application

import (
	"context"
	"fmt"
	"time"

	"github.com/vigil-btc/vigild/internal/core/domain"
	"github.com/vigil-btc/vigild/internal/core/ports"

	log "github.com/sirupsen/logrus"
)

type Service interface {
	Start() error
	Stop()

	CreateSwitch(ctx context.Context, input domain.SwitchInput) (string, error)
	CheckIn(ctx context.Context, id, owner string) error
	CancelSwitch(ctx context.Context, id, owner string) error
	GetSwitch(ctx context.Context, id, owner string) (*domain.Switch, error)
	ListSwitches(ctx context.Context, owner string) ([]domain.Switch, error)
	TriggerSwitch(ctx context.Context, id, owner string) (string, error)
}

type switchService struct {
	repoManager ports.RepoManager
	liveStore   ports.LiveStore
	paymentSvc  ports.PaymentService

	monitor  *monitor
	executor *executor

	policy domain.AddressPolicy
}

func NewService(
	repoManager ports.RepoManager,
	scheduler ports.SchedulerService,
	liveStore ports.LiveStore,
	paymentSvc ports.PaymentService,
	policy domain.AddressPolicy,
	monitorInterval int64,
	paymentTimeout time.Duration,
	maxTriggerAttempts uint32,
) (Service, error) {
	if monitorInterval <= 0 {
		return nil, fmt.Errorf("invalid monitor interval, must be at least 1 second")
	}
	if paymentTimeout <= 0 {
		return nil, fmt.Errorf("invalid payment timeout")
	}

	executor := newExecutor(
		repoManager, liveStore, paymentSvc, policy, paymentTimeout, maxTriggerAttempts,
	)
	monitor := newMonitor(repoManager, scheduler, executor, monitorInterval)

	svc := &switchService{
		repoManager: repoManager,
		liveStore:   liveStore,
		paymentSvc:  paymentSvc,
		monitor:     monitor,
		executor:    executor,
		policy:      policy,
	}
	repoManager.RegisterEventsHandler(svc.updateProjection)

	return svc, nil
}

func (s *switchService) Start() error {
	return s.monitor.start()
}

func (s *switchService) Stop() {
	s.monitor.stop()
	s.paymentSvc.Close()
	s.repoManager.Close()
}

func (s *switchService) CreateSwitch(
	ctx context.Context, input domain.SwitchInput,
) (string, error) {
	sw, err := domain.NewSwitch(input, s.policy)
	if err != nil {
		return "", err
	}

	if _, err := s.repoManager.Events().Save(ctx, sw.Id, sw.Events()...); err != nil {
		return "", fmt.Errorf("failed to save switch %s: %w", sw.Id, err)
	}

	log.Debugf("created switch %s for owner %s", sw.Id, sw.Owner)
	return sw.Id, nil
}

func (s *switchService) CheckIn(ctx context.Context, id, owner string) error {
	release := s.liveStore.SwitchLocks().Lock(id)
	defer release()

	sw, err := s.loadOwned(ctx, id, owner)
	if err != nil {
		return err
	}

	events, err := sw.CheckIn(time.Now().Unix())
	if err != nil {
		return s.mapDomainErr(sw, err)
	}
	if len(events) <= 0 {
		// terminal switch, nothing to refresh
		return nil
	}

	if _, err := s.repoManager.Events().Save(ctx, id, events...); err != nil {
		return fmt.Errorf("failed to save check-in for switch %s: %w", id, err)
	}

	log.Debugf("check-in for switch %s, next deadline %d", id, sw.Deadline())
	return nil
}

func (s *switchService) CancelSwitch(ctx context.Context, id, owner string) error {
	release := s.liveStore.SwitchLocks().Lock(id)
	defer release()

	sw, err := s.loadOwned(ctx, id, owner)
	if err != nil {
		return err
	}

	events, err := sw.Cancel(time.Now().Unix())
	if err != nil {
		return s.mapDomainErr(sw, err)
	}

	if _, err := s.repoManager.Events().Save(ctx, id, events...); err != nil {
		return fmt.Errorf("failed to save cancellation for switch %s: %w", id, err)
	}

	log.Infof("switch %s cancelled by owner", id)
	return nil
}

func (s *switchService) GetSwitch(
	ctx context.Context, id, owner string,
) (*domain.Switch, error) {
	return s.loadOwned(ctx, id, owner)
}

func (s *switchService) ListSwitches(
	ctx context.Context, owner string,
) ([]domain.Switch, error) {
	return s.repoManager.Switches().GetSwitchesForOwner(ctx, owner)
}

func (s *switchService) TriggerSwitch(
	ctx context.Context, id, owner string,
) (string, error) {
	if _, err := s.loadOwned(ctx, id, owner); err != nil {
		return "", err
	}

	return s.executor.execute(ctx, id, true)
}

func (s *switchService) loadOwned(
	ctx context.Context, id, owner string,
) (*domain.Switch, error) {
	sw, err := s.repoManager.Events().Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load switch %s: %w", id, err)
	}
	if sw == nil {
		return nil, ErrSwitchNotFound{id}
	}
	if sw.Owner != owner {
		return nil, ErrNotOwner{id}
	}
	return sw, nil
}

func (s *switchService) mapDomainErr(sw *domain.Switch, err error) error {
	switch err {
	case domain.ErrTriggerInFlight:
		return ErrConflict{sw.Id}
	case domain.ErrSwitchAlreadyTriggered:
		return ErrAlreadyTriggered{Id: sw.Id, Txid: payoutTxid(sw)}
	case domain.ErrSwitchNotActive:
		return ErrNotActive{Id: sw.Id, Status: sw.Status}
	default:
		return err
	}
}

func (s *switchService) updateProjection(sw *domain.Switch) {
	ctx := context.Background()
	if err := s.repoManager.Switches().AddOrUpdateSwitch(ctx, *sw); err != nil {
		log.WithError(err).Warnf("failed to update projection for switch %s", sw.Id)
	}
}

func payoutTxid(sw *domain.Switch) string {
	if sw.PayoutResult == nil {
		return ""
	}
	return sw.PayoutResult.Txid
}
