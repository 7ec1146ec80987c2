package application

import (
	"context"
	"fmt"
	"time"

	"github.com/vigil-btc/vigild/internal/core/domain"
	"github.com/vigil-btc/vigild/internal/core/ports"

	log "github.com/sirupsen/logrus"
)

// executor resolves a trigger for a single switch: it claims the switch
// into the pending sub-state under its lock, releases the lock for the
// unbounded external send, then re-acquires it to record the outcome. The
// payout is invoked at most once per resolution; an ambiguous outcome
// (timeout, transport error) is recorded as a failure, never as success.
type executor struct {
	repoManager ports.RepoManager
	liveStore   ports.LiveStore
	paymentSvc  ports.PaymentService

	policy         domain.AddressPolicy
	paymentTimeout time.Duration
	maxAttempts    uint32 // 0 means unlimited retries
}

func newExecutor(
	repoManager ports.RepoManager,
	liveStore ports.LiveStore,
	paymentSvc ports.PaymentService,
	policy domain.AddressPolicy,
	paymentTimeout time.Duration,
	maxAttempts uint32,
) *executor {
	return &executor{
		repoManager,
		liveStore,
		paymentSvc,
		policy,
		paymentTimeout,
		maxAttempts,
	}
}

// execute runs one trigger resolution for the given switch id. The manual
// flag skips the expiry check only; idempotency and exclusion hold on both
// paths. In automatic mode a switch that is no longer expired (a check-in
// won the race) is skipped without error.
func (e *executor) execute(ctx context.Context, id string, manual bool) (string, error) {
	sw, err := e.claim(ctx, id, manual)
	if err != nil || sw == nil {
		return "", err
	}

	txid, sendErr := e.sendPayout(ctx, sw)

	return e.finalize(id, txid, sendErr)
}

// recover resolves a switch left pending by a crash between claim and
// finalize. The send outcome of the interrupted resolution is unknown and
// ambiguity never counts as success, so the attempt is recorded as a
// non-final failure and the switch returns to active for the next pass.
func (e *executor) recover(ctx context.Context, id string) error {
	release := e.liveStore.SwitchLocks().Lock(id)
	defer release()

	sw, err := e.repoManager.Events().Load(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load switch %s: %w", id, err)
	}
	if sw == nil || sw.Status != domain.StatusPending {
		return nil
	}

	events, err := sw.FailTrigger("resolution interrupted by restart", false, time.Now().Unix())
	if err != nil {
		return err
	}
	if _, err := e.repoManager.Events().Save(ctx, id, events...); err != nil {
		return fmt.Errorf("failed to recover switch %s: %w", id, err)
	}

	log.Warnf("switch %s was pending at startup, returned to active for retry", id)
	return nil
}

func (e *executor) claim(
	ctx context.Context, id string, manual bool,
) (*domain.Switch, error) {
	release := e.liveStore.SwitchLocks().Lock(id)
	defer release()

	sw, err := e.repoManager.Events().Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load switch %s: %w", id, err)
	}
	if sw == nil {
		return nil, ErrSwitchNotFound{id}
	}

	switch sw.Status {
	case domain.StatusTriggered:
		return nil, ErrAlreadyTriggered{Id: id, Txid: payoutTxid(sw)}
	case domain.StatusCancelled:
		return nil, ErrNotActive{Id: id, Status: sw.Status}
	case domain.StatusPending:
		return nil, ErrConflict{id}
	}

	if !manual && !sw.IsExpired(time.Now().Unix()) {
		// a check-in landed before the claim was finalized
		log.Debugf("switch %s no longer expired, trigger averted", id)
		return nil, nil
	}

	events, err := sw.StartTrigger(time.Now().Unix())
	if err != nil {
		return nil, err
	}
	if _, err := e.repoManager.Events().Save(ctx, id, events...); err != nil {
		return nil, fmt.Errorf("failed to claim switch %s: %w", id, err)
	}

	log.Debugf("claimed switch %s for payout (attempt %d)", id, sw.TriggerAttempts)
	return sw, nil
}

func (e *executor) sendPayout(
	ctx context.Context, sw *domain.Switch,
) (string, error) {
	// defense against corruption since creation
	if err := sw.ValidatePayout(e.policy); err != nil {
		return "", err
	}

	outputs := make([]ports.TxOutput, 0, len(sw.Recipients))
	for _, r := range sw.Recipients {
		outputs = append(outputs, ports.TxOutput{Address: r.Address, Amount: r.Amount})
	}

	sendCtx, cancel := context.WithTimeout(ctx, e.paymentTimeout)
	defer cancel()

	txid, err := e.paymentSvc.Send(sendCtx, sw.SourceAddress, outputs)
	if err != nil {
		return "", err
	}
	if len(txid) <= 0 {
		return "", fmt.Errorf("payment subsystem returned empty txid")
	}
	return txid, nil
}

// finalize records the send outcome. It runs detached from the caller's
// context: the outcome must be persisted even if the request that started
// the resolution is gone.
func (e *executor) finalize(id, txid string, sendErr error) (string, error) {
	ctx := context.Background()

	release := e.liveStore.SwitchLocks().Lock(id)
	defer release()

	sw, err := e.repoManager.Events().Load(ctx, id)
	if err != nil {
		return "", fmt.Errorf("failed to reload switch %s: %w", id, err)
	}
	if sw == nil {
		return "", ErrSwitchNotFound{id}
	}

	now := time.Now().Unix()

	if sendErr != nil {
		final := e.maxAttempts > 0 && sw.TriggerAttempts >= e.maxAttempts
		events, err := sw.FailTrigger(sendErr.Error(), final, now)
		if err != nil {
			return "", err
		}
		if _, err := e.repoManager.Events().Save(ctx, id, events...); err != nil {
			return "", fmt.Errorf("failed to record payout failure for switch %s: %w", id, err)
		}
		if final {
			log.Warnf(
				"switch %s exhausted %d trigger attempts, parked for manual intervention",
				id, e.maxAttempts,
			)
		} else {
			log.WithError(sendErr).Warnf("payout for switch %s failed, will retry", id)
		}
		return "", ErrPayoutFailed{Id: id, Reason: sendErr.Error()}
	}

	events, err := sw.CompleteTrigger(txid, now)
	if err != nil {
		return "", err
	}
	if _, err := e.repoManager.Events().Save(ctx, id, events...); err != nil {
		return "", fmt.Errorf("failed to record payout for switch %s: %w", id, err)
	}

	log.Infof("switch %s triggered, payout txid %s", id, txid)
	return txid, nil
}
