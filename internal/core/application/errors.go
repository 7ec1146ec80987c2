package application

import (
	"fmt"

	"github.com/vigil-btc/vigild/internal/core/domain"
)

// ErrSwitchNotFound is returned when no switch exists for the given id.
type ErrSwitchNotFound struct {
	Id string
}

func (e ErrSwitchNotFound) Error() string {
	return fmt.Sprintf("switch %s not found", e.Id)
}

// ErrNotOwner is returned when the caller is not the switch's owner.
type ErrNotOwner struct {
	Id string
}

func (e ErrNotOwner) Error() string {
	return fmt.Sprintf("not the owner of switch %s", e.Id)
}

// ErrConflict signals that a trigger resolution is in flight for the
// switch; the caller should retry shortly.
type ErrConflict struct {
	Id string
}

func (e ErrConflict) Error() string {
	return fmt.Sprintf("switch %s has a trigger resolution in flight, retry shortly", e.Id)
}

// ErrAlreadyTriggered is an idempotent signal, not a failure: the payout
// has already been sent exactly once.
type ErrAlreadyTriggered struct {
	Id   string
	Txid string
}

func (e ErrAlreadyTriggered) Error() string {
	return fmt.Sprintf("switch %s already triggered", e.Id)
}

// ErrNotActive is returned when an operation requires an active switch but
// it has reached a terminal state.
type ErrNotActive struct {
	Id     string
	Status domain.SwitchStatus
}

func (e ErrNotActive) Error() string {
	return fmt.Sprintf("switch %s is %s", e.Id, e.Status)
}

// ErrPayoutFailed is returned when the external send failed or timed out.
// The switch stays active and is retried on the next evaluation cycle or
// manual attempt.
type ErrPayoutFailed struct {
	Id     string
	Reason string
}

func (e ErrPayoutFailed) Error() string {
	return fmt.Sprintf("payout for switch %s failed: %s", e.Id, e.Reason)
}
