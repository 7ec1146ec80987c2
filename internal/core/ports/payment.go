package ports

import (
	"context"
	"fmt"
)

// TxOutput is one recipient of a payout, order-preserving.
type TxOutput struct {
	Address string
	Amount  uint64
}

// PaymentService is the boundary to the external payment subsystem. Send
// must be invoked at most once per trigger resolution; an ambiguous outcome
// (timeout, transport error) is reported as an error, never as success.
type PaymentService interface {
	Send(ctx context.Context, sourceAddress string, outputs []TxOutput) (string, error)
	ValidateAddress(address string) bool
	Close()
}

type SendError struct {
	Rejected bool // the subsystem refused the payout; retrying the same request will fail again
	Msg      string
}

func (e SendError) Error() string {
	if e.Rejected {
		return fmt.Sprintf("payout rejected: %s", e.Msg)
	}
	return fmt.Sprintf("payment subsystem unavailable: %s", e.Msg)
}
