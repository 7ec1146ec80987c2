package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	StatusActive SwitchStatus = iota
	StatusPending
	StatusTriggered
	StatusCancelled
)

const (
	MinCheckInIntervalDays = 1
	MaxCheckInIntervalDays = 365

	secondsPerDay = 24 * 60 * 60
)

var (
	ErrSwitchNotActive        = errors.New("switch is not active")
	ErrSwitchAlreadyTriggered = errors.New("switch already triggered")
	ErrTriggerInFlight        = errors.New("trigger resolution in flight")
)

type SwitchStatus int

func (s SwitchStatus) String() string {
	switch s {
	case StatusActive:
		return "ACTIVE"
	case StatusPending:
		return "PENDING"
	case StatusTriggered:
		return "TRIGGERED"
	case StatusCancelled:
		return "CANCELLED"
	default:
		return "UNDEFINED"
	}
}

func (s SwitchStatus) IsTerminal() bool {
	return s == StatusTriggered || s == StatusCancelled
}

// ValidationError reports the first violated creation or payout rule with a
// human-readable reason. Nothing is persisted when it is returned.
type ValidationError struct {
	Reason string
}

func (e ValidationError) Error() string {
	return e.Reason
}

type Recipient struct {
	Name    string
	Address string
	Amount  uint64 // satoshis
}

type PayoutResult struct {
	Txid      string
	Err       string
	Timestamp int64
}

type SwitchInput struct {
	Owner         string
	Name          string
	Description   string
	SourceAddress string
	IntervalDays  int64
	Recipients    []Recipient
}

func (i SwitchInput) validate(policy AddressPolicy) error {
	if len(i.Owner) <= 0 {
		return ValidationError{"missing owner"}
	}
	if len(strings.TrimSpace(i.Name)) <= 0 {
		return ValidationError{"switch name is required"}
	}
	if len(strings.TrimSpace(i.Description)) <= 0 {
		return ValidationError{"description is required"}
	}
	if len(strings.TrimSpace(i.SourceAddress)) <= 0 {
		return ValidationError{"source address is required"}
	}
	if !policy.Valid(i.SourceAddress) {
		return ValidationError{"invalid source address"}
	}
	if i.IntervalDays < MinCheckInIntervalDays || i.IntervalDays > MaxCheckInIntervalDays {
		return ValidationError{fmt.Sprintf(
			"check-in interval must be between %d and %d days",
			MinCheckInIntervalDays, MaxCheckInIntervalDays,
		)}
	}
	if len(i.Recipients) <= 0 {
		return ValidationError{"at least one recipient is required"}
	}
	for n, r := range i.Recipients {
		if err := validateRecipient(r, policy); err != nil {
			return ValidationError{fmt.Sprintf("recipient %d: %s", n+1, err)}
		}
	}
	return nil
}

func validateRecipient(r Recipient, policy AddressPolicy) error {
	if len(strings.TrimSpace(r.Name)) <= 0 {
		return fmt.Errorf("name is required")
	}
	if len(strings.TrimSpace(r.Address)) <= 0 {
		return fmt.Errorf("address is required")
	}
	if !policy.Valid(r.Address) {
		return fmt.Errorf("invalid address")
	}
	if r.Amount <= 0 {
		return fmt.Errorf("amount must be a positive number of satoshis")
	}
	return nil
}

// Switch is the aggregate root: a deadline-triggered payout plan owned by a
// single principal. State is rebuilt by replaying its events.
type Switch struct {
	Id                 string
	Owner              string
	Name               string
	Description        string
	SourceAddress      string
	CheckInInterval    int64 // seconds
	LastCheckIn        int64
	Status             SwitchStatus
	Recipients         []Recipient
	CreatedAt          int64
	TriggerAttempts    uint32
	LastTriggerAttempt int64
	PayoutResult       *PayoutResult
	Version            uint
	changes            []SwitchEvent
}

func NewSwitch(input SwitchInput, policy AddressPolicy) (*Switch, error) {
	if err := input.validate(policy); err != nil {
		return nil, err
	}

	s := &Switch{changes: make([]SwitchEvent, 0)}
	s.raise(SwitchCreated{
		Id:              uuid.New().String(),
		Owner:           input.Owner,
		Name:            strings.TrimSpace(input.Name),
		Description:     strings.TrimSpace(input.Description),
		SourceAddress:   strings.TrimSpace(input.SourceAddress),
		CheckInInterval: input.IntervalDays * secondsPerDay,
		Recipients:      append([]Recipient{}, input.Recipients...),
		Timestamp:       time.Now().Unix(),
	})
	return s, nil
}

func NewSwitchFromEvents(events []SwitchEvent) *Switch {
	s := &Switch{}

	for _, event := range events {
		s.On(event, true)
	}

	s.changes = append([]SwitchEvent{}, events...)

	return s
}

func (s *Switch) Events() []SwitchEvent {
	return s.changes
}

func (s *Switch) On(event SwitchEvent, replayed bool) {
	switch e := event.(type) {
	case SwitchCreated:
		s.Id = e.Id
		s.Owner = e.Owner
		s.Name = e.Name
		s.Description = e.Description
		s.SourceAddress = e.SourceAddress
		s.CheckInInterval = e.CheckInInterval
		s.Recipients = append([]Recipient{}, e.Recipients...)
		s.CreatedAt = e.Timestamp
		s.LastCheckIn = e.Timestamp
		s.Status = StatusActive
	case SwitchCheckedIn:
		s.LastCheckIn = e.Timestamp
	case SwitchCancelled:
		s.Status = StatusCancelled
	case TriggerStarted:
		s.Status = StatusPending
		s.TriggerAttempts = e.Attempt
		s.LastTriggerAttempt = e.Timestamp
	case SwitchTriggered:
		s.Status = StatusTriggered
		s.PayoutResult = &PayoutResult{Txid: e.Txid, Timestamp: e.Timestamp}
	case TriggerFailed:
		if e.Final {
			s.Status = StatusTriggered
		} else {
			s.Status = StatusActive
		}
		s.PayoutResult = &PayoutResult{Err: e.Reason, Timestamp: e.Timestamp}
	}

	if replayed {
		s.Version++
	}
}

// Deadline is the instant after which the switch is eligible to fire.
func (s *Switch) Deadline() int64 {
	return s.LastCheckIn + s.CheckInInterval
}

func (s *Switch) IsExpired(now int64) bool {
	return s.Status == StatusActive && now >= s.Deadline()
}

func (s *Switch) TotalAmount() uint64 {
	tot := uint64(0)
	for _, r := range s.Recipients {
		tot += r.Amount
	}
	return tot
}

// CheckIn refreshes the deadline clock. Against a terminal switch it is a
// silent no-op: a check-in landing after the payout has been sent cannot
// revert it, and must not fail either.
func (s *Switch) CheckIn(now int64) ([]SwitchEvent, error) {
	if s.Status.IsTerminal() {
		return nil, nil
	}
	if s.Status == StatusPending {
		return nil, ErrTriggerInFlight
	}

	event := SwitchCheckedIn{
		Id:        s.Id,
		Timestamp: now,
	}
	s.raise(event)

	return []SwitchEvent{event}, nil
}

func (s *Switch) Cancel(now int64) ([]SwitchEvent, error) {
	if s.Status == StatusPending {
		return nil, ErrTriggerInFlight
	}
	if s.Status != StatusActive {
		return nil, ErrSwitchNotActive
	}

	event := SwitchCancelled{
		Id:        s.Id,
		Timestamp: now,
	}
	s.raise(event)

	return []SwitchEvent{event}, nil
}

// StartTrigger claims the switch for payout execution, moving it to the
// pending sub-state so that no concurrent evaluation can claim it again.
func (s *Switch) StartTrigger(now int64) ([]SwitchEvent, error) {
	switch s.Status {
	case StatusPending:
		return nil, ErrTriggerInFlight
	case StatusTriggered:
		return nil, ErrSwitchAlreadyTriggered
	case StatusCancelled:
		return nil, ErrSwitchNotActive
	}

	event := TriggerStarted{
		Id:        s.Id,
		Attempt:   s.TriggerAttempts + 1,
		Timestamp: now,
	}
	s.raise(event)

	return []SwitchEvent{event}, nil
}

func (s *Switch) CompleteTrigger(txid string, now int64) ([]SwitchEvent, error) {
	if s.Status != StatusPending {
		return nil, fmt.Errorf("not in a valid state to complete trigger")
	}
	if len(txid) <= 0 {
		return nil, fmt.Errorf("missing payout txid")
	}

	event := SwitchTriggered{
		Id:        s.Id,
		Txid:      txid,
		Timestamp: now,
	}
	s.raise(event)

	return []SwitchEvent{event}, nil
}

// FailTrigger records a failed payout attempt. A non-final failure returns
// the switch to active, leaving it eligible for retry at the next
// evaluation; a final one parks it as triggered-with-failure for manual
// intervention.
func (s *Switch) FailTrigger(reason string, final bool, now int64) ([]SwitchEvent, error) {
	if s.Status != StatusPending {
		return nil, fmt.Errorf("not in a valid state to fail trigger")
	}

	event := TriggerFailed{
		Id:        s.Id,
		Reason:    reason,
		Final:     final,
		Timestamp: now,
	}
	s.raise(event)

	return []SwitchEvent{event}, nil
}

// ValidatePayout re-checks source address and recipients before a payout
// request is constructed, guarding against corruption since creation.
func (s *Switch) ValidatePayout(policy AddressPolicy) error {
	if !policy.Valid(s.SourceAddress) {
		return ValidationError{"invalid source address"}
	}
	if len(s.Recipients) <= 0 {
		return ValidationError{"no recipients configured"}
	}
	for n, r := range s.Recipients {
		if err := validateRecipient(r, policy); err != nil {
			return ValidationError{fmt.Sprintf("recipient %d: %s", n+1, err)}
		}
	}
	return nil
}

func (s *Switch) raise(event SwitchEvent) {
	if s.changes == nil {
		s.changes = make([]SwitchEvent, 0)
	}
	s.changes = append(s.changes, event)
	s.On(event, false)
}
