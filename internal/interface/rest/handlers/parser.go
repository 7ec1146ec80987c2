package handlers

import (
	"github.com/vigil-btc/vigild/internal/core/domain"
)

type recipientDTO struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Amount  uint64 `json:"amount"`
}

type createSwitchRequest struct {
	Name                string         `json:"name"`
	Description         string         `json:"description"`
	CheckInIntervalDays int64          `json:"checkInIntervalDays"`
	SourceAddress       string         `json:"sourceAddress"`
	Recipients          []recipientDTO `json:"recipients"`
}

func (r createSwitchRequest) toInput(owner string) domain.SwitchInput {
	recipients := make([]domain.Recipient, 0, len(r.Recipients))
	for _, recipient := range r.Recipients {
		recipients = append(recipients, domain.Recipient{
			Name:    recipient.Name,
			Address: recipient.Address,
			Amount:  recipient.Amount,
		})
	}
	return domain.SwitchInput{
		Owner:         owner,
		Name:          r.Name,
		Description:   r.Description,
		SourceAddress: r.SourceAddress,
		IntervalDays:  r.CheckInIntervalDays,
		Recipients:    recipients,
	}
}

type payoutResultDTO struct {
	Txid      string `json:"txid,omitempty"`
	Error     string `json:"error,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

type switchDTO struct {
	Id                 string           `json:"id"`
	Name               string           `json:"name"`
	Description        string           `json:"description"`
	SourceAddress      string           `json:"sourceAddress"`
	Status             string           `json:"status"`
	CheckInInterval    int64            `json:"checkInInterval"`
	LastCheckIn        int64            `json:"lastCheckIn"`
	Deadline           int64            `json:"deadline"`
	Created            int64            `json:"created"`
	Recipients         []recipientDTO   `json:"recipients"`
	TotalAmount        uint64           `json:"totalAmount"`
	TriggerAttempts    uint32           `json:"triggerAttempts,omitempty"`
	LastTriggerAttempt int64            `json:"lastTriggerAttempt,omitempty"`
	PayoutResult       *payoutResultDTO `json:"payoutResult,omitempty"`
}

func toSwitchDTO(sw domain.Switch) switchDTO {
	recipients := make([]recipientDTO, 0, len(sw.Recipients))
	for _, recipient := range sw.Recipients {
		recipients = append(recipients, recipientDTO{
			Name:    recipient.Name,
			Address: recipient.Address,
			Amount:  recipient.Amount,
		})
	}

	dto := switchDTO{
		Id:                 sw.Id,
		Name:               sw.Name,
		Description:        sw.Description,
		SourceAddress:      sw.SourceAddress,
		Status:             sw.Status.String(),
		CheckInInterval:    sw.CheckInInterval,
		LastCheckIn:        sw.LastCheckIn,
		Deadline:           sw.Deadline(),
		Created:            sw.CreatedAt,
		Recipients:         recipients,
		TotalAmount:        sw.TotalAmount(),
		TriggerAttempts:    sw.TriggerAttempts,
		LastTriggerAttempt: sw.LastTriggerAttempt,
	}
	if sw.PayoutResult != nil {
		dto.PayoutResult = &payoutResultDTO{
			Txid:      sw.PayoutResult.Txid,
			Error:     sw.PayoutResult.Err,
			Timestamp: sw.PayoutResult.Timestamp,
		}
	}
	return dto
}
