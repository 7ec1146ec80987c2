package badgerdb

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/timshannon/badgerhold/v4"
	"github.com/vigil-btc/vigild/internal/core/domain"
)

const (
	eventTypeCreated      = "switch_created"
	eventTypeCheckedIn    = "switch_checked_in"
	eventTypeCancelled    = "switch_cancelled"
	eventTypeTriggerStart = "trigger_started"
	eventTypeTriggered    = "switch_triggered"
	eventTypeTriggerFail  = "trigger_failed"
)

func createDB(dbDir string, logger badger.Logger) (*badgerhold.Store, error) {
	isInMemory := len(dbDir) <= 0

	opts := badger.DefaultOptions(dbDir)
	opts.Logger = logger

	if isInMemory {
		opts.InMemory = true
	} else {
		opts.Compression = options.ZSTD
	}

	db, err := badgerhold.Open(badgerhold.Options{
		Encoder:          badgerhold.DefaultEncode,
		Decoder:          badgerhold.DefaultDecode,
		SequenceBandwith: 100,
		Options:          opts,
	})
	if err != nil {
		return nil, err
	}

	if !isInMemory {
		ticker := time.NewTicker(30 * time.Minute)

		go func() {
			for {
				<-ticker.C
				if err := db.Badger().RunValueLogGC(0.5); err != nil && err != badger.ErrNoRewrite {
					if logger != nil {
						logger.Errorf("%s", err)
					}
				}
			}
		}()
	}

	return db, nil
}

// eventEnvelope tags each serialized event with its kind: several event
// shapes are indistinguishable by their fields alone.
type eventEnvelope struct {
	Type  string
	Event json.RawMessage
}

type eventsDTO struct {
	Events [][]byte
}

func serializeEvents(events []domain.SwitchEvent) (*eventsDTO, error) {
	rawEvents := make([][]byte, 0, len(events))
	for _, event := range events {
		buf, err := serializeEvent(event)
		if err != nil {
			return nil, err
		}
		rawEvents = append(rawEvents, buf)
	}
	return &eventsDTO{rawEvents}, nil
}

func deserializeEvents(rawEvents [][]byte) ([]domain.SwitchEvent, error) {
	events := make([]domain.SwitchEvent, 0, len(rawEvents))
	for _, buf := range rawEvents {
		event, err := deserializeEvent(buf)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, nil
}

func serializeEvent(event domain.SwitchEvent) ([]byte, error) {
	var eventType string
	switch event.(type) {
	case domain.SwitchCreated:
		eventType = eventTypeCreated
	case domain.SwitchCheckedIn:
		eventType = eventTypeCheckedIn
	case domain.SwitchCancelled:
		eventType = eventTypeCancelled
	case domain.TriggerStarted:
		eventType = eventTypeTriggerStart
	case domain.SwitchTriggered:
		eventType = eventTypeTriggered
	case domain.TriggerFailed:
		eventType = eventTypeTriggerFail
	default:
		return nil, fmt.Errorf("unknown event type %T", event)
	}

	buf, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	return json.Marshal(eventEnvelope{Type: eventType, Event: buf})
}

func deserializeEvent(buf []byte) (domain.SwitchEvent, error) {
	var envelope eventEnvelope
	if err := json.Unmarshal(buf, &envelope); err != nil {
		return nil, err
	}

	switch envelope.Type {
	case eventTypeCreated:
		var event domain.SwitchCreated
		if err := json.Unmarshal(envelope.Event, &event); err != nil {
			return nil, err
		}
		return event, nil
	case eventTypeCheckedIn:
		var event domain.SwitchCheckedIn
		if err := json.Unmarshal(envelope.Event, &event); err != nil {
			return nil, err
		}
		return event, nil
	case eventTypeCancelled:
		var event domain.SwitchCancelled
		if err := json.Unmarshal(envelope.Event, &event); err != nil {
			return nil, err
		}
		return event, nil
	case eventTypeTriggerStart:
		var event domain.TriggerStarted
		if err := json.Unmarshal(envelope.Event, &event); err != nil {
			return nil, err
		}
		return event, nil
	case eventTypeTriggered:
		var event domain.SwitchTriggered
		if err := json.Unmarshal(envelope.Event, &event); err != nil {
			return nil, err
		}
		return event, nil
	case eventTypeTriggerFail:
		var event domain.TriggerFailed
		if err := json.Unmarshal(envelope.Event, &event); err != nil {
			return nil, err
		}
		return event, nil
	default:
		return nil, fmt.Errorf("unknown event type %q", envelope.Type)
	}
}
