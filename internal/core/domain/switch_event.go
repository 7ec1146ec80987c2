package domain

const SwitchTopic = "switch"

type SwitchEvent interface {
	GetTopic() string
}

func (e SwitchCreated) GetTopic() string   { return SwitchTopic }
func (e SwitchCheckedIn) GetTopic() string { return SwitchTopic }
func (e SwitchCancelled) GetTopic() string { return SwitchTopic }
func (e TriggerStarted) GetTopic() string  { return SwitchTopic }
func (e SwitchTriggered) GetTopic() string { return SwitchTopic }
func (e TriggerFailed) GetTopic() string   { return SwitchTopic }

type SwitchCreated struct {
	Id              string
	Owner           string
	Name            string
	Description     string
	SourceAddress   string
	CheckInInterval int64
	Recipients      []Recipient
	Timestamp       int64
}

type SwitchCheckedIn struct {
	Id        string
	Timestamp int64
}

type SwitchCancelled struct {
	Id        string
	Timestamp int64
}

type TriggerStarted struct {
	Id        string
	Attempt   uint32
	Timestamp int64
}

type SwitchTriggered struct {
	Id        string
	Txid      string
	Timestamp int64
}

type TriggerFailed struct {
	Id        string
	Reason    string
	Final     bool
	Timestamp int64
}
