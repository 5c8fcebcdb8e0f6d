package amqp

import (
	"encoding/json"
	"time"

	"payback/internal/core"
)

type EventType string

const (
	EventMemberAdded   EventType = "member.added"
	EventMemberDeleted EventType = "member.deleted"
	EventBillSet       EventType = "bill.set"
	EventPaymentSet    EventType = "payment.set"
	EventPaymentUnset  EventType = "payment.unset"
)

// LedgerEvent announces a committed mutation. It carries only identifiers
// and the affected periods; consumers read current state from the store.
type LedgerEvent struct {
	Type      EventType     `json:"type"`
	Periods   []core.Period `json:"periods,omitempty"`
	BillID    int64         `json:"bill_id,omitempty"`
	MemberID  int64         `json:"member_id,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

func NewLedgerEvent(t EventType, periods ...core.Period) *LedgerEvent {
	return &LedgerEvent{
		Type:      t,
		Periods:   periods,
		Timestamp: time.Now(),
	}
}

func (e *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var e LedgerEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
