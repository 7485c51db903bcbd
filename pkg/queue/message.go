package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"time"
)

// Status is the lifecycle state name of a Message.
type Status string

const (
	StatusAvailable Status = "available"
	StatusReserved  Status = "reserved"
	StatusDeleted   Status = "deleted"
)

const (
	AttrID           = "id"
	AttrCreatedOn    = "created_on"
	AttrSenderID     = "sender_id"
	AttrMessageID    = "message_id"
	AttrSubscriberID = "subscriber_id"
	AttrBody         = "body"
	AttrStatus       = "status"
	AttrReservedOn   = "reserved_on"
	AttrTimesOutOn   = "times_out_on"
	AttrDeletedOn    = "deleted_on"
)

// ParseStatus converts a status name into a Status.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusAvailable, StatusReserved, StatusDeleted:
		return Status(s), nil
	default:
		return "", fmt.Errorf("unknown message status %q", s)
	}
}

type (
	// State is the tagged lifecycle variant of a Message: Available, Reserved or Deleted.
	State interface {
		Status() Status
		isState()
	}

	// Available messages can be peeked or pulled.
	Available struct{}

	// Reserved messages are claimed by a consumer until TimesOutOn.
	Reserved struct {
		ReservedOn time.Time
		TimesOutOn time.Time
	}

	// Deleted messages are logically gone.
	Deleted struct {
		DeletedOn time.Time
	}
)

func (Available) Status() Status { return StatusAvailable }
func (Reserved) Status() Status  { return StatusReserved }
func (Deleted) Status() Status   { return StatusDeleted }

func (Available) isState() {}
func (Reserved) isState()  {}
func (Deleted) isState()   {}

// Message is one queue item.
type Message struct {
	ID        string
	CreatedOn time.Time
	SenderID  string
	// MessageID points at the original message when this one is a per-subscriber copy.
	MessageID    string
	SubscriberID string
	Body         any
	State        State
}

// Status returns the lifecycle status, treating a nil State as available.
func (m *Message) Status() Status {
	if m.State == nil {
		return StatusAvailable
	}

	return m.State.Status()
}

// Attributes returns the serializable attribute set. The set depends on the state: reservation
// timestamps are only present while reserved and the deletion timestamp only once deleted.
func (m *Message) Attributes() map[string]any {
	attrs := map[string]any{
		AttrID:        m.ID,
		AttrCreatedOn: m.CreatedOn,
		AttrSenderID:  m.SenderID,
		AttrBody:      m.Body,
	}

	switch s := m.State.(type) {
	case Reserved:
		attrs[AttrReservedOn] = s.ReservedOn
		attrs[AttrTimesOutOn] = s.TimesOutOn
	case Deleted:
		attrs[AttrDeletedOn] = s.DeletedOn
	}

	return attrs
}

// SetAttributes bulk-assigns attributes from a map. Anything that is not a map is ignored.
func (m *Message) SetAttributes(values any) {
	var attrs map[string]any

	switch v := values.(type) {
	case map[string]any:
		attrs = v
	case map[string]string:
		attrs = make(map[string]any, len(v))
		for key, value := range v {
			attrs[key] = value
		}
	default:
		return
	}

	if v, ok := attrs[AttrID]; ok {
		m.ID = stringValue(v)
	}
	if v, ok := attrs[AttrSenderID]; ok {
		m.SenderID = stringValue(v)
	}
	if v, ok := attrs[AttrMessageID]; ok {
		m.MessageID = stringValue(v)
	}
	if v, ok := attrs[AttrSubscriberID]; ok {
		m.SubscriberID = stringValue(v)
	}
	if v, ok := attrs[AttrBody]; ok {
		m.Body = v
	}
	if v, ok := attrs[AttrCreatedOn]; ok {
		if t, ok := timeValue(v); ok {
			m.CreatedOn = t
		}
	}

	status := m.Status()
	if v, ok := attrs[AttrStatus]; ok {
		if parsed, err := ParseStatus(stringValue(v)); err == nil {
			status = parsed
		}
	}

	switch status {
	case StatusReserved:
		reserved, _ := m.State.(Reserved)
		if t, ok := timeValue(attrs[AttrReservedOn]); ok {
			reserved.ReservedOn = t
		}
		if t, ok := timeValue(attrs[AttrTimesOutOn]); ok {
			reserved.TimesOutOn = t
		}
		m.State = reserved
	case StatusDeleted:
		deleted, _ := m.State.(Deleted)
		if t, ok := timeValue(attrs[AttrDeletedOn]); ok {
			deleted.DeletedOn = t
		}
		m.State = deleted
	default:
		m.State = Available{}
	}
}

// MarshalJSON encodes the state-conditioned attribute set plus the status name and, for
// per-subscriber copies, the back-reference and owner.
func (m *Message) MarshalJSON() ([]byte, error) {
	attrs := m.Attributes()
	attrs[AttrStatus] = m.Status()

	if m.MessageID != "" {
		attrs[AttrMessageID] = m.MessageID
	}
	if m.SubscriberID != "" {
		attrs[AttrSubscriberID] = m.SubscriberID
	}

	return json.Marshal(attrs)
}

// UnmarshalJSON rebuilds a message from its encoded attribute set.
func (m *Message) UnmarshalJSON(data []byte) error {
	var attrs map[string]any
	if err := json.Unmarshal(data, &attrs); err != nil {
		return fmt.Errorf("could not unmarshal message: %w", err)
	}

	m.SetAttributes(attrs)

	return nil
}

// Encode returns the wire representation of the message.
func (m *Message) Encode() ([]byte, error) {
	content, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("could not marshal message: %w", err)
	}

	return content, nil
}

// Decode parses a wire representation produced by Encode.
func Decode(data []byte) (*Message, error) {
	msg := &Message{}
	if err := json.Unmarshal(data, msg); err != nil {
		return nil, err
	}

	return msg, nil
}

// Unmarshal parses the body field of the receiver message and stores the result in the value pointed to by target.
func (m *Message) Unmarshal(target any) error {
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return errors.New("target must be a non-nil pointer")
	}

	bodyData, err := json.Marshal(m.Body)
	if err != nil {
		return fmt.Errorf("could not marshal message body: %w", err)
	}

	if err := json.Unmarshal(bodyData, target); err != nil {
		return fmt.Errorf("could not unmarshal into target: %w", err)
	}

	return nil
}

func stringValue(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	default:
		return fmt.Sprint(s)
	}
}

func timeValue(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, !t.IsZero()
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}

		return *t, true
	case string:
		if t == "" {
			return time.Time{}, false
		}
		if parsed, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return parsed, true
		}
		if secs, err := strconv.ParseInt(t, 10, 64); err == nil {
			return time.Unix(secs, 0).UTC(), true
		}

		return time.Time{}, false
	case int64:
		return time.Unix(t, 0).UTC(), true
	case float64:
		return time.Unix(int64(t), 0).UTC(), true
	default:
		return time.Time{}, false
	}
}
