package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Envelope is the outer shape of every message delivered by the
// subscription stream. Exactly one of the three fields is set.
type Envelope struct {
	InitialSubscription *SubscriptionData `json:"InitialSubscription,omitempty"`
	SubscriptionUpdate  *SubscriptionData `json:"SubscriptionUpdate,omitempty"`
	TransactionUpdate   *TransactionData  `json:"TransactionUpdate,omitempty"`
}

type SubscriptionData struct {
	DatabaseUpdate DatabaseUpdate `json:"database_update"`
}

type DatabaseUpdate struct {
	Tables []TableUpdate `json:"tables"`
}

// TableUpdate carries the change-set for one table: one or more
// insert/delete row batches.
type TableUpdate struct {
	TableName string   `json:"table_name"`
	Updates   []RowSet `json:"updates"`
}

type RowSet struct {
	Inserts []json.RawMessage `json:"inserts"`
	Deletes []json.RawMessage `json:"deletes"`
}

type TransactionData struct {
	Status      TransactionStatus `json:"status"`
	ReducerCall ReducerCall       `json:"reducer_call"`
	Timestamp   Timestamp         `json:"timestamp"`
}

// TransactionStatus is a tagged union; only committed transactions carry
// usable table changes.
type TransactionStatus struct {
	Committed *DatabaseUpdate `json:"Committed,omitempty"`
	Failed    json.RawMessage `json:"Failed,omitempty"`
}

func (s TransactionStatus) IsCommitted() bool { return s.Committed != nil }

type ReducerCall struct {
	ReducerName string `json:"reducer_name"`
}

// Timestamp accepts both the short wire key and the long one the remote
// database emits inside row payloads.
type Timestamp struct {
	EpochMicros int64
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	var obj struct {
		EpochMicros *int64 `json:"epoch_micros"`
		LongMicros  *int64 `json:"__timestamp_micros_since_unix_epoch__"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	switch {
	case obj.EpochMicros != nil:
		t.EpochMicros = *obj.EpochMicros
	case obj.LongMicros != nil:
		t.EpochMicros = *obj.LongMicros
	}
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		EpochMicros int64 `json:"epoch_micros"`
	}{t.EpochMicros})
}

func (t Timestamp) Time() time.Time {
	return time.UnixMicro(t.EpochMicros)
}

// ParseEnvelope decodes one raw stream message.
func ParseEnvelope(raw []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("parse envelope: %w", err)
	}
	if env.InitialSubscription == nil && env.SubscriptionUpdate == nil && env.TransactionUpdate == nil {
		return nil, fmt.Errorf("parse envelope: no recognized message type")
	}
	return &env, nil
}

// DecodeRow unmarshals one row payload into v. Rows arrive either as plain
// JSON or as a JSON string wrapping the row JSON, depending on the message
// path; both are accepted.
func DecodeRow(raw []byte, v any) error {
	b := bytes.TrimSpace(raw)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("decode row wrapper: %w", err)
		}
		b = []byte(s)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode row: %w", err)
	}
	return nil
}
