package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

type Writer struct {
	DB *sql.DB
}

type EventPayload map[string]any

// Append records an event inside the caller's transaction. The caller
// supplies ts so the event carries the same instant as the row changes it
// describes.
func (w Writer) Append(ctx context.Context, tx *sql.Tx, ts, evtType, entityKind, entityID, actorID string, payload EventPayload) error {
	if payload == nil {
		payload = EventPayload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO events(ts,type,entity_kind,entity_id,actor_id,payload_json) VALUES (?,?,?,?,?,?)`,
		ts, evtType, entityKind, nullable(entityID), actorID, string(data))
	return err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
