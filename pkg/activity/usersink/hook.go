package usersink

import (
	"context"
	"strings"

	"github.com/goliatone/go-enqueue/pkg/activity"
	usertypes "github.com/goliatone/go-users/pkg/types"
	"github.com/google/uuid"
)

// Hook forwards activity events to a go-users ActivitySink. String ids that
// are not UUIDs (WordPress-style numeric user ids, for instance) are kept in
// the record data instead of being lost.
type Hook struct {
	Sink usertypes.ActivitySink
}

// Notify maps the event into an ActivityRecord and logs it on the sink.
func (h Hook) Notify(ctx context.Context, event activity.Event) error {
	if h.Sink == nil {
		return nil
	}
	normalized := activity.NormalizeEvent(event)
	if normalized.Verb == "" || normalized.ObjectType == "" || normalized.ObjectID == "" {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	data := normalized.Metadata
	ids := map[string]string{
		"actor_id":  normalized.ActorID,
		"user_id":   normalized.UserID,
		"tenant_id": normalized.TenantID,
	}
	parsed := map[string]uuid.UUID{}
	for field, raw := range ids {
		id, ok := parseUUID(raw)
		parsed[field] = id
		if !ok && raw != "" {
			if data == nil {
				data = map[string]any{}
			}
			data[field] = raw
		}
	}

	return h.Sink.Log(ctx, usertypes.ActivityRecord{
		ActorID:    parsed["actor_id"],
		UserID:     parsed["user_id"],
		TenantID:   parsed["tenant_id"],
		Verb:       normalized.Verb,
		ObjectType: normalized.ObjectType,
		ObjectID:   normalized.ObjectID,
		Channel:    normalized.Channel,
		Data:       data,
		OccurredAt: normalized.OccurredAt,
	})
}

func parseUUID(input string) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(input))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
