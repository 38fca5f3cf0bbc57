package activity

import "strings"

// Options lifecycle verbs.
const (
	VerbOptionsUpdated   = "options.updated"
	VerbOptionsDeleted   = "options.deleted"
	VerbOptionsCommitted = "options.committed"
	VerbOptionsVetoed    = "options.write.vetoed"
)

// ScopeContext captures where an option group is stored.
type ScopeContext struct {
	Level      string
	BlogID     string
	UserID     string
	Identifier string
	SnapshotID string
}

// OptionsEventInput describes an option group mutation.
type OptionsEventInput struct {
	ActorID  string
	Option   string
	Key      string
	Op       string
	Gate     string
	OldValue any
	NewValue any
	Scope    ScopeContext
	Metadata map[string]any
}

// BuildOptionsEvent constructs an event for an option group. The object id
// is the storage identifier when known, "<option>.<key>" otherwise.
func BuildOptionsEvent(verb string, input OptionsEventInput) Event {
	metadata := cloneMap(input.Metadata)
	set := func(key string, value any) {
		metadata = ensureMetadata(metadata)
		metadata[key] = value
	}
	if input.Key != "" {
		set("key", input.Key)
	}
	if input.Op != "" {
		set("op", input.Op)
	}
	if input.Gate != "" {
		set("gate", input.Gate)
	}
	if input.Scope.Level != "" {
		set("scope_level", input.Scope.Level)
	}
	if input.Scope.BlogID != "" {
		set("blog_id", input.Scope.BlogID)
	}
	if input.Scope.SnapshotID != "" {
		set("snapshot_id", input.Scope.SnapshotID)
	}
	if input.OldValue != nil {
		set("old_value", input.OldValue)
	}
	if input.NewValue != nil {
		set("new_value", input.NewValue)
	}

	objectID := strings.TrimSpace(input.Scope.Identifier)
	if objectID == "" {
		objectID = strings.TrimSpace(input.Option)
		if input.Key != "" {
			objectID += "." + input.Key
		}
	}
	return Event{
		Verb:       verb,
		ActorID:    strings.TrimSpace(input.ActorID),
		UserID:     strings.TrimSpace(input.Scope.UserID),
		ObjectType: "options",
		ObjectID:   objectID,
		Metadata:   metadata,
	}
}
