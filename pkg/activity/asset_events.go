package activity

import "strings"

// Asset lifecycle verbs.
const (
	VerbAssetRegistered = "assets.registered"
	VerbAssetEnqueued   = "assets.enqueued"
	VerbAssetSkipped    = "assets.skipped"
	VerbAssetFailed     = "assets.failed"
	VerbAssetRemoved    = "assets.removed"
	VerbInlineAdded     = "assets.inline.added"
	VerbInlineDropped   = "assets.inline.dropped"
)

// AssetEventInput describes the asset an event refers to.
type AssetEventInput struct {
	ActorID   string
	AssetType string
	Handle    string
	Hook      string
	Context   string
	Metadata  map[string]any
}

// BuildAssetEvent constructs an event for one asset. The object id is
// "<asset_type>:<handle>" so script and style namespaces stay distinct.
func BuildAssetEvent(verb string, input AssetEventInput) Event {
	metadata := cloneMap(input.Metadata)
	assetType := strings.TrimSpace(input.AssetType)
	if assetType != "" {
		metadata = ensureMetadata(metadata)
		metadata["asset_type"] = assetType
	}
	if input.Hook != "" {
		metadata = ensureMetadata(metadata)
		metadata["hook"] = input.Hook
	}
	if input.Context != "" {
		metadata = ensureMetadata(metadata)
		metadata["context"] = input.Context
	}
	objectID := strings.TrimSpace(input.Handle)
	if assetType != "" && objectID != "" {
		objectID = assetType + ":" + objectID
	}
	return Event{
		Verb:       verb,
		ActorID:    strings.TrimSpace(input.ActorID),
		ObjectType: "asset",
		ObjectID:   objectID,
		Metadata:   metadata,
	}
}
