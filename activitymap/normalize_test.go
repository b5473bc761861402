package activitymap_test

import (
	"testing"
	"time"

	auth "github.com/docuarc/go-auth"
	"github.com/docuarc/go-auth/activitymap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDefaults(t *testing.T) {
	occurred := time.Now().Add(-time.Minute)
	event := auth.ActivityEvent{
		EventType: auth.ActivityEventLoginSuccess,
		Actor:     auth.ActorRef{ID: "actor-1", Type: "user"},
		UserID:    "user-1",
		Client: auth.ClientInfo{
			Device:  "cli",
			Address: "10.0.0.1",
		},
		Success:    true,
		Metadata:   map[string]any{"extra": "value"},
		OccurredAt: occurred,
	}

	normalized := activitymap.Normalize(event)

	assert.Equal(t, "actor-1", normalized.ActorID)
	assert.Equal(t, string(auth.ActivityEventLoginSuccess), normalized.Verb)
	assert.Equal(t, "user", normalized.ObjectType)
	assert.Equal(t, "user-1", normalized.ObjectID)
	assert.Equal(t, "auth", normalized.Channel)
	assert.Equal(t, occurred, normalized.OccurredAt)

	require.NotNil(t, normalized.Metadata)
	assert.Equal(t, "value", normalized.Metadata["extra"])
	assert.Equal(t, "user", normalized.Metadata[activitymap.MetadataKeyActorType])
	assert.Equal(t, "success", normalized.Metadata[activitymap.MetadataKeyOutcome])
	assert.Equal(t, "cli", normalized.Metadata[activitymap.MetadataKeyDevice])
	assert.Equal(t, "10.0.0.1", normalized.Metadata[activitymap.MetadataKeyAddress])
}

func TestNormalizeFailureOutcome(t *testing.T) {
	normalized := activitymap.Normalize(auth.ActivityEvent{
		EventType: auth.ActivityEventLoginFailure,
	})

	assert.Equal(t, "failure", normalized.Metadata[activitymap.MetadataKeyOutcome])
}

func TestNormalizeActorFallbacks(t *testing.T) {
	// Actor falls back to the user id, then to the configured fallback.
	normalized := activitymap.Normalize(auth.ActivityEvent{UserID: "user-9"})
	assert.Equal(t, "user-9", normalized.ActorID)

	normalized = activitymap.Normalize(auth.ActivityEvent{})
	assert.Equal(t, "system", normalized.ActorID)

	normalized = activitymap.Normalize(auth.ActivityEvent{}, activitymap.WithActorFallback("cron"))
	assert.Equal(t, "cron", normalized.ActorID)
}

func TestNormalizeOptions(t *testing.T) {
	event := auth.ActivityEvent{
		EventType: auth.ActivityEventTokenRevoke,
		UserID:    "user-1",
		Metadata:  map[string]any{"session_id": "sess-7"},
	}

	normalized := activitymap.Normalize(event,
		activitymap.WithDefaultChannel("security"),
		activitymap.WithDefaultObjectType("session"),
		activitymap.WithObjectIDResolver(func(e auth.ActivityEvent) string {
			if id, ok := e.Metadata["session_id"].(string); ok {
				return id
			}
			return e.UserID
		}),
	)

	assert.Equal(t, "security", normalized.Channel)
	assert.Equal(t, "session", normalized.ObjectType)
	assert.Equal(t, "sess-7", normalized.ObjectID)
}

func TestNormalizeZeroTime(t *testing.T) {
	before := time.Now()
	normalized := activitymap.Normalize(auth.ActivityEvent{})
	assert.False(t, normalized.OccurredAt.Before(before.Add(-time.Second)))
}

func TestNormalizeDoesNotMutateInput(t *testing.T) {
	metadata := map[string]any{"key": "value"}
	event := auth.ActivityEvent{Metadata: metadata, Success: true}

	_ = activitymap.Normalize(event)

	_, polluted := metadata[activitymap.MetadataKeyOutcome]
	assert.False(t, polluted)
}
