package authz

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type actorNotifier struct {
	recordingNotifier
	actors []string
}

func (a *actorNotifier) PermissionAdded(ctx context.Context, p Permission, cca bool) error {
	a.actors = append(a.actors, ActorFromContext(ctx))
	return a.recordingNotifier.PermissionAdded(ctx, p, cca)
}

func TestNotifierSeesActor(t *testing.T) {
	s, _ := setupService(t)
	n := &actorNotifier{}
	s.SetNotifier(n)

	err := s.Authorize(context.Background(), "creator", Permission{Subject: "user2", Resource: collection, Level: Read}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"creator"}, n.actors)
}

func TestActorFromEmptyContext(t *testing.T) {
	assert.Empty(t, ActorFromContext(context.Background()))
}
