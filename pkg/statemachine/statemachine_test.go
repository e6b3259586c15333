package statemachine_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creatorkit/creatorkit/pkg/statemachine"
)

const (
	stateDraft     = statemachine.StringState("draft")
	statePublished = statemachine.StringState("published")
	stateArchived  = statemachine.StringState("archived")

	eventPublish = statemachine.StringEvent("publish")
	eventArchive = statemachine.StringEvent("archive")
)

func TestFire(t *testing.T) {
	t.Parallel()

	t.Run("basic transition", func(t *testing.T) {
		t.Parallel()

		m := statemachine.New(
			statemachine.WithTransition(stateDraft, statePublished, eventPublish),
		)

		next, err := m.Fire(context.Background(), stateDraft, eventPublish, nil)
		require.NoError(t, err)
		assert.Equal(t, statePublished, next)
	})

	t.Run("no transition for state", func(t *testing.T) {
		t.Parallel()

		m := statemachine.New(
			statemachine.WithTransition(stateDraft, statePublished, eventPublish),
		)

		_, err := m.Fire(context.Background(), statePublished, eventPublish, nil)
		require.Error(t, err)
		assert.True(t, statemachine.IsNoTransitionAvailableError(err))
		assert.True(t, statemachine.IsTransitionError(err))
	})

	t.Run("guard rejects", func(t *testing.T) {
		t.Parallel()

		allowed := false
		m := statemachine.New(
			statemachine.WithTransition(stateDraft, statePublished, eventPublish,
				statemachine.WithGuard(func(ctx context.Context, from statemachine.State, event statemachine.Event, data any) bool {
					return allowed
				}),
			),
		)

		_, err := m.Fire(context.Background(), stateDraft, eventPublish, nil)
		assert.True(t, statemachine.IsTransitionRejectedError(err))
		assert.False(t, m.CanFire(context.Background(), stateDraft, eventPublish, nil))

		allowed = true
		assert.True(t, m.CanFire(context.Background(), stateDraft, eventPublish, nil))
		next, err := m.Fire(context.Background(), stateDraft, eventPublish, nil)
		require.NoError(t, err)
		assert.Equal(t, statePublished, next)
	})

	t.Run("action failure aborts transition", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("boom")
		m := statemachine.New(
			statemachine.WithTransition(stateDraft, statePublished, eventPublish,
				statemachine.WithAction(func(ctx context.Context, from, to statemachine.State, event statemachine.Event, data any) error {
					return boom
				}),
			),
		)

		_, err := m.Fire(context.Background(), stateDraft, eventPublish, nil)
		require.ErrorIs(t, err, boom)
	})

	t.Run("guard branching picks first passing transition", func(t *testing.T) {
		t.Parallel()

		m := statemachine.New(
			statemachine.WithTransition(stateDraft, statePublished, eventPublish,
				statemachine.WithGuard(func(ctx context.Context, from statemachine.State, event statemachine.Event, data any) bool {
					v, _ := data.(bool)
					return v
				}),
			),
			statemachine.WithTransition(stateDraft, stateArchived, eventPublish),
		)

		next, err := m.Fire(context.Background(), stateDraft, eventPublish, true)
		require.NoError(t, err)
		assert.Equal(t, statePublished, next)

		next, err = m.Fire(context.Background(), stateDraft, eventPublish, false)
		require.NoError(t, err)
		assert.Equal(t, stateArchived, next)
	})

	t.Run("multiple source states", func(t *testing.T) {
		t.Parallel()

		m := statemachine.New(
			statemachine.WithTransitionFrom(
				[]statemachine.State{stateDraft, statePublished},
				stateArchived, eventArchive,
			),
		)

		for _, from := range []statemachine.State{stateDraft, statePublished} {
			next, err := m.Fire(context.Background(), from, eventArchive, nil)
			require.NoError(t, err)
			assert.Equal(t, stateArchived, next)
		}
	})
}

func TestStatelessSharing(t *testing.T) {
	t.Parallel()

	// One machine serves many entities; firing for one must not affect another.
	m := statemachine.New(
		statemachine.WithTransition(stateDraft, statePublished, eventPublish),
	)

	next, err := m.Fire(context.Background(), stateDraft, eventPublish, "entity-a")
	require.NoError(t, err)
	assert.Equal(t, statePublished, next)

	// entity-b is still free to make the same move
	assert.True(t, m.CanFire(context.Background(), stateDraft, eventPublish, "entity-b"))
}
