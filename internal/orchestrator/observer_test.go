package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserversFanOutAndSkipNil(t *testing.T) {
	first, second := &recordingObserver{}, &recordingObserver{}
	o, err := New(Config{
		Graph:    diamond(),
		Runner:   &fakeRunner{},
		Observer: Observers(first, nil, second),
		RunID:    "fan",
	})
	require.NoError(t, err)

	_, err = o.Run(context.Background(), "01", "parallel")
	require.NoError(t, err)
	for _, obs := range []*recordingObserver{first, second} {
		assert.Equal(t, []int{0, 1, 2}, obs.levels)
		assert.Len(t, obs.started, 3)
		assert.Len(t, obs.agents, 4)
		assert.Equal(t, []string{"completed"}, obs.states)
	}
}
