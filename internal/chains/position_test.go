package chains

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"homeops/backend/pkg/models"
)

func TestPositionResolver_NotATarget(t *testing.T) {
	store := &fakeChainStore{chains: []models.Chain{requestChain()}}
	r := NewPositionResolver(store)

	pos, err := r.Locate(context.Background(), "overseerr", "search_media")
	assert.NoError(t, err)
	assert.Nil(t, pos)
}

func TestPositionResolver_Middle(t *testing.T) {
	// get_queue is targeted by the entry step and also triggers the next
	// step, so the chain continues past it.
	store := &fakeChainStore{chains: []models.Chain{requestChain()}}
	r := NewPositionResolver(store)

	pos, err := r.Locate(context.Background(), "sabnzbd", "get_queue")
	assert.NoError(t, err)
	assert.NotNil(t, pos)
	assert.Equal(t, models.PositionMiddle, pos.Position)
	assert.Equal(t, "sabnzbd_get_queue", pos.SourceTool)
	assert.Equal(t, 2, pos.StepNumber)
	assert.Equal(t, []models.ChainRef{{ID: "chain-1", Name: "Request to download", Color: "#22c55e"}}, pos.Chains)
}

func TestPositionResolver_End(t *testing.T) {
	c := requestChain()
	c.Steps = c.Steps[:1]
	store := &fakeChainStore{chains: []models.Chain{c}}
	r := NewPositionResolver(store)

	pos, err := r.Locate(context.Background(), "sabnzbd", "get_queue")
	assert.NoError(t, err)
	assert.NotNil(t, pos)
	assert.Equal(t, models.PositionEnd, pos.Position)
	assert.Equal(t, 2, pos.StepNumber)
}

func TestPositionResolver_DisabledContinuationMeansEnd(t *testing.T) {
	c := requestChain()
	c.Steps[1].Enabled = false
	store := &fakeChainStore{chains: []models.Chain{c}}
	r := NewPositionResolver(store)

	pos, err := r.Locate(context.Background(), "sabnzbd", "get_queue")
	assert.NoError(t, err)
	assert.NotNil(t, pos)
	assert.Equal(t, models.PositionEnd, pos.Position)
}

func TestPositionResolver_FirstChainWins(t *testing.T) {
	low := requestChain()
	low.ID, low.Name, low.Priority = "chain-low", "Low", 1
	low.Steps = low.Steps[:1]

	// The high priority chain targets get_queue from a later step.
	high := models.Chain{
		ID: "chain-high", Name: "High", Color: "#f97316", Priority: 50, Enabled: true,
		Steps: []models.ChainStep{
			{
				ID: "h-step", ChainID: "chain-high", StepOrder: 1,
				SourceService: "overseerr", SourceTool: "get_requests",
				Condition: successCond(), Enabled: true,
				Targets: []models.StepTarget{
					{ID: "h-target", TargetService: "sabnzbd", TargetTool: "get_queue", Enabled: true},
				},
			},
		},
	}
	store := &fakeChainStore{chains: []models.Chain{low, high}}
	r := NewPositionResolver(store)

	pos, err := r.Locate(context.Background(), "sabnzbd", "get_queue")
	assert.NoError(t, err)
	assert.NotNil(t, pos)
	// Position and step number follow the first (highest priority) chain.
	assert.Equal(t, models.PositionEnd, pos.Position)
	assert.Equal(t, 3, pos.StepNumber)
	// Every matching chain is listed.
	assert.Equal(t, []models.ChainRef{
		{ID: "chain-high", Name: "High", Color: "#f97316"},
		{ID: "chain-low", Name: "Low", Color: "#22c55e"},
	}, pos.Chains)
}

func TestPositionResolver_StoreErrorPropagates(t *testing.T) {
	store := &fakeChainStore{err: errors.New("connection refused")}
	r := NewPositionResolver(store)

	pos, err := r.Locate(context.Background(), "sabnzbd", "get_queue")
	assert.Error(t, err)
	assert.Nil(t, pos)
}
