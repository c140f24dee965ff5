package runtime

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataStoreSetAndGet(t *testing.T) {
	ds := NewDataStore(nil, nil)
	ds.SetVariable("amount", 42)

	assert.Equal(t, 42, ds.GetVariable("amount"))
	assert.Nil(t, ds.GetVariable("missing"))
}

func TestDataStoreChildCopiesParentVariables(t *testing.T) {
	parent := NewDataStore(nil, map[string]any{"amount": 42})
	child := NewDataStore(&parent, nil)

	assert.Equal(t, 42, child.GetVariable("amount"))

	// writes stay local to the child
	child.SetVariable("amount", 7)
	assert.Equal(t, 7, child.GetVariable("amount"))
	assert.Equal(t, 42, parent.GetVariable("amount"))
}

func TestDataStorePropagateVariableWritesToParent(t *testing.T) {
	parent := NewDataStore(nil, map[string]any{})
	child := NewDataStore(&parent, nil)

	child.PropagateVariable("result", "done")
	assert.Equal(t, "done", parent.GetVariable("result"))
}

func TestDataStoreMergeDeepMergesNestedMaps(t *testing.T) {
	ds := NewDataStore(nil, map[string]any{
		"order": map[string]any{"id": 1, "status": "open"},
	})

	err := ds.Merge(map[string]any{
		"order": map[string]any{"status": "shipped"},
		"total": 99,
	})
	require.NoError(t, err)

	order := ds.GetVariable("order").(map[string]any)
	assert.Equal(t, "shipped", order["status"])
	assert.Equal(t, 1, order["id"])
	assert.Equal(t, 99, ds.GetVariable("total"))
}

func TestDataStoreMergeOverridesScalars(t *testing.T) {
	ds := NewDataStore(nil, map[string]any{"amount": 1})
	require.NoError(t, ds.Merge(map[string]any{"amount": 2}))
	assert.Equal(t, 2, ds.GetVariable("amount"))
}

func TestDataStoreJsonRoundTrip(t *testing.T) {
	ds := NewDataStore(nil, map[string]any{"amount": 42.0, "route": "high"})

	data, err := json.Marshal(ds)
	require.NoError(t, err)

	var restored DataStore
	require.NoError(t, json.Unmarshal(data, &restored))
	assert.Equal(t, 42.0, restored.GetVariable("amount"))
	assert.Equal(t, "high", restored.GetVariable("route"))
}

func TestGatewayArrivalBookkeeping(t *testing.T) {
	instance := ProcessInstance{}

	instance.RecordGatewayArrival("join", "flow-a")
	instance.RecordGatewayArrival("join", "flow-a") // idempotent
	assert.False(t, instance.GatewayArrivalsComplete("join", []string{"flow-a", "flow-b"}))

	instance.RecordGatewayArrival("join", "flow-b")
	assert.True(t, instance.GatewayArrivalsComplete("join", []string{"flow-a", "flow-b"}))
	assert.Len(t, instance.GatewayArrivals["join"], 2)

	instance.ClearGatewayArrivals("join")
	assert.Empty(t, instance.GatewayArrivals["join"])
}

func TestTokenStateTerminality(t *testing.T) {
	assert.False(t, TokenStateActive.IsTerminal())
	assert.False(t, TokenStateWaiting.IsTerminal())
	assert.True(t, TokenStateCompleted.IsTerminal())
	assert.True(t, TokenStateClosed.IsTerminal())
	assert.True(t, TokenStateFailed.IsTerminal())
}
