package runtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotMarshalRoundTrip(t *testing.T) {
	now := time.Now().Truncate(time.Millisecond)
	snapshot := InstanceSnapshot{
		Instance: ProcessInstance{
			Key:           1001,
			PublicId:      "b77a2e61-0000-4000-8000-000000000000",
			DefinitionKey: 2002,
			State:         InstanceStateActive,
			DataStore:     NewDataStore(nil, map[string]any{"route": "high"}),
			CreatedAt:     now,
			GatewayArrivals: map[string][]string{
				"join": {"flow-a"},
			},
			CaughtEvents: []CaughtEvent{
				{Name: "document-received", CaughtAt: now, IsConsumed: false},
			},
		},
		Tokens: []Token{
			{Key: 1, ProcessInstanceKey: 1001, ElementId: "join", State: TokenStateWaiting, CreatedAt: now},
		},
		Jobs: []Job{
			{Key: 2, ProcessInstanceKey: 1001, ElementId: "approve", Type: "user-task",
				State: JobStateActive, Assignee: "alice", CandidateGroups: []string{"finance"}, CreatedAt: now},
		},
		Subscriptions: []MessageSubscription{
			{Key: 3, ProcessInstanceKey: 1001, ElementId: "wait", Name: "document-received",
				State: SubscriptionStateActive, CreatedAt: now},
		},
		Timers: []Timer{
			{Key: 4, ProcessInstanceKey: 1001, ElementId: "delay", State: TimerStateCreated,
				CreatedAt: now, DueAt: now.Add(time.Minute), Duration: time.Minute},
		},
	}

	data, err := snapshot.Marshal()
	require.NoError(t, err)

	restored, err := UnmarshalSnapshot(data)
	require.NoError(t, err)

	assert.Equal(t, snapshot.Instance.Key, restored.Instance.Key)
	assert.Equal(t, snapshot.Instance.State, restored.Instance.State)
	assert.Equal(t, "high", restored.Instance.GetVariable("route"))
	assert.Equal(t, snapshot.Instance.GatewayArrivals, restored.Instance.GatewayArrivals)
	require.Len(t, restored.Tokens, 1)
	assert.Equal(t, TokenStateWaiting, restored.Tokens[0].State)
	require.Len(t, restored.Jobs, 1)
	assert.Equal(t, "alice", restored.Jobs[0].Assignee)
	require.Len(t, restored.Subscriptions, 1)
	assert.Equal(t, "document-received", restored.Subscriptions[0].Name)
	require.Len(t, restored.Timers, 1)
	assert.Equal(t, TimerStateCreated, restored.Timers[0].State)
}

func TestUnmarshalSnapshotRejectsGarbage(t *testing.T) {
	_, err := UnmarshalSnapshot([]byte("not json"))
	assert.Error(t, err)
}
