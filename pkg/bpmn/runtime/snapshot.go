package runtime

import (
	"encoding/json"
	"fmt"
)

// InstanceSnapshot captures everything needed to suspend an instance and
// resume it later: the instance itself (including its data store, caught
// events and partial join arrivals) plus all of its tokens, jobs,
// subscriptions and timers. The definition is referenced by key only and
// re-attached on restore.
type InstanceSnapshot struct {
	Instance      ProcessInstance       `json:"instance"`
	Tokens        []Token               `json:"tokens,omitempty"`
	Jobs          []Job                 `json:"jobs,omitempty"`
	Subscriptions []MessageSubscription `json:"subscriptions,omitempty"`
	Timers        []Timer               `json:"timers,omitempty"`
}

func (s *InstanceSnapshot) Marshal() ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot of instance %d: %w", s.Instance.Key, err)
	}
	return data, nil
}

func UnmarshalSnapshot(data []byte) (InstanceSnapshot, error) {
	var s InstanceSnapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("failed to unmarshal instance snapshot: %w", err)
	}
	return s, nil
}
