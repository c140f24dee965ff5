package runtime

import (
	"encoding/json"

	"dario.cat/mergo"
)

// DataStore is the shared key/value state of a process instance, with
// optional parent scoping for task-local evaluation contexts.
type DataStore struct {
	parent         *DataStore
	localVariables map[string]any
}

// NewDataStore creates a new DataStore with a given parent and local
// variables. When localVariables is nil the parent's variables are copied
// into the new local scope.
func NewDataStore(parent *DataStore, localVariables map[string]any) DataStore {
	if localVariables == nil {
		localVariables = make(map[string]any)
		if parent != nil {
			for k, v := range parent.localVariables {
				localVariables[k] = v
			}
		}
	}
	return DataStore{
		parent:         parent,
		localVariables: localVariables,
	}
}

func (ds *DataStore) Variables() map[string]any {
	if ds.localVariables == nil {
		ds.localVariables = make(map[string]any)
	}
	return ds.localVariables
}

func (ds *DataStore) GetVariable(key string) any {
	if v, ok := ds.localVariables[key]; ok {
		return v
	}
	return nil
}

func (ds *DataStore) SetVariable(key string, value any) {
	if ds.localVariables == nil {
		ds.localVariables = make(map[string]any)
	}
	ds.localVariables[key] = value
}

// Merge deep-merges the given variables into the store, overriding existing
// values. Used to fold script/service task output and message payloads into
// the instance state.
func (ds *DataStore) Merge(variables map[string]any) error {
	if len(variables) == 0 {
		return nil
	}
	if ds.localVariables == nil {
		ds.localVariables = make(map[string]any)
	}
	return mergo.Merge(&ds.localVariables, variables, mergo.WithOverride)
}

// PropagateVariable writes a value into the parent scope.
func (ds *DataStore) PropagateVariable(key string, value any) {
	if ds.parent != nil {
		ds.parent.SetVariable(key, value)
	}
}

func (ds DataStore) MarshalJSON() ([]byte, error) {
	return json.Marshal(ds.localVariables)
}

func (ds *DataStore) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &ds.localVariables)
}
