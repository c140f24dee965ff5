package bpmn

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/xml"
	"errors"
	"os"
	"path/filepath"

	"github.com/aTiKhan/processmaker-1/pkg/bpmn/model/bpmn20"
	"github.com/aTiKhan/processmaker-1/pkg/bpmn/runtime"
	"github.com/aTiKhan/processmaker-1/pkg/storage"
)

// LoadFromFile deploys a BPMN definition from a file.
func (e *Engine) LoadFromFile(ctx context.Context, filename string) (*runtime.ProcessDefinition, error) {
	xmlData, err := os.ReadFile(filename)
	if err != nil {
		return nil, &DefinitionError{Msg: "failed to read BPMN file " + filename, Err: err}
	}
	return e.load(ctx, xmlData, filepath.Base(filename))
}

// LoadFromBytes deploys a BPMN definition from raw XML.
func (e *Engine) LoadFromBytes(ctx context.Context, xmlData []byte) (*runtime.ProcessDefinition, error) {
	return e.load(ctx, xmlData, "")
}

// load parses, validates and versions a BPMN document. Re-deploying a
// byte-identical document returns the already deployed version; a changed
// document with the same process id gets the next version number.
// Unresolvable references outside the flow graph are recorded as load
// warnings on the definition, never as deploy failures.
func (e *Engine) load(ctx context.Context, xmlData []byte, resourceName string) (*runtime.ProcessDefinition, error) {
	checksum := md5.Sum(xmlData)

	var definitions bpmn20.TDefinitions
	if err := xml.NewDecoder(bytes.NewReader(xmlData)).Decode(&definitions); err != nil {
		return nil, &DefinitionError{Msg: "failed to unmarshal BPMN document", Err: err}
	}
	warnings, err := definitions.Validate()
	if err != nil {
		return nil, &DefinitionError{Msg: "invalid process graph", Err: err}
	}
	processId := definitions.Process.Id
	if processId == "" {
		return nil, &DefinitionError{Msg: "process has no id"}
	}

	version := int32(1)
	existing, err := e.persistence.FindProcessDefinitionsById(ctx, processId)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, errors.Join(newEngineErrorf("failed to look up existing versions of process %s", processId), err)
	}
	if len(existing) > 0 {
		latest := existing[len(existing)-1]
		if latest.BpmnChecksum == checksum {
			e.definitions.Add(latest.Key, &latest)
			return &latest, nil
		}
		version = latest.Version + 1
	}

	definition := runtime.ProcessDefinition{
		BpmnProcessId:    processId,
		Version:          version,
		Key:              e.generateKey(),
		Definitions:      definitions,
		BpmnData:         string(xmlData),
		BpmnResourceName: resourceName,
		BpmnChecksum:     checksum,
	}
	for _, warning := range warnings {
		definition.LoadWarnings = append(definition.LoadWarnings, warning.Error())
		e.logger.Warn("process definition load warning", "processId", processId, "warning", warning.Error())
	}
	if err := e.persistence.SaveProcessDefinition(ctx, definition); err != nil {
		return nil, errors.Join(newEngineErrorf("failed to save process definition %s", processId), err)
	}
	e.definitions.Add(definition.Key, &definition)
	return &definition, nil
}

// loadDefinition resolves a definition key through the LRU cache.
func (e *Engine) loadDefinition(ctx context.Context, processDefinitionKey int64) (*runtime.ProcessDefinition, error) {
	if definition, ok := e.definitions.Get(processDefinitionKey); ok {
		return definition, nil
	}
	definition, err := e.persistence.FindProcessDefinitionByKey(ctx, processDefinitionKey)
	if err != nil {
		return nil, errors.Join(newEngineErrorf("failed to find process definition %d", processDefinitionKey), err)
	}
	e.definitions.Add(definition.Key, &definition)
	return &definition, nil
}
