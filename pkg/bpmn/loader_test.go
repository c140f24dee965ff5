package bpmn

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const versionedProcessXml = `<?xml version="1.0" encoding="UTF-8"?>
<bpmn:definitions xmlns:bpmn="http://www.omg.org/spec/BPMN/20100524/MODEL"
                  id="definitions-versioned" targetNamespace="http://processmaker.com/bpmn">
  <bpmn:process id="versioned-process" name="Versioned" isExecutable="true">
    <bpmn:startEvent id="start">
      <bpmn:outgoing>flow</bpmn:outgoing>
    </bpmn:startEvent>
    <bpmn:endEvent id="end">
      <bpmn:incoming>flow</bpmn:incoming>
    </bpmn:endEvent>
    <bpmn:sequenceFlow id="flow" sourceRef="start" targetRef="end" />
  </bpmn:process>
</bpmn:definitions>`

func TestRedeployingIdenticalDocumentKeepsVersion(t *testing.T) {
	first, err := bpmnEngine.LoadFromBytes(t.Context(), []byte(versionedProcessXml))
	require.NoError(t, err)
	second, err := bpmnEngine.LoadFromBytes(t.Context(), []byte(versionedProcessXml))
	require.NoError(t, err)

	assert.Equal(t, first.Key, second.Key)
	assert.Equal(t, first.Version, second.Version)
}

func TestRedeployingModifiedDocumentIncrementsVersion(t *testing.T) {
	first, err := bpmnEngine.LoadFromBytes(t.Context(), []byte(versionedProcessXml))
	require.NoError(t, err)

	modified := strings.Replace(versionedProcessXml, `name="Versioned"`, `name="Versioned v2"`, 1)
	second, err := bpmnEngine.LoadFromBytes(t.Context(), []byte(modified))
	require.NoError(t, err)

	assert.NotEqual(t, first.Key, second.Key)
	assert.Equal(t, first.Version+1, second.Version)
	assert.Equal(t, first.BpmnProcessId, second.BpmnProcessId)
}

func TestLoadRejectsFlowWithMissingTarget(t *testing.T) {
	broken := `<?xml version="1.0" encoding="UTF-8"?>
<bpmn:definitions xmlns:bpmn="http://www.omg.org/spec/BPMN/20100524/MODEL"
                  id="definitions-broken-ref" targetNamespace="http://processmaker.com/bpmn">
  <bpmn:process id="broken-ref" isExecutable="true">
    <bpmn:startEvent id="start">
      <bpmn:outgoing>flow</bpmn:outgoing>
    </bpmn:startEvent>
    <bpmn:sequenceFlow id="flow" sourceRef="start" targetRef="nowhere" />
  </bpmn:process>
</bpmn:definitions>`

	_, err := bpmnEngine.LoadFromBytes(t.Context(), []byte(broken))
	var definitionErr *DefinitionError
	require.ErrorAs(t, err, &definitionErr)
	assert.Contains(t, err.Error(), "nowhere")
}

func TestLoadRejectsProcessWithoutId(t *testing.T) {
	anonymous := `<?xml version="1.0" encoding="UTF-8"?>
<bpmn:definitions xmlns:bpmn="http://www.omg.org/spec/BPMN/20100524/MODEL"
                  id="definitions-anonymous" targetNamespace="http://processmaker.com/bpmn">
  <bpmn:process isExecutable="true">
    <bpmn:startEvent id="start" />
  </bpmn:process>
</bpmn:definitions>`

	_, err := bpmnEngine.LoadFromBytes(t.Context(), []byte(anonymous))
	var definitionErr *DefinitionError
	assert.ErrorAs(t, err, &definitionErr)
}

func TestDanglingDefaultFlowIsRecordedAsWarning(t *testing.T) {
	dangling := `<?xml version="1.0" encoding="UTF-8"?>
<bpmn:definitions xmlns:bpmn="http://www.omg.org/spec/BPMN/20100524/MODEL"
                  id="definitions-dangling-default" targetNamespace="http://processmaker.com/bpmn">
  <bpmn:process id="dangling-default" isExecutable="true">
    <bpmn:startEvent id="start">
      <bpmn:outgoing>flow-to-gw</bpmn:outgoing>
    </bpmn:startEvent>
    <bpmn:exclusiveGateway id="gw" default="no-such-flow">
      <bpmn:incoming>flow-to-gw</bpmn:incoming>
      <bpmn:outgoing>flow-to-end</bpmn:outgoing>
    </bpmn:exclusiveGateway>
    <bpmn:endEvent id="end">
      <bpmn:incoming>flow-to-end</bpmn:incoming>
    </bpmn:endEvent>
    <bpmn:sequenceFlow id="flow-to-gw" sourceRef="start" targetRef="gw" />
    <bpmn:sequenceFlow id="flow-to-end" sourceRef="gw" targetRef="end" />
  </bpmn:process>
</bpmn:definitions>`

	definition, err := bpmnEngine.LoadFromBytes(t.Context(), []byte(dangling))
	require.NoError(t, err)
	require.Len(t, definition.LoadWarnings, 1)
	assert.Contains(t, definition.LoadWarnings[0], "no-such-flow")
}

func TestDanglingMessageRefIsRecordedAsWarning(t *testing.T) {
	dangling := `<?xml version="1.0" encoding="UTF-8"?>
<bpmn:definitions xmlns:bpmn="http://www.omg.org/spec/BPMN/20100524/MODEL"
                  id="definitions-dangling-message" targetNamespace="http://processmaker.com/bpmn">
  <bpmn:process id="dangling-message" isExecutable="true">
    <bpmn:startEvent id="start">
      <bpmn:outgoing>flow-to-wait</bpmn:outgoing>
    </bpmn:startEvent>
    <bpmn:intermediateCatchEvent id="wait">
      <bpmn:incoming>flow-to-wait</bpmn:incoming>
      <bpmn:outgoing>flow-to-end</bpmn:outgoing>
      <bpmn:messageEventDefinition id="msg-def" messageRef="no-such-message" />
    </bpmn:intermediateCatchEvent>
    <bpmn:endEvent id="end">
      <bpmn:incoming>flow-to-end</bpmn:incoming>
    </bpmn:endEvent>
    <bpmn:sequenceFlow id="flow-to-wait" sourceRef="start" targetRef="wait" />
    <bpmn:sequenceFlow id="flow-to-end" sourceRef="wait" targetRef="end" />
  </bpmn:process>
</bpmn:definitions>`

	definition, err := bpmnEngine.LoadFromBytes(t.Context(), []byte(dangling))
	require.NoError(t, err)
	require.Len(t, definition.LoadWarnings, 1)
	assert.Contains(t, definition.LoadWarnings[0], "no-such-message")
}

func TestLoadFromFileKeepsResourceName(t *testing.T) {
	definition, err := bpmnEngine.LoadFromFile(t.Context(), "./test-cases/simple-service-task.bpmn")
	require.NoError(t, err)
	assert.Equal(t, "simple-service-task.bpmn", definition.BpmnResourceName)
	assert.NotEmpty(t, definition.BpmnData)
}
