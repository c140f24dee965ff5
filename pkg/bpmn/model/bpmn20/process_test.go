package bpmn20

import (
	"encoding/xml"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const routingProcessXml = `<?xml version="1.0" encoding="UTF-8"?>
<bpmn:definitions xmlns:bpmn="http://www.omg.org/spec/BPMN/20100524/MODEL"
                  xmlns:pm="http://processmaker.com/schema/1.0/bpmn"
                  id="definitions-routing" targetNamespace="http://processmaker.com/bpmn">
  <bpmn:message id="msg-doc" name="document-received" />
  <bpmn:process id="routing" name="Routing" isExecutable="true">
    <bpmn:startEvent id="start">
      <bpmn:outgoing>flow-to-decide</bpmn:outgoing>
    </bpmn:startEvent>
    <bpmn:exclusiveGateway id="decide" default="flow-low">
      <bpmn:incoming>flow-to-decide</bpmn:incoming>
      <bpmn:outgoing>flow-high</bpmn:outgoing>
      <bpmn:outgoing>flow-low</bpmn:outgoing>
    </bpmn:exclusiveGateway>
    <bpmn:userTask id="approve" name="Approve">
      <bpmn:extensionElements>
        <pm:assignmentDefinition assignee="alice" candidateGroups="finance, audit" />
        <pm:ioMapping>
          <pm:output source="approved" target="approvalResult" />
        </pm:ioMapping>
      </bpmn:extensionElements>
      <bpmn:incoming>flow-high</bpmn:incoming>
    </bpmn:userTask>
    <bpmn:scriptTask id="sum" scriptFormat="JavaScript">
      <bpmn:extensionElements>
        <pm:scriptDefinition resultVariable="total">
          <pm:property name="threshold" value="100" />
        </pm:scriptDefinition>
      </bpmn:extensionElements>
      <bpmn:incoming>flow-low</bpmn:incoming>
      <bpmn:script><![CDATA[data.a + data.b]]></bpmn:script>
    </bpmn:scriptTask>
    <bpmn:serviceTask id="notify">
      <bpmn:extensionElements>
        <pm:taskDefinition type="send-email" />
      </bpmn:extensionElements>
    </bpmn:serviceTask>
    <bpmn:intermediateCatchEvent id="wait">
      <bpmn:messageEventDefinition id="msg-def" messageRef="msg-doc" />
    </bpmn:intermediateCatchEvent>
    <bpmn:intermediateCatchEvent id="delay">
      <bpmn:timerEventDefinition id="timer-def">
        <bpmn:timeDuration>PT15M</bpmn:timeDuration>
      </bpmn:timerEventDefinition>
    </bpmn:intermediateCatchEvent>
    <bpmn:sequenceFlow id="flow-to-decide" sourceRef="start" targetRef="decide" />
    <bpmn:sequenceFlow id="flow-high" sourceRef="decide" targetRef="approve">
      <bpmn:conditionExpression>amount &gt; 5</bpmn:conditionExpression>
      <bpmn:extensionElements>
        <pm:updateData>
          <pm:set source='"high"' target="route" />
        </pm:updateData>
      </bpmn:extensionElements>
    </bpmn:sequenceFlow>
    <bpmn:sequenceFlow id="flow-low" sourceRef="decide" targetRef="sum" />
  </bpmn:process>
</bpmn:definitions>`

func parseDefinitions(t *testing.T) TDefinitions {
	t.Helper()
	var definitions TDefinitions
	require.NoError(t, xml.Unmarshal([]byte(routingProcessXml), &definitions))
	return definitions
}

func TestConditionExpressionDecodesEntities(t *testing.T) {
	definitions := parseDefinitions(t)
	flow := definitions.Process.GetSequenceFlowById("flow-high")
	require.NotNil(t, flow)

	assert.True(t, flow.HasConditionExpression())
	assert.Equal(t, "amount > 5", flow.GetConditionExpression())
	require.Len(t, flow.UpdateData, 1)
	assert.Equal(t, `"high"`, flow.UpdateData[0].Source)
	assert.Equal(t, "route", flow.UpdateData[0].Target)
}

func TestUnconditionalFlowHasNoCondition(t *testing.T) {
	definitions := parseDefinitions(t)
	flow := definitions.Process.GetSequenceFlowById("flow-low")
	require.NotNil(t, flow)
	assert.False(t, flow.HasConditionExpression())
}

func TestUserTaskAssignmentExtension(t *testing.T) {
	definitions := parseDefinitions(t)
	node := definitions.Process.GetTaskById("approve")
	require.NotNil(t, node)

	userTask := node.(*TUserTask)
	assert.Equal(t, "alice", userTask.GetAssignee())
	assert.Equal(t, []string{"finance", "audit"}, userTask.GetCandidateGroups())
	assert.Equal(t, "user-task", userTask.GetTaskType())
	require.Len(t, userTask.GetOutputMapping(), 1)
	assert.Equal(t, "approved", userTask.GetOutputMapping()[0].Source)
	assert.Equal(t, "approvalResult", userTask.GetOutputMapping()[0].Target)
}

func TestScriptTaskExtension(t *testing.T) {
	definitions := parseDefinitions(t)
	node := definitions.Process.GetTaskById("sum")
	require.NotNil(t, node)

	scriptTask := node.(*TScriptTask)
	assert.Equal(t, "javascript", scriptTask.GetTaskType())
	assert.Equal(t, "data.a + data.b", scriptTask.GetScript())
	assert.Equal(t, "total", scriptTask.GetResultVariable())
	require.Len(t, scriptTask.ScriptDefinition.Properties, 1)
	assert.Equal(t, "threshold", scriptTask.ScriptDefinition.Properties[0].Name)
	assert.Equal(t, "100", scriptTask.ScriptDefinition.Properties[0].Value)
}

func TestServiceTaskTypeComesFromTaskDefinition(t *testing.T) {
	definitions := parseDefinitions(t)
	node := definitions.Process.GetTaskById("notify")
	require.NotNil(t, node)
	assert.Equal(t, "send-email", node.GetTaskType())
}

func TestCatchEventKinds(t *testing.T) {
	definitions := parseDefinitions(t)

	wait := definitions.Process.GetFlowNodeById("wait").(*TIntermediateCatchEvent)
	assert.True(t, wait.IsMessageEvent())
	assert.False(t, wait.IsTimerEvent())
	assert.Equal(t, "document-received", definitions.FindMessageNameById(wait.MessageEventDefinition.MessageRef))

	delay := definitions.Process.GetFlowNodeById("delay").(*TIntermediateCatchEvent)
	assert.True(t, delay.IsTimerEvent())
	assert.False(t, delay.IsMessageEvent())
	assert.Equal(t, "PT15M", delay.TimerEventDefinition.TimeDuration.XMLText)
}

func TestFindSequenceFlowsKeepsDeclarationOrder(t *testing.T) {
	definitions := parseDefinitions(t)

	// request in reverse, get back declaration order
	flows := FindSequenceFlows(&definitions.Process.SequenceFlows, []string{"flow-low", "flow-high"})
	require.Len(t, flows, 2)
	assert.Equal(t, "flow-high", flows[0].Id)
	assert.Equal(t, "flow-low", flows[1].Id)
}

func TestGetFlowNodeByIdUnknownIdReturnsNil(t *testing.T) {
	definitions := parseDefinitions(t)
	assert.Nil(t, definitions.Process.GetFlowNodeById("nope"))
	assert.Nil(t, definitions.Process.GetTaskById("start"))
}

func TestValidateAcceptsIntactGraph(t *testing.T) {
	definitions := parseDefinitions(t)
	warnings, err := definitions.Validate()
	require.NoError(t, err)
	assert.Empty(t, warnings)
}
