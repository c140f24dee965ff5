package rest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aTiKhan/processmaker-1/internal/config"
	"github.com/aTiKhan/processmaker-1/pkg/bpmn"
	"github.com/aTiKhan/processmaker-1/pkg/bpmn/runtime"
	"github.com/aTiKhan/processmaker-1/pkg/storage/inmemory"
)

const approvalProcessXml = `<?xml version="1.0" encoding="UTF-8"?>
<bpmn:definitions xmlns:bpmn="http://www.omg.org/spec/BPMN/20100524/MODEL"
                  xmlns:pm="http://processmaker.com/schema/1.0/bpmn"
                  id="definitions-approval" targetNamespace="http://processmaker.com/bpmn">
  <bpmn:process id="approval" name="Approval" isExecutable="true">
    <bpmn:startEvent id="start">
      <bpmn:outgoing>flow-to-approve</bpmn:outgoing>
    </bpmn:startEvent>
    <bpmn:userTask id="approve" name="Approve">
      <bpmn:extensionElements>
        <pm:assignmentDefinition assignee="alice" />
      </bpmn:extensionElements>
      <bpmn:incoming>flow-to-approve</bpmn:incoming>
      <bpmn:outgoing>flow-to-end</bpmn:outgoing>
    </bpmn:userTask>
    <bpmn:endEvent id="end">
      <bpmn:incoming>flow-to-end</bpmn:incoming>
    </bpmn:endEvent>
    <bpmn:sequenceFlow id="flow-to-approve" sourceRef="start" targetRef="approve" />
    <bpmn:sequenceFlow id="flow-to-end" sourceRef="approve" targetRef="end" />
  </bpmn:process>
</bpmn:definitions>`

func newTestServer(t *testing.T) (*httptest.Server, *bpmn.Engine) {
	t.Helper()
	store := inmemory.NewStorage()
	engine, err := bpmn.NewEngine(bpmn.WithStorage(store), bpmn.WithInlineScripts())
	require.NoError(t, err)
	t.Cleanup(engine.Stop)

	s := NewServer(engine, store, config.Config{}, hclog.NewNullLogger())
	ts := httptest.NewServer(s.server.Handler)
	t.Cleanup(ts.Close)
	return ts, engine
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestDeployAndListProcessDefinitions(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Post(ts.URL+"/v1/process-definitions", "application/xml",
		strings.NewReader(approvalProcessXml))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	deployed := decodeBody[deployProcessResponse](t, resp)
	assert.Equal(t, "approval", deployed.ProcessId)
	assert.EqualValues(t, 1, deployed.Version)
	assert.NotZero(t, deployed.Key)

	resp, err = http.Get(ts.URL + "/v1/process-definitions?processId=approval")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	listed := decodeBody[[]processDefinitionSimple](t, resp)
	require.Len(t, listed, 1)
	assert.Equal(t, deployed.Key, listed[0].Key)
}

func TestDeployRejectsBrokenDefinition(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Post(ts.URL+"/v1/process-definitions", "application/xml",
		strings.NewReader("<not-bpmn>"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStartInstanceCompleteJobLifecycle(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Post(ts.URL+"/v1/process-definitions", "application/xml",
		strings.NewReader(approvalProcessXml))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, ts.URL+"/v1/process-instances", map[string]any{
		"processDefinitionId": "approval",
		"variables":           map[string]any{"amount": 10},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	started := decodeBody[instanceResponse](t, resp)
	assert.Equal(t, runtime.InstanceStateActive, started.State)
	assert.NotZero(t, started.Key)

	resp, err = http.Get(ts.URL + "/v1/jobs?type=user-task")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	jobs := decodeBody[[]runtime.Job](t, resp)
	require.Len(t, jobs, 1)
	assert.Equal(t, "alice", jobs[0].Assignee)

	resp = postJSON(t, fmt.Sprintf("%s/v1/jobs/%d/complete", ts.URL, jobs[0].Key), map[string]any{
		"variables": map[string]any{"approved": true},
	})
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = http.Get(fmt.Sprintf("%s/v1/process-instances/%d", ts.URL, started.Key))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	final := decodeBody[instanceResponse](t, resp)
	assert.Equal(t, runtime.InstanceStateCompleted, final.State)
	assert.NotEmpty(t, final.Tokens)
}

func TestStartInstanceValidationFailure(t *testing.T) {
	ts, _ := newTestServer(t)

	// neither a definition id nor a key
	resp := postJSON(t, ts.URL+"/v1/process-instances", map[string]any{
		"variables": map[string]any{},
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	failure := decodeBody[apiError](t, resp)
	assert.Equal(t, "VALIDATION_FAILED", failure.Type)
}

func TestGetUnknownInstanceReturnsNotFound(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/v1/process-instances/123456")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCompleteJobTwiceReturnsConflict(t *testing.T) {
	ts, engine := newTestServer(t)

	definition, err := engine.LoadFromBytes(t.Context(), []byte(approvalProcessXml))
	require.NoError(t, err)
	_, err = engine.CreateAndRunInstance(t.Context(), definition.Key, nil)
	require.NoError(t, err)

	jobs, err := engine.FindActiveJobsByType(t.Context(), "user-task")
	require.NoError(t, err)
	require.Len(t, jobs, 1)

	resp := postJSON(t, fmt.Sprintf("%s/v1/jobs/%d/complete", ts.URL, jobs[0].Key), map[string]any{})
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = postJSON(t, fmt.Sprintf("%s/v1/jobs/%d/complete", ts.URL, jobs[0].Key), map[string]any{})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestPublishMessageRequiresName(t *testing.T) {
	ts, engine := newTestServer(t)

	definition, err := engine.LoadFromBytes(t.Context(), []byte(approvalProcessXml))
	require.NoError(t, err)
	instance, err := engine.CreateAndRunInstance(t.Context(), definition.Key, nil)
	require.NoError(t, err)

	resp := postJSON(t, fmt.Sprintf("%s/v1/process-instances/%d/messages", ts.URL, instance.Key),
		map[string]any{"variables": map[string]any{}})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSnapshotAndRestoreOverHttp(t *testing.T) {
	ts, engine := newTestServer(t)

	definition, err := engine.LoadFromBytes(t.Context(), []byte(approvalProcessXml))
	require.NoError(t, err)
	instance, err := engine.CreateAndRunInstance(t.Context(), definition.Key, nil)
	require.NoError(t, err)

	resp, err := http.Get(fmt.Sprintf("%s/v1/process-instances/%d/snapshot", ts.URL, instance.Key))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	snapshot := decodeBody[runtime.InstanceSnapshot](t, resp)
	assert.Equal(t, instance.Key, snapshot.Instance.Key)

	data, err := snapshot.Marshal()
	require.NoError(t, err)
	resp, err = http.Post(ts.URL+"/v1/process-instances/restore", "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	restored := decodeBody[instanceResponse](t, resp)
	assert.Equal(t, instance.Key, restored.Key)
}

func TestStatusEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/system/status")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	status := decodeBody[statusResponse](t, resp)
	assert.Equal(t, "ok", status.Status)
}
