package rest

import (
	"github.com/aTiKhan/processmaker-1/pkg/bpmn/runtime"
)

type apiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type deployProcessResponse struct {
	Key          int64    `json:"key"`
	ProcessId    string   `json:"processId"`
	Version      int32    `json:"version"`
	ResourceName string   `json:"resourceName,omitempty"`
	Warnings     []string `json:"warnings,omitempty"`
}

type processDefinitionSimple struct {
	Key          int64  `json:"key"`
	ProcessId    string `json:"processId"`
	Version      int32  `json:"version"`
	ResourceName string `json:"resourceName,omitempty"`
}

type startInstanceRequest struct {
	ProcessDefinitionId  string         `json:"processDefinitionId" validate:"required_without=ProcessDefinitionKey"`
	ProcessDefinitionKey int64          `json:"processDefinitionKey,omitempty" validate:"required_without=ProcessDefinitionId"`
	Variables            map[string]any `json:"variables"`
	NonPersistent        bool           `json:"nonPersistent"`
}

type instanceResponse struct {
	runtime.ProcessInstance
	Tokens   []runtime.Token   `json:"tokens,omitempty"`
	Comments []runtime.Comment `json:"comments,omitempty"`
}

type publishMessageRequest struct {
	Name      string         `json:"name" validate:"required"`
	Variables map[string]any `json:"variables"`
}

type completeJobRequest struct {
	Variables map[string]any `json:"variables"`
}

type failJobRequest struct {
	Reason string `json:"reason" validate:"required"`
}

type statusResponse struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}
