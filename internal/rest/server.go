// Package rest exposes the engine over HTTP: deployment, instance
// lifecycle, message delivery, job completion and snapshots.
package rest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aTiKhan/processmaker-1/internal/config"
	"github.com/aTiKhan/processmaker-1/internal/rest/middleware"
	"github.com/aTiKhan/processmaker-1/pkg/bpmn"
	"github.com/aTiKhan/processmaker-1/pkg/bpmn/model/bpmn20"
	"github.com/aTiKhan/processmaker-1/pkg/bpmn/runtime"
	"github.com/aTiKhan/processmaker-1/pkg/storage"
)

type Server struct {
	engine   *bpmn.Engine
	store    storage.Storage
	addr     string
	server   *http.Server
	logger   hclog.Logger
	validate *validator.Validate
}

func NewServer(engine *bpmn.Engine, store storage.Storage, conf config.Config, logger hclog.Logger) *Server {
	r := chi.NewRouter()
	s := &Server{
		engine: engine,
		store:  store,
		addr:   conf.Server.Addr,
		logger: logger.Named("rest"),
		server: &http.Server{
			ReadHeaderTimeout: 3 * time.Second,
			Handler:           r,
			Addr:              conf.Server.Addr,
		},
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
	r.Use(middleware.Cors())
	r.Use(middleware.RequestLogger(logger))
	r.Route("/v1", func(r chi.Router) {
		r.Post("/process-definitions", s.deployProcessDefinition)
		r.Get("/process-definitions", s.listProcessDefinitions)
		r.Post("/process-instances", s.startProcessInstance)
		r.Get("/process-instances/{instanceKey}", s.getProcessInstance)
		r.Post("/process-instances/{instanceKey}/continue", s.continueProcessInstance)
		r.Post("/process-instances/{instanceKey}/messages", s.publishMessage)
		r.Get("/process-instances/{instanceKey}/snapshot", s.snapshotProcessInstance)
		r.Post("/process-instances/restore", s.restoreProcessInstance)
		r.Get("/jobs", s.listJobs)
		r.Post("/jobs/{jobKey}/complete", s.completeJob)
		r.Post("/jobs/{jobKey}/fail", s.failJob)
	})
	r.Route("/system", func(r chi.Router) {
		r.Get("/metrics", promhttp.Handler().ServeHTTP)
		r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, statusResponse{Name: engine.Name(), Status: "ok"})
		})
	})
	return s
}

func (s *Server) Start() (net.Listener, error) {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return nil, err
	}
	s.logger.Info("REST server listening", "addr", s.addr)
	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("server stopped", "err", err)
		}
	}()
	return listener, nil
}

func (s *Server) Stop(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Error("error stopping server", "err", err)
	}
}

func (s *Server) deployProcessDefinition(w http.ResponseWriter, r *http.Request) {
	xmlData, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "BAD_REQUEST", err)
		return
	}
	definition, err := s.engine.LoadFromBytes(r.Context(), xmlData)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, deployProcessResponse{
		Key:          definition.Key,
		ProcessId:    definition.BpmnProcessId,
		Version:      definition.Version,
		ResourceName: definition.BpmnResourceName,
		Warnings:     definition.LoadWarnings,
	})
}

func (s *Server) listProcessDefinitions(w http.ResponseWriter, r *http.Request) {
	processId := r.URL.Query().Get("processId")
	if processId == "" {
		s.writeError(w, http.StatusBadRequest, "BAD_REQUEST", errors.New("query parameter processId is required"))
		return
	}
	definitions, err := s.engine.FindProcessesById(r.Context(), processId)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	items := make([]processDefinitionSimple, 0, len(definitions))
	for _, definition := range definitions {
		items = append(items, processDefinitionSimple{
			Key:          definition.Key,
			ProcessId:    definition.BpmnProcessId,
			Version:      definition.Version,
			ResourceName: definition.BpmnResourceName,
		})
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) startProcessInstance(w http.ResponseWriter, r *http.Request) {
	var req startInstanceRequest
	if !s.decode(w, r, &req) {
		return
	}
	var options []bpmn.InstanceOption
	if req.NonPersistent {
		options = append(options, bpmn.WithNonPersistent())
	}
	var instance *runtime.ProcessInstance
	var err error
	if req.ProcessDefinitionKey != 0 {
		instance, err = s.engine.CreateAndRunInstance(r.Context(), req.ProcessDefinitionKey, req.Variables, options...)
	} else {
		instance, err = s.engine.CreateAndRunInstanceById(r.Context(), req.ProcessDefinitionId, req.Variables, options...)
	}
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, instanceResponse{ProcessInstance: *instance})
}

func (s *Server) getProcessInstance(w http.ResponseWriter, r *http.Request) {
	key, ok := s.pathKey(w, r, "instanceKey")
	if !ok {
		return
	}
	instance, err := s.engine.FindProcessInstance(r.Context(), key)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	response := instanceResponse{ProcessInstance: instance}
	if response.Tokens, err = s.store.GetTokensForProcessInstance(r.Context(), key); err != nil {
		s.writeEngineError(w, err)
		return
	}
	if response.Comments, err = s.store.FindProcessInstanceComments(r.Context(), key); err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, response)
}

func (s *Server) continueProcessInstance(w http.ResponseWriter, r *http.Request) {
	key, ok := s.pathKey(w, r, "instanceKey")
	if !ok {
		return
	}
	instance, err := s.engine.RunOrContinueInstance(r.Context(), key)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, instanceResponse{ProcessInstance: *instance})
}

func (s *Server) publishMessage(w http.ResponseWriter, r *http.Request) {
	key, ok := s.pathKey(w, r, "instanceKey")
	if !ok {
		return
	}
	var req publishMessageRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.engine.PublishMessage(r.Context(), key, req.Name, req.Variables); err != nil {
		s.writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) snapshotProcessInstance(w http.ResponseWriter, r *http.Request) {
	key, ok := s.pathKey(w, r, "instanceKey")
	if !ok {
		return
	}
	snapshot, err := s.engine.SnapshotInstance(r.Context(), key)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (s *Server) restoreProcessInstance(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "BAD_REQUEST", err)
		return
	}
	snapshot, err := runtime.UnmarshalSnapshot(data)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "BAD_REQUEST", err)
		return
	}
	instance, err := s.engine.RestoreInstance(r.Context(), snapshot)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, instanceResponse{ProcessInstance: *instance})
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	jobType := r.URL.Query().Get("type")
	if jobType == "" {
		s.writeError(w, http.StatusBadRequest, "BAD_REQUEST", errors.New("query parameter type is required"))
		return
	}
	jobs, err := s.engine.FindActiveJobsByType(r.Context(), jobType)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (s *Server) completeJob(w http.ResponseWriter, r *http.Request) {
	key, ok := s.pathKey(w, r, "jobKey")
	if !ok {
		return
	}
	var req completeJobRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.engine.CompleteJobByKey(r.Context(), key, req.Variables); err != nil {
		s.writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) failJob(w http.ResponseWriter, r *http.Request) {
	key, ok := s.pathKey(w, r, "jobKey")
	if !ok {
		return
	}
	var req failJobRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.engine.FailJobByKey(r.Context(), key, req.Reason); err != nil {
		s.writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// decode unmarshals and validates a JSON request body. Returns false after
// writing the error response.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		s.writeError(w, http.StatusBadRequest, "BAD_REQUEST", err)
		return false
	}
	if err := s.validate.Struct(target); err != nil {
		s.writeError(w, http.StatusBadRequest, "VALIDATION_FAILED", err)
		return false
	}
	return true
}

func (s *Server) pathKey(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	key, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "BAD_REQUEST", err)
		return 0, false
	}
	return key, true
}

// writeEngineError maps engine error types to HTTP statuses.
func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	var invalidState *bpmn.InvalidStateError
	var definitionErr *bpmn.DefinitionError
	var notFound *bpmn20.ElementNotFoundError
	switch {
	case errors.Is(err, storage.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "NOT_FOUND", err)
	case errors.As(err, &invalidState):
		s.writeError(w, http.StatusConflict, "INVALID_STATE", err)
	case errors.As(err, &definitionErr):
		s.writeError(w, http.StatusBadRequest, "INVALID_DEFINITION", err)
	case errors.As(err, &notFound):
		s.writeError(w, http.StatusNotFound, "ELEMENT_NOT_FOUND", err)
	default:
		s.writeError(w, http.StatusInternalServerError, "ERROR", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, errType string, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "status", status, "err", err)
	}
	writeJSON(w, status, apiError{Type: errType, Message: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
