package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// ExecutionHistory is the workflow engine's execution/workflow store
// (spec.md §1 Non-goals: "the workflow engine, scheduler, ... database
// schemas" are out of this core's scope). These routes exist on the
// core's HTTP surface per spec.md §6.4 but delegate to whatever history
// store the composition root wires in; with none configured they report
// 501 rather than persist anything themselves.
type ExecutionHistory interface {
	ListExecutions(r *http.Request) (any, error)
	GetExecution(id string) (any, error)
	ExecutionTimeline(id string) (any, error)
	RetryExecution(id string) error
	RetryExecutionNode(id, nodeID string) error
	PublishWorkflow(workflowID string) error
	WorkflowDiff(workflowID, environment string) (any, error)
	RollbackWorkflow(workflowID string) error
}

func (s *Server) notImplemented(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotImplemented, map[string]string{
		"error": "execution_history_not_configured", "message": "no ExecutionHistory registered for this deployment",
	})
}

func (s *Server) handleListExecutions(w http.ResponseWriter, r *http.Request) {
	if s.Executions == nil {
		s.notImplemented(w)
		return
	}
	result, err := s.Executions.ListExecutions(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetExecution(w http.ResponseWriter, r *http.Request) {
	if s.Executions == nil {
		s.notImplemented(w)
		return
	}
	result, err := s.Executions.GetExecution(chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleExecutionTimeline(w http.ResponseWriter, r *http.Request) {
	if s.Executions == nil {
		s.notImplemented(w)
		return
	}
	result, err := s.Executions.ExecutionTimeline(chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleRetryExecution(w http.ResponseWriter, r *http.Request) {
	if s.Executions == nil {
		s.notImplemented(w)
		return
	}
	if err := s.Executions.RetryExecution(chi.URLParam(r, "id")); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]bool{"retried": true})
}

func (s *Server) handleRetryExecutionNode(w http.ResponseWriter, r *http.Request) {
	if s.Executions == nil {
		s.notImplemented(w)
		return
	}
	if err := s.Executions.RetryExecutionNode(chi.URLParam(r, "id"), chi.URLParam(r, "nodeId")); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]bool{"retried": true})
}

func (s *Server) handlePublishWorkflow(w http.ResponseWriter, r *http.Request) {
	if s.Executions == nil {
		s.notImplemented(w)
		return
	}
	if err := s.Executions.PublishWorkflow(chi.URLParam(r, "workflowId")); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]bool{"published": true})
}

func (s *Server) handleWorkflowDiff(w http.ResponseWriter, r *http.Request) {
	if s.Executions == nil {
		s.notImplemented(w)
		return
	}
	result, err := s.Executions.WorkflowDiff(chi.URLParam(r, "workflowId"), chi.URLParam(r, "environment"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleWorkflowRollback(w http.ResponseWriter, r *http.Request) {
	if s.Executions == nil {
		s.notImplemented(w)
		return
	}
	if err := s.Executions.RollbackWorkflow(chi.URLParam(r, "workflowId")); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]bool{"rolledBack": true})
}
