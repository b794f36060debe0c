package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/pesio-ai/be-hr-governance/internal/errors"
	"github.com/pesio-ai/be-hr-governance/internal/logger"
	"github.com/pesio-ai/be-hr-governance/internal/service"
)

// HTTPHandler handles HTTP requests.
type HTTPHandler struct {
	governance *service.GovernanceService
	policies   *service.PolicyService
	approvals  *service.ApprovalService
	log        *logger.Logger
}

// NewHTTPHandler creates a new HTTP handler.
func NewHTTPHandler(
	governance *service.GovernanceService,
	policies *service.PolicyService,
	approvals *service.ApprovalService,
	log *logger.Logger,
) *HTTPHandler {
	return &HTTPHandler{
		governance: governance,
		policies:   policies,
		approvals:  approvals,
		log:        log,
	}
}

// EvaluateTransition handles governance evaluation requests. This is the entry
// point the workflow engine calls once per transition attempt.
func (h *HTTPHandler) EvaluateTransition(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req service.TransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	verdict, err := h.governance.Resolve(r.Context(), &req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, verdict)
}

// ListDecisions handles decision history requests.
func (h *HTTPHandler) ListDecisions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	workflow := r.URL.Query().Get("workflow")
	if workflow == "" {
		http.Error(w, "Workflow is required", http.StatusBadRequest)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	decisions, err := h.governance.GetDecisionHistory(r.Context(), workflow, limit)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"workflow":  workflow,
		"decisions": decisions,
	})
}

// ── Policy record administration ──────────────────────────────────────────────

// CreatePolicy handles create policy requests.
func (h *HTTPHandler) CreatePolicy(w http.ResponseWriter, r *http.Request) {
	var req service.CreatePolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	policy, err := h.policies.CreatePolicy(r.Context(), &req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, policy)
}

// GetPolicy handles get policy requests.
func (h *HTTPHandler) GetPolicy(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	policy, err := h.policies.GetPolicy(r.Context(), r.URL.Query().Get("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, policy)
}

// ListPolicies handles list policy requests.
func (h *HTTPHandler) ListPolicies(w http.ResponseWriter, r *http.Request) {
	policies, err := h.policies.ListPolicies(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{"policies": policies})
}

// DeletePolicy handles delete policy requests.
func (h *HTTPHandler) DeletePolicy(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := h.policies.DeletePolicy(r.Context(), r.URL.Query().Get("id")); err != nil {
		h.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ── Approval policy administration ────────────────────────────────────────────

// CreateApprovalPolicy handles create approval policy requests.
func (h *HTTPHandler) CreateApprovalPolicy(w http.ResponseWriter, r *http.Request) {
	var req service.CreateApprovalPolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	policy, err := h.approvals.CreateApprovalPolicy(r.Context(), &req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, policy)
}

// GetApprovalPolicy handles get approval policy requests.
func (h *HTTPHandler) GetApprovalPolicy(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	policy, err := h.approvals.GetApprovalPolicy(r.Context(), r.URL.Query().Get("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, policy)
}

// ListApprovalPolicies handles list approval policy requests.
func (h *HTTPHandler) ListApprovalPolicies(w http.ResponseWriter, r *http.Request) {
	policies, err := h.approvals.ListApprovalPolicies(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{"approval_policies": policies})
}

// DeleteApprovalPolicy handles delete approval policy requests.
func (h *HTTPHandler) DeleteApprovalPolicy(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := h.approvals.DeleteApprovalPolicy(r.Context(), r.URL.Query().Get("id")); err != nil {
		h.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ── Response helpers ──────────────────────────────────────────────────────────

func (h *HTTPHandler) respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.Warn().Err(err).Msg("Failed to encode HTTP response")
	}
}

// writeError maps application error codes to HTTP statuses.
func (h *HTTPHandler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch errors.CodeOf(err) {
	case errors.ErrCodeInvalidInput:
		status = http.StatusBadRequest
	case errors.ErrCodeNotFound:
		status = http.StatusNotFound
	case errors.ErrCodeConflict:
		status = http.StatusConflict
	case errors.ErrCodeUnauthorized:
		status = http.StatusForbidden
	case errors.ErrCodeUnavailable:
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError || status == http.StatusServiceUnavailable {
		h.log.Error().Err(err).Msg("Request failed")
	}

	h.respondJSON(w, status, map[string]string{
		"error": err.Error(),
		"code":  errors.CodeOf(err),
	})
}
