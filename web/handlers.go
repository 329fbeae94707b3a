// Package web exposes the deployer over a JSON HTTP API. It is a thin
// invocation boundary: requests map one-to-one onto orchestrator calls and
// registry reads, with no sessions, no auth layer and no UI.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"

	"github.com/webalive/deployer/config"
	"github.com/webalive/deployer/domain"
	"github.com/webalive/deployer/repository"
)

// Deployer is the slice of the orchestrator the API invokes.
type Deployer interface {
	Deploy(ctx context.Context, cfg domain.DeployConfig) (*domain.DeployResult, error)
	Teardown(ctx context.Context, domainName string, opts domain.TeardownOptions) error
}

type SiteHandlers struct {
	config      *config.Config
	deployer    Deployer
	sites       repository.SiteRepository
	deployments repository.DeploymentRepository
}

func NewSiteHandlers(
	cfg *config.Config,
	deployer Deployer,
	sites repository.SiteRepository,
	deployments repository.DeploymentRepository,
) *SiteHandlers {
	return &SiteHandlers{
		config:      cfg,
		deployer:    deployer,
		sites:       sites,
		deployments: deployments,
	}
}

func (h *SiteHandlers) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.handleHealth)
	r.Route("/api/sites", func(r chi.Router) {
		r.Get("/", h.handleListSites)
		r.Post("/", h.handleDeploySite)
		r.Get("/{domain}", h.handleShowSite)
		r.Delete("/{domain}", h.handleTeardownSite)
	})
}

type deployRequest struct {
	Domain         string `json:"domain"`
	Slug           string `json:"slug,omitempty"`
	TemplatePath   string `json:"template_path,omitempty"`
	TemplateRepo   string `json:"template_repo,omitempty"`
	TemplateBranch string `json:"template_branch,omitempty"`
	Force          bool   `json:"force,omitempty"`
	// nil keeps the default (rollback enabled)
	RollbackOnFailure *bool `json:"rollback_on_failure,omitempty"`
}

type deployResponse struct {
	Domain       string `json:"domain"`
	Port         int    `json:"port"`
	ServiceName  string `json:"service_name"`
	DeploymentID string `json:"deployment_id"`
}

type siteResponse struct {
	Domain      string    `json:"domain"`
	Slug        string    `json:"slug"`
	Port        int       `json:"port,omitempty"`
	ServiceName string    `json:"service_name,omitempty"`
	Status      string    `json:"status"`
	Template    string    `json:"template,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type deploymentResponse struct {
	ID          string     `json:"id"`
	Status      string     `json:"status"`
	FailedPhase string     `json:"failed_phase,omitempty"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

type siteDetailResponse struct {
	siteResponse
	Deployments []deploymentResponse `json:"deployments"`
}

// errorResponse is the error body for every endpoint. Code and Phase
// come from the typed deployment error when there is one; plain
// infrastructure errors carry only the message.
type errorResponse struct {
	Code  string `json:"code,omitempty"`
	Phase string `json:"phase,omitempty"`
	Error string `json:"error"`
}

func (h *SiteHandlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleDeploySite runs a full deployment synchronously: the response
// arrives when the site is live or the rollback finished. Closing the
// request aborts the pipeline between phases.
func (h *SiteHandlers) handleDeploySite(w http.ResponseWriter, r *http.Request) {
	var req deployRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return
	}

	cfg := domain.NewDeployConfig(req.Domain, domain.TemplateSource{
		Path:    req.TemplatePath,
		RepoURL: req.TemplateRepo,
		Branch:  req.TemplateBranch,
	})
	cfg.Slug = req.Slug
	cfg.ServerIP = h.config.ServerIP
	cfg.WildcardDomain = h.config.WildcardDomain
	cfg.Force = req.Force
	if req.RollbackOnFailure != nil {
		cfg.RollbackOnFailure = *req.RollbackOnFailure
	}

	result, err := h.deployer.Deploy(r.Context(), cfg)
	if err != nil {
		writeDeployError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, deployResponse{
		Domain:       result.Domain,
		Port:         result.Port,
		ServiceName:  result.ServiceName,
		DeploymentID: result.DeploymentID.String(),
	})
}

func (h *SiteHandlers) handleTeardownSite(w http.ResponseWriter, r *http.Request) {
	domainName := chi.URLParam(r, "domain")

	if _, err := h.sites.FindByDomain(domainName); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeError(w, http.StatusNotFound, errorResponse{Error: "site not found: " + domainName})
			return
		}
		writeInternalError(w, "teardown_site", err)
		return
	}

	opts := domain.FullTeardown()
	query := r.URL.Query()
	if query.Get("keep_user") == "true" {
		opts.RemoveUser = false
	}
	if query.Get("keep_files") == "true" {
		opts.RemoveFiles = false
	}
	if query.Get("keep_port") == "true" {
		opts.RemovePort = false
	}

	if err := h.deployer.Teardown(r.Context(), domainName, opts); err != nil {
		writeDeployError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *SiteHandlers) handleListSites(w http.ResponseWriter, r *http.Request) {
	sites, err := h.sites.List()
	if err != nil {
		writeInternalError(w, "list_sites", err)
		return
	}

	resp := make([]siteResponse, len(sites))
	for i, site := range sites {
		resp[i] = toSiteResponse(site)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *SiteHandlers) handleShowSite(w http.ResponseWriter, r *http.Request) {
	domainName := chi.URLParam(r, "domain")

	site, err := h.sites.FindByDomain(domainName)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeError(w, http.StatusNotFound, errorResponse{Error: "site not found: " + domainName})
			return
		}
		writeInternalError(w, "show_site", err)
		return
	}

	deployments, err := h.deployments.ListBySiteID(site.ID)
	if err != nil {
		writeInternalError(w, "show_site", err)
		return
	}

	detail := siteDetailResponse{
		siteResponse: toSiteResponse(site),
		Deployments:  make([]deploymentResponse, len(deployments)),
	}
	for i, d := range deployments {
		detail.Deployments[i] = toDeploymentResponse(d)
	}
	writeJSON(w, http.StatusOK, detail)
}

func toSiteResponse(site *domain.Site) siteResponse {
	return siteResponse{
		Domain:      site.Domain,
		Slug:        site.Slug,
		Port:        site.Port,
		ServiceName: site.ServiceName,
		Status:      site.Status.String(),
		Template:    site.Template.Describe(),
		CreatedAt:   site.CreatedAt,
		UpdatedAt:   site.UpdatedAt,
	}
}

func toDeploymentResponse(d *domain.Deployment) deploymentResponse {
	resp := deploymentResponse{
		ID:         d.ID.String(),
		Status:     d.Status.String(),
		Error:      d.Error,
		StartedAt:  d.StartedAt,
		FinishedAt: d.FinishedAt,
	}
	if d.FailedPhase != domain.PhaseUnknown {
		resp.FailedPhase = d.FailedPhase.String()
	}
	return resp
}

// writeDeployError maps a deployment failure onto an HTTP status and the
// {code, phase, error} body clients branch on.
func writeDeployError(w http.ResponseWriter, err error) {
	de, ok := domain.AsDeployError(err)
	if !ok {
		writeInternalError(w, "deploy_site", err)
		return
	}

	writeError(w, statusForCode(de.Code), errorResponse{
		Code:  string(de.Code),
		Phase: de.Phase.String(),
		Error: de.Message(),
	})
}

func statusForCode(code domain.ErrorCode) int {
	switch code {
	case domain.CodeInvalidDomain, domain.CodePathTraversal, domain.CodeInvalidConfig:
		return http.StatusBadRequest
	case domain.CodeSiteExists:
		return http.StatusConflict
	case domain.CodeDNSValidationFailed:
		return http.StatusUnprocessableEntity
	case domain.CodePortsExhausted, domain.CodeCaddyLockTimeout:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeInternalError(w http.ResponseWriter, operation string, err error) {
	slog.Error("Handler operation failed",
		"layer", "handler",
		"operation", operation,
		"error", err)
	writeError(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
}

func writeError(w http.ResponseWriter, status int, body errorResponse) {
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Handler operation failed",
			"layer", "handler",
			"operation", "encode_response",
			"error", err)
	}
}
