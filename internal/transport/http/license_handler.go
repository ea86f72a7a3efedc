// Package http contains the chi HTTP handlers for the activation protocol,
// the public domain-verification lookup, the admin license plumbing, and the
// health and metrics endpoints.
package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "licensegate/internal/errors"
	"licensegate/internal/license"
	"licensegate/internal/services"
)

// LicenseHandler serves the activation and verification endpoints.
type LicenseHandler struct {
	service services.LicenseService
	logger  *slog.Logger
}

// NewLicenseHandler creates a new license handler.
func NewLicenseHandler(service services.LicenseService, logger *slog.Logger) *LicenseHandler {
	return &LicenseHandler{
		service: service,
		logger:  logger.With(slog.String("handler", "license")),
	}
}

// ActivationRequest is the activation wire payload. Field names follow the
// public API contract consumed by embedded product instances. The payload is
// deliberately not shape-validated here: every syntactic rejection, malformed
// signatures included, must go through the service so it shares the uniform
// response delay and audit log.
type ActivationRequest struct {
	Key       string `json:"key"`
	Domain    string `json:"domain"`
	Timestamp *int64 `json:"timestamp,omitempty"`
	Signature string `json:"signature,omitempty"`
}

// ActivationResponse is the activation wire response.
type ActivationResponse struct {
	Valid   bool                  `json:"valid"`
	Code    string                `json:"code"`
	Message string                `json:"message"`
	License *ActivatedLicenseInfo `json:"license,omitempty"`
}

// ActivatedLicenseInfo is the license projection returned on successful
// activation. The raw key is never echoed back.
type ActivatedLicenseInfo struct {
	ProductName string     `json:"productName"`
	Domain      string     `json:"domain"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
}

// VerificationResponse is the verify-domain wire response.
type VerificationResponse struct {
	Success  bool                 `json:"success"`
	Verified bool                 `json:"verified"`
	License  *VerifiedLicenseInfo `json:"license,omitempty"`
}

// VerifiedLicenseInfo is the public projection of a bound license record.
type VerifiedLicenseInfo struct {
	ProductName string     `json:"productName"`
	Status      string     `json:"status"`
	Domain      string     `json:"domain"`
	OwnerName   string     `json:"ownerName,omitempty"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
	ActivatedAt *time.Time `json:"activatedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// Routes returns the chi router for the license endpoints. Middlewares given
// here apply to the activation route only; the public verify-domain lookup is
// served unthrottled beyond the global limiter.
func (h *LicenseHandler) Routes(activateMiddlewares ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.With(activateMiddlewares...).Post("/activate", h.Activate)
	r.Get("/verify-domain/{domain}", h.VerifyDomain)
	return r
}

// Activate handles POST /api/license/activate. Protocol outcomes, including
// rejections, are HTTP 200 with valid:false and a code; only an undecodable
// body yields 400. Signature failures and malformed input fail closed.
func (h *LicenseHandler) Activate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ActivationRequest
	if err := render.Decode(r, &req); err != nil {
		h.logger.WarnContext(ctx, "undecodable activation request",
			slog.String("error", err.Error()),
		)
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ActivationResponse{
			Valid:   false,
			Code:    string(license.CodeMissingParams),
			Message: license.CodeMissingParams.Message(),
		})
		return
	}

	result := h.service.Activate(ctx, services.ActivationRequest{
		Key:       req.Key,
		Domain:    req.Domain,
		Timestamp: req.Timestamp,
		Signature: req.Signature,
	})

	resp := ActivationResponse{
		Valid:   result.Valid,
		Code:    string(result.Code),
		Message: result.Message,
	}
	if result.Valid && result.License != nil {
		resp.License = &ActivatedLicenseInfo{
			ProductName: result.License.ProductName,
			Domain:      result.License.Domain,
			ExpiresAt:   result.License.ExpiresAt,
		}
	}
	if result.Code == license.CodeServerError {
		render.Status(r, http.StatusInternalServerError)
	}
	render.JSON(w, r, resp)
}

// VerifyDomain handles GET /api/license/verify-domain/{domain}. A domain with
// no bound license is a 404 with success:false; a bound but lapsed or revoked
// license is a 200 with verified:false and the record's public projection.
func (h *LicenseHandler) VerifyDomain(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rawDomain := chi.URLParam(r, "domain")

	result, err := h.service.VerifyDomain(ctx, rawDomain)
	if err != nil {
		h.logger.ErrorContext(ctx, "domain verification failed",
			slog.String("error", err.Error()),
		)
		render.Render(w, r, apierrors.ErrInternalServer)
		return
	}

	if !result.Found {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, map[string]interface{}{
			"success": false,
			"error":   "no license found for this domain",
		})
		return
	}

	lic := result.License
	render.JSON(w, r, VerificationResponse{
		Success:  true,
		Verified: result.Verified,
		License: &VerifiedLicenseInfo{
			ProductName: lic.ProductName,
			Status:      string(result.Status),
			Domain:      lic.Domain,
			OwnerName:   lic.OwnerName,
			ExpiresAt:   lic.ExpiresAt,
			ActivatedAt: lic.ActivatedAt,
			CreatedAt:   lic.CreatedAt,
		},
	})
}
