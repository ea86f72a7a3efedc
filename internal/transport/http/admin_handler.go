package http

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	apierrors "licensegate/internal/errors"
	"licensegate/internal/license"
	"licensegate/internal/store"
)

// AdminHandler exposes the license-management plumbing used by the back
// office: issuance, revocation, expiry edits. The activation core only ever
// reads what these endpoints write.
type AdminHandler struct {
	store    store.Store
	logger   *slog.Logger
	token    string
	validate *validator.Validate
}

// NewAdminHandler creates an admin handler guarded by the given token.
func NewAdminHandler(st store.Store, token string, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		store:    st,
		logger:   logger.With(slog.String("handler", "admin")),
		token:    token,
		validate: validator.New(),
	}
}

// CreateLicenseRequest is the issuance payload. Records are created unused
// with no domain; the activation flow performs the only binding.
type CreateLicenseRequest struct {
	Key         string     `json:"key" validate:"required,max=64"`
	ProductName string     `json:"productName" validate:"required"`
	OwnerName   string     `json:"ownerName,omitempty"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
}

// SetExpiryRequest updates a license's expiry; a null expiresAt clears it.
type SetExpiryRequest struct {
	ExpiresAt *time.Time `json:"expiresAt"`
}

// AdminLicenseInfo is the back-office projection of a record, key included.
type AdminLicenseInfo struct {
	Key         string     `json:"key"`
	ProductName string     `json:"productName"`
	OwnerName   string     `json:"ownerName,omitempty"`
	Domain      string     `json:"domain,omitempty"`
	Status      string     `json:"status"`
	ActivatedAt *time.Time `json:"activatedAt,omitempty"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Routes returns the chi router for the admin endpoints.
func (h *AdminHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(h.requireToken)
	r.Get("/licenses", h.List)
	r.Post("/licenses", h.Create)
	r.Post("/licenses/{key}/revoke", h.Revoke)
	r.Put("/licenses/{key}/expiry", h.SetExpiry)
	r.Delete("/licenses/{key}", h.Delete)
	return r
}

// requireToken gates every admin route on the configured token. With no token
// configured the whole surface is disabled.
func (h *AdminHandler) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.token == "" {
			render.Render(w, r, apierrors.ErrForbidden)
			return
		}
		got := r.Header.Get("X-Admin-Token")
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.token)) != 1 {
			h.logger.WarnContext(r.Context(), "admin token rejected",
				slog.String("remote_addr", r.RemoteAddr),
			)
			render.Render(w, r, apierrors.ErrUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Create handles POST /api/admin/licenses.
func (h *AdminHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateLicenseRequest
	if err := render.Decode(r, &req); err != nil {
		render.Render(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		render.Render(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	if err := license.ValidateKey(req.Key); err != nil {
		render.Render(w, r, apierrors.InvalidRequestWithError(err))
		return
	}

	lic := &license.License{
		Key:         req.Key,
		ProductName: req.ProductName,
		OwnerName:   req.OwnerName,
		Status:      license.StatusUnused,
		ExpiresAt:   req.ExpiresAt,
	}
	if err := h.store.Create(ctx, lic); err != nil {
		h.logger.ErrorContext(ctx, "license creation failed",
			slog.String("license_key", license.MaskKey(req.Key)),
			slog.String("error", err.Error()),
		)
		render.Render(w, r, apierrors.ErrConflict)
		return
	}

	h.logger.InfoContext(ctx, "license created",
		slog.String("license_key", license.MaskKey(lic.Key)),
		slog.String("product", lic.ProductName),
	)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, adminInfo(lic))
}

// List handles GET /api/admin/licenses.
func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	licenses, err := h.store.List(r.Context())
	if err != nil {
		render.Render(w, r, apierrors.ErrInternalServer)
		return
	}
	out := make([]*AdminLicenseInfo, 0, len(licenses))
	for i := range licenses {
		out = append(out, adminInfo(&licenses[i]))
	}
	render.JSON(w, r, out)
}

// Revoke handles POST /api/admin/licenses/{key}/revoke. Revocation is
// terminal; the activation flow never moves a record back out.
func (h *AdminHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key := chi.URLParam(r, "key")

	if err := h.store.Revoke(ctx, key); err != nil {
		h.renderStoreError(w, r, err)
		return
	}
	h.logger.InfoContext(ctx, "license revoked",
		slog.String("license_key", license.MaskKey(key)),
	)
	render.NoContent(w, r)
}

// SetExpiry handles PUT /api/admin/licenses/{key}/expiry.
func (h *AdminHandler) SetExpiry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key := chi.URLParam(r, "key")

	var req SetExpiryRequest
	if err := render.Decode(r, &req); err != nil {
		render.Render(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	if err := h.store.SetExpiry(ctx, key, req.ExpiresAt); err != nil {
		h.renderStoreError(w, r, err)
		return
	}
	render.NoContent(w, r)
}

// Delete handles DELETE /api/admin/licenses/{key}.
func (h *AdminHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key := chi.URLParam(r, "key")

	if err := h.store.Delete(ctx, key); err != nil {
		h.renderStoreError(w, r, err)
		return
	}
	h.logger.InfoContext(ctx, "license deleted",
		slog.String("license_key", license.MaskKey(key)),
	)
	render.NoContent(w, r)
}

func (h *AdminHandler) renderStoreError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, license.ErrNotFound) {
		render.Render(w, r, apierrors.ErrNotFound)
		return
	}
	render.Render(w, r, apierrors.ErrInternalServer)
}

func adminInfo(lic *license.License) *AdminLicenseInfo {
	return &AdminLicenseInfo{
		Key:         lic.Key,
		ProductName: lic.ProductName,
		OwnerName:   lic.OwnerName,
		Domain:      lic.Domain,
		Status:      string(lic.Status),
		ActivatedAt: lic.ActivatedAt,
		ExpiresAt:   lic.ExpiresAt,
		CreatedAt:   lic.CreatedAt,
		UpdatedAt:   lic.UpdatedAt,
	}
}
