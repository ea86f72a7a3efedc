// Package services contains the business-logic layer between the HTTP
// handlers and the protocol core.
package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"licensegate/internal/license"
	"licensegate/internal/store"
)

// ActivationRequest is the decoded activation payload. Timestamp and
// Signature are optional; when both are present the request is
// HMAC-verified, when both are absent verification is skipped (the
// documented back-compat weakening, unless strict mode is configured).
type ActivationRequest struct {
	Key       string
	Domain    string
	Timestamp *int64
	Signature string
}

// ActivationResult is the protocol outcome of an activation attempt. Every
// code path of Activate produces one; the activation flow never propagates an
// error past this layer.
type ActivationResult struct {
	Valid   bool
	Code    license.Code
	Message string
	License *license.License
}

// VerificationResult answers the public "is domain X currently licensed"
// lookup. Found distinguishes never-provisioned from provisioned-but-not-
// verified; Status is the derived display status.
type VerificationResult struct {
	Found    bool
	Verified bool
	Status   license.Status
	License  *license.License
}

// LicenseService is the activation and verification surface consumed by the
// HTTP handlers.
type LicenseService interface {
	Activate(ctx context.Context, req ActivationRequest) *ActivationResult
	VerifyDomain(ctx context.Context, rawDomain string) (*VerificationResult, error)
}

// Options configures NewLicenseService.
type Options struct {
	Store            store.Store
	Verifier         *license.Verifier
	Delayer          license.Delayer
	Metrics          *license.Metrics
	Logger           *slog.Logger
	RequireSignature bool
	// Now overrides the clock, for tests.
	Now func() time.Time
}

type licenseService struct {
	store            store.Store
	verifier         *license.Verifier
	activator        *license.Activator
	delayer          license.Delayer
	metrics          *license.Metrics
	logger           *slog.Logger
	requireSignature bool
	now              func() time.Time
}

// NewLicenseService wires the protocol components into a service.
func NewLicenseService(opts Options) LicenseService {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	delayer := opts.Delayer
	if delayer == nil {
		delayer = license.NopDelayer{}
	}
	activatorOpts := []license.ActivatorOption{
		license.WithActivatorMetrics(opts.Metrics),
	}
	if opts.Now != nil {
		activatorOpts = append(activatorOpts, license.WithActivatorClock(opts.Now))
	}
	return &licenseService{
		store:            opts.Store,
		verifier:         opts.Verifier,
		activator:        license.NewActivator(opts.Store, logger, activatorOpts...),
		delayer:          delayer,
		metrics:          opts.Metrics,
		logger:           logger.With(slog.String("service", "license")),
		requireSignature: opts.RequireSignature,
		now:              now,
	}
}

// Activate runs the full activation pipeline: parameter checks, domain
// normalization, grammar validation, signature verification, then the
// state machine. The anti-enumeration delay is applied on the way out of
// every branch, success and failure alike, so response latency carries no
// signal about which branch fired.
func (s *licenseService) Activate(ctx context.Context, req ActivationRequest) *ActivationResult {
	defer s.delayer.Wait(ctx)

	result := s.activate(ctx, req)
	s.metrics.RecordActivation(ctx, result.Code)

	s.logger.InfoContext(ctx, "activation attempt",
		slog.String("license_key", license.MaskKey(req.Key)),
		slog.String("code", string(result.Code)),
		slog.Bool("valid", result.Valid),
	)
	return result
}

func (s *licenseService) activate(ctx context.Context, req ActivationRequest) *ActivationResult {
	if req.Key == "" || req.Domain == "" {
		return resultFor(license.CodeMissingParams, nil)
	}

	domain, err := license.NormalizeDomain(req.Domain)
	if err != nil {
		return resultFor(license.CodeInvalidDomain, nil)
	}
	if err := license.ValidateDomain(domain); err != nil {
		return resultFor(license.CodeInvalidDomain, nil)
	}
	if err := license.ValidateKey(req.Key); err != nil {
		return resultFor(license.CodeInvalidKey, nil)
	}

	if code, ok := s.checkSignature(req, domain); !ok {
		return resultFor(code, nil)
	}

	outcome, err := s.activator.Activate(ctx, req.Key, domain)
	if err != nil {
		s.logger.ErrorContext(ctx, "activation failed",
			slog.String("license_key", license.MaskKey(req.Key)),
			slog.String("error", err.Error()),
		)
		return resultFor(license.CodeServerError, nil)
	}
	return resultFor(outcome.Code, outcome.License)
}

// checkSignature enforces the signing policy. A half-signed request (one of
// timestamp/signature without the other) always fails closed.
func (s *licenseService) checkSignature(req ActivationRequest, domain string) (license.Code, bool) {
	signed := req.Timestamp != nil || req.Signature != ""
	if !signed {
		if s.requireSignature {
			return license.CodeInvalidSignature, false
		}
		return "", true
	}
	if req.Timestamp == nil || req.Signature == "" {
		return license.CodeInvalidSignature, false
	}
	if s.verifier == nil {
		return license.CodeInvalidSignature, false
	}
	switch err := s.verifier.Verify(req.Key, domain, *req.Timestamp, req.Signature); {
	case errors.Is(err, license.ErrStaleTimestamp):
		return license.CodeExpiredRequest, false
	case err != nil:
		return license.CodeInvalidSignature, false
	}
	return "", true
}

// VerifyDomain serves the public read-only lookup. The returned error is
// infrastructure-only; "no license for this domain" is a Found=false result.
func (s *licenseService) VerifyDomain(ctx context.Context, rawDomain string) (*VerificationResult, error) {
	domain, err := license.NormalizeDomain(rawDomain)
	if err != nil {
		return &VerificationResult{}, nil
	}
	if err := license.ValidateDomain(domain); err != nil {
		return &VerificationResult{}, nil
	}

	lic, err := s.store.GetByDomain(ctx, domain)
	if errors.Is(err, license.ErrNotFound) {
		s.metrics.RecordVerification(ctx, false, false)
		return &VerificationResult{}, nil
	}
	if err != nil {
		return nil, err
	}

	now := s.now()
	result := &VerificationResult{
		Found:    true,
		Verified: lic.VerifiedAt(now),
		Status:   lic.EffectiveStatus(now),
		License:  lic,
	}
	s.metrics.RecordVerification(ctx, true, result.Verified)
	return result, nil
}

func resultFor(code license.Code, lic *license.License) *ActivationResult {
	return &ActivationResult{
		Valid:   code.OK(),
		Code:    code,
		Message: code.Message(),
		License: lic,
	}
}
