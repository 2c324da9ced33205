package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sbiochat/dashboard/internal/auth"
	"github.com/sbiochat/dashboard/internal/db"
	"github.com/sbiochat/dashboard/internal/logger"
	"github.com/sbiochat/dashboard/internal/stats"
)

const packagesDefaultLimit = 50

// packageNamePattern accepts pip requirement specifiers, including extras
// and version constraints like "pandas[excel]>=2.0,<3".
var packageNamePattern = regexp.MustCompile(`^[a-zA-Z0-9._\-\[\]>=<!, ]+$`)

// noCache marks a response as uncacheable. The package list must reflect
// writes immediately.
func noCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
}

func (s *Server) handleListPackages(w http.ResponseWriter, r *http.Request) {
	p, err := parsePageParams(r, packagesDefaultLimit)
	if err != nil {
		respondStatsError(w, r, err)
		return
	}

	statuses := r.URL.Query()["status"]
	for _, status := range statuses {
		if !db.ValidPackageStatus(status) {
			respondError(w, http.StatusBadRequest, "invalid_range", "invalid status: "+status)
			return
		}
	}

	packages, err := s.db.ListPackages(r.Context(), statuses)
	if err != nil {
		logger.Ctx(r.Context()).Error("failed to list packages", "error", err)
		respondError(w, http.StatusInternalServerError, "store_unavailable", "failed to list packages")
		return
	}

	noCache(w)
	respondJSON(w, http.StatusOK, stats.NewPage(packages, p))
}

func (s *Server) handleCreatePackage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PackageName string `json:"package_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_range", "invalid request body")
		return
	}

	name := strings.ToLower(strings.TrimSpace(req.PackageName))
	if name == "" {
		respondError(w, http.StatusBadRequest, "invalid_range", "package_name is required")
		return
	}
	if len(name) > 255 || !packageNamePattern.MatchString(name) {
		respondError(w, http.StatusBadRequest, "invalid_range", "package_name contains invalid characters")
		return
	}

	id := auth.FromContext(r.Context())
	pkg, err := s.db.CreatePackage(r.Context(), name, id.Username)
	if err != nil {
		if errors.Is(err, db.ErrPackageExists) {
			respondError(w, http.StatusConflict, "conflict", "package already requested")
			return
		}
		logger.Ctx(r.Context()).Error("failed to create package", "error", err, "package", name)
		respondError(w, http.StatusInternalServerError, "store_unavailable", "failed to create package")
		return
	}

	logger.Ctx(r.Context()).Info("package requested", "package", name, "user", id.Username)
	noCache(w)
	respondJSON(w, http.StatusCreated, pkg)
}

func (s *Server) handleDeletePackage(w http.ResponseWriter, r *http.Request) {
	pkgID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_range", "invalid package id")
		return
	}

	id := auth.FromContext(r.Context())
	if err := s.db.DeletePackage(r.Context(), pkgID, id.Username, id.Admin); err != nil {
		switch {
		case errors.Is(err, db.ErrPackageNotFound):
			respondError(w, http.StatusNotFound, "not_found", "package not found")
		case errors.Is(err, db.ErrForbidden):
			respondError(w, http.StatusForbidden, "forbidden", "only the requester or an admin can delete a package")
		default:
			logger.Ctx(r.Context()).Error("failed to delete package", "error", err, "package_id", pkgID)
			respondError(w, http.StatusInternalServerError, "store_unavailable", "failed to delete package")
		}
		return
	}

	logger.Ctx(r.Context()).Info("package deleted", "package_id", pkgID, "user", id.Username)
	noCache(w)
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleUpdatePackageStatus(w http.ResponseWriter, r *http.Request) {
	pkgID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_range", "invalid package id")
		return
	}

	var req struct {
		Status string  `json:"status"`
		Note   *string `json:"status_note"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_range", "invalid request body")
		return
	}
	if !db.ValidPackageStatus(req.Status) {
		respondError(w, http.StatusBadRequest, "invalid_range", "invalid status: "+req.Status)
		return
	}

	id := auth.FromContext(r.Context())
	if err := s.db.UpdatePackageStatus(r.Context(), pkgID, req.Status, req.Note, id.Username); err != nil {
		if errors.Is(err, db.ErrPackageNotFound) {
			respondError(w, http.StatusNotFound, "not_found", "package not found")
			return
		}
		logger.Ctx(r.Context()).Error("failed to update package status", "error", err, "package_id", pkgID)
		respondError(w, http.StatusInternalServerError, "store_unavailable", "failed to update package status")
		return
	}

	logger.Ctx(r.Context()).Info("package status updated",
		"package_id", pkgID, "status", req.Status, "user", id.Username)
	noCache(w)
	respondJSON(w, http.StatusOK, map[string]string{"status": req.Status})
}

func (s *Server) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	p, err := parsePageParams(r, packagesDefaultLimit)
	if err != nil {
		respondStatsError(w, r, err)
		return
	}

	entries, err := s.db.ListAuditLog(r.Context())
	if err != nil {
		logger.Ctx(r.Context()).Error("failed to list audit log", "error", err)
		respondError(w, http.StatusInternalServerError, "store_unavailable", "failed to list audit log")
		return
	}

	noCache(w)
	respondJSON(w, http.StatusOK, stats.NewPage(entries, p))
}
