package handler

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"lecturegate/internal/approval"
	"lecturegate/internal/domain"
	"lecturegate/internal/middleware"
	"lecturegate/pkg/config"
	lgerrors "lecturegate/pkg/errors"
	"lecturegate/pkg/logger"
	"lecturegate/pkg/validator"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"
)

// AdminStudentReader is the record-store slice the admin API reads from.
type AdminStudentReader interface {
	FindByID(ctx context.Context, id int64) (*domain.Student, error)
}

// AdminHandler exposes the operator REST surface: token issuance and
// approval over HTTP instead of the bot chat.
type AdminHandler struct {
	approval  *approval.Service
	students  AdminStudentReader
	cfg       config.AdminConfig
	jwtCfg    config.JWTConfig
	validator *validator.Validator
	logger    logger.Logger
}

func NewAdminHandler(
	appr *approval.Service,
	students AdminStudentReader,
	cfg config.AdminConfig,
	jwtCfg config.JWTConfig,
	val *validator.Validator,
	log logger.Logger,
) *AdminHandler {
	return &AdminHandler{
		approval:  appr,
		students:  students,
		cfg:       cfg,
		jwtCfg:    jwtCfg,
		validator: val,
		logger:    log,
	}
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
	TOTPCode string `json:"totp_code,omitempty"`
}

type approveRequest struct {
	Selector string `json:"selector" validate:"required"`
}

// Login issues a short-lived bearer token after password (and, when
// configured, TOTP) verification.
// POST /api/v1/admin/login
func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.parseAndValidateRequest(w, r, &req) {
		return
	}

	usernameOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(h.cfg.APIUsername)) == 1
	passwordErr := bcrypt.CompareHashAndPassword([]byte(h.cfg.APIPassword), []byte(req.Password))
	if h.cfg.APIPassword == "" || !usernameOK || passwordErr != nil {
		h.logger.Warn("Admin login failed", map[string]interface{}{
			"username": req.Username,
			"ip":       r.RemoteAddr,
		})
		h.respondError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	if h.cfg.TOTPSecret != "" && !totp.Validate(req.TOTPCode, h.cfg.TOTPSecret) {
		h.logger.Warn("Admin login TOTP rejected", map[string]interface{}{
			"username": req.Username,
			"ip":       r.RemoteAddr,
		})
		h.respondError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"admin_id": h.cfg.APIAdminID,
		"iat":      now.Unix(),
		"exp":      now.Add(h.jwtCfg.Expiration).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(h.jwtCfg.Secret))
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "Token generation failed")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"token":      token,
		"expires_in": int64(h.jwtCfg.Expiration.Seconds()),
	})
}

// Approve runs the approval workflow as the authenticated admin.
// POST /api/v1/admin/approve
func (h *AdminHandler) Approve(w http.ResponseWriter, r *http.Request) {
	adminID, ok := middleware.AdminIDFromContext(r.Context())
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "Unauthorized: missing admin context")
		return
	}

	var req approveRequest
	if !h.parseAndValidateRequest(w, r, &req) {
		return
	}

	result, err := h.approval.Approve(r.Context(), adminID, req.Selector)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, result)
}

// GetStudent returns a student record for inspection.
// GET /api/v1/admin/students/{id}
func (h *AdminHandler) GetStudent(w http.ResponseWriter, r *http.Request) {
	if _, ok := middleware.AdminIDFromContext(r.Context()); !ok {
		h.respondError(w, http.StatusUnauthorized, "Unauthorized: missing admin context")
		return
	}

	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid student id")
		return
	}

	student, err := h.students.FindByID(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, student)
}

func (h *AdminHandler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, lgerrors.ErrNotAuthorized):
		h.respondError(w, http.StatusForbidden, "Not authorized")
	case errors.Is(err, lgerrors.ErrTargetNotFound), errors.Is(err, lgerrors.ErrStudentNotFound):
		h.respondError(w, http.StatusNotFound, "Student not found")
	case errors.Is(err, lgerrors.ErrStoreUnavailable):
		h.respondError(w, http.StatusServiceUnavailable, "Store unavailable")
	default:
		h.logger.Error("Admin API error", map[string]interface{}{"error": err.Error()})
		h.respondError(w, http.StatusInternalServerError, "Internal error")
	}
}

func (h *AdminHandler) parseAndValidateRequest(w http.ResponseWriter, r *http.Request, req interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(req); err != nil {
		if err == io.EOF {
			h.respondError(w, http.StatusBadRequest, "Request body is required")
			return false
		}
		h.respondError(w, http.StatusBadRequest, "Invalid request body format")
		return false
	}

	if err := h.validator.Validate(req); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return false
	}

	return true
}

func (h *AdminHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode JSON response", map[string]interface{}{
			"error":  err.Error(),
			"status": status,
		})
	}
}

func (h *AdminHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
