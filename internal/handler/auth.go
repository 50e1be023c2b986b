package handler

import (
	"embed"
	"errors"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/filekeep/filekeep-go/internal/crypto"
	"github.com/filekeep/filekeep-go/internal/middleware"
	"github.com/filekeep/filekeep-go/internal/model"
	"github.com/filekeep/filekeep-go/internal/service"
)

//go:embed templates/verify.html
var templateFS embed.FS

var verifyPage = template.Must(template.ParseFS(templateFS, "templates/verify.html"))

type pageData struct {
	Title   string
	Heading string
	Color   string
	Lines   []string
}

var verifyPages = map[model.VerifyStatus]pageData{
	model.VerifyInvalid: {
		Title: "Verification Failed", Heading: "Verification Failed", Color: "#dc3545",
		Lines: []string{"The verification link is invalid or has expired."},
	},
	model.VerifyUserNotFound: {
		Title: "User Not Found", Heading: "User Not Found", Color: "#dc3545",
		Lines: []string{"We could not find a user associated with this email."},
	},
	model.VerifyAlreadyVerified: {
		Title: "Already Verified", Heading: "Already Verified", Color: "#0275d8",
		Lines: []string{"Your email has already been verified. You can proceed to login."},
	},
	model.VerifySucceeded: {
		Title: "Verification Successful", Heading: "Verification Successful!", Color: "#28a745",
		Lines: []string{
			"Your email has been successfully verified.",
			"You can now close this window and log in to your account.",
		},
	},
}

// AuthHandler handles HTTP requests for authentication.
type AuthHandler struct {
	service *service.AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(svc *service.AuthService) *AuthHandler {
	return &AuthHandler{service: svc}
}

// HandleRegister handles POST /auth/register requests.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.service.Register(r.Context(), req)
	if err != nil {
		switch {
		case isValidationErr(err):
			writeJSON(w, http.StatusBadRequest, errorResponse(err.Error()))
		case errors.Is(err, service.ErrEmailTaken):
			writeJSON(w, http.StatusConflict, errorResponse(err.Error()))
		default:
			internalError(w, r, err)
		}
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

// HandleLogin handles POST /auth/login requests with a JSON body.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	h.login(w, r, req.Email, req.Password, "Login successful")
}

// HandleToken handles POST /auth/token requests, the form-encoded
// password grant with username and password fields.
func (h *AuthHandler) HandleToken(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse("invalid form body"))
		return
	}

	h.login(w, r, r.PostForm.Get("username"), r.PostForm.Get("password"), "")
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request, email, password, message string) {
	resp, err := h.service.Login(r.Context(), email, password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			writeUnauthorized(w, err.Error())
		case errors.Is(err, service.ErrEmailNotVerified):
			writeJSON(w, http.StatusForbidden, errorResponse(err.Error()))
		default:
			internalError(w, r, err)
		}
		return
	}

	resp.Message = message
	writeJSON(w, http.StatusOK, resp)
}

// HandleVerify handles GET /auth/verify?token=... requests. The outcome is
// rendered as an HTML page with status 200 in every case.
func (h *AuthHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	status, err := h.service.VerifyEmail(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		slog.ErrorContext(r.Context(), "email verification failed", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := verifyPage.Execute(w, verifyPages[status]); err != nil {
		slog.ErrorContext(r.Context(), "render verify page", "error", err)
	}
}

// HandleResetPassword handles POST /auth/reset_password requests.
func (h *AuthHandler) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req model.PasswordResetRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.service.RequestPasswordReset(r.Context(), req.Email)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmailRequired):
			writeJSON(w, http.StatusBadRequest, errorResponse(err.Error()))
		case errors.Is(err, service.ErrUserNotFound):
			writeJSON(w, http.StatusNotFound, errorResponse(err.Error()))
		default:
			internalError(w, r, err)
		}
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// HandleConfirmPasswordReset handles POST /auth/confirm_password_reset requests.
func (h *AuthHandler) HandleConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req model.ConfirmPasswordResetRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	err := h.service.ConfirmPasswordReset(r.Context(), req)
	if err != nil {
		switch {
		case isValidationErr(err), errors.Is(err, service.ErrTokenAlreadyUsed):
			writeJSON(w, http.StatusBadRequest, errorResponse(err.Error()))
		case errors.Is(err, service.ErrTokenInvalid):
			writeUnauthorized(w, err.Error())
		case errors.Is(err, service.ErrUserNotFound):
			writeJSON(w, http.StatusNotFound, errorResponse(err.Error()))
		default:
			internalError(w, r, err)
		}
		return
	}

	writeJSON(w, http.StatusOK, model.MessageResponse{Message: "Password has been reset successfully"})
}

// HandleMe handles GET /auth/me requests.
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "unauthorized")
		return
	}

	writeJSON(w, http.StatusOK, model.UserResponse{
		ID:         user.ID,
		Email:      user.Email,
		FirstName:  user.FirstName,
		MiddleName: user.MiddleName,
		LastName:   user.LastName,
		IsVerified: user.IsVerified,
		CreatedAt:  user.CreatedAt,
	})
}

func isValidationErr(err error) bool {
	for _, target := range []error{
		service.ErrFirstNameRequired,
		service.ErrLastNameRequired,
		service.ErrEmailRequired,
		service.ErrPasswordRequired,
		service.ErrTokenRequired,
		service.ErrPasswordMismatch,
		crypto.ErrPasswordTooShort,
		crypto.ErrPasswordTooLong,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func internalError(w http.ResponseWriter, r *http.Request, err error) {
	slog.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	writeJSON(w, http.StatusInternalServerError, errorResponse("internal server error"))
}
