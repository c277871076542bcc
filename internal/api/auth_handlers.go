package api

import (
	"net/http"

	"github.com/hackgods/gov-appointments/internal/account"
	"github.com/hackgods/gov-appointments/internal/auth"
	"github.com/hackgods/gov-appointments/internal/observability"
)

func registerHandler(svc AccountService, logger *observability.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req account.RegisterRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		var by *auth.Principal
		if p, ok := auth.FromContext(r.Context()); ok {
			by = &p
		}

		reg, err := svc.Register(r.Context(), by, req)
		if err != nil {
			failure(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, RegisterResponse{Message: "User registered successfully", Registered: reg})
	}
}

func loginHandler(svc AccountService, logger *observability.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		session, err := svc.Login(r.Context(), req.Email, req.Password)
		if err != nil {
			failure(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, session)
	}
}

// forgotPasswordHandler answers the same way whether or not the address
// belongs to an account.
func forgotPasswordHandler(svc AccountService, logger *observability.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ForgotPasswordRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if err := svc.ForgotPassword(r.Context(), req.Email); err != nil {
			failure(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, MessageResponse{Message: "If the email is registered, a reset link has been sent"})
	}
}

func resetPasswordHandler(svc AccountService, logger *observability.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ResetPasswordRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if err := svc.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
			failure(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, MessageResponse{Message: "Password updated"})
	}
}

func refreshHandler(svc AccountService, logger *observability.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, err := svc.Refresh(r.Context(), caller(r))
		if err != nil {
			failure(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, session)
	}
}

func logoutHandler(svc AccountService, logger *observability.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Logout(r.Context(), caller(r)); err != nil {
			failure(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, MessageResponse{Message: "Logged out successfully"})
	}
}

func profileHandler(svc AccountService, logger *observability.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		profile, err := svc.Profile(r.Context(), caller(r))
		if err != nil {
			failure(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, profile)
	}
}

func updateProfileHandler(svc AccountService, logger *observability.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var u account.ProfileUpdate
		if !decodeJSON(w, r, &u) {
			return
		}
		profile, err := svc.UpdateProfile(r.Context(), caller(r), u)
		if err != nil {
			failure(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, profile)
	}
}
