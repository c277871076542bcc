// Package account owns identities, citizen and officer profiles, and
// notification preferences. It is the local identity provider: passwords are
// bcrypt hashed and sessions are HS256 bearer tokens.
package account

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	netmail "net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hackgods/gov-appointments/internal/analytics"
	"github.com/hackgods/gov-appointments/internal/apperr"
	"github.com/hackgods/gov-appointments/internal/auth"
	"github.com/hackgods/gov-appointments/internal/department"
	"github.com/hackgods/gov-appointments/internal/mail"
	"github.com/hackgods/gov-appointments/internal/notification"
	"github.com/hackgods/gov-appointments/internal/observability"
)

const minPasswordLength = 6

type EventRecorder interface {
	Record(ctx context.Context, typ analytics.EventType, nic string, dept department.ID, extra map[string]any)
}

type Service struct {
	repo   Repository
	issuer *auth.Issuer
	events EventRecorder
	logger *observability.Logger
	cost   int
	clock  func() time.Time
	reset  PasswordReset
}

// PasswordReset configures the forgot-password email. The token is appended
// to LinkURL as the token query parameter.
type PasswordReset struct {
	Mailer  mail.Sender
	LinkURL string
	TTL     time.Duration
}

func NewService(repo Repository, issuer *auth.Issuer, events EventRecorder, logger *observability.Logger) *Service {
	return &Service{
		repo:   repo,
		issuer: issuer,
		events: events,
		logger: logger,
		cost:   bcrypt.DefaultCost,
		clock:  time.Now,
	}
}

// Register creates an identity with its profile. Anyone may register as a
// citizen; staff and admin accounts can only be created by an admin.
func (s *Service) Register(ctx context.Context, caller *auth.Principal, req RegisterRequest) (Registered, error) {
	if err := validateRegistration(&req); err != nil {
		return Registered{}, err
	}
	if req.Role != auth.RoleCitizen && (caller == nil || caller.Role != auth.RoleAdmin) {
		return Registered{}, apperr.Forbidden("only admins can create %s accounts", req.Role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return Registered{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.clock().UTC()
	id := Identity{
		UserID:       uuid.New(),
		Email:        req.Email,
		PasswordHash: string(hash),
		Role:         req.Role,
		CreatedAt:    now,
	}

	if req.Role == auth.RoleCitizen {
		c := Citizen{
			NIC:                     req.NIC,
			UserID:                  id.UserID,
			FullName:                req.Name,
			Email:                   req.Email,
			PhoneNumber:             req.Phone,
			BloodGroup:              valueOr(req.BloodGroup, "O+"),
			Address:                 Address{Line1: req.Address, City: req.City},
			Gender:                  valueOr(req.Gender, "other"),
			IsActive:                true,
			NotificationPreferences: DefaultPreferences(),
			CreatedAt:               now,
			UpdatedAt:               now,
		}
		if req.DateOfBirth != "" {
			dob, err := time.Parse("2006-01-02", req.DateOfBirth)
			if err != nil {
				return Registered{}, apperr.Validation("date_of_birth must be YYYY-MM-DD")
			}
			c.DateOfBirth = &dob
		}
		if err := s.repo.CreateCitizen(ctx, id, c); err != nil {
			return Registered{}, wrap(err, "create citizen")
		}
		s.events.Record(ctx, analytics.UserRegistered, c.NIC, "", nil)
	} else {
		o := Officer{
			UserID:                  id.UserID,
			Email:                   req.Email,
			Name:                    req.Name,
			Role:                    req.Role,
			Department:              req.Department,
			Phone:                   req.Phone,
			IsActive:                true,
			NotificationPreferences: DefaultPreferences(),
			CreatedAt:               now,
			UpdatedAt:               now,
		}
		if err := s.repo.CreateOfficer(ctx, id, o); err != nil {
			return Registered{}, wrap(err, "create officer")
		}
	}

	s.logger.WithContext(ctx).Info("account registered", "user_id", id.UserID, "role", id.Role)
	return Registered{UserID: id.UserID, Role: id.Role}, nil
}

func validateRegistration(req *RegisterRequest) error {
	req.Email = strings.TrimSpace(req.Email)
	req.Name = strings.TrimSpace(req.Name)
	req.NIC = strings.TrimSpace(req.NIC)
	if req.Role == "" {
		req.Role = auth.RoleCitizen
	}

	switch {
	case req.Email == "":
		return apperr.Validation("email is required")
	case req.Password == "":
		return apperr.Validation("password is required")
	case req.Name == "":
		return apperr.Validation("name is required")
	case req.Role == auth.RoleCitizen && req.NIC == "":
		return apperr.Validation("nic is required")
	}
	if _, err := netmail.ParseAddress(req.Email); err != nil {
		return apperr.Validation("email is not a valid address")
	}
	if len(req.Password) < minPasswordLength {
		return apperr.Validation("password must be at least %d characters", minPasswordLength)
	}
	if !req.Role.Valid() {
		return apperr.Validation("invalid role %q", req.Role)
	}
	if req.Department != "" {
		if _, err := department.Parse(req.Department); err != nil {
			return err
		}
	}
	return nil
}

// Login checks the password and issues a bearer token.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return Session{}, apperr.Validation("email and password required")
	}

	id, err := s.repo.IdentityByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, fmt.Errorf("load identity: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(id.PasswordHash), []byte(password)); err != nil {
		return Session{}, ErrInvalidCredentials
	}

	session, err := s.session(id.UserID, id.Role)
	if err != nil {
		return Session{}, err
	}

	if id.Role == auth.RoleCitizen {
		if c, err := s.repo.CitizenByUserID(ctx, id.UserID); err == nil {
			s.events.Record(ctx, analytics.UserLogin, c.NIC, "", nil)
		} else {
			s.logger.WithContext(ctx).Warn("login analytics skipped", "user_id", id.UserID, "error", err)
		}
	}
	return session, nil
}

// Refresh issues a new token for an already authenticated principal.
func (s *Service) Refresh(ctx context.Context, p auth.Principal) (Session, error) {
	return s.session(p.UserID, p.Role)
}

func (s *Service) session(userID uuid.UUID, role auth.Role) (Session, error) {
	token, err := s.issuer.Issue(userID, role)
	if err != nil {
		return Session{}, fmt.Errorf("issue token: %w", err)
	}
	return Session{Token: token, Role: role, ExpiresIn: int(s.issuer.TTL().Seconds())}, nil
}

func (s *Service) EnablePasswordReset(cfg PasswordReset) {
	s.reset = cfg
}

// ForgotPassword mails a reset link when email belongs to an account. The
// outcome is the same for unknown addresses.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return apperr.Validation("email is required")
	}
	if s.reset.Mailer == nil {
		return errors.New("password reset is not configured")
	}
	log := s.logger.WithContext(ctx)

	id, err := s.repo.IdentityByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			log.Info("password reset requested for unknown email")
			return nil
		}
		return fmt.Errorf("load identity: %w", err)
	}

	token, err := s.issuer.IssueReset(id.UserID, fingerprint(id.PasswordHash), s.reset.TTL)
	if err != nil {
		return err
	}
	link := s.reset.LinkURL + "?token=" + url.QueryEscape(token)
	body, err := mail.RenderPasswordReset(link, int(s.reset.TTL.Minutes()))
	if err != nil {
		return fmt.Errorf("render reset email: %w", err)
	}

	if err := s.reset.Mailer.Send(ctx, mail.Message{To: id.Email, Subject: "Reset your password", HTML: body}); err != nil {
		log.Warn("password reset email failed", "user_id", id.UserID, "error", err)
		return nil
	}
	log.Info("password reset email sent", "user_id", id.UserID)
	return nil
}

// ResetPassword sets a new password using a token from ForgotPassword. A
// token stops working once the password it was issued against changes.
func (s *Service) ResetPassword(ctx context.Context, token, password string) error {
	if token == "" {
		return apperr.Validation("token is required")
	}
	if len(password) < minPasswordLength {
		return apperr.Validation("password must be at least %d characters", minPasswordLength)
	}

	userID, fp, err := s.issuer.ParseReset(token)
	if err != nil {
		return err
	}
	id, err := s.repo.IdentityByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return ErrResetTokenUsed
		}
		return fmt.Errorf("load identity: %w", err)
	}
	if fingerprint(id.PasswordHash) != fp {
		return ErrResetTokenUsed
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.repo.SetPassword(ctx, userID, id.PasswordHash, string(hash)); err != nil {
		if errors.Is(err, apperr.ErrUnauthorized) {
			return err
		}
		return fmt.Errorf("set password: %w", err)
	}

	s.logger.WithContext(ctx).Info("password reset", "user_id", userID)
	return nil
}

func fingerprint(hash string) string {
	sum := sha256.Sum256([]byte(hash))
	return hex.EncodeToString(sum[:8])
}

func (s *Service) Logout(ctx context.Context, p auth.Principal) error {
	return wrap(s.repo.StampLogout(ctx, p.UserID, s.clock().UTC()), "logout")
}

// Profile returns the caller's *Citizen or *Officer.
func (s *Service) Profile(ctx context.Context, p auth.Principal) (any, error) {
	if p.Role == auth.RoleCitizen {
		c, err := s.repo.CitizenByUserID(ctx, p.UserID)
		if err != nil {
			return nil, wrap(err, "load citizen")
		}
		return c, nil
	}
	o, err := s.repo.OfficerByUserID(ctx, p.UserID)
	if err != nil {
		return nil, wrap(err, "load officer")
	}
	return o, nil
}

func (s *Service) UpdateProfile(ctx context.Context, p auth.Principal, u ProfileUpdate) (any, error) {
	now := s.clock().UTC()

	if p.Role != auth.RoleCitizen {
		o, err := s.repo.OfficerByUserID(ctx, p.UserID)
		if err != nil {
			return nil, wrap(err, "load officer")
		}
		setIf(&o.Name, u.Name)
		setIf(&o.Phone, u.Phone)
		o.UpdatedAt = now
		if err := s.repo.UpdateOfficer(ctx, o); err != nil {
			return nil, err
		}
		return o, nil
	}

	c, err := s.repo.CitizenByUserID(ctx, p.UserID)
	if err != nil {
		return nil, wrap(err, "load citizen")
	}
	setIf(&c.FullName, u.Name)
	setIf(&c.PhoneNumber, u.Phone)
	setIf(&c.Address.Line1, u.Address)
	setIf(&c.Address.City, u.City)
	setIf(&c.BloodGroup, u.BloodGroup)
	setIf(&c.Gender, u.Gender)
	if u.DateOfBirth != nil {
		dob, err := time.Parse("2006-01-02", *u.DateOfBirth)
		if err != nil {
			return nil, apperr.Validation("date_of_birth must be YYYY-MM-DD")
		}
		c.DateOfBirth = &dob
	}
	if strings.TrimSpace(c.FullName) == "" {
		return nil, apperr.Validation("name cannot be empty")
	}
	c.UpdatedAt = now
	if err := s.repo.UpdateCitizen(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) Preferences(ctx context.Context, p auth.Principal) (Preferences, error) {
	if p.Role == auth.RoleCitizen {
		c, err := s.repo.CitizenByUserID(ctx, p.UserID)
		if err != nil {
			return Preferences{}, wrap(err, "load citizen")
		}
		return c.NotificationPreferences, nil
	}
	o, err := s.repo.OfficerByUserID(ctx, p.UserID)
	if err != nil {
		return Preferences{}, wrap(err, "load officer")
	}
	return o.NotificationPreferences, nil
}

func (s *Service) UpdatePreferences(ctx context.Context, p auth.Principal, u PreferencesUpdate) (Preferences, error) {
	now := s.clock().UTC()

	if p.Role == auth.RoleCitizen {
		c, err := s.repo.CitizenByUserID(ctx, p.UserID)
		if err != nil {
			return Preferences{}, wrap(err, "load citizen")
		}
		c.NotificationPreferences = u.apply(c.NotificationPreferences)
		c.UpdatedAt = now
		if err := s.repo.UpdateCitizen(ctx, c); err != nil {
			return Preferences{}, err
		}
		return c.NotificationPreferences, nil
	}

	o, err := s.repo.OfficerByUserID(ctx, p.UserID)
	if err != nil {
		return Preferences{}, wrap(err, "load officer")
	}
	o.NotificationPreferences = u.apply(o.NotificationPreferences)
	o.UpdatedAt = now
	if err := s.repo.UpdateOfficer(ctx, o); err != nil {
		return Preferences{}, err
	}
	return o.NotificationPreferences, nil
}

// CitizenNIC resolves the NIC of a citizen account.
func (s *Service) CitizenNIC(ctx context.Context, userID uuid.UUID) (string, error) {
	c, err := s.repo.CitizenByUserID(ctx, userID)
	if err != nil {
		return "", wrap(err, "load citizen")
	}
	return c.NIC, nil
}

// Recipient implements notification.RecipientResolver.
func (s *Service) Recipient(ctx context.Context, userID uuid.UUID) (notification.Recipient, error) {
	c, err := s.repo.CitizenByUserID(ctx, userID)
	if err == nil {
		return notification.Recipient{
			Email:        c.Email,
			Name:         c.FullName,
			EmailEnabled: c.NotificationPreferences.EmailNotifications,
		}, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return notification.Recipient{}, err
	}

	o, err := s.repo.OfficerByUserID(ctx, userID)
	if err != nil {
		return notification.Recipient{}, err
	}
	return notification.Recipient{
		Email:        o.Email,
		Name:         o.Name,
		EmailEnabled: o.NotificationPreferences.EmailNotifications,
	}, nil
}

// UserIDsByRole lists accounts for bulk announcements.
func (s *Service) UserIDsByRole(ctx context.Context, role auth.Role) ([]uuid.UUID, error) {
	if !role.Valid() {
		return nil, apperr.Validation("invalid role %q", role)
	}
	ids, err := s.repo.UserIDsByRole(ctx, role)
	if err != nil {
		return nil, fmt.Errorf("list users by role: %w", err)
	}
	return ids, nil
}

func setIf(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

func valueOr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func wrap(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, apperr.ErrNotFound) || errors.Is(err, apperr.ErrConflict) ||
		errors.Is(err, apperr.ErrValidation) || errors.Is(err, apperr.ErrForbidden) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}
