package account

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/gov-appointments/internal/apperr"
	"github.com/hackgods/gov-appointments/internal/auth"
)

var (
	ErrEmailTaken         = apperr.Conflict("email already registered")
	ErrNICTaken           = apperr.Conflict("NIC already registered")
	ErrAccountNotFound    = fmt.Errorf("%w: profile not found", apperr.ErrNotFound)
	ErrCitizenNotFound    = fmt.Errorf("%w: citizen profile not found", apperr.ErrNotFound)
	ErrInvalidCredentials = fmt.Errorf("%w: invalid email or password", apperr.ErrUnauthorized)
	ErrResetTokenUsed     = fmt.Errorf("%w: reset link is no longer valid", apperr.ErrUnauthorized)
)

type Preferences struct {
	EmailNotifications   bool `json:"email_notifications"`
	AppointmentReminders bool `json:"appointment_reminders"`
	StatusUpdates        bool `json:"status_updates"`
	SystemAnnouncements  bool `json:"system_announcements"`
}

func DefaultPreferences() Preferences {
	return Preferences{
		EmailNotifications:   true,
		AppointmentReminders: true,
		StatusUpdates:        true,
		SystemAnnouncements:  true,
	}
}

// UnmarshalJSON treats missing keys as enabled so rows stored with an empty
// object keep the defaults.
func (p *Preferences) UnmarshalJSON(b []byte) error {
	type plain Preferences
	v := plain(DefaultPreferences())
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*p = Preferences(v)
	return nil
}

// PreferencesUpdate changes only the fields that are set.
type PreferencesUpdate struct {
	EmailNotifications   *bool `json:"email_notifications"`
	AppointmentReminders *bool `json:"appointment_reminders"`
	StatusUpdates        *bool `json:"status_updates"`
	SystemAnnouncements  *bool `json:"system_announcements"`
}

func (u PreferencesUpdate) apply(p Preferences) Preferences {
	if u.EmailNotifications != nil {
		p.EmailNotifications = *u.EmailNotifications
	}
	if u.AppointmentReminders != nil {
		p.AppointmentReminders = *u.AppointmentReminders
	}
	if u.StatusUpdates != nil {
		p.StatusUpdates = *u.StatusUpdates
	}
	if u.SystemAnnouncements != nil {
		p.SystemAnnouncements = *u.SystemAnnouncements
	}
	return p
}

type Identity struct {
	UserID       uuid.UUID
	Email        string
	PasswordHash string
	Role         auth.Role
	LastLogoutAt *time.Time
	CreatedAt    time.Time
}

type Address struct {
	Line1 string `json:"addressLine1"`
	Line2 string `json:"addressLine2"`
	City  string `json:"city"`
}

type Citizen struct {
	NIC                     string      `json:"nic"`
	UserID                  uuid.UUID   `json:"userId"`
	FullName                string      `json:"fullName"`
	Email                   string      `json:"email"`
	PhoneNumber             string      `json:"phoneNumber"`
	BloodGroup              string      `json:"bloodGroup"`
	Address                 Address     `json:"address"`
	DateOfBirth             *time.Time  `json:"dateOfBirth,omitempty"`
	Gender                  string      `json:"gender"`
	IsActive                bool        `json:"isActive"`
	NotificationPreferences Preferences `json:"notification_preferences"`
	CreatedAt               time.Time   `json:"createdAt"`
	UpdatedAt               time.Time   `json:"updatedAt"`
}

type Officer struct {
	UserID                  uuid.UUID   `json:"uid"`
	Email                   string      `json:"email"`
	Name                    string      `json:"name"`
	Role                    auth.Role   `json:"role"`
	Department              string      `json:"department,omitempty"`
	Phone                   string      `json:"phone"`
	IsActive                bool        `json:"is_active"`
	NotificationPreferences Preferences `json:"notification_preferences"`
	LastLogoutAt            *time.Time  `json:"last_logout,omitempty"`
	CreatedAt               time.Time   `json:"created_at"`
	UpdatedAt               time.Time   `json:"updated_at"`
}

type RegisterRequest struct {
	Email       string    `json:"email"`
	Password    string    `json:"password"`
	Name        string    `json:"name"`
	NIC         string    `json:"nic"`
	Phone       string    `json:"phone"`
	BloodGroup  string    `json:"blood_group"`
	Address     string    `json:"address"`
	City        string    `json:"city"`
	DateOfBirth string    `json:"date_of_birth"`
	Gender      string    `json:"gender"`
	Role        auth.Role `json:"role"`
	Department  string    `json:"department"`
}

type Registered struct {
	UserID uuid.UUID `json:"uid"`
	Role   auth.Role `json:"role"`
}

// ProfileUpdate changes only the fields that are set. Identity fields
// (role, email, NIC) are not editable.
type ProfileUpdate struct {
	Name        *string `json:"name"`
	Phone       *string `json:"phone"`
	Address     *string `json:"address"`
	City        *string `json:"city"`
	BloodGroup  *string `json:"blood_group"`
	Gender      *string `json:"gender"`
	DateOfBirth *string `json:"date_of_birth"`
}

type Session struct {
	Token     string    `json:"token"`
	Role      auth.Role `json:"role"`
	ExpiresIn int       `json:"expires_in"`
}
