// Package department is the fixed catalog of service departments.
package department

import (
	"strings"

	"github.com/hackgods/gov-appointments/internal/apperr"
)

type ID string

const (
	Medical  ID = "medical"
	Passport ID = "passport"
	License  ID = "license"
)

// All lists departments in display order.
var All = []ID{Medical, Passport, License}

type Department struct {
	ID           ID       `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Services     []string `json:"services"`
	WorkingHours string   `json:"working_hours"`
	Location     string   `json:"location"`
}

type Service struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Duration int    `json:"duration"` // minutes
	Fee      int    `json:"fee"`
}

var catalog = map[ID]Department{
	Medical: {
		ID:           Medical,
		Name:         "Medical Services",
		Description:  "Medical certificates, health checkups",
		Services:     []string{"Health Certificate", "Medical Checkup", "Vaccination Records"},
		WorkingHours: "8:00 AM - 4:00 PM",
		Location:     "Medical Department, Ground Floor",
	},
	Passport: {
		ID:           Passport,
		Name:         "Passport Services",
		Description:  "Passport applications and renewals",
		Services:     []string{"New Passport", "Passport Renewal", "Lost Passport"},
		WorkingHours: "9:00 AM - 3:00 PM",
		Location:     "Immigration Department, 2nd Floor",
	},
	License: {
		ID:           License,
		Name:         "License Services",
		Description:  "Driving licenses and permits",
		Services:     []string{"Driving License", "License Renewal", "International Permit"},
		WorkingHours: "8:30 AM - 4:30 PM",
		Location:     "Transport Department, 1st Floor",
	},
}

var services = map[ID][]Service{
	Medical: {
		{ID: "health_cert", Name: "Health Certificate", Duration: 30, Fee: 500},
		{ID: "medical_checkup", Name: "Medical Checkup", Duration: 60, Fee: 1000},
		{ID: "vaccination", Name: "Vaccination Records", Duration: 15, Fee: 200},
	},
	Passport: {
		{ID: "new_passport", Name: "New Passport", Duration: 45, Fee: 3500},
		{ID: "renewal", Name: "Passport Renewal", Duration: 30, Fee: 2500},
		{ID: "lost_passport", Name: "Lost Passport", Duration: 60, Fee: 5000},
	},
	License: {
		{ID: "new_license", Name: "New Driving License", Duration: 90, Fee: 2000},
		{ID: "renewal", Name: "License Renewal", Duration: 20, Fee: 1000},
		{ID: "international", Name: "International Permit", Duration: 30, Fee: 1500},
	},
}

// Parse normalizes raw and reports an error wrapping apperr.ErrValidation
// when it is not a known department.
func Parse(raw string) (ID, error) {
	id := ID(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := catalog[id]; !ok {
		return "", apperr.Validation("invalid department %q", raw)
	}
	return id, nil
}

// Lookup is Parse for path segments: an unknown department is reported as
// not found rather than invalid input.
func Lookup(raw string) (ID, error) {
	id := ID(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := catalog[id]; !ok {
		return "", apperr.NotFound("department %q not found", raw)
	}
	return id, nil
}

// Tag is the upper-case form used in booking references.
func (id ID) Tag() string { return strings.ToUpper(string(id)) }

func List() []Department {
	out := make([]Department, 0, len(All))
	for _, id := range All {
		out = append(out, catalog[id])
	}
	return out
}

// Services returns the service menu for a department.
func Services(id ID) ([]Service, error) {
	s, ok := services[id]
	if !ok {
		return nil, apperr.NotFound("department not found")
	}
	return s, nil
}
