// Package document stores citizen uploads: the bytes go to a blob store, the
// metadata to Postgres.
package document

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/gov-appointments/internal/apperr"
)

const (
	TypeGeneral    = "general"
	StatusUploaded = "uploaded"
)

var ErrDocumentNotFound = fmt.Errorf("%w: document not found", apperr.ErrNotFound)

type Document struct {
	ID            uuid.UUID  `json:"id"`
	UserID        uuid.UUID  `json:"userId"`
	Filename      string     `json:"filename"`
	StoredName    string     `json:"storedName"`
	Path          string     `json:"-"`
	DocumentType  string     `json:"documentType"`
	SizeBytes     int64      `json:"fileSize"`
	AppointmentID *uuid.UUID `json:"appointmentId,omitempty"`
	Status        string     `json:"status"`
	UploadedAt    time.Time  `json:"uploadedAt"`
}

type UploadRequest struct {
	Filename      string
	DocumentType  string
	AppointmentID *uuid.UUID
}
