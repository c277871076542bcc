package document

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/gov-appointments/internal/analytics"
	"github.com/hackgods/gov-appointments/internal/apperr"
	"github.com/hackgods/gov-appointments/internal/auth"
	"github.com/hackgods/gov-appointments/internal/department"
	"github.com/hackgods/gov-appointments/internal/observability"
)

type NICResolver interface {
	CitizenNIC(ctx context.Context, userID uuid.UUID) (string, error)
}

type EventRecorder interface {
	Record(ctx context.Context, typ analytics.EventType, nic string, dept department.ID, extra map[string]any)
}

type Service struct {
	repo     Repository
	blobs    BlobStore
	nics     NICResolver
	events   EventRecorder
	logger   *observability.Logger
	allowed  []string
	maxBytes int64
	clock    func() time.Time
}

func NewService(repo Repository, blobs BlobStore, nics NICResolver, events EventRecorder, allowed []string, maxBytes int64, logger *observability.Logger) *Service {
	return &Service{
		repo:     repo,
		blobs:    blobs,
		nics:     nics,
		events:   events,
		logger:   logger,
		allowed:  allowed,
		maxBytes: maxBytes,
		clock:    time.Now,
	}
}

// MaxBytes is the largest accepted upload.
func (s *Service) MaxBytes() int64 { return s.maxBytes }

// Upload stores the file under <userId>/<userId>_<unixnano>_<name>.
func (s *Service) Upload(ctx context.Context, caller auth.Principal, req UploadRequest, r io.Reader) (*Document, error) {
	name := cleanFilename(req.Filename)
	if name == "" {
		return nil, apperr.Validation("no file selected")
	}
	ext := strings.ToLower(filepath.Ext(name))
	if !slices.Contains(s.allowed, ext) {
		return nil, apperr.Validation("file type %q not allowed", ext)
	}

	now := s.clock().UTC()
	owner := caller.UserID.String()
	stored := fmt.Sprintf("%s_%d_%s", owner, now.UnixNano(), name)

	limited := &io.LimitedReader{R: r, N: s.maxBytes + 1}
	path, size, err := s.blobs.Put(ctx, owner, stored, limited)
	if err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}
	if size > s.maxBytes {
		_ = s.blobs.Remove(ctx, path)
		return nil, apperr.Validation("file exceeds %d bytes", s.maxBytes)
	}

	docType := strings.TrimSpace(req.DocumentType)
	if docType == "" {
		docType = TypeGeneral
	}
	d := &Document{
		ID:            uuid.New(),
		UserID:        caller.UserID,
		Filename:      name,
		StoredName:    stored,
		Path:          path,
		DocumentType:  docType,
		SizeBytes:     size,
		AppointmentID: req.AppointmentID,
		Status:        StatusUploaded,
		UploadedAt:    now,
	}
	if err := s.repo.Create(ctx, d); err != nil {
		_ = s.blobs.Remove(ctx, path)
		return nil, fmt.Errorf("save document: %w", err)
	}

	nic := ""
	if caller.Role == auth.RoleCitizen {
		if n, err := s.nics.CitizenNIC(ctx, caller.UserID); err == nil {
			nic = n
		}
	}
	s.events.Record(ctx, analytics.DocumentUploaded, nic, "", map[string]any{
		"document_id":   d.ID.String(),
		"document_type": docType,
		"file_size":     size,
	})
	s.logger.WithContext(ctx).Info("document uploaded", "document_id", d.ID, "size", size)
	return d, nil
}

func (s *Service) List(ctx context.Context, caller auth.Principal) ([]Document, error) {
	docs, err := s.repo.ListByUser(ctx, caller.UserID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

// Delete removes the blob first, then the metadata. Owners and officers only.
func (s *Service) Delete(ctx context.Context, caller auth.Principal, id uuid.UUID) error {
	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if d.UserID != caller.UserID && !caller.IsOfficer() {
		return apperr.Forbidden("access denied")
	}
	if err := s.blobs.Remove(ctx, d.Path); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.WithContext(ctx).Info("document deleted", "document_id", id, "by", caller.UserID)
	return nil
}

func cleanFilename(raw string) string {
	base := filepath.Base(strings.ReplaceAll(raw, "\\", "/"))
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		}
	}
	return strings.Trim(b.String(), "._")
}
