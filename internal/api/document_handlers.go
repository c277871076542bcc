package api

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/hackgods/gov-appointments/internal/document"
	"github.com/hackgods/gov-appointments/internal/observability"
)

// multipartMemory is how much of a form is held in memory before parts
// spill to temp files.
var multipartMemory int64 = 8 << 20

func uploadDocumentHandler(svc DocumentService, logger *observability.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Leave room for the multipart framing around the file itself.
		r.Body = http.MaxBytesReader(w, r.Body, svc.MaxBytes()+1<<20)
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(w, http.StatusRequestEntityTooLarge, "file_too_large", "upload exceeds the size limit")
				return
			}
			writeError(w, http.StatusBadRequest, "invalid_upload", "expected multipart form data")
			return
		}
		defer r.MultipartForm.RemoveAll()

		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_error", "no file provided")
			return
		}
		defer file.Close()

		req := document.UploadRequest{
			Filename:     header.Filename,
			DocumentType: r.FormValue("document_type"),
		}
		if raw := r.FormValue("appointment_id"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_appointment_id", "appointment_id must be a valid UUID")
				return
			}
			req.AppointmentID = &id
		}

		doc, err := svc.Upload(r.Context(), caller(r), req, file)
		if err != nil {
			failure(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, doc)
	}
}

func listDocumentsHandler(svc DocumentService, logger *observability.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		docs, err := svc.List(r.Context(), caller(r))
		if err != nil {
			failure(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, listOf(docs))
	}
}

func deleteDocumentHandler(svc DocumentService, logger *observability.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}
		if err := svc.Delete(r.Context(), caller(r), id); err != nil {
			failure(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, MessageResponse{Message: "Document deleted successfully"})
	}
}
