package http

import (
	"net/http"
	"path/filepath"

	"livrocaixa/internal/core"
	"livrocaixa/internal/services"
)

type linkRequest struct {
	URL  string `json:"url"`
	Name string `json:"name"`
}

// attachmentsEnabled answers 503 when no blob store is configured.
func (s *Server) attachmentsEnabled(w http.ResponseWriter) bool {
	if s.deps.Attachments != nil {
		return true
	}
	NewResponse().Status(http.StatusServiceUnavailable).
		JSON(ErrorBody{Error: "Anexos indisponíveis.", Kind: KindInternal}).
		Write(w)
	return false
}

func (s *Server) handleListAttachments(w http.ResponseWriter, r *http.Request) {
	if !s.attachmentsEnabled(w) {
		return
	}
	list, err := s.deps.Attachments.List(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]attachmentJSON, 0, len(list))
	for _, a := range list {
		out = append(out, attachmentView(a))
	}
	NewResponse().JSON(map[string]any{"attachments": out}).Write(w)
}

func (s *Server) handleUploadAttachment(w http.ResponseWriter, r *http.Request) {
	if !s.attachmentsEnabled(w) {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, services.MaxAttachmentBytes+1<<20)
	if err := r.ParseMultipartForm(services.MaxAttachmentBytes); err != nil {
		s.writeError(w, r, &core.ValidationError{Field: "file", Reason: services.MsgFileTooLarge, Err: err})
		return
	}
	f, hdr, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, r, &core.ValidationError{Field: "file", Reason: services.MsgFileRequired, Err: err})
		return
	}
	defer f.Close()

	mimeType := hdr.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	a, err := s.deps.Attachments.Upload(r.Context(), r.PathValue("id"), filepath.Base(hdr.Filename), mimeType, f)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewResponse().Status(http.StatusCreated).JSON(attachmentView(a)).Write(w)
}

func (s *Server) handleAddLink(w http.ResponseWriter, r *http.Request) {
	if !s.attachmentsEnabled(w) {
		return
	}
	var req linkRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	a, err := s.deps.Attachments.AddLink(r.Context(), r.PathValue("id"), req.URL, sanitizeInput(req.Name))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewResponse().Status(http.StatusCreated).JSON(attachmentView(a)).Write(w)
}

func (s *Server) handleAttachmentURL(w http.ResponseWriter, r *http.Request) {
	if !s.attachmentsEnabled(w) {
		return
	}
	u, err := s.deps.Attachments.URL(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewResponse().JSON(map[string]string{"url": u}).Write(w)
}
