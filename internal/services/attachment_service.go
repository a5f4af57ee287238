package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"livrocaixa/internal/auth"
	"livrocaixa/internal/blob"
	"livrocaixa/internal/core"
	applog "livrocaixa/internal/log"
	"livrocaixa/internal/store"
)

const (
	MaxAttachmentBytes = 5 << 20
	DefaultURLTTL      = 10 * time.Minute

	MsgFileTooLarge  = "Arquivo muito grande. Limite: 5MB."
	MsgFileRequired  = "Selecione um arquivo."
	MsgLinkInvalid   = "Informe um link válido (http/https)."
	opUploadFailed   = "Upload falhou"
	opRecordFailed   = "Anexo salvo no storage, mas falhou ao registrar no banco"
	opSignURLFailure = "gerar link do anexo"
)

type AttachmentService struct {
	store  store.Store
	blobs  blob.Store
	ttl    time.Duration
	now    func() time.Time
	logger *applog.Logger
}

// NewAttachmentService builds the service; ttl <= 0 uses DefaultURLTTL.
func NewAttachmentService(s store.Store, blobs blob.Store, ttl time.Duration, logger *applog.Logger) *AttachmentService {
	if ttl <= 0 {
		ttl = DefaultURLTTL
	}
	if logger == nil {
		logger = applog.Default()
	}
	return &AttachmentService{store: s, blobs: blobs, ttl: ttl, now: time.Now, logger: logger.WithComponent(applog.ComponentBlob)}
}

// BlobPath is where an upload of name for transaction txID is stored.
func BlobPath(userID, txID string, at time.Time, name string) string {
	return fmt.Sprintf("%s/%s/%d-%s", userID, txID, at.UnixMilli(), core.SafeName(name))
}

// Upload stores the file and records it on the transaction. When the
// metadata insert fails the blob is left in place and the error says so.
func (s *AttachmentService) Upload(ctx context.Context, txID, name, mimeType string, r io.Reader) (core.Attachment, error) {
	user, err := auth.CurrentUser(ctx)
	if err != nil {
		return core.Attachment{}, err
	}
	if strings.TrimSpace(name) == "" || r == nil {
		return core.Attachment{}, &core.ValidationError{Field: "file", Reason: MsgFileRequired}
	}
	data, err := io.ReadAll(io.LimitReader(r, MaxAttachmentBytes+1))
	if err != nil {
		return core.Attachment{}, fmt.Errorf("read upload: %w", err)
	}
	if len(data) > MaxAttachmentBytes {
		return core.Attachment{}, &core.ValidationError{Field: "file", Reason: MsgFileTooLarge}
	}
	if _, err := s.store.GetTransaction(ctx, txID); err != nil {
		return core.Attachment{}, storeErr("buscar lançamento", err)
	}

	now := s.now()
	path := BlobPath(user.ID, txID, now, name)
	if err := s.blobs.Put(ctx, path, mimeType, bytes.NewReader(data)); err != nil {
		return core.Attachment{}, &core.StoreError{Op: opUploadFailed, Err: err}
	}

	a := core.Attachment{
		TransactionID: txID,
		StoragePath:   path,
		OriginalName:  name,
		MimeType:      mimeType,
		SizeBytes:     int64(len(data)),
		CreatedBy:     user.ID,
		CreatedAt:     now,
	}
	id, err := s.store.InsertAttachment(ctx, a)
	if err != nil {
		s.logger.ErrorContext(ctx, "Attachment stored but not recorded",
			applog.FieldBlobPath, path, applog.FieldTransactionID, txID, applog.FieldError, err)
		return core.Attachment{}, &core.StoreError{Op: opRecordFailed, Err: err}
	}
	a.ID = id
	s.logger.InfoContext(ctx, "Attachment uploaded",
		applog.FieldOperation, applog.OpUpload, applog.FieldBlobPath, path, "size_bytes", a.SizeBytes)
	return a, nil
}

// AddLink records an external http(s) link as an attachment.
func (s *AttachmentService) AddLink(ctx context.Context, txID, link, name string) (core.Attachment, error) {
	user, err := auth.CurrentUser(ctx)
	if err != nil {
		return core.Attachment{}, err
	}
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return core.Attachment{}, &core.ValidationError{Field: "external_url", Reason: MsgLinkInvalid}
	}
	if strings.TrimSpace(name) == "" {
		name = u.Host
	}
	a := core.Attachment{
		TransactionID: txID,
		ExternalURL:   u.String(),
		OriginalName:  name,
		CreatedBy:     user.ID,
		CreatedAt:     s.now(),
	}
	id, err := s.store.InsertAttachment(ctx, a)
	if err != nil {
		return core.Attachment{}, storeErr("registrar anexo", err)
	}
	a.ID = id
	return a, nil
}

func (s *AttachmentService) List(ctx context.Context, txID string) ([]core.Attachment, error) {
	out, err := s.store.ListAttachments(ctx, txID)
	return out, storeErr("listar anexos", err)
}

// URL returns a short-lived signed link for a stored blob, or the external
// link as recorded.
func (s *AttachmentService) URL(ctx context.Context, attachmentID string) (string, error) {
	a, err := s.store.GetAttachment(ctx, attachmentID)
	if err != nil {
		return "", storeErr("buscar anexo", err)
	}
	if a.StoragePath == "" {
		return a.ExternalURL, nil
	}
	u, err := s.blobs.SignedURL(ctx, a.StoragePath, s.ttl)
	if err != nil {
		return "", storeErr(opSignURLFailure, err)
	}
	return u, nil
}
