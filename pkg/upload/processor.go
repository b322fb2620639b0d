package upload

import (
	"mime/multipart"
	"net/http"
	"time"

	"github.com/apexanalytical/labcms/pkg/audit"
	"github.com/apexanalytical/labcms/pkg/errs"
)

// Processor receives a multipart file, stores it, and validates it.
// Any validation failure deletes the already-written file before the
// error is returned; the caller never sees a descriptor for a file
// that is not on disk and valid.
type Processor struct {
	validator *Validator
	store     Store
	log       audit.Logger
}

// NewProcessor creates an upload processor
func NewProcessor(validator *Validator, store Store, log audit.Logger) *Processor {
	return &Processor{validator: validator, store: store, log: log}
}

// Process handles the named multipart file field of r. On success the
// returned descriptor points at the stored file; the caller owns
// cleanup via Cleanup if a later step in the same request fails.
func (p *Processor) Process(r *http.Request, field string) (*Descriptor, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, errs.FileUpload("no file provided in field " + field)
	}
	defer file.Close()

	mimeType := header.Header.Get("Content-Type")

	if err := p.validator.CheckDeclared(header.Filename, mimeType, header.Size); err != nil {
		p.reject(r, header, mimeType, err)
		return nil, err
	}

	filename := SecureFilename(header.Filename, mimeType, p.validator.Extension(mimeType))
	path, size, err := p.store.Save(filename, file)
	if err != nil {
		return nil, errs.Internal(err)
	}

	head, err := p.store.ReadHead(path, SignatureLen)
	if err != nil {
		p.store.Delete(path)
		return nil, errs.Internal(err)
	}
	if err := p.validator.CheckSignature(head, mimeType); err != nil {
		p.store.Delete(path)
		p.reject(r, header, mimeType, err)
		return nil, err
	}

	desc := &Descriptor{
		OriginalName: header.Filename,
		Filename:     filename,
		MIMEType:     mimeType,
		Size:         size,
		Path:         path,
		UploadedAt:   time.Now().UTC(),
	}

	event := audit.BuildEvent(audit.EventTypeUploadAccepted, audit.EventStatusSuccess, r)
	event.Message = "file upload accepted"
	event.Metadata = map[string]interface{}{
		"mimetype": mimeType,
		"filename": filename,
		"size":     size,
	}
	p.log.Log(event)

	return desc, nil
}

// Cleanup deletes a stored upload. It is the compensating action for
// downstream failures in the same request, not a transaction.
func (p *Processor) Cleanup(r *http.Request, desc *Descriptor) {
	if desc == nil {
		return
	}
	if err := p.store.Delete(desc.Path); err != nil {
		p.log.SecurityEvent(audit.EventTypeUploadCleanup, r,
			"failed to delete orphaned upload: "+err.Error())
		return
	}
	event := audit.BuildEvent(audit.EventTypeUploadCleanup, audit.EventStatusSuccess, r)
	event.Message = "orphaned upload deleted"
	event.Metadata = map[string]interface{}{"path": desc.Path}
	p.log.Log(event)
}

func (p *Processor) reject(r *http.Request, header *multipart.FileHeader, mimeType string, err error) {
	event := audit.BuildEvent(audit.EventTypeUploadRejected, audit.EventStatusDenied, r)
	event.Message = errs.From(err).Message
	event.Metadata = map[string]interface{}{
		"mimetype": mimeType,
		"filename": header.Filename,
	}
	p.log.Log(event)
}
