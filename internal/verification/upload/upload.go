// Package upload streams multipart document images into the upload
// directory. The files it writes are ephemeral: the verification pipeline
// removes them, and the sweeper removes any it missed.
package upload

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"kycproxy/internal/verification/models"
	dErrors "kycproxy/pkg/domain-errors"
)

const (
	FieldDocument     = "document"
	FieldDocumentBack = "documentBack"

	maxFiles = 2
)

// Intake writes document parts of a multipart request to disk.
type Intake struct {
	dir          string
	maxFileBytes int64
	logger       *slog.Logger
}

// New creates an intake writing into dir. Each file is capped at maxFileBytes.
func New(dir string, maxFileBytes int64, logger *slog.Logger) *Intake {
	if logger == nil {
		logger = slog.Default()
	}
	return &Intake{dir: dir, maxFileBytes: maxFileBytes, logger: logger}
}

// Dir returns the upload directory.
func (i *Intake) Dir() string {
	return i.dir
}

// EnsureDir creates the upload directory if needed.
func (i *Intake) EnsureDir() error {
	return os.MkdirAll(i.dir, 0o700)
}

// Receive saves the document and documentBack parts of r. Non-file form
// fields are ignored. A missing document is not rejected here; the pipeline
// reports it. On error every file already written is removed.
func (i *Intake) Receive(r *http.Request) (req models.VerifyRequest, err error) {
	reader, err := r.MultipartReader()
	if err != nil {
		return models.VerifyRequest{}, dErrors.New(dErrors.CodeInvalidInput, "request must be multipart/form-data")
	}

	defer func() {
		if err != nil {
			i.discard(req.Uploads())
			req = models.VerifyRequest{}
		}
	}()

	files := 0
	for {
		part, partErr := reader.NextPart()
		if errors.Is(partErr, io.EOF) {
			break
		}
		if partErr != nil {
			return req, readError(partErr)
		}

		if part.FileName() == "" {
			_ = part.Close()
			continue
		}

		field := part.FormName()
		if field != FieldDocument && field != FieldDocumentBack {
			_ = part.Close()
			return req, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("unexpected file field %q", field))
		}
		if (field == FieldDocument && req.Document != nil) || (field == FieldDocumentBack && req.DocumentBack != nil) {
			_ = part.Close()
			return req, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("only one %s file is allowed", field))
		}
		files++
		if files > maxFiles {
			_ = part.Close()
			return req, dErrors.New(dErrors.CodeInvalidInput, "at most two files are allowed")
		}

		saved, saveErr := i.save(part)
		_ = part.Close()
		if saveErr != nil {
			return req, saveErr
		}
		if field == FieldDocument {
			req.Document = saved
		} else {
			req.DocumentBack = saved
		}
	}
	return req, nil
}

func (i *Intake) save(part *multipart.Part) (*models.Upload, error) {
	path := filepath.Join(i.dir, uuid.NewString())
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not store upload")
	}

	n, copyErr := io.Copy(f, io.LimitReader(part, i.maxFileBytes+1))
	closeErr := f.Close()

	var failure error
	switch {
	case copyErr != nil:
		failure = readError(copyErr)
	case closeErr != nil:
		failure = dErrors.Wrap(closeErr, dErrors.CodeInternal, "could not store upload")
	case n > i.maxFileBytes:
		failure = dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("file exceeds maximum size of %d bytes", i.maxFileBytes))
	case n == 0:
		failure = dErrors.New(dErrors.CodeInvalidInput, "uploaded file is empty")
	}
	if failure != nil {
		i.remove(path)
		return nil, failure
	}

	return &models.Upload{
		Path:        path,
		Filename:    filepath.Base(part.FileName()),
		ContentType: part.Header.Get("Content-Type"),
		Size:        n,
	}, nil
}

func (i *Intake) discard(uploads []*models.Upload) {
	for _, u := range uploads {
		i.remove(u.Path)
	}
}

func (i *Intake) remove(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		i.logger.Warn("failed to remove partial upload", "path", path, "error", err)
	}
}

func readError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return dErrors.New(dErrors.CodeInvalidInput, "request body too large")
	}
	return dErrors.Wrap(err, dErrors.CodeInvalidInput, "malformed multipart body")
}
