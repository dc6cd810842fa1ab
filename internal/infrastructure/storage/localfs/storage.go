package localfs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/kirillkom/mail-triage/internal/core/domain"
)

// Archive stores uploaded documents as <base>/<record id>/<file name>.
type Archive struct {
	basePath string
}

func New(basePath string) (*Archive, error) {
	if basePath == "" {
		basePath = "./data/archive"
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	return &Archive{basePath: basePath}, nil
}

func (a *Archive) Archive(_ context.Context, recordID, filename string, body []byte) error {
	dir, name, err := a.resolve(recordID, filename)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create record dir: %w", err)
	}

	f, err := os.OpenFile(filepath.Join(dir, name), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(body); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}

func (a *Archive) Open(_ context.Context, recordID, filename string) (io.ReadCloser, error) {
	dir, name, err := a.resolve(recordID, filename)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.WrapError(domain.ErrNotFound, "open archived document", err)
		}
		return nil, fmt.Errorf("open file: %w", err)
	}
	return f, nil
}

// resolve keeps every path inside basePath: record ids may not contain
// separators and file names are reduced to their base name.
func (a *Archive) resolve(recordID, filename string) (string, string, error) {
	recordID = strings.TrimSpace(recordID)
	if recordID == "" || recordID == "." || recordID == ".." || strings.ContainsAny(recordID, `/\`) {
		return "", "", domain.WrapError(domain.ErrInvalidInput, "archive", fmt.Errorf("bad record id %q", recordID))
	}
	name := filepath.Base(strings.ReplaceAll(strings.TrimSpace(filename), `\`, "/"))
	if name == "" || name == "." || name == ".." || name == "/" {
		return "", "", domain.WrapError(domain.ErrInvalidInput, "archive", fmt.Errorf("bad file name %q", filename))
	}
	return filepath.Join(a.basePath, recordID), name, nil
}
