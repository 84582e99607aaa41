package localfs

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/docqa-client/internal/core/domain"
)

// Inspector turns local paths into selectable files.
type Inspector struct {
	logger *slog.Logger
}

func NewInspector(logger *slog.Logger) *Inspector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Inspector{logger: logger}
}

// Inspect stats path and, for PDFs, reads the page count. A PDF that cannot
// be parsed is still returned with PageCount 0; the backend decides whether
// it is usable.
func (i *Inspector) Inspect(path string) (domain.SelectedFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return domain.SelectedFile{}, fmt.Errorf("stat file: %w", err)
	}
	if info.IsDir() {
		return domain.SelectedFile{}, fmt.Errorf("stat file: %s is a directory", path)
	}

	file := domain.SelectedFile{
		Name: filepath.Base(path),
		Size: info.Size(),
		Open: func() (io.ReadCloser, error) {
			f, err := os.Open(path)
			if err != nil {
				return nil, fmt.Errorf("open file: %w", err)
			}
			return f, nil
		},
	}
	if !file.IsPDF() {
		return file, nil
	}

	pages, err := countPages(path)
	if err != nil {
		i.logger.Debug("pdf_page_count_failed", "path", path, "error", err)
		return file, nil
	}
	file.PageCount = pages
	return file, nil
}

func countPages(path string) (pages int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parse pdf: %v", r)
		}
	}()
	f, reader, err := pdf.Open(path)
	if err != nil {
		return 0, fmt.Errorf("parse pdf: %w", err)
	}
	defer f.Close()
	return reader.NumPage(), nil
}
