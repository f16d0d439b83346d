// Package extract turns uploaded documents and fetched web pages into plain
// text for the ingestion pipelines.
package extract

import (
	"bytes"
	"context"
	"fmt"

	"github.com/cloo-solutions/studybuddy/internal/domain"
	"github.com/ledongthuc/pdf"
)

// ErrNotPDF is returned when the payload does not carry a PDF header.
var ErrNotPDF = domain.NewDomainError(domain.ErrCodeValidation, "file is not a PDF")

// PDF extracts the plain text of every page of a PDF document.
type PDF struct{}

func NewPDF() *PDF {
	return &PDF{}
}

// Extract returns the document's text. An empty string with a nil error means
// the PDF has no text layer.
func (e *PDF) Extract(ctx context.Context, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return "", ErrNotPDF
	}

	rdr, err := openReader(data)
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}

	var buf bytes.Buffer
	for i := 1; i <= rdr.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := rdr.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := pageText(page)
		if err != nil {
			return "", fmt.Errorf("failed to read page %d: %w", i, err)
		}
		buf.WriteString(text)
		buf.WriteByte('\n')
	}

	return buf.String(), nil
}

func openReader(data []byte) (rdr *pdf.Reader, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()
	return pdf.NewReader(bytes.NewReader(data), int64(len(data)))
}

// pageText recovers from the parser's panics on malformed content streams.
func pageText(page pdf.Page) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed page content: %v", r)
		}
	}()
	fonts := make(map[string]*pdf.Font)
	for _, name := range page.Fonts() {
		f := page.Font(name)
		fonts[name] = &f
	}
	return page.GetPlainText(fonts)
}
