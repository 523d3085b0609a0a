// Package extract turns uploaded files and fetched web pages into plain text
// ready for chunking, and persists the extracted content.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrUnsupportedFormat is returned for file types the extractor cannot read.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// ErrExtraction is returned when URL content extraction fails terminally,
// after all retry attempts are exhausted.
var ErrExtraction = errors.New("content extraction failed")

// FromFile extracts plain text from an uploaded document. declaredType is the
// caller's file type ("pdf", "txt", "text"), matched case-insensitively and
// with or without a leading dot.
func FromFile(data []byte, declaredType string) (string, error) {
	switch strings.ToLower(strings.TrimPrefix(declaredType, ".")) {
	case "pdf":
		return fromPDF(data)
	case "txt", "text":
		return string(data), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, declaredType)
	}
}

// fromPDF concatenates the plain text of every page in order.
func fromPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}

	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("failed to read pdf page %d: %w", i, err)
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}
