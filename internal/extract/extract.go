// Package extract converts uploaded document bytes into plain text.
package extract

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/tutorlab/tutor-rag/pkg/types"
)

// Supported media types
const (
	MIMEPDF   = "application/pdf"
	MIMEPlain = "text/plain"
)

// Extract returns the text content of data according to mimeType.
// Media type parameters such as charset are ignored.
func Extract(data []byte, mimeType string) (string, error) {
	mediaType := mimeType
	if parsed, _, err := mime.ParseMediaType(mimeType); err == nil {
		mediaType = parsed
	}

	switch strings.ToLower(mediaType) {
	case MIMEPDF:
		return extractPDF(data)
	case MIMEPlain:
		if !utf8.Valid(data) {
			return strings.ToValidUTF8(string(data), ""), nil
		}
		return string(data), nil
	default:
		return "", fmt.Errorf("%w: %q", types.ErrUnsupportedMediaType, mimeType)
	}
}

func extractPDF(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return buf.String(), nil
}

// DetectMIME guesses the media type from a file name.
// Unknown extensions return an empty string.
func DetectMIME(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return MIMEPDF
	case ".txt", ".text", ".md", ".markdown":
		return MIMEPlain
	default:
		return ""
	}
}
