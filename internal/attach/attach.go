// Package attach normalizes request file attachments into plain text.
// PDF attachments are decoded and their text extracted; everything else
// passes through as-is.
package attach

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/luna-svc/luna/internal/mcp"
)

// Normalize returns a copy of files with PDF attachments replaced by their
// extracted text. A file is treated as a PDF when its name ends in .pdf;
// its content must be base64-encoded bytes. Extraction failures leave the
// file untouched and log a warning rather than fail the request.
func Normalize(files []mcp.File) []mcp.File {
	if len(files) == 0 {
		return files
	}

	out := make([]mcp.File, len(files))
	copy(out, files)
	for i, f := range out {
		if !strings.HasSuffix(strings.ToLower(f.Name), ".pdf") {
			continue
		}
		text, err := ExtractPDFText(f.Content)
		if err != nil {
			slog.Warn("failed to extract pdf text, keeping raw content", "file", f.Name, "error", err)
			continue
		}
		out[i].Content = text
	}
	return out
}

// ExtractPDFText decodes base64 PDF bytes and returns the document's
// plain text.
func ExtractPDFText(encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decoding pdf content: %w", err)
	}

	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting pdf text: %w", err)
	}

	var sb strings.Builder
	if _, err := io.Copy(&sb, plain); err != nil {
		return "", fmt.Errorf("reading pdf text: %w", err)
	}
	return sb.String(), nil
}
