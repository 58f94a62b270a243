// Package extractor converts uploaded file bytes into normalized plain text.
// It supports PDF (via gopdf2) and plain text with encoding fallback.
package extractor

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	gopdf "github.com/VantageDataChat/GoPDF2"
	"golang.org/x/text/encoding/charmap"
)

// ErrUnreadableContent indicates the file bytes could not be decoded into text.
var ErrUnreadableContent = errors.New("unreadable content")

// ContentTypePDF and ContentTypeText are the MIME types the extractor accepts.
const (
	ContentTypePDF  = "application/pdf"
	ContentTypeText = "text/plain"
)

// Extractor turns raw file bytes into normalized text.
type Extractor struct{}

// Extract dispatches on the MIME content type.
func (e *Extractor) Extract(data []byte, contentType string) (string, error) {
	switch contentType {
	case ContentTypePDF:
		return e.ExtractPDF(data)
	case ContentTypeText:
		return e.ExtractText(data)
	default:
		return "", fmt.Errorf("%w: unsupported content type %q", ErrUnreadableContent, contentType)
	}
}

// ExtractPDF extracts text from PDF bytes page by page, skipping blank pages
// and joining pages with a paragraph break.
func (e *Extractor) ExtractPDF(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("%w: pdf parse panic: %v", ErrUnreadableContent, r)
		}
	}()

	pageCount, err := gopdf.GetSourcePDFPageCountFromBytes(data)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreadableContent, err)
	}

	var sb strings.Builder
	for i := 0; i < pageCount; i++ {
		pageText, err := gopdf.ExtractPageText(data, i)
		if err != nil {
			return "", fmt.Errorf("%w: page %d: %v", ErrUnreadableContent, i+1, err)
		}
		if strings.TrimSpace(pageText) != "" {
			if sb.Len() > 0 {
				sb.WriteString("\n\n")
			}
			sb.WriteString(pageText)
		}
	}

	return Normalize(sb.String()), nil
}

// ExtractText decodes plain-text bytes, preferring UTF-8 and falling back to
// Latin-1 for legacy files.
func (e *Extractor) ExtractText(data []byte) (string, error) {
	var text string
	if utf8.Valid(data) {
		text = string(data)
	} else {
		decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrUnreadableContent, err)
		}
		text = string(decoded)
	}
	return Normalize(text), nil
}

var (
	spaceRe = regexp.MustCompile(` +`)
	nlRe    = regexp.MustCompile(`\n\n+`)
)

// Normalize collapses whitespace runs and normalizes line endings so the
// chunker sees consistent text regardless of the source format.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = spaceRe.ReplaceAllString(text, " ")
	text = nlRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
