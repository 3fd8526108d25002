// Package notes extracts plain text from uploaded syllabus booklets.
package notes

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"
)

// ErrUnsupportedType is returned for files that are not text, Markdown,
// PDF or Word documents.
var ErrUnsupportedType = errors.New("invalid file type. Please upload a .txt, .md, .pdf, or .docx file")

// ErrTooLarge is returned when a booklet expands past maxExtractSize.
var ErrTooLarge = errors.New("document is too large to extract")

// maxExtractSize caps the decompressed Word body and the text taken from a
// PDF, so a small compressed upload cannot expand without bound.
var maxExtractSize int64 = 32 << 20

// Kinds of booklet Extract understands.
const (
	KindText = "text"
	KindPDF  = "pdf"
	KindDOCX = "docx"
)

const docxMIME = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// Detect classifies a booklet by its extension first and then by sniffing
// its content. It returns "" for unsupported files.
func Detect(filename string, data []byte) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt", ".md", ".markdown":
		return KindText
	case ".pdf":
		return KindPDF
	case ".docx":
		return KindDOCX
	}

	mt := mimetype.Detect(data)
	switch {
	case mt.Is("application/pdf"):
		return KindPDF
	case mt.Is(docxMIME):
		return KindDOCX
	}
	for m := mt; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return KindText
		}
	}
	return ""
}

// Extract returns the text content of a booklet.
func Extract(filename string, data []byte) (string, error) {
	switch Detect(filename, data) {
	case KindText:
		if !utf8.Valid(data) {
			return "", fmt.Errorf("%s is not valid UTF-8 text", filename)
		}
		return string(data), nil
	case KindPDF:
		return extractPDF(data)
	case KindDOCX:
		return extractDOCX(data)
	}
	return "", ErrUnsupportedType
}

func extractPDF(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	var (
		pages []string
		total int64
	)
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("read pdf page %d: %w", i, err)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		if total += int64(len(text)); total > maxExtractSize {
			return "", ErrTooLarge
		}
		pages = append(pages, text)
	}
	return strings.Join(pages, "\n\n"), nil
}

func extractDOCX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}

	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		if f.UncompressedSize64 > uint64(maxExtractSize) {
			return "", ErrTooLarge
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("open docx body: %w", err)
		}
		defer rc.Close()
		// The header size is not trusted; the reader is capped as well.
		return documentText(&cappedReader{r: rc, n: maxExtractSize})
	}
	return "", errors.New("open docx: word/document.xml not found")
}

// cappedReader fails with ErrTooLarge once more than n bytes are read.
type cappedReader struct {
	r io.Reader
	n int64
}

func (c *cappedReader) Read(p []byte) (int, error) {
	if c.n <= 0 {
		return 0, ErrTooLarge
	}
	if int64(len(p)) > c.n {
		p = p[:c.n]
	}
	n, err := c.r.Read(p)
	c.n -= int64(n)
	return n, err
}

// documentText walks WordprocessingML and keeps the text runs, with one
// line per paragraph.
func documentText(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var (
		sb     strings.Builder
		inText bool
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse docx body: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				sb.WriteByte('\t')
			case "br", "cr":
				sb.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteString("\n\n")
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}
	return strings.TrimRight(sb.String(), "\n") + "\n", nil
}
