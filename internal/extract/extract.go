// Package extract turns uploaded files into content blocks the model can read.
package extract

import (
	"archive/zip"
	"encoding/base64"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/Rrens/filechat/internal/domain"
	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog/log"
)

const binaryNotice = "This file appears to be a binary file that cannot be processed as text."

// Extract reads the file at path and returns a single block. Failures are
// reported inside the block text, never as an error.
func Extract(path string) domain.ContentBlock {
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".docx", ".doc":
		text, err := wordText(path)
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Error reading Word document")
			return domain.TextBlock(fmt.Sprintf("Error reading Word document: %v\n\nUnable to process the file content.", err))
		}
		return domain.TextBlock(text)

	case ".pdf":
		text, err := pdfText(path)
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Error reading PDF file")
			return domain.TextBlock(fmt.Sprintf("Error reading PDF file: %v\n\nUnable to process the file content.", err))
		}
		return domain.TextBlock(text)
	}

	if mediaType := imageType(path, ext); mediaType != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Error reading image")
			return domain.TextBlock(binaryNotice)
		}
		return domain.ImageBlock(mediaType, base64.StdEncoding.EncodeToString(data))
	}

	data, err := os.ReadFile(path)
	if err != nil || !utf8.Valid(data) {
		return domain.TextBlock(binaryNotice)
	}
	return domain.TextBlock(string(data))
}

// imageType sniffs the content first and falls back to the extension
func imageType(path, ext string) string {
	if mt, err := mimetype.DetectFile(path); err == nil && strings.HasPrefix(mt.String(), "image/") {
		return strings.SplitN(mt.String(), ";", 2)[0]
	}
	if byExt := mime.TypeByExtension(ext); strings.HasPrefix(byExt, "image/") {
		return byExt
	}
	return ""
}

// pdfText returns each page's plain text followed by a newline
func pdfText(path string) (text string, err error) {
	// The reader panics on some malformed files
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}
		sb.WriteString(content)
		sb.WriteByte('\n')
	}
	return sb.String(), nil
}

// wordText returns the paragraphs of word/document.xml joined by newlines
func wordText(path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("not a docx package: %w", err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", err
		}
		defer rc.Close()
		return paragraphs(rc)
	}

	return "", errors.New("word/document.xml not found")
}

// paragraphs walks WordprocessingML collecting w:t text per w:p element
func paragraphs(r io.Reader) (string, error) {
	const wordNS = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"

	dec := xml.NewDecoder(r)
	var (
		out     []string
		current strings.Builder
		inText  bool
		inPara  bool
	)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("invalid document xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Space != wordNS {
				continue
			}
			switch t.Name.Local {
			case "p":
				inPara = true
				current.Reset()
			case "t":
				inText = true
			case "tab":
				current.WriteByte('\t')
			case "br":
				current.WriteByte('\n')
			}
		case xml.EndElement:
			if t.Name.Space != wordNS {
				continue
			}
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if inPara {
					out = append(out, current.String())
				}
				inPara = false
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		}
	}

	return strings.Join(out, "\n"), nil
}
