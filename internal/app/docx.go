package app

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/nguyenthenguyen/docx"
)

// DocxContentType is the media type of Word documents.
const DocxContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// ExtractDocxText returns the visible text of a .docx document, one line per
// paragraph.
func ExtractDocxText(content []byte) (string, error) {
	r := bytes.NewReader(content)
	doc, err := docx.ReadDocxFromMemory(r, int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("failed to parse docx: %w", err)
	}
	defer doc.Close()

	return documentText(doc.Editable().GetContent())
}

// documentText walks WordprocessingML and keeps the content of w:t runs.
func documentText(raw string) (string, error) {
	dec := xml.NewDecoder(strings.NewReader(raw))
	var (
		sb     strings.Builder
		inText bool
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to read document xml: %w", err)
		}
		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "t":
				inText = true
			case "tab":
				sb.WriteByte('\t')
			case "br":
				sb.WriteByte('\n')
			}
		case xml.EndElement:
			switch el.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				sb.Write(el)
			}
		}
	}
	return strings.TrimSpace(sb.String()), nil
}
