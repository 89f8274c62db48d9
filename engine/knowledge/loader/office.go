package loader

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

const (
	docxBodyPart   = "word/document.xml"
	maxXMLPartSize = 32 << 20
)

var slidePartPattern = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// extractDOCX returns the document body as one segment, paragraphs separated
// by newlines.
func extractDOCX(_ context.Context, filePath string) ([]segment, error) {
	archive, err := zip.OpenReader(filePath)
	if err != nil {
		return nil, fmt.Errorf("open docx: %w", err)
	}
	defer archive.Close()
	part := findPart(&archive.Reader, docxBodyPart)
	if part == nil {
		return nil, fmt.Errorf("docx: missing %s", docxBodyPart)
	}
	text, err := readParagraphs(part, "p", "t")
	if err != nil {
		return nil, fmt.Errorf("docx: %w", err)
	}
	return []segment{{text: text}}, nil
}

// extractPPTX returns one segment per slide, ordered by slide number.
func extractPPTX(ctx context.Context, filePath string) ([]segment, error) {
	archive, err := zip.OpenReader(filePath)
	if err != nil {
		return nil, fmt.Errorf("open pptx: %w", err)
	}
	defer archive.Close()
	type slidePart struct {
		number int
		file   *zip.File
	}
	var slides []slidePart
	for _, f := range archive.File {
		m := slidePartPattern.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		slides = append(slides, slidePart{number: n, file: f})
	}
	if len(slides) == 0 {
		return nil, errors.New("pptx: no slides found")
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].number < slides[j].number })
	segments := make([]segment, 0, len(slides))
	for _, s := range slides {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text, err := readParagraphs(s.file, "p", "t")
		if err != nil {
			return nil, fmt.Errorf("pptx: slide %d: %w", s.number, err)
		}
		segments = append(segments, segment{
			text: text,
			meta: map[string]any{MetaSlide: s.number},
		})
	}
	return segments, nil
}

func findPart(r *zip.Reader, name string) *zip.File {
	for _, f := range r.File {
		if path.Clean(f.Name) == name {
			return f
		}
	}
	return nil
}

// readParagraphs streams an OOXML part and collects the character data of
// textElem elements, joining paragraphElem blocks with newlines. Word and
// PowerPoint share the local names p and t.
func readParagraphs(f *zip.File, paragraphElem, textElem string) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()
	decoder := xml.NewDecoder(io.LimitReader(rc, maxXMLPartSize))
	var (
		out        strings.Builder
		paragraph  strings.Builder
		inText     bool
		paragraphs int
	)
	flush := func() {
		line := strings.TrimRight(paragraph.String(), " \t")
		paragraph.Reset()
		if strings.TrimSpace(line) == "" {
			return
		}
		if paragraphs > 0 {
			out.WriteByte('\n')
		}
		out.WriteString(line)
		paragraphs++
	}
	for {
		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse %s: %w", f.Name, err)
		}
		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case textElem:
				inText = true
			case "tab":
				paragraph.WriteByte('\t')
			case "br", "cr":
				paragraph.WriteByte('\n')
			}
		case xml.EndElement:
			switch el.Name.Local {
			case textElem:
				inText = false
			case paragraphElem:
				flush()
			}
		case xml.CharData:
			if inText {
				paragraph.Write(el)
			}
		}
	}
	flush()
	return out.String(), nil
}
