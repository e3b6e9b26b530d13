// Package docparser extracts ordered text paragraphs and embedded images from
// .docx documents.
package docparser

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

type ElementType string

const (
	ElementText  ElementType = "text"
	ElementImage ElementType = "image"
)

// Element is a paragraph's text or an image path on disk, in document order.
type Element struct {
	Type    ElementType
	Content string
}

const (
	nsWordML    = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	nsDrawingML = "http://schemas.openxmlformats.org/drawingml/2006/main"
	nsRels      = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"

	documentPart = "word/document.xml"
	relsPart     = "word/_rels/document.xml.rels"
	mediaPrefix  = "word/media/"
)

var ErrNoDocument = errors.New("docx has no word/document.xml")

// ParseFile opens the .docx at filePath and parses it, writing images into imagesDir.
func ParseFile(filePath, imagesDir string) ([]Element, error) {
	reader, err := zip.OpenReader(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", filePath, err)
	}
	defer reader.Close()
	return parse(&reader.Reader, imagesDir)
}

// Parse reads a .docx from r, writing images into imagesDir.
func Parse(r io.ReaderAt, size int64, imagesDir string) ([]Element, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("failed to read docx archive: %w", err)
	}
	return parse(zr, imagesDir)
}

func parse(zr *zip.Reader, imagesDir string) ([]Element, error) {
	var document *zip.File
	rels := map[string]string{}
	media := map[string]string{}

	for _, f := range zr.File {
		switch {
		case f.Name == documentPart:
			document = f
		case f.Name == relsPart:
			parsed, err := readRelationships(f)
			if err != nil {
				return nil, err
			}
			rels = parsed
		case strings.HasPrefix(f.Name, mediaPrefix):
			saved, err := saveMedia(f, imagesDir)
			if err != nil {
				return nil, err
			}
			media[f.Name] = saved
		}
	}
	if document == nil {
		return nil, ErrNoDocument
	}

	rc, err := document.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", documentPart, err)
	}
	defer rc.Close()

	return walkDocument(rc, func(rid string) (string, bool) {
		target, ok := rels[rid]
		if !ok {
			return "", false
		}
		saved, ok := media[resolveTarget(target)]
		return saved, ok
	})
}

// walkDocument emits each paragraph's text followed by the images it embeds.
func walkDocument(r io.Reader, image func(rid string) (string, bool)) ([]Element, error) {
	dec := xml.NewDecoder(r)

	var (
		elements  []Element
		depth     int
		inText    bool
		text      strings.Builder
		paraImage []string
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", documentPart, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch {
			case t.Name.Space == nsWordML && t.Name.Local == "p":
				if depth == 0 {
					text.Reset()
					paraImage = paraImage[:0]
				}
				depth++
			case t.Name.Space == nsWordML && t.Name.Local == "t":
				inText = true
			case t.Name.Space == nsDrawingML && t.Name.Local == "blip":
				for _, attr := range t.Attr {
					if attr.Name.Space == nsRels && attr.Name.Local == "embed" {
						if saved, ok := image(attr.Value); ok {
							paraImage = append(paraImage, saved)
						}
					}
				}
			}
		case xml.CharData:
			if inText && depth > 0 {
				text.Write(t)
			}
		case xml.EndElement:
			switch {
			case t.Name.Space == nsWordML && t.Name.Local == "t":
				inText = false
			case t.Name.Space == nsWordML && t.Name.Local == "p":
				depth--
				if depth > 0 {
					continue
				}
				if s := strings.TrimSpace(text.String()); s != "" {
					elements = append(elements, Element{Type: ElementText, Content: s})
				}
				for _, img := range paraImage {
					elements = append(elements, Element{Type: ElementImage, Content: img})
				}
			}
		}
	}
	return elements, nil
}

type relationships struct {
	Items []struct {
		ID     string `xml:"Id,attr"`
		Target string `xml:"Target,attr"`
	} `xml:"Relationship"`
}

func readRelationships(f *zip.File) (map[string]string, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", relsPart, err)
	}
	defer rc.Close()

	var parsed relationships
	if err := xml.NewDecoder(rc).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", relsPart, err)
	}
	out := make(map[string]string, len(parsed.Items))
	for _, rel := range parsed.Items {
		out[rel.ID] = rel.Target
	}
	return out, nil
}

// resolveTarget maps a relationship target to its archive path.
func resolveTarget(target string) string {
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(target, "/")
	}
	return path.Join("word", target)
}

func saveMedia(f *zip.File, imagesDir string) (string, error) {
	if err := os.MkdirAll(imagesDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create images dir: %w", err)
	}
	rc, err := f.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", f.Name, err)
	}
	defer rc.Close()

	dst := filepath.Join(imagesDir, path.Base(f.Name))
	out, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return "", fmt.Errorf("failed to write %s: %w", dst, err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", dst, err)
	}
	return dst, nil
}
