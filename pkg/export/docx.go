package export

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/nerdneilsfield/novel-translator/pkg/document"
)

// DOCXFormatter Word 文档导出
type DOCXFormatter struct{}

func (DOCXFormatter) Name() string      { return "docx" }
func (DOCXFormatter) Extension() string { return "docx" }

func styledParagraph(style, text string) Paragraph {
	return Paragraph{
		Properties: &ParagraphProps{Style: &ParagraphStyle{Val: style}},
		Runs:       []Run{{Text: &Text{Space: "preserve", Text: text}}},
	}
}

func sourceParagraph(text string) Paragraph {
	return Paragraph{
		Runs: []Run{{
			Properties: &RunProps{Italic: &Italic{}, Color: &Color{Val: "666666"}},
			Text:       &Text{Space: "preserve", Text: text},
		}},
	}
}

func bodyParagraph(text string) Paragraph {
	return Paragraph{Runs: []Run{{Text: &Text{Space: "preserve", Text: text}}}}
}

// Format 写出 DOCX 文件
func (DOCXFormatter) Format(doc *document.Document, opts Options, path string) (string, error) {
	wordDoc := WordDocument{XmlnsW: WordprocessingMLNamespace}
	paragraphs := []Paragraph{styledParagraph("Title", doc.Title)}

	for _, sec := range sections(doc, opts) {
		if sec.title != nil {
			paragraphs = append(paragraphs, styledParagraph("Heading1", sec.title.target))
		}
		for _, e := range sec.entries {
			if opts.BilingualOutput && e.source != e.target {
				paragraphs = append(paragraphs, sourceParagraph(e.source))
			}
			paragraphs = append(paragraphs, bodyParagraph(e.target))
		}
	}
	wordDoc.Body.Paragraphs = paragraphs

	contentTypes := ContentTypes{
		Namespace: ContentTypesNamespace,
		Defaults: []Default{
			{Extension: "rels", ContentType: "application/vnd.openxmlformats-package.relationships+xml"},
			{Extension: "xml", ContentType: "application/xml"},
		},
		Overrides: []Override{
			{PartName: "/word/document.xml", ContentType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"},
			{PartName: "/word/styles.xml", ContentType: "application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"},
			{PartName: "/docProps/core.xml", ContentType: "application/vnd.openxmlformats-package.core-properties+xml"},
		},
	}
	rootRels := Relationships{
		Namespace: RelationshipsNamespace,
		Relationships: []Relationship{
			{ID: "rId1", Type: officeDocumentRelType, Target: "word/document.xml"},
			{ID: "rId2", Type: corePropsRelType, Target: "docProps/core.xml"},
		},
	}
	docRels := Relationships{
		Namespace: RelationshipsNamespace,
		Relationships: []Relationship{
			{ID: "rId1", Type: stylesRelType, Target: "styles.xml"},
		},
	}
	core := CoreProperties{
		XmlnsCP:      "http://schemas.openxmlformats.org/package/2006/metadata/core-properties",
		XmlnsDC:      "http://purl.org/dc/elements/1.1/",
		XmlnsDCTerms: "http://purl.org/dc/terms/",
		XmlnsXSI:     "http://www.w3.org/2001/XMLSchema-instance",
		Title:        doc.Title,
		Creator:      opts.author(),
		Language:     opts.language(doc),
		Created:      W3CDate{Type: "dcterms:W3CDTF", Value: time.Now().UTC().Format(time.RFC3339)},
	}

	parts := []struct {
		name string
		v    any
	}{
		{"[Content_Types].xml", contentTypes},
		{"_rels/.rels", rootRels},
		{"word/document.xml", wordDoc},
		{"word/_rels/document.xml.rels", docRels},
		{"docProps/core.xml", core},
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, part := range parts {
		data, err := xml.Marshal(part.v)
		if err != nil {
			return "", fmt.Errorf("marshal %s: %w", part.name, err)
		}
		if err := writeZipFile(zw, part.name, append([]byte(xml.Header), data...)); err != nil {
			return "", err
		}
	}
	if err := writeZipFile(zw, "word/styles.xml", []byte(docxStyles)); err != nil {
		return "", err
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("close docx: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

func writeZipFile(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}
