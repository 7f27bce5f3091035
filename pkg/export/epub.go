package export

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/nerdneilsfield/novel-translator/pkg/document"
)

const (
	epubMimetype = "application/epub+zip"
	xhtmlType    = "application/xhtml+xml"
	opfPath      = "OEBPS/content.opf"
)

const containerXML = `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>
`

const stylesheet = `body { font-family: serif; line-height: 1.6; margin: 1em; }
h1, h2 { text-align: center; }
p { text-indent: 2em; margin: 0.5em 0; }
p.source { color: #666; font-size: 0.9em; }
`

// EPUB OPF 结构
type opfPackage struct {
	XMLName          xml.Name    `xml:"package"`
	Xmlns            string      `xml:"xmlns,attr"`
	Version          string      `xml:"version,attr"`
	UniqueIdentifier string      `xml:"unique-identifier,attr"`
	Metadata         opfMetadata `xml:"metadata"`
	Manifest         opfManifest `xml:"manifest"`
	Spine            opfSpine    `xml:"spine"`
}

type opfMetadata struct {
	XmlnsDC    string      `xml:"xmlns:dc,attr"`
	Identifier opfDCID     `xml:"dc:identifier"`
	Title      string      `xml:"dc:title"`
	Language   string      `xml:"dc:language"`
	Creator    string      `xml:"dc:creator"`
	Meta       []opfMetaEl `xml:"meta"`
}

type opfDCID struct {
	ID    string `xml:"id,attr"`
	Value string `xml:",chardata"`
}

type opfMetaEl struct {
	Property string `xml:"property,attr"`
	Value    string `xml:",chardata"`
}

type opfManifest struct {
	Items []opfItem `xml:"item"`
}

type opfItem struct {
	ID         string `xml:"id,attr"`
	Href       string `xml:"href,attr"`
	MediaType  string `xml:"media-type,attr"`
	Properties string `xml:"properties,attr,omitempty"`
}

type opfSpine struct {
	ItemRefs []opfItemRef `xml:"itemref"`
}

type opfItemRef struct {
	IDRef string `xml:"idref,attr"`
}

// EPUBFormatter EPUB 3 导出，每个分节一个 XHTML 文件
type EPUBFormatter struct{}

func (EPUBFormatter) Name() string      { return "epub" }
func (EPUBFormatter) Extension() string { return "epub" }

type epubChapter struct {
	id    string
	href  string
	title string
	body  []byte
}

// Format 写出 EPUB 文件
func (f EPUBFormatter) Format(doc *document.Document, opts Options, path string) (string, error) {
	lang := opts.language(doc)

	var chapters []epubChapter
	for i, sec := range sections(doc, opts) {
		title := doc.Title
		if sec.title != nil {
			title = sec.title.target
		}
		body, err := renderChapter(title, lang, sec, opts.BilingualOutput)
		if err != nil {
			return "", err
		}
		chapters = append(chapters, epubChapter{
			id:    fmt.Sprintf("chapter_%03d", i),
			href:  fmt.Sprintf("text/chapter_%03d.xhtml", i),
			title: title,
			body:  body,
		})
	}

	nav, err := renderNav(doc.Title, lang, chapters)
	if err != nil {
		return "", err
	}
	opf, err := buildOPF(doc, opts, chapters)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	// mimetype 必须是第一个且不压缩
	w, err := zw.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
	if err != nil {
		return "", err
	}
	if _, err := io.WriteString(w, epubMimetype); err != nil {
		return "", err
	}

	files := []struct {
		name string
		data []byte
	}{
		{"META-INF/container.xml", []byte(containerXML)},
		{opfPath, opf},
		{"OEBPS/nav.xhtml", nav},
		{"OEBPS/style.css", []byte(stylesheet)},
	}
	for _, ch := range chapters {
		files = append(files, struct {
			name string
			data []byte
		}{"OEBPS/" + ch.href, ch.body})
	}

	for _, file := range files {
		if err := writeZipFile(zw, file.name, file.data); err != nil {
			return "", err
		}
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("close epub: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

func buildOPF(doc *document.Document, opts Options, chapters []epubChapter) ([]byte, error) {
	pkg := opfPackage{
		Xmlns:            "http://www.idpf.org/2007/opf",
		Version:          "3.0",
		UniqueIdentifier: "book-id",
		Metadata: opfMetadata{
			XmlnsDC:    "http://purl.org/dc/elements/1.1/",
			Identifier: opfDCID{ID: "book-id", Value: "urn:uuid:" + uuid.NewString()},
			Title:      doc.Title,
			Language:   opts.language(doc),
			Creator:    opts.author(),
			Meta: []opfMetaEl{
				{Property: "dcterms:modified", Value: time.Now().UTC().Format("2006-01-02T15:04:05Z")},
			},
		},
		Manifest: opfManifest{Items: []opfItem{
			{ID: "nav", Href: "nav.xhtml", MediaType: xhtmlType, Properties: "nav"},
			{ID: "css", Href: "style.css", MediaType: "text/css"},
		}},
	}
	for _, ch := range chapters {
		pkg.Manifest.Items = append(pkg.Manifest.Items, opfItem{ID: ch.id, Href: ch.href, MediaType: xhtmlType})
		pkg.Spine.ItemRefs = append(pkg.Spine.ItemRefs, opfItemRef{IDRef: ch.id})
	}

	data, err := xml.MarshalIndent(pkg, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal opf: %w", err)
	}
	return append([]byte(xml.Header), data...), nil
}

func element(a atom.Atom, attrs ...string) *html.Node {
	n := &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String()}
	for i := 0; i+1 < len(attrs); i += 2 {
		n.Attr = append(n.Attr, html.Attribute{Key: attrs[i], Val: attrs[i+1]})
	}
	return n
}

func textElement(a atom.Atom, text string, attrs ...string) *html.Node {
	n := element(a, attrs...)
	n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	return n
}

// xhtmlPage 创建 XHTML 页面骨架，返回根节点和 body
func xhtmlPage(title, lang, cssHref string) (*html.Node, *html.Node) {
	root := &html.Node{Type: html.DocumentNode}
	root.AppendChild(&html.Node{Type: html.DoctypeNode, Data: "html"})

	htmlEl := element(atom.Html,
		"xmlns", "http://www.w3.org/1999/xhtml",
		"xmlns:epub", "http://www.idpf.org/2007/ops",
		"lang", lang,
		"xml:lang", lang)
	root.AppendChild(htmlEl)

	head := element(atom.Head)
	head.AppendChild(element(atom.Meta, "charset", "utf-8"))
	head.AppendChild(textElement(atom.Title, title))
	if cssHref != "" {
		head.AppendChild(element(atom.Link, "rel", "stylesheet", "type", "text/css", "href", cssHref))
	}
	htmlEl.AppendChild(head)

	body := element(atom.Body)
	htmlEl.AppendChild(body)
	return root, body
}

func renderXHTML(root *html.Node) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	if err := html.Render(&buf, root); err != nil {
		return nil, fmt.Errorf("render xhtml: %w", err)
	}
	return buf.Bytes(), nil
}

func renderChapter(title, lang string, sec section, bilingual bool) ([]byte, error) {
	root, body := xhtmlPage(title, lang, "../style.css")
	container := element(atom.Section, "epub:type", "chapter")
	body.AppendChild(container)

	if sec.title != nil {
		container.AppendChild(textElement(atom.H2, sec.title.target))
	}
	for _, e := range sec.entries {
		if bilingual && e.source != e.target {
			container.AppendChild(textElement(atom.P, e.source, "class", "source"))
		}
		container.AppendChild(textElement(atom.P, e.target))
	}
	return renderXHTML(root)
}

func renderNav(title, lang string, chapters []epubChapter) ([]byte, error) {
	root, body := xhtmlPage(title, lang, "style.css")
	nav := element(atom.Nav, "epub:type", "toc", "id", "toc")
	nav.AppendChild(textElement(atom.H1, title))
	list := element(atom.Ol)
	for _, ch := range chapters {
		li := element(atom.Li)
		li.AppendChild(textElement(atom.A, ch.title, "href", ch.href))
		list.AppendChild(li)
	}
	nav.AppendChild(list)
	body.AppendChild(nav)
	return renderXHTML(root)
}
