package export

import (
	"encoding/xml"
)

// DOCX XML 命名空间
const (
	WordprocessingMLNamespace = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	RelationshipsNamespace    = "http://schemas.openxmlformats.org/package/2006/relationships"
	ContentTypesNamespace     = "http://schemas.openxmlformats.org/package/2006/content-types"

	officeDocumentRelType = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument"
	stylesRelType         = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles"
	corePropsRelType      = "http://schemas.openxmlformats.org/package/2006/relationships/metadata/core-properties"
)

// WordDocument word/document.xml
type WordDocument struct {
	XMLName xml.Name `xml:"w:document"`
	XmlnsW  string   `xml:"xmlns:w,attr"`
	Body    Body     `xml:"w:body"`
}

// Body 文档正文
type Body struct {
	Paragraphs []Paragraph `xml:"w:p"`
}

// Paragraph 段落
type Paragraph struct {
	Properties *ParagraphProps `xml:"w:pPr,omitempty"`
	Runs       []Run           `xml:"w:r"`
}

// ParagraphProps 段落属性
type ParagraphProps struct {
	Style   *ParagraphStyle   `xml:"w:pStyle,omitempty"`
	Spacing *ParagraphSpacing `xml:"w:spacing,omitempty"`
	Align   *ParagraphAlign   `xml:"w:jc,omitempty"`
}

// ParagraphStyle 段落样式
type ParagraphStyle struct {
	Val string `xml:"w:val,attr"`
}

// ParagraphSpacing 段落间距
type ParagraphSpacing struct {
	After  string `xml:"w:after,attr,omitempty"`
	Before string `xml:"w:before,attr,omitempty"`
}

// ParagraphAlign 对齐方式
type ParagraphAlign struct {
	Val string `xml:"w:val,attr"`
}

// Run 文本片段
type Run struct {
	Properties *RunProps `xml:"w:rPr,omitempty"`
	Text       *Text     `xml:"w:t,omitempty"`
}

// RunProps 片段属性
type RunProps struct {
	Italic *Italic `xml:"w:i,omitempty"`
	Color  *Color  `xml:"w:color,omitempty"`
}

// Text 文本内容
type Text struct {
	Space string `xml:"xml:space,attr,omitempty"`
	Text  string `xml:",chardata"`
}

// Italic 斜体
type Italic struct{}

// Color 文字颜色
type Color struct {
	Val string `xml:"w:val,attr"`
}

// ContentTypes [Content_Types].xml
type ContentTypes struct {
	XMLName   xml.Name   `xml:"Types"`
	Namespace string     `xml:"xmlns,attr"`
	Defaults  []Default  `xml:"Default"`
	Overrides []Override `xml:"Override"`
}

// Default 按扩展名的默认类型
type Default struct {
	Extension   string `xml:"Extension,attr"`
	ContentType string `xml:"ContentType,attr"`
}

// Override 单个部件的类型
type Override struct {
	PartName    string `xml:"PartName,attr"`
	ContentType string `xml:"ContentType,attr"`
}

// Relationships 关系文件
type Relationships struct {
	XMLName       xml.Name       `xml:"Relationships"`
	Namespace     string         `xml:"xmlns,attr"`
	Relationships []Relationship `xml:"Relationship"`
}

// Relationship 单条关系
type Relationship struct {
	ID     string `xml:"Id,attr"`
	Type   string `xml:"Type,attr"`
	Target string `xml:"Target,attr"`
}

// CoreProperties docProps/core.xml
type CoreProperties struct {
	XMLName      xml.Name `xml:"cp:coreProperties"`
	XmlnsCP      string   `xml:"xmlns:cp,attr"`
	XmlnsDC      string   `xml:"xmlns:dc,attr"`
	XmlnsDCTerms string   `xml:"xmlns:dcterms,attr"`
	XmlnsXSI     string   `xml:"xmlns:xsi,attr"`
	Title        string   `xml:"dc:title"`
	Creator      string   `xml:"dc:creator"`
	Language     string   `xml:"dc:language"`
	Created      W3CDate  `xml:"dcterms:created"`
}

// W3CDate 带 xsi:type 的日期
type W3CDate struct {
	Type  string `xml:"xsi:type,attr"`
	Value string `xml:",chardata"`
}

// 标题与章节标题样式
const docxStyles = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:styles xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:style w:type="paragraph" w:default="1" w:styleId="Normal">
    <w:name w:val="Normal"/>
    <w:pPr><w:spacing w:after="120" w:line="360" w:lineRule="auto"/><w:ind w:firstLineChars="200"/></w:pPr>
  </w:style>
  <w:style w:type="paragraph" w:styleId="Title">
    <w:name w:val="Title"/>
    <w:basedOn w:val="Normal"/>
    <w:pPr><w:jc w:val="center"/><w:ind w:firstLineChars="0"/></w:pPr>
    <w:rPr><w:b/><w:sz w:val="44"/></w:rPr>
  </w:style>
  <w:style w:type="paragraph" w:styleId="Heading1">
    <w:name w:val="heading 1"/>
    <w:basedOn w:val="Normal"/>
    <w:pPr><w:keepNext/><w:spacing w:before="240" w:after="120"/><w:ind w:firstLineChars="0"/><w:outlineLvl w:val="0"/></w:pPr>
    <w:rPr><w:b/><w:sz w:val="32"/></w:rPr>
  </w:style>
</w:styles>
`
