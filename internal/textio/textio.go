// Package textio 读写小说原文，自动识别常见中文、日文和韩文编码。
package textio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/gogs/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
	xunicode "golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// UTF8 默认编码名
const UTF8 = "utf-8"

// ErrUnknownEncoding 无法识别的编码名
var ErrUnknownEncoding = errors.New("unknown encoding")

// chardet 返回的字符集名到解码器的映射
var detectedEncodings = map[string]encoding.Encoding{
	"GB-18030":     simplifiedchinese.GB18030,
	"Big5":         traditionalchinese.Big5,
	"Shift_JIS":    japanese.ShiftJIS,
	"EUC-JP":       japanese.EUCJP,
	"ISO-2022-JP":  japanese.ISO2022JP,
	"EUC-KR":       korean.EUCKR,
	"UTF-16LE":     xunicode.UTF16(xunicode.LittleEndian, xunicode.IgnoreBOM),
	"UTF-16BE":     xunicode.UTF16(xunicode.BigEndian, xunicode.IgnoreBOM),
	"ISO-8859-1":   charmap.ISO8859_1,
	"windows-1252": charmap.Windows1252,
}

// 检测失败时依次尝试的编码
var fallbackEncodings = []struct {
	name string
	enc  encoding.Encoding
}{
	{"gbk", simplifiedchinese.GBK},
	{"gb18030", simplifiedchinese.GB18030},
	{"big5", traditionalchinese.Big5},
	{"shift_jis", japanese.ShiftJIS},
	{"euc-jp", japanese.EUCJP},
	{"euc-kr", korean.EUCKR},
}

// Decode 把原始字节解码为 UTF-8 文本，返回文本和识别出的编码名
func Decode(data []byte) (string, string, error) {
	if len(data) == 0 {
		return "", UTF8, nil
	}

	// BOM 优先
	if bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}) {
		return string(data[3:]), UTF8, nil
	}
	if bytes.HasPrefix(data, []byte{0xFF, 0xFE}) {
		text, err := decodeWith(xunicode.UTF16(xunicode.LittleEndian, xunicode.IgnoreBOM), data[2:])
		return text, "utf-16le", err
	}
	if bytes.HasPrefix(data, []byte{0xFE, 0xFF}) {
		text, err := decodeWith(xunicode.UTF16(xunicode.BigEndian, xunicode.IgnoreBOM), data[2:])
		return text, "utf-16be", err
	}

	if utf8.Valid(data) {
		return string(data), UTF8, nil
	}

	if result, err := chardet.NewTextDetector().DetectBest(data); err == nil {
		if enc, ok := detectedEncodings[result.Charset]; ok {
			if text, err := decodeWith(enc, data); err == nil && isReasonableText(text) {
				return text, strings.ToLower(result.Charset), nil
			}
		}
	}

	for _, candidate := range fallbackEncodings {
		if text, err := decodeWith(candidate.enc, data); err == nil && isReasonableText(text) {
			return text, candidate.name, nil
		}
	}

	return "", "", fmt.Errorf("cannot detect text encoding")
}

// DecodeAs 按指定编码名解码
func DecodeAs(data []byte, name string) (string, error) {
	enc, err := Lookup(name)
	if err != nil {
		return "", err
	}
	if enc == nil {
		return string(bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})), nil
	}
	return decodeWith(enc, data)
}

// Lookup 按 WHATWG 标签查找编码，utf-8 返回 nil
func Lookup(name string) (encoding.Encoding, error) {
	name = strings.TrimSpace(strings.ToLower(name))
	if name == "" || name == UTF8 || name == "utf8" {
		return nil, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEncoding, name)
	}
	if enc == xunicode.UTF8 {
		return nil, nil
	}
	return enc, nil
}

// ReadFile 读取文件并解码。encodingName 为空时自动检测。
func ReadFile(path, encodingName string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	if encodingName != "" {
		return DecodeAs(data, encodingName)
	}
	text, _, err := Decode(data)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return text, nil
}

// WriteFile 按指定编码写文件，必要时创建父目录
func WriteFile(path, text, encodingName string) error {
	enc, err := Lookup(encodingName)
	if err != nil {
		return err
	}
	data := []byte(text)
	if enc != nil {
		data, err = enc.NewEncoder().Bytes(data)
		if err != nil {
			return fmt.Errorf("encode as %s: %w", encodingName, err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func decodeWith(enc encoding.Encoding, data []byte) (string, error) {
	res, err := io.ReadAll(transform.NewReader(bytes.NewReader(data), enc.NewDecoder()))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(res) {
		return "", fmt.Errorf("decoded text is not valid utf-8")
	}
	return string(res), nil
}

// isReasonableText 可打印字符超过 90% 才认为解码正确
func isReasonableText(text string) bool {
	if text == "" {
		return false
	}
	printable, total := 0, 0
	for _, r := range text {
		total++
		if r == utf8.RuneError {
			continue
		}
		if unicode.IsPrint(r) || unicode.IsSpace(r) {
			printable++
		}
	}
	return float64(printable)/float64(total) > 0.9
}
