// Package glossary 实现术语表：翻译前用标记包裹术语，翻译后去除标记。
package glossary

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/dlclark/regexp2"
	"go.uber.org/zap"
)

const (
	// OpenTag 术语开始标记
	OpenTag = "<term>"
	// CloseTag 术语结束标记
	CloseTag = "</term>"
)

var (
	// 引擎有时会在标记内插入空白或改变大小写
	wrappedTerm = regexp2.MustCompile(`<\s*term\s*>\s*(.*?)\s*<\s*/\s*term\s*>`, regexp2.IgnoreCase|regexp2.Singleline)
	strayTag    = regexp2.MustCompile(`<\s*/?\s*term\s*>`, regexp2.IgnoreCase)
)

// Glossary 源语言术语到目标语言术语的映射
type Glossary map[string]string

// Wrap 返回目标术语的标记形式
func Wrap(target string) string {
	return OpenTag + target + CloseTag
}

// Apply 把文本中的每个源术语替换为带标记的目标术语。
// 单次从左到右扫描，同一位置优先匹配最长的术语，插入的目标术语不会被再次替换。
func (g Glossary) Apply(text string) string {
	if len(g) == 0 || text == "" {
		return text
	}
	return g.replacer().Replace(text)
}

func (g Glossary) replacer() *strings.Replacer {
	sources := make([]string, 0, len(g))
	for src := range g {
		if src != "" {
			sources = append(sources, src)
		}
	}
	sort.Slice(sources, func(i, j int) bool {
		if len(sources[i]) != len(sources[j]) {
			return len(sources[i]) > len(sources[j])
		}
		return sources[i] < sources[j]
	})

	pairs := make([]string, 0, len(sources)*2)
	for _, src := range sources {
		pairs = append(pairs, src, Wrap(g[src]))
	}
	return strings.NewReplacer(pairs...)
}

// Restore 去除译文中的术语标记，只保留目标术语本身。未闭合的残留标记会被删除。
func (g Glossary) Restore(text string) string {
	if !strings.Contains(strings.ToLower(text), "term") {
		return text
	}
	out, err := wrappedTerm.Replace(text, "$1", -1, -1)
	if err != nil {
		return text
	}
	if cleaned, err := strayTag.Replace(out, "", -1, -1); err == nil {
		out = cleaned
	}
	return out
}

// Len 返回术语数量
func (g Glossary) Len() int {
	return len(g)
}

// Parse 解析 "源术语=目标术语" 格式的术语表，# 开头的行和空行被忽略。
// 返回被跳过的格式错误行数。
func Parse(r io.Reader) (Glossary, int, error) {
	g := make(Glossary)
	skipped := 0

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		src, dst, ok := strings.Cut(line, "=")
		src, dst = strings.TrimSpace(src), strings.TrimSpace(dst)
		if !ok || src == "" || dst == "" {
			skipped++
			continue
		}
		g[src] = dst
	}
	if err := scanner.Err(); err != nil {
		return nil, skipped, err
	}
	return g, skipped, nil
}

// tomlGlossary TOML 术语表文件
type tomlGlossary struct {
	SourceLang   string            `toml:"source_lang"`
	TargetLang   string            `toml:"target_lang"`
	Translations map[string]string `toml:"translations"`
}

// Load 从文件加载术语表，.toml 文件按 TOML 解析，其余按行解析
func Load(path string) (Glossary, error) {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return loadTOML(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open glossary: %w", err)
	}
	defer f.Close()

	g, _, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("read glossary: %w", err)
	}
	return g, nil
}

func loadTOML(path string) (Glossary, error) {
	var tg tomlGlossary
	if _, err := toml.DecodeFile(path, &tg); err != nil {
		return nil, fmt.Errorf("decode glossary: %w", err)
	}
	g := make(Glossary, len(tg.Translations))
	for src, dst := range tg.Translations {
		src, dst = strings.TrimSpace(src), strings.TrimSpace(dst)
		if src != "" && dst != "" {
			g[src] = dst
		}
	}
	return g, nil
}

// LoadOrEmpty 加载术语表；路径为空时返回空表，加载失败时记录警告并返回空表
func LoadOrEmpty(path string, logger *zap.Logger) Glossary {
	if logger == nil {
		logger = zap.NewNop()
	}
	if path == "" {
		return Glossary{}
	}

	g, err := Load(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Warn("glossary file not found, continuing without glossary", zap.String("path", path))
		} else {
			logger.Warn("failed to load glossary, continuing without glossary",
				zap.String("path", path), zap.Error(err))
		}
		return Glossary{}
	}

	logger.Info("glossary loaded", zap.String("path", path), zap.Int("terms", g.Len()))
	return g
}
