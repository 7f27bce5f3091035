package glossary

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestApplyAndRestore(t *testing.T) {
	g := Glossary{"龙": "Dragon"}

	wrapped := g.Apply("龙在天上飞")
	assert.Equal(t, "<term>Dragon</term>在天上飞", wrapped)
	assert.Equal(t, "Dragon在天上飞", g.Restore(wrapped))
}

func TestApplyLongestMatch(t *testing.T) {
	g := Glossary{
		"青龙":   "Azure Dragon",
		"龙":    "Dragon",
		"Dragon": "龙",
	}

	wrapped := g.Apply("青龙与龙")
	assert.Equal(t, "<term>Azure Dragon</term>与<term>Dragon</term>", wrapped)
	// 插入的目标术语不会被再次替换
	assert.Equal(t, "Azure Dragon与Dragon", g.Restore(wrapped))
}

func TestRoundTripWithoutTerms(t *testing.T) {
	g := Glossary{"龙": "Dragon"}
	texts := []string{
		"",
		"天上没有云",
		"determine the terminal",
		"a < b and c > d",
	}
	for _, text := range texts {
		assert.Equal(t, text, g.Restore(g.Apply(text)))
	}

	var empty Glossary
	assert.Equal(t, "龙在天上飞", empty.Restore(empty.Apply("龙在天上飞")))
}

func TestRestoreTolerance(t *testing.T) {
	g := Glossary{}
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"Spaces Inside Markers", "The < term > Dragon </ term > flies", "The Dragon flies"},
		{"Upper Case", "<TERM>Dragon</TERM> flies", "Dragon flies"},
		{"Stray Open Marker", "The <term>Dragon flies", "The Dragon flies"},
		{"Multiple", "<term>A</term> and <term>B</term>", "A and B"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, g.Restore(tt.in))
		})
	}
}

func TestParse(t *testing.T) {
	content := strings.Join([]string{
		"# 人名",
		"",
		"张三 = Zhang San",
		"龙=Dragon",
		"no separator here",
		"=missing source",
		"missing target=",
		"公式=a=b",
	}, "\n")

	g, skipped, err := Parse(strings.NewReader(content))
	require.NoError(t, err)
	assert.Equal(t, 3, skipped)
	assert.Equal(t, Glossary{
		"张三": "Zhang San",
		"龙":  "Dragon",
		"公式": "a=b",
	}, g)
}

func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()
	logger := zap.NewNop()

	t.Run("Text File", func(t *testing.T) {
		path := filepath.Join(tmpDir, "glossary.txt")
		require.NoError(t, os.WriteFile(path, []byte("龙=Dragon\n凤=Phoenix\n"), 0o644))

		g, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, 2, g.Len())
	})

	t.Run("TOML File", func(t *testing.T) {
		path := filepath.Join(tmpDir, "glossary.toml")
		content := "source_lang = \"zh\"\ntarget_lang = \"en\"\n\n[translations]\n\"龙\" = \"Dragon\"\n\"江湖\" = \"Jianghu\"\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		g, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, Glossary{"龙": "Dragon", "江湖": "Jianghu"}, g)
	})

	t.Run("Missing File Degrades", func(t *testing.T) {
		g := LoadOrEmpty(filepath.Join(tmpDir, "missing.txt"), logger)
		assert.NotNil(t, g)
		assert.Equal(t, 0, g.Len())
	})

	t.Run("Broken TOML Degrades", func(t *testing.T) {
		path := filepath.Join(tmpDir, "broken.toml")
		require.NoError(t, os.WriteFile(path, []byte("[translations\n"), 0o644))
		_, err := Load(path)
		assert.Error(t, err)
		assert.Equal(t, 0, LoadOrEmpty(path, logger).Len())
	})

	t.Run("Empty Path", func(t *testing.T) {
		assert.Equal(t, 0, LoadOrEmpty("", nil).Len())
	})
}
