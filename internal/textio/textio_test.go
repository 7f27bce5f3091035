package textio

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/simplifiedchinese"
	xunicode "golang.org/x/text/encoding/unicode"
)

const sample = "第一章 开始\n\n这是一个关于少年的故事，他在山里长大，每天都和师父一起练功。" +
	"有一天，他下山去了城里，看到了很多以前从来没有见过的东西。\n\n" +
	"他说：我们的时间不多了，明天就要出发。"

func TestDecodeUTF8(t *testing.T) {
	text, enc, err := Decode([]byte(sample))
	require.NoError(t, err)
	assert.Equal(t, sample, text)
	assert.Equal(t, UTF8, enc)

	text, enc, err = Decode(append([]byte{0xEF, 0xBB, 0xBF}, sample...))
	require.NoError(t, err)
	assert.Equal(t, sample, text)
	assert.Equal(t, UTF8, enc)
}

func TestDecodeEmpty(t *testing.T) {
	text, enc, err := Decode(nil)
	require.NoError(t, err)
	assert.Empty(t, text)
	assert.Equal(t, UTF8, enc)
}

func TestDecodeUTF16WithBOM(t *testing.T) {
	data, err := xunicode.UTF16(xunicode.LittleEndian, xunicode.UseBOM).NewEncoder().String(sample)
	require.NoError(t, err)

	text, enc, err := Decode([]byte(data))
	require.NoError(t, err)
	assert.Equal(t, sample, text)
	assert.Equal(t, "utf-16le", enc)
}

func TestDecodeGB18030(t *testing.T) {
	long := strings.Repeat(sample+"\n\n", 10)
	data, err := simplifiedchinese.GB18030.NewEncoder().String(long)
	require.NoError(t, err)

	text, _, err := Decode([]byte(data))
	require.NoError(t, err)
	assert.Equal(t, long, text)
}

func TestLookup(t *testing.T) {
	enc, err := Lookup("")
	require.NoError(t, err)
	assert.Nil(t, enc)

	enc, err = Lookup("UTF-8")
	require.NoError(t, err)
	assert.Nil(t, enc)

	enc, err = Lookup("gbk")
	require.NoError(t, err)
	assert.NotNil(t, enc)

	_, err = Lookup("klingon")
	assert.ErrorIs(t, err, ErrUnknownEncoding)
}

func TestReadWriteFile(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "nested", "novel.txt")
	require.NoError(t, WriteFile(path, sample, "gbk"))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotEqual(t, sample, string(raw))

	text, err := ReadFile(path, "gbk")
	require.NoError(t, err)
	assert.Equal(t, sample, text)

	plain := filepath.Join(dir, "plain.txt")
	require.NoError(t, WriteFile(plain, sample, ""))
	text, err = ReadFile(plain, "")
	require.NoError(t, err)
	assert.Equal(t, sample, text)
}

func TestReadFileMissing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "missing.txt"), "")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestIsReasonableText(t *testing.T) {
	assert.True(t, isReasonableText("正常的中文文本"))
	assert.False(t, isReasonableText(""))
	assert.False(t, isReasonableText("\x00\x01\x02\x03abc"))
}
