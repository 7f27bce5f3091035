package segmenter

import (
	"math"
	"strconv"
	"strings"

	"github.com/dlclark/regexp2"
)

var chineseDigits = map[rune]int{
	'零': 0, '〇': 0,
	'一': 1, '二': 2, '两': 2, '三': 3, '四': 4,
	'五': 5, '六': 6, '七': 7, '八': 8, '九': 9,
}

var chineseUnits = map[rune]int{
	'十': 10, '百': 100, '千': 1000,
}

var numberPatterns = []*regexp2.Regexp{
	regexp2.MustCompile(`第\s*([0-9零〇一二两三四五六七八九十百千万]+)\s*[章节回集卷]`, 0),
	regexp2.MustCompile(`(?i)chapter\s*([0-9]+)`, 0),
	regexp2.MustCompile(`^\s*([0-9]+)\.`, 0),
	regexp2.MustCompile(`^\s*([零〇一二两三四五六七八九十百千]+)、`, 0),
}

// ExtractChapterNumber 尽力从章节标题中解析章节号，失败时返回 false
func ExtractChapterNumber(title string) (int, bool) {
	for _, re := range numberPatterns {
		m, err := re.FindStringMatch(title)
		if err != nil || m == nil {
			continue
		}
		raw := m.GroupByNumber(1).String()
		if n, err := strconv.Atoi(raw); err == nil {
			return n, true
		}
		if n, ok := ParseChineseNumber(raw); ok {
			return n, true
		}
	}
	return 0, false
}

// ParseChineseNumber 把中文数字（可混合阿拉伯数字）转换为整数，例如 "一百零五"、"二十"、"十二"
func ParseChineseNumber(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	total, section, number := 0, 0, 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			if number > (math.MaxInt-9)/10 {
				return 0, false
			}
			number = number*10 + int(r-'0')
		case r == '万':
			if number > math.MaxInt-section {
				return 0, false
			}
			section += number
			if section == 0 {
				section = 1
			}
			if section > (math.MaxInt-total)/10000 {
				return 0, false
			}
			total += section * 10000
			section, number = 0, 0
		default:
			if d, ok := chineseDigits[r]; ok {
				if number > (math.MaxInt-9)/10 {
					return 0, false
				}
				number = number*10 + d
				continue
			}
			unit, ok := chineseUnits[r]
			if !ok {
				return 0, false
			}
			// "十二" 省略了前导的 "一"
			if number == 0 {
				number = 1
			}
			if number > (math.MaxInt-section)/unit {
				return 0, false
			}
			section += number * unit
			number = 0
		}
	}
	if section > math.MaxInt-total || number > math.MaxInt-total-section {
		return 0, false
	}
	return total + section + number, true
}
