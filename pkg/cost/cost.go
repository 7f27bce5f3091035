// Package cost 估算翻译费用。结果只是近似值，按字符或按 token 计价。
package cost

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/nerdneilsfield/novel-translator/pkg/document"
)

// 计价单位
const (
	UnitChars  = "chars"
	UnitTokens = "tokens"
)

// DefaultEngine 未配置费率的引擎使用该键的费率
const DefaultEngine = "default"

// Rate 某个引擎的费率
type Rate struct {
	Unit                    string  `mapstructure:"unit" json:"unit"`
	PerThousandChars        float64 `mapstructure:"per_thousand_chars" json:"per_thousand_chars"`
	InputPerThousandTokens  float64 `mapstructure:"input_per_thousand_tokens" json:"input_per_thousand_tokens"`
	OutputPerThousandTokens float64 `mapstructure:"output_per_thousand_tokens" json:"output_per_thousand_tokens"`
	TokensPerChar           float64 `mapstructure:"tokens_per_char" json:"tokens_per_char"`
	OutputRatio             float64 `mapstructure:"output_ratio" json:"output_ratio"`
	Currency                string  `mapstructure:"currency" json:"currency"`
}

// Price 计算给定字符数的费用（未取整）
func (r Rate) Price(chars int) float64 {
	if r.Unit == UnitTokens {
		input := float64(chars) * r.TokensPerChar
		output := input * r.OutputRatio
		return input/1000*r.InputPerThousandTokens + output/1000*r.OutputPerThousandTokens
	}
	return float64(chars) / 1000 * r.PerThousandChars
}

// DefaultRates 默认费率表
func DefaultRates() map[string]Rate {
	return map[string]Rate{
		"caiyun": {
			Unit:             UnitChars,
			PerThousandChars: 0.4,
			Currency:         "CNY",
		},
		"openai": {
			Unit:                    UnitTokens,
			TokensPerChar:           0.75,
			OutputRatio:             1.2,
			InputPerThousandTokens:  0.0005,
			OutputPerThousandTokens: 0.0015,
			Currency:                "USD",
		},
		"raw": {
			Unit:     UnitChars,
			Currency: "CNY",
		},
		DefaultEngine: {
			Unit:             UnitChars,
			PerThousandChars: 0.5,
			Currency:         "CNY",
		},
	}
}

// Estimate 费用估算结果
type Estimate struct {
	Engine     string  `json:"engine"`
	TotalChars int     `json:"total_chars"`
	Cost       float64 `json:"cost"`
	Currency   string  `json:"currency"`
}

// Estimator 费用估算器
type Estimator struct {
	rates map[string]Rate
}

// NewEstimator 创建估算器，overrides 中的费率覆盖默认费率
func NewEstimator(overrides map[string]Rate) *Estimator {
	rates := DefaultRates()
	for name, r := range overrides {
		if r.Unit == "" {
			r.Unit = UnitChars
		}
		rates[strings.ToLower(name)] = r
	}
	return &Estimator{rates: rates}
}

// Rate 返回引擎的费率，未知引擎回退到默认费率
func (e *Estimator) Rate(engine string) Rate {
	if r, ok := e.rates[strings.ToLower(engine)]; ok {
		return r
	}
	return e.rates[DefaultEngine]
}

// EstimateText 估算一段文本的费用
func (e *Estimator) EstimateText(text, engine string) Estimate {
	return e.estimateChars(utf8.RuneCountInString(text), engine)
}

// EstimateParagraphs 估算一组段落原文的费用
func (e *Estimator) EstimateParagraphs(paragraphs []*document.Paragraph, engine string) Estimate {
	chars := 0
	for _, p := range paragraphs {
		chars += utf8.RuneCountInString(p.Content)
	}
	return e.estimateChars(chars, engine)
}

// Estimate 估算整个文档（所有段落）的翻译费用
func (e *Estimator) Estimate(doc *document.Document, engine string) Estimate {
	return e.EstimateParagraphs(doc.SortedParagraphs(), engine)
}

func (e *Estimator) estimateChars(chars int, engine string) Estimate {
	r := e.Rate(engine)
	return Estimate{
		Engine:     engine,
		TotalChars: chars,
		Cost:       Round(r.Price(chars)),
		Currency:   r.Currency,
	}
}

// Round 保留两位小数
func Round(v float64) float64 {
	return math.Round(v*100) / 100
}
