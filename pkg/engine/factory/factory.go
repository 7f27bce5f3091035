// Package factory 汇总所有内置翻译引擎。
package factory

import (
	"github.com/nerdneilsfield/novel-translator/pkg/engine"
	"github.com/nerdneilsfield/novel-translator/pkg/engine/caiyun"
	"github.com/nerdneilsfield/novel-translator/pkg/engine/compatible"
	"github.com/nerdneilsfield/novel-translator/pkg/engine/deeplx"
	"github.com/nerdneilsfield/novel-translator/pkg/engine/openai"
	"github.com/nerdneilsfield/novel-translator/pkg/engine/raw"
)

// Descriptions 内置引擎的简短说明
var Descriptions = map[string]string{
	caiyun.Name:     "彩云小译，按字符计费，需要 CAIYUN_API_KEY",
	openai.Name:     "OpenAI Chat Completions，按 token 计费，需要 OPENAI_API_KEY",
	compatible.Name: "兼容 OpenAI 协议的服务（DeepSeek、Ollama、vLLM）",
	deeplx.Name:     "自建 DeepLX 服务",
	raw.Name:        "直通引擎，不做翻译，用于演练流程",
}

// NewRegistry 创建注册了全部内置引擎的注册表
func NewRegistry() *engine.Registry {
	r := engine.NewRegistry()
	r.MustRegister(caiyun.Name, caiyun.New)
	r.MustRegister(openai.Name, openai.New)
	r.MustRegister(compatible.Name, compatible.New)
	r.MustRegister(deeplx.Name, deeplx.New)
	r.MustRegister(raw.Name, raw.New)
	return r
}
