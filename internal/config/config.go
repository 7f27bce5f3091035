// Package config 加载小说翻译工具的配置：YAML 配置文件、环境变量和 .env 文件。
package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/nerdneilsfield/novel-translator/pkg/cost"
	"github.com/nerdneilsfield/novel-translator/pkg/engine"
	"github.com/nerdneilsfield/novel-translator/pkg/engine/caiyun"
	"github.com/nerdneilsfield/novel-translator/pkg/engine/compatible"
	"github.com/nerdneilsfield/novel-translator/pkg/engine/deeplx"
	"github.com/nerdneilsfield/novel-translator/pkg/engine/openai"
	"github.com/nerdneilsfield/novel-translator/pkg/export"
	"github.com/nerdneilsfield/novel-translator/pkg/translator"
)

const (
	// ConfigName 配置文件名（不含扩展名）
	ConfigName = ".novel-translator"
	// EnvPrefix 环境变量前缀
	EnvPrefix = "NOVEL_TRANSLATOR"
)

// OpenAIConfig OpenAI 引擎配置
type OpenAIConfig struct {
	APIKey       string  `mapstructure:"api_key"`
	BaseURL      string  `mapstructure:"base_url"`
	Model        string  `mapstructure:"model"`
	Temperature  float64 `mapstructure:"temperature"`
	SystemPrompt string  `mapstructure:"system_prompt"` // %s 会被替换为目标语言
}

// CaiyunConfig 彩云小译配置
type CaiyunConfig struct {
	APIKey          string  `mapstructure:"api_key"`
	URL             string  `mapstructure:"url"`
	RequestInterval float64 `mapstructure:"request_interval"` // 请求间隔（秒）
}

// CompatibleConfig 兼容 OpenAI 协议的服务配置
type CompatibleConfig struct {
	APIKey       string            `mapstructure:"api_key"`
	BaseURL      string            `mapstructure:"base_url"`
	Model        string            `mapstructure:"model"`
	Temperature  float64           `mapstructure:"temperature"`
	SystemPrompt string            `mapstructure:"system_prompt"`
	Headers      map[string]string `mapstructure:"headers"`
}

// DeepLXConfig DeepLX 服务配置
type DeepLXConfig struct {
	URL         string `mapstructure:"url"`
	AccessToken string `mapstructure:"access_token"`
}

// Config 全局配置
type Config struct {
	DefaultEngine    string               `mapstructure:"default_engine"`    // 默认翻译引擎
	SourceLanguage   string               `mapstructure:"source_language"`   // 源语言
	TargetLanguage   string               `mapstructure:"target_language"`   // 目标语言
	BatchSize        int                  `mapstructure:"batch_size"`        // 每批段落数
	SaveInterval     int                  `mapstructure:"save_interval"`     // 多少段落保存一次进度
	BudgetLimit      float64              `mapstructure:"budget_limit"`      // 预算限制，0 为不限制
	OutputFormat     string               `mapstructure:"output_format"`     // txt, md, epub, docx
	OutputDir        string               `mapstructure:"output_dir"`        // 输出目录
	CacheDir         string               `mapstructure:"cache_dir"`         // 进度文件目录
	LogDir           string               `mapstructure:"log_dir"`           // 日志目录，为空时只输出到控制台
	BilingualOutput  bool                 `mapstructure:"bilingual_output"`  // 双语对照输出
	IncludeTitles    bool                 `mapstructure:"include_titles"`    // 导出章节标题
	Author           string               `mapstructure:"author"`            // 导出作者
	InputEncoding    string               `mapstructure:"input_encoding"`    // 原文编码，为空时自动检测
	OutputEncoding   string               `mapstructure:"output_encoding"`   // 文本格式的输出编码
	GlossaryFile     string               `mapstructure:"glossary_file"`     // 术语表文件
	Debug            bool                 `mapstructure:"debug"`             // 调试模式
	RequestTimeout   int                  `mapstructure:"request_timeout"`   // 请求超时（秒）
	RetryTimes       int                  `mapstructure:"retry_times"`       // 引擎重试次数
	ParallelRequests int                  `mapstructure:"parallel_requests"` // 单批内的并行请求数
	TitleMaxLength   int                  `mapstructure:"title_max_length"`  // 首行被视为书名的最大长度
	HeadingPatterns  []string             `mapstructure:"heading_patterns"`  // 额外的章节标题正则
	OpenAI           OpenAIConfig         `mapstructure:"openai"`
	Caiyun           CaiyunConfig         `mapstructure:"caiyun"`
	Compatible       CompatibleConfig     `mapstructure:"compatible"`
	DeepLX           DeepLXConfig         `mapstructure:"deeplx"`
	Pricing          map[string]cost.Rate `mapstructure:"pricing"` // 覆盖默认费率
}

// NewDefaultConfig 创建默认配置
func NewDefaultConfig() *Config {
	return &Config{
		DefaultEngine:    caiyun.Name,
		SourceLanguage:   "zh",
		TargetLanguage:   "en",
		BatchSize:        translator.DefaultBatchSize,
		SaveInterval:     translator.DefaultSaveInterval,
		OutputFormat:     "txt",
		OutputDir:        "output",
		CacheDir:         getDefaultCacheDir(),
		IncludeTitles:    true,
		Author:           export.DefaultAuthor,
		RequestTimeout:   30,
		RetryTimes:       3,
		ParallelRequests: 3,
		TitleMaxLength:   100,
		OpenAI: OpenAIConfig{
			Model:       openai.DefaultModel,
			Temperature: openai.DefaultTemperature,
		},
		Caiyun: CaiyunConfig{
			URL:             caiyun.DefaultURL,
			RequestInterval: caiyun.DefaultRequestInterval.Seconds(),
		},
		Compatible: CompatibleConfig{
			BaseURL:     compatible.DefaultBaseURL,
			Model:       compatible.DefaultModel,
			Temperature: openai.DefaultTemperature,
		},
		DeepLX: DeepLXConfig{
			URL: deeplx.DefaultURL,
		},
	}
}

// getDefaultCacheDir 获取默认缓存目录
func getDefaultCacheDir() string {
	// 优先使用系统缓存目录
	if cacheDir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(cacheDir, "novel-translator")
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".novel-translator", "cache")
	}
	return "./novel-translator-cache"
}

func setDefaults(v *viper.Viper) {
	d := NewDefaultConfig()
	v.SetDefault("default_engine", d.DefaultEngine)
	v.SetDefault("source_language", d.SourceLanguage)
	v.SetDefault("target_language", d.TargetLanguage)
	v.SetDefault("batch_size", d.BatchSize)
	v.SetDefault("save_interval", d.SaveInterval)
	v.SetDefault("budget_limit", d.BudgetLimit)
	v.SetDefault("output_format", d.OutputFormat)
	v.SetDefault("output_dir", d.OutputDir)
	v.SetDefault("cache_dir", d.CacheDir)
	v.SetDefault("log_dir", d.LogDir)
	v.SetDefault("bilingual_output", d.BilingualOutput)
	v.SetDefault("include_titles", d.IncludeTitles)
	v.SetDefault("author", d.Author)
	v.SetDefault("input_encoding", d.InputEncoding)
	v.SetDefault("output_encoding", d.OutputEncoding)
	v.SetDefault("glossary_file", d.GlossaryFile)
	v.SetDefault("debug", d.Debug)
	v.SetDefault("request_timeout", d.RequestTimeout)
	v.SetDefault("retry_times", d.RetryTimes)
	v.SetDefault("parallel_requests", d.ParallelRequests)
	v.SetDefault("title_max_length", d.TitleMaxLength)
	v.SetDefault("heading_patterns", d.HeadingPatterns)

	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("openai.model", d.OpenAI.Model)
	v.SetDefault("openai.temperature", d.OpenAI.Temperature)
	v.SetDefault("openai.system_prompt", "")

	v.SetDefault("caiyun.api_key", "")
	v.SetDefault("caiyun.url", d.Caiyun.URL)
	v.SetDefault("caiyun.request_interval", d.Caiyun.RequestInterval)

	v.SetDefault("compatible.api_key", "")
	v.SetDefault("compatible.base_url", d.Compatible.BaseURL)
	v.SetDefault("compatible.model", d.Compatible.Model)
	v.SetDefault("compatible.temperature", d.Compatible.Temperature)
	v.SetDefault("compatible.system_prompt", "")

	v.SetDefault("deeplx.url", d.DeepLX.URL)
	v.SetDefault("deeplx.access_token", "")
}

// LoadConfig 加载配置。configPath 为空时在家目录和当前目录查找 .novel-translator.yaml，
// 找不到配置文件时使用默认值。环境变量 NOVEL_TRANSLATOR_* 覆盖配置文件。
func LoadConfig(configPath string) (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigName(ConfigName)
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// 找不到配置文件时使用默认值
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	config.applyEnvKeys()

	if config.CacheDir == "" {
		config.CacheDir = getDefaultCacheDir()
	}

	return &config, nil
}

// loadDotEnv 读取当前目录的 .env，不覆盖已有的环境变量
func loadDotEnv() error {
	err := godotenv.Load()
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// applyEnvKeys 配置中没有密钥时回退到各服务的常用环境变量
func (c *Config) applyEnvKeys() {
	if c.OpenAI.APIKey == "" {
		c.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.Caiyun.APIKey == "" {
		c.Caiyun.APIKey = os.Getenv("CAIYUN_API_KEY")
	}
	if c.DeepLX.AccessToken == "" {
		c.DeepLX.AccessToken = os.Getenv("DEEPLX_ACCESS_TOKEN")
	}
}

// Validate 检查配置，返回 *translator.ConfigError
func (c *Config) Validate() error {
	if c.DefaultEngine == "" {
		return translator.NewConfigError("default_engine", "must not be empty")
	}
	if c.SourceLanguage == "" {
		return translator.NewConfigError("source_language", "must not be empty")
	}
	if c.TargetLanguage == "" {
		return translator.NewConfigError("target_language", "must not be empty")
	}
	if c.BatchSize <= 0 {
		return translator.NewConfigError("batch_size", "must be positive, got %d", c.BatchSize)
	}
	if c.SaveInterval <= 0 {
		return translator.NewConfigError("save_interval", "must be positive, got %d", c.SaveInterval)
	}
	if c.BudgetLimit < 0 {
		return translator.NewConfigError("budget_limit", "must not be negative, got %.2f", c.BudgetLimit)
	}
	if c.RequestTimeout <= 0 {
		return translator.NewConfigError("request_timeout", "must be positive, got %d", c.RequestTimeout)
	}
	if c.RetryTimes < 0 {
		return translator.NewConfigError("retry_times", "must not be negative, got %d", c.RetryTimes)
	}
	if c.ParallelRequests <= 0 {
		return translator.NewConfigError("parallel_requests", "must be positive, got %d", c.ParallelRequests)
	}
	if _, err := export.Get(c.OutputFormat); err != nil {
		return translator.NewConfigError("output_format", "%v", err)
	}

	switch strings.ToLower(c.DefaultEngine) {
	case openai.Name:
		if c.OpenAI.APIKey == "" {
			return translator.NewConfigError("openai.api_key", "required (or set OPENAI_API_KEY)")
		}
	case caiyun.Name:
		if c.Caiyun.APIKey == "" {
			return translator.NewConfigError("caiyun.api_key", "required (or set CAIYUN_API_KEY)")
		}
	}
	return nil
}

// EngineOptions 根据配置生成指定引擎的选项
func (c *Config) EngineOptions(name string, logger *zap.Logger) engine.Options {
	opts := engine.DefaultOptions()
	opts.SourceLanguage = c.SourceLanguage
	opts.TargetLanguage = c.TargetLanguage
	opts.Timeout = time.Duration(c.RequestTimeout) * time.Second
	opts.MaxRetries = c.RetryTimes
	opts.Concurrency = c.ParallelRequests
	if logger != nil {
		opts.Logger = logger
	}

	switch strings.ToLower(name) {
	case openai.Name:
		opts.APIKey = c.OpenAI.APIKey
		opts.BaseURL = c.OpenAI.BaseURL
		opts.Model = c.OpenAI.Model
		opts.Temperature = float32(c.OpenAI.Temperature)
		opts.SystemPrompt = c.OpenAI.SystemPrompt
	case caiyun.Name:
		opts.APIKey = c.Caiyun.APIKey
		opts.BaseURL = c.Caiyun.URL
		opts.RequestInterval = time.Duration(c.Caiyun.RequestInterval * float64(time.Second))
	case compatible.Name:
		opts.APIKey = c.Compatible.APIKey
		opts.BaseURL = c.Compatible.BaseURL
		opts.Model = c.Compatible.Model
		opts.Temperature = float32(c.Compatible.Temperature)
		opts.SystemPrompt = c.Compatible.SystemPrompt
		opts.Headers = c.Compatible.Headers
	case deeplx.Name:
		opts.APIKey = c.DeepLX.AccessToken
		opts.BaseURL = c.DeepLX.URL
	}
	return opts
}

// TranslatorOptions 根据配置生成翻译器选项，不含术语表和回调
func (c *Config) TranslatorOptions(logger *zap.Logger) translator.Options {
	opts := translator.DefaultOptions()
	opts.BatchSize = c.BatchSize
	opts.SaveInterval = c.SaveInterval
	opts.BudgetLimit = c.BudgetLimit
	opts.CacheDir = c.CacheDir
	opts.OutputDir = c.OutputDir
	opts.Estimator = cost.NewEstimator(c.Pricing)
	opts.Logger = logger
	return opts
}

// ExportOptions 根据配置生成导出选项
func (c *Config) ExportOptions() export.Options {
	return export.Options{
		BilingualOutput: c.BilingualOutput,
		IncludeTitles:   c.IncludeTitles,
		Author:          c.Author,
		Language:        c.TargetLanguage,
		Encoding:        c.OutputEncoding,
	}
}

// SaveConfig 将配置保存到文件，configPath 为空时写入家目录
func SaveConfig(config *Config, configPath string) error {
	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		configPath = filepath.Join(home, ConfigName+".yaml")
	}

	v := viper.New()
	v.SetConfigFile(configPath)

	if err := v.MergeConfigMap(structToMap(config)); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return err
	}

	return v.WriteConfig()
}

// structToMap 将配置转换为 map，键名与 mapstructure 标签一致
func structToMap(config *Config) map[string]any {
	pricing := make(map[string]any, len(config.Pricing))
	for name, r := range config.Pricing {
		pricing[name] = map[string]any{
			"unit":                       r.Unit,
			"per_thousand_chars":         r.PerThousandChars,
			"input_per_thousand_tokens":  r.InputPerThousandTokens,
			"output_per_thousand_tokens": r.OutputPerThousandTokens,
			"tokens_per_char":            r.TokensPerChar,
			"output_ratio":               r.OutputRatio,
			"currency":                   r.Currency,
		}
	}

	return map[string]any{
		"default_engine":    config.DefaultEngine,
		"source_language":   config.SourceLanguage,
		"target_language":   config.TargetLanguage,
		"batch_size":        config.BatchSize,
		"save_interval":     config.SaveInterval,
		"budget_limit":      config.BudgetLimit,
		"output_format":     config.OutputFormat,
		"output_dir":        config.OutputDir,
		"cache_dir":         config.CacheDir,
		"log_dir":           config.LogDir,
		"bilingual_output":  config.BilingualOutput,
		"include_titles":    config.IncludeTitles,
		"author":            config.Author,
		"input_encoding":    config.InputEncoding,
		"output_encoding":   config.OutputEncoding,
		"glossary_file":     config.GlossaryFile,
		"debug":             config.Debug,
		"request_timeout":   config.RequestTimeout,
		"retry_times":       config.RetryTimes,
		"parallel_requests": config.ParallelRequests,
		"title_max_length":  config.TitleMaxLength,
		"heading_patterns":  config.HeadingPatterns,
		"pricing":           pricing,

		// 引擎配置
		"openai": map[string]any{
			"api_key":       config.OpenAI.APIKey,
			"base_url":      config.OpenAI.BaseURL,
			"model":         config.OpenAI.Model,
			"temperature":   config.OpenAI.Temperature,
			"system_prompt": config.OpenAI.SystemPrompt,
		},
		"caiyun": map[string]any{
			"api_key":          config.Caiyun.APIKey,
			"url":              config.Caiyun.URL,
			"request_interval": config.Caiyun.RequestInterval,
		},
		"compatible": map[string]any{
			"api_key":       config.Compatible.APIKey,
			"base_url":      config.Compatible.BaseURL,
			"model":         config.Compatible.Model,
			"temperature":   config.Compatible.Temperature,
			"system_prompt": config.Compatible.SystemPrompt,
			"headers":       config.Compatible.Headers,
		},
		"deeplx": map[string]any{
			"url":          config.DeepLX.URL,
			"access_token": config.DeepLX.AccessToken,
		},
	}
}
