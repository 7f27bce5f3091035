package stats

import (
	"time"
)

// 翻译记录状态
const (
	StatusCompleted   = "completed"
	StatusPartial     = "partial"
	StatusInterrupted = "interrupted"
	StatusFailed      = "failed"
)

// StatisticsDB 统计数据库结构
type StatisticsDB struct {
	Version     string    `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	LastUpdated time.Time `json:"last_updated"`

	// 总体统计
	TotalTranslations int64         `json:"total_translations"`
	TotalParagraphs   int64         `json:"total_paragraphs"`
	TotalCharacters   int64         `json:"total_characters"`
	TotalTokens       int64         `json:"total_tokens"`
	TotalErrors       int64         `json:"total_errors"`
	TotalDuration     time.Duration `json:"total_duration"`

	// 按币种累计的实际费用
	TotalCost map[string]float64 `json:"total_cost"`

	// 进度文件统计
	ProgressStats ProgressStatistics `json:"progress_stats"`

	// 语言对统计
	LanguagePairs map[string]*LanguagePairStats `json:"language_pairs"`

	// 引擎统计
	EngineStats map[string]*EngineStats `json:"engine_stats"`

	// 导出格式统计
	FormatStats map[string]*FormatStats `json:"format_stats"`

	// 最近的翻译记录
	RecentTranslations []*TranslationRecord `json:"recent_translations"`

	// 性能统计
	PerformanceStats PerformanceStatistics `json:"performance_stats"`
}

// ProgressStatistics 缓存目录中未完成翻译的进度文件统计
type ProgressStatistics struct {
	CacheDir        string    `json:"cache_dir"`
	ProgressFiles   int64     `json:"progress_files"`
	TotalSize       int64     `json:"total_size_bytes"`
	OldestProgress  time.Time `json:"oldest_progress"`
	NewestProgress  time.Time `json:"newest_progress"`
	LastScannedTime time.Time `json:"last_scanned"`
}

// LanguagePairStats 语言对统计
type LanguagePairStats struct {
	SourceLanguage   string        `json:"source_language"`
	TargetLanguage   string        `json:"target_language"`
	TranslationCount int64         `json:"translation_count"`
	CharacterCount   int64         `json:"character_count"`
	ErrorCount       int64         `json:"error_count"`
	AverageDuration  time.Duration `json:"average_duration"`
	LastUsed         time.Time     `json:"last_used"`
}

// EngineStats 翻译引擎统计
type EngineStats struct {
	Engine           string    `json:"engine"`
	TranslationCount int64     `json:"translation_count"`
	ParagraphCount   int64     `json:"paragraph_count"`
	FailedParagraphs int64     `json:"failed_paragraphs"`
	CharacterCount   int64     `json:"character_count"`
	Tokens           int64     `json:"tokens"`
	Cost             float64   `json:"cost"`
	Currency         string    `json:"currency"`
	LastUsed         time.Time `json:"last_used"`
}

// FormatStats 导出格式统计
type FormatStats struct {
	Format         string    `json:"format"`
	FileCount      int64     `json:"file_count"`
	CharacterCount int64     `json:"character_count"`
	SuccessRate    float64   `json:"success_rate"`
	LastUsed       time.Time `json:"last_used"`
}

// TranslationRecord 翻译记录
type TranslationRecord struct {
	ID             string    `json:"id"`
	Timestamp      time.Time `json:"timestamp"`
	Title          string    `json:"title"`
	InputFile      string    `json:"input_file"`
	OutputFile     string    `json:"output_file"`
	Engine         string    `json:"engine"`
	SourceLanguage string    `json:"source_language"`
	TargetLanguage string    `json:"target_language"`
	Format         string    `json:"format"`

	// 统计信息
	TotalParagraphs      int           `json:"total_paragraphs"`
	TranslatedParagraphs int           `json:"translated_paragraphs"`
	FailedParagraphs     int           `json:"failed_paragraphs"`
	CharacterCount       int           `json:"character_count"`
	Tokens               int           `json:"tokens"`
	Cost                 float64       `json:"cost"`
	Currency             string        `json:"currency"`
	Duration             time.Duration `json:"duration"`
	Status               string        `json:"status"`

	// 错误信息
	ErrorMessage string `json:"error_message,omitempty"`

	// 进度信息
	Progress float64 `json:"progress"`
}

// Failed 记录是否有失败
func (r *TranslationRecord) Failed() bool {
	return r.Status == StatusFailed || r.FailedParagraphs > 0
}

// PerformanceStatistics 性能统计
type PerformanceStatistics struct {
	AverageCharsPerSecond      float64       `json:"average_chars_per_second"`
	AverageParagraphsPerSecond float64       `json:"average_paragraphs_per_second"`
	FastestTranslation         time.Duration `json:"fastest_translation"`
	SlowestTranslation         time.Duration `json:"slowest_translation"`
}
