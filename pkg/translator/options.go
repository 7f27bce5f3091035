package translator

import (
	"time"

	"go.uber.org/zap"

	"github.com/nerdneilsfield/novel-translator/pkg/cost"
	"github.com/nerdneilsfield/novel-translator/pkg/glossary"
)

const (
	// DefaultBatchSize 默认每批段落数
	DefaultBatchSize = 5
	// DefaultSaveInterval 默认每处理多少个段落保存一次进度
	DefaultSaveInterval = 1
	// DefaultPollInterval 暂停时轮询回调的间隔
	DefaultPollInterval = 500 * time.Millisecond
)

// ProgressFunc 进度回调。每批结束后调用，参数为已翻译段落数、段落总数和预览文本。
// 返回 false 表示暂停，翻译器会按固定间隔再次调用，直到返回 true。
type ProgressFunc func(current, total int, preview string) bool

// Options 翻译器配置
type Options struct {
	// BatchSize 每批交给引擎的段落数
	BatchSize int
	// SaveInterval 每处理多少个段落保存一次进度，最后一批之后总会保存
	SaveInterval int
	// BudgetLimit 预算上限，0 表示不限制
	BudgetLimit float64
	// CacheDir 进度文件目录，为空时不保存进度
	CacheDir string
	// OutputDir 报告输出目录，为空时不写报告文件
	OutputDir string
	// PollInterval 暂停时的轮询间隔
	PollInterval time.Duration
	// Glossary 术语表
	Glossary glossary.Glossary
	// Estimator 费用估算器，为空时使用默认费率
	Estimator *cost.Estimator
	// Progress 进度回调
	Progress ProgressFunc
	// Logger 日志记录器
	Logger *zap.Logger
}

// DefaultOptions 返回默认配置
func DefaultOptions() Options {
	return Options{
		BatchSize:    DefaultBatchSize,
		SaveInterval: DefaultSaveInterval,
		PollInterval: DefaultPollInterval,
	}
}

func (o Options) validate() error {
	if o.BatchSize < 0 {
		return NewConfigError("batch_size", "must be positive, got %d", o.BatchSize)
	}
	if o.SaveInterval < 0 {
		return NewConfigError("save_interval", "must be positive, got %d", o.SaveInterval)
	}
	if o.BudgetLimit < 0 {
		return NewConfigError("budget_limit", "must not be negative, got %.2f", o.BudgetLimit)
	}
	return nil
}

func (o Options) withDefaults() Options {
	if o.BatchSize == 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.SaveInterval == 0 {
		o.SaveInterval = DefaultSaveInterval
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.Estimator == nil {
		o.Estimator = cost.NewEstimator(nil)
	}
	if o.Glossary == nil {
		o.Glossary = glossary.Glossary{}
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}
