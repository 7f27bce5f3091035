// Package stats 记录每次翻译的统计数据，并在终端中展示。
package stats

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	StatsDBVersion   = "1.0.0"
	MaxRecentRecords = 100
	// FileName 统计数据库在缓存目录中的文件名
	FileName = "statistics.json"
)

// Database 统计数据库
type Database struct {
	filePath string
	data     *StatisticsDB
	mutex    sync.RWMutex
	logger   *zap.Logger
}

// PathFor 返回缓存目录下统计数据库的路径
func PathFor(cacheDir string) string {
	return filepath.Join(cacheDir, FileName)
}

// NewDatabase 创建统计数据库
func NewDatabase(filePath string, logger *zap.Logger) (*Database, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db := &Database{
		filePath: filePath,
		logger:   logger,
	}

	// 确保目录存在
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create stats directory: %w", err)
	}

	// 加载或创建数据
	if err := db.load(); err != nil {
		return nil, fmt.Errorf("failed to load stats database: %w", err)
	}

	return db, nil
}

func newStatisticsDB() *StatisticsDB {
	return &StatisticsDB{
		Version:            StatsDBVersion,
		CreatedAt:          time.Now(),
		LastUpdated:        time.Now(),
		TotalCost:          make(map[string]float64),
		LanguagePairs:      make(map[string]*LanguagePairStats),
		EngineStats:        make(map[string]*EngineStats),
		FormatStats:        make(map[string]*FormatStats),
		RecentTranslations: make([]*TranslationRecord, 0),
	}
}

// load 加载统计数据
func (db *Database) load() error {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	data, err := os.ReadFile(db.filePath)
	if os.IsNotExist(err) {
		db.data = newStatisticsDB()
		return db.saveUnsafe()
	}
	if err != nil {
		return fmt.Errorf("failed to read stats file: %w", err)
	}

	var statsDB StatisticsDB
	if err := json.Unmarshal(data, &statsDB); err != nil {
		return fmt.Errorf("failed to parse stats file: %w", err)
	}

	// 初始化可能为 nil 的字段
	if statsDB.TotalCost == nil {
		statsDB.TotalCost = make(map[string]float64)
	}
	if statsDB.LanguagePairs == nil {
		statsDB.LanguagePairs = make(map[string]*LanguagePairStats)
	}
	if statsDB.EngineStats == nil {
		statsDB.EngineStats = make(map[string]*EngineStats)
	}
	if statsDB.FormatStats == nil {
		statsDB.FormatStats = make(map[string]*FormatStats)
	}
	if statsDB.RecentTranslations == nil {
		statsDB.RecentTranslations = make([]*TranslationRecord, 0)
	}

	db.data = &statsDB
	db.logger.Debug("loaded statistics database",
		zap.String("version", statsDB.Version),
		zap.Time("created_at", statsDB.CreatedAt),
		zap.Int64("total_translations", statsDB.TotalTranslations))

	return nil
}

// Path 返回数据库文件路径
func (db *Database) Path() string {
	return db.filePath
}

// Save 保存统计数据
func (db *Database) Save() error {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	return db.saveUnsafe()
}

// Reset 清空所有统计
func (db *Database) Reset() error {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.data = newStatisticsDB()
	return db.saveUnsafe()
}

// saveUnsafe 不安全的保存（需要已持有锁）
func (db *Database) saveUnsafe() error {
	db.data.LastUpdated = time.Now()

	data, err := json.MarshalIndent(db.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal stats data: %w", err)
	}

	// 原子写入
	tempFile := db.filePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temp stats file: %w", err)
	}

	if err := os.Rename(tempFile, db.filePath); err != nil {
		return fmt.Errorf("failed to rename stats file: %w", err)
	}

	return nil
}

// AddTranslationRecord 添加翻译记录
func (db *Database) AddTranslationRecord(record *TranslationRecord) error {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}

	// 更新总体统计
	db.data.TotalTranslations++
	db.data.TotalParagraphs += int64(record.TranslatedParagraphs)
	db.data.TotalCharacters += int64(record.CharacterCount)
	db.data.TotalTokens += int64(record.Tokens)
	db.data.TotalDuration += record.Duration
	if record.Currency != "" {
		db.data.TotalCost[record.Currency] += record.Cost
	}
	if record.Failed() {
		db.data.TotalErrors++
	}

	db.updateLanguagePair(record)
	db.updateEngine(record)
	db.updateFormat(record)

	// 添加到最近记录
	db.data.RecentTranslations = append(db.data.RecentTranslations, record)

	// 保持最近记录数量限制
	if len(db.data.RecentTranslations) > MaxRecentRecords {
		sort.Slice(db.data.RecentTranslations, func(i, j int) bool {
			return db.data.RecentTranslations[i].Timestamp.After(db.data.RecentTranslations[j].Timestamp)
		})
		db.data.RecentTranslations = db.data.RecentTranslations[:MaxRecentRecords]
	}

	db.updatePerformanceStats(record)

	return db.saveUnsafe()
}

func (db *Database) updateLanguagePair(record *TranslationRecord) {
	key := fmt.Sprintf("%s-%s", record.SourceLanguage, record.TargetLanguage)
	pair, exists := db.data.LanguagePairs[key]
	if !exists {
		pair = &LanguagePairStats{
			SourceLanguage: record.SourceLanguage,
			TargetLanguage: record.TargetLanguage,
		}
		db.data.LanguagePairs[key] = pair
	}

	pair.TranslationCount++
	pair.CharacterCount += int64(record.CharacterCount)
	pair.LastUsed = record.Timestamp
	if record.Failed() {
		pair.ErrorCount++
	}

	total := time.Duration(int64(pair.AverageDuration) * (pair.TranslationCount - 1))
	pair.AverageDuration = (total + record.Duration) / time.Duration(pair.TranslationCount)
}

func (db *Database) updateEngine(record *TranslationRecord) {
	name := strings.ToLower(record.Engine)
	es, exists := db.data.EngineStats[name]
	if !exists {
		es = &EngineStats{Engine: name}
		db.data.EngineStats[name] = es
	}

	es.TranslationCount++
	es.ParagraphCount += int64(record.TranslatedParagraphs)
	es.FailedParagraphs += int64(record.FailedParagraphs)
	es.CharacterCount += int64(record.CharacterCount)
	es.Tokens += int64(record.Tokens)
	es.Cost += record.Cost
	if record.Currency != "" {
		es.Currency = record.Currency
	}
	es.LastUsed = record.Timestamp
}

func (db *Database) updateFormat(record *TranslationRecord) {
	if record.Format == "" {
		return
	}
	fs, exists := db.data.FormatStats[record.Format]
	if !exists {
		fs = &FormatStats{Format: record.Format}
		db.data.FormatStats[record.Format] = fs
	}

	fs.FileCount++
	fs.CharacterCount += int64(record.CharacterCount)
	fs.LastUsed = record.Timestamp

	successCount := int64(fs.SuccessRate*float64(fs.FileCount-1) + 0.5)
	if record.Status == StatusCompleted && record.FailedParagraphs == 0 {
		successCount++
	}
	fs.SuccessRate = float64(successCount) / float64(fs.FileCount)
}

// updatePerformanceStats 更新性能统计
func (db *Database) updatePerformanceStats(record *TranslationRecord) {
	if record.Duration <= 0 || record.CharacterCount <= 0 {
		return
	}
	perf := &db.data.PerformanceStats
	n := float64(db.data.TotalTranslations)

	speed := float64(record.CharacterCount) / record.Duration.Seconds()
	perf.AverageCharsPerSecond = (perf.AverageCharsPerSecond*(n-1) + speed) / n

	paragraphsPerSecond := float64(record.TranslatedParagraphs) / record.Duration.Seconds()
	perf.AverageParagraphsPerSecond = (perf.AverageParagraphsPerSecond*(n-1) + paragraphsPerSecond) / n

	if perf.FastestTranslation == 0 || record.Duration < perf.FastestTranslation {
		perf.FastestTranslation = record.Duration
	}
	if record.Duration > perf.SlowestTranslation {
		perf.SlowestTranslation = record.Duration
	}
}

// UpdateProgressStats 扫描缓存目录中的进度文件
func (db *Database) UpdateProgressStats(cacheDir string) error {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	ps := ProgressStatistics{CacheDir: cacheDir, LastScannedTime: time.Now()}

	matches, err := filepath.Glob(filepath.Join(cacheDir, "*_progress.json"))
	if err != nil {
		return fmt.Errorf("failed to scan cache dir: %w", err)
	}
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil {
			continue // 忽略错误，继续处理
		}
		ps.ProgressFiles++
		ps.TotalSize += info.Size()

		modTime := info.ModTime()
		if ps.OldestProgress.IsZero() || modTime.Before(ps.OldestProgress) {
			ps.OldestProgress = modTime
		}
		if ps.NewestProgress.IsZero() || modTime.After(ps.NewestProgress) {
			ps.NewestProgress = modTime
		}
	}

	db.data.ProgressStats = ps
	return db.saveUnsafe()
}

// GetStats 获取统计数据（只读副本）
func (db *Database) GetStats() *StatisticsDB {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	// 创建深拷贝
	data, _ := json.Marshal(db.data)
	var copy StatisticsDB
	_ = json.Unmarshal(data, &copy)

	return &copy
}

// GetRecentTranslations 获取最近的翻译记录，最新的在前
func (db *Database) GetRecentTranslations(limit int) []*TranslationRecord {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	if limit <= 0 || limit > len(db.data.RecentTranslations) {
		limit = len(db.data.RecentTranslations)
	}

	sorted := make([]*TranslationRecord, len(db.data.RecentTranslations))
	copy(sorted, db.data.RecentTranslations)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.After(sorted[j].Timestamp)
	})

	return sorted[:limit]
}

// Export 把统计数据以 JSON 导出到文件
func (db *Database) Export(path string) error {
	data, err := json.MarshalIndent(db.GetStats(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal stats data: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write stats export: %w", err)
	}
	return nil
}
