package stats

import (
	"time"

	"github.com/nerdneilsfield/novel-translator/pkg/translator"
)

// NewRecord 根据翻译报告生成统计记录
func NewRecord(report *translator.Report, inputFile, outputFile, format string) *TranslationRecord {
	record := &TranslationRecord{
		ID:                   report.DocumentID,
		Timestamp:            report.EndTime,
		Title:                report.Title,
		InputFile:            inputFile,
		OutputFile:           outputFile,
		Engine:               report.Engine,
		SourceLanguage:       report.SourceLanguage,
		TargetLanguage:       report.TargetLanguage,
		Format:               format,
		TotalParagraphs:      report.TotalParagraphs,
		TranslatedParagraphs: report.TranslatedParagraphs,
		FailedParagraphs:     report.FailedParagraphs,
		CharacterCount:       report.SessionChars,
		Tokens:               report.Tokens,
		Cost:                 report.ActualCost,
		Currency:             report.Estimate.Currency,
		Duration:             report.Duration,
		Progress:             report.Progress(),
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}

	switch {
	case report.Interrupted:
		record.Status = StatusInterrupted
	case report.Complete():
		record.Status = StatusCompleted
	default:
		record.Status = StatusPartial
	}
	return record
}
