package datarecording

import (
	"github.com/mazrouei/litepcie/dma"
	"github.com/mazrouei/litepcie/driver"
	"github.com/mazrouei/litepcie/sim"
)

// Table names used by the DMA bench.
const (
	TransferCompletionTable = "transfer_completions"
	IntegrityReportTable    = "integrity_reports"
)

// A TransferCompletionEntry records one completed descriptor.
type TransferCompletionEntry struct {
	Engine    string
	DescIndex int
	Address   uint64
	Length    uint32
	Time      float64
}

// An IntegrityReportEntry records the outcome of one verification run.
type IntegrityReportEntry struct {
	Shift      int
	Length     int
	Errors     int
	ReaderIRQs int
	WriterIRQs int
	TimedOut   bool
	Done       bool
}

// A CompletionLogger is a hook that records descriptor completions into the
// transfer completion table. Attach it to both engines.
type CompletionLogger struct {
	recorder DataRecorder
}

// NewCompletionLogger creates a completion logger and its table.
func NewCompletionLogger(recorder DataRecorder) *CompletionLogger {
	recorder.CreateTable(TransferCompletionTable, TransferCompletionEntry{})

	return &CompletionLogger{recorder: recorder}
}

// Func records the completion carried by the hook context.
func (l *CompletionLogger) Func(ctx sim.HookCtx) {
	if ctx.Pos != dma.HookPosDescComplete {
		return
	}

	info := ctx.Item.(dma.DescCompletionInfo)
	l.recorder.InsertData(TransferCompletionTable, TransferCompletionEntry{
		Engine:    info.Engine,
		DescIndex: info.DescIndex,
		Address:   info.Address,
		Length:    info.Length,
		Time:      float64(info.Time),
	})
}

// RecordReport stores a verification report into the integrity report table,
// creating the table on first use.
func RecordReport(recorder DataRecorder, report driver.VerificationReport) {
	found := false
	for _, name := range recorder.ListTables() {
		if name == IntegrityReportTable {
			found = true
			break
		}
	}
	if !found {
		recorder.CreateTable(IntegrityReportTable, IntegrityReportEntry{})
	}

	recorder.InsertData(IntegrityReportTable, IntegrityReportEntry{
		Shift:      report.Shift,
		Length:     report.Length,
		Errors:     report.Errors,
		ReaderIRQs: report.ReaderIRQs,
		WriterIRQs: report.WriterIRQs,
		TimedOut:   report.TimedOut,
		Done:       report.Done,
	})
	recorder.Flush()
}
