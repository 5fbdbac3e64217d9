// Package reporting keeps a journal of finished captures and notifications
// and summarises it into a retrospective report.
package reporting

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// LogEntry is one capture or notification outcome.
type LogEntry struct {
	Timestamp time.Time       `json:"timestamp"`
	PaymentID string          `json:"paymentId"`
	Gateway   string          `json:"gateway"`
	Status    string          `json:"status"` // captured, failed, pending or error
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	ErrorCode string          `json:"errorCode,omitempty"`
}

// Entry statuses besides the action statuses.
const StatusError = "error"

// RetrospectiveReport summarizes payment activities based on a collection of log entries.
type RetrospectiveReport struct {
	TotalEntries       int                        `json:"totalEntries"`
	CapturedPayments   int                        `json:"capturedPayments"`
	FailedPayments     int                        `json:"failedPayments"`
	PendingPayments    int                        `json:"pendingPayments"`
	Errors             int                        `json:"errors"`
	AmountByCurrency   map[string]decimal.Decimal `json:"amountByCurrency"` // captured amounts only
	ErrorBreakdown     map[string]int             `json:"errorBreakdown"`   // failures and errors by code
	GatewayUsage       map[string]int             `json:"gatewayUsage"`
	DateFrom           time.Time                  `json:"dateFrom"`
	DateTo             time.Time                  `json:"dateTo"`
	ProcessingDuration time.Duration              `json:"processingDuration"`
}

// RetrospectiveReporter generates retrospective reports from log entries.
type RetrospectiveReporter struct{}

// NewRetrospectiveReporter creates a new RetrospectiveReporter.
func NewRetrospectiveReporter() *RetrospectiveReporter {
	return &RetrospectiveReporter{}
}

// GenerateRetrospective analyzes a slice of LogEntry items and produces a RetrospectiveReport.
func (rr *RetrospectiveReporter) GenerateRetrospective(logs []LogEntry) (*RetrospectiveReport, error) {
	report := &RetrospectiveReport{
		AmountByCurrency: make(map[string]decimal.Decimal),
		ErrorBreakdown:   make(map[string]int),
		GatewayUsage:     make(map[string]int),
	}
	if len(logs) == 0 {
		return report, nil
	}

	report.DateFrom = logs[0].Timestamp
	report.DateTo = logs[0].Timestamp
	for _, log := range logs {
		report.TotalEntries++

		if log.Timestamp.Before(report.DateFrom) {
			report.DateFrom = log.Timestamp
		}
		if log.Timestamp.After(report.DateTo) {
			report.DateTo = log.Timestamp
		}

		if log.Gateway != "" {
			report.GatewayUsage[log.Gateway]++
		}

		switch log.Status {
		case "captured":
			report.CapturedPayments++
			report.AmountByCurrency[log.Currency] = report.AmountByCurrency[log.Currency].Add(log.Amount)
		case "failed":
			report.FailedPayments++
			if log.ErrorCode != "" {
				report.ErrorBreakdown[log.ErrorCode]++
			}
		case "pending":
			report.PendingPayments++
		case StatusError:
			report.Errors++
			if log.ErrorCode != "" {
				report.ErrorBreakdown[log.ErrorCode]++
			}
		}
	}
	report.ProcessingDuration = report.DateTo.Sub(report.DateFrom)
	return report, nil
}

// Journal is a bounded, concurrency-safe log of entries. The oldest entries
// are dropped once capacity is reached.
type Journal struct {
	mu       sync.Mutex
	entries  []LogEntry
	capacity int
}

// NewJournal creates a Journal holding at most capacity entries. A
// non-positive capacity means 10000.
func NewJournal(capacity int) *Journal {
	if capacity <= 0 {
		capacity = 10000
	}
	return &Journal{capacity: capacity}
}

// Record appends e, stamping it with the current time when unset.
func (j *Journal) Record(e LogEntry) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if len(j.entries) == j.capacity {
		copy(j.entries, j.entries[1:])
		j.entries = j.entries[:len(j.entries)-1]
	}
	j.entries = append(j.entries, e)
}

// Entries returns a copy of the journal.
func (j *Journal) Entries() []LogEntry {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]LogEntry(nil), j.entries...)
}
