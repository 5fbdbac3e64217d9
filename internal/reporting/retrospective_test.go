package reporting

import (
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func amounts(m map[string]decimal.Decimal) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v.String()
	}
	return out
}

func TestRetrospectiveReporter_GenerateRetrospective(t *testing.T) {
	reporter := NewRetrospectiveReporter()

	time1 := time.Date(2023, 1, 1, 10, 0, 0, 0, time.UTC)
	time2 := time.Date(2023, 1, 1, 10, 5, 0, 0, time.UTC)
	time3 := time.Date(2023, 1, 1, 10, 10, 0, 0, time.UTC)
	time4 := time.Date(2023, 1, 1, 9, 55, 0, 0, time.UTC) // Earlier time

	tests := []struct {
		name        string
		logs        []LogEntry
		expected    *RetrospectiveReport
		wantAmounts map[string]string
	}{
		{
			name: "EmptyLogs",
			logs: []LogEntry{},
			expected: &RetrospectiveReport{
				ErrorBreakdown: make(map[string]int),
				GatewayUsage:   make(map[string]int),
			},
			wantAmounts: map[string]string{},
		},
		{
			name: "SingleCapturedLog",
			logs: []LogEntry{
				{Timestamp: time1, PaymentID: "p1", Status: "captured", Amount: decimal.RequireFromString("10.00"), Currency: "USD", Gateway: "Stripe"},
			},
			expected: &RetrospectiveReport{
				TotalEntries:     1,
				CapturedPayments: 1,
				ErrorBreakdown:   make(map[string]int),
				GatewayUsage:     map[string]int{"Stripe": 1},
				DateFrom:         time1,
				DateTo:           time1,
			},
			wantAmounts: map[string]string{"USD": "10"},
		},
		{
			name: "MixedLogs",
			logs: []LogEntry{
				{Timestamp: time4, PaymentID: "p0", Status: "captured", Amount: decimal.RequireFromString("5"), Currency: "EUR", Gateway: "Hosted"}, // Earliest
				{Timestamp: time1, PaymentID: "p1", Status: "captured", Amount: decimal.RequireFromString("10.25"), Currency: "USD", Gateway: "Stripe"},
				{Timestamp: time2, PaymentID: "p2", Status: "failed", ErrorCode: "card_declined", Gateway: "Stripe"},
				{Timestamp: time2, PaymentID: "p3", Status: "pending", Gateway: "Hosted"},
				{Timestamp: time2, PaymentID: "p4", Status: StatusError, ErrorCode: "gateway_unavailable", Gateway: "Stripe"},
				{Timestamp: time3, PaymentID: "p5", Status: "captured", Amount: decimal.RequireFromString("2.5"), Currency: "USD", Gateway: "Hosted"}, // Latest
			},
			expected: &RetrospectiveReport{
				TotalEntries:       6,
				CapturedPayments:   3,
				FailedPayments:     1,
				PendingPayments:    1,
				Errors:             1,
				ErrorBreakdown:     map[string]int{"card_declined": 1, "gateway_unavailable": 1},
				GatewayUsage:       map[string]int{"Stripe": 3, "Hosted": 3},
				DateFrom:           time4,
				DateTo:             time3,
				ProcessingDuration: time3.Sub(time4),
			},
			wantAmounts: map[string]string{"USD": "12.75", "EUR": "5"},
		},
		{
			name: "LogsWithNoGatewayOrErrorCodes",
			logs: []LogEntry{
				{Timestamp: time1, PaymentID: "p1", Status: "captured", Amount: decimal.RequireFromString("1"), Currency: "GBP"},
				{Timestamp: time2, PaymentID: "p2", Status: "failed"}, // No ErrorCode
				{Timestamp: time3, PaymentID: "p3", Status: "new"},    // Not counted by status
			},
			expected: &RetrospectiveReport{
				TotalEntries:       3,
				CapturedPayments:   1,
				FailedPayments:     1,
				ErrorBreakdown:     make(map[string]int),
				GatewayUsage:       make(map[string]int),
				DateFrom:           time1,
				DateTo:             time3,
				ProcessingDuration: time3.Sub(time1),
			},
			wantAmounts: map[string]string{"GBP": "1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := reporter.GenerateRetrospective(tt.logs)
			if err != nil {
				t.Fatalf("GenerateRetrospective() error = %v", err)
			}

			if got := amounts(report.AmountByCurrency); !reflect.DeepEqual(got, tt.wantAmounts) {
				t.Errorf("AmountByCurrency diff:\n  Got: %+v\n Want: %+v", got, tt.wantAmounts)
			}
			report.AmountByCurrency = nil

			if !reflect.DeepEqual(report, tt.expected) {
				t.Errorf("GenerateRetrospective() mismatch")
				t.Logf("Got: %+v", report)
				t.Logf("Want: %+v", tt.expected)
			}
		})
	}
}

func TestJournal(t *testing.T) {
	j := NewJournal(2)
	j.Record(LogEntry{PaymentID: "p1"})
	j.Record(LogEntry{PaymentID: "p2"})
	j.Record(LogEntry{PaymentID: "p3"})

	entries := j.Entries()
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if entries[0].PaymentID != "p2" || entries[1].PaymentID != "p3" {
		t.Errorf("Expected oldest entry dropped, got %+v", entries)
	}
	if entries[0].Timestamp.IsZero() {
		t.Error("Expected Record to stamp the entry")
	}

	entries[0].PaymentID = "mutated"
	if j.Entries()[0].PaymentID != "p2" {
		t.Error("Entries must return a copy")
	}
}
