package worker

import (
	"encoding/json"
	"testing"
	"time"
)

func TestResolveDayFromMessage(t *testing.T) {
	defaultDay := func() time.Time {
		return time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	}

	day, err := resolveDay(TriggerMessage{JobType: "route_report", ReportDate: "2026-08-15"}, defaultDay)
	if err != nil {
		t.Fatalf("resolveDay returned error: %v", err)
	}
	if !day.Equal(time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected day %s", day)
	}
}

func TestResolveDayFallsBackToDefault(t *testing.T) {
	want := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	defaultDay := func() time.Time { return want }

	day, err := resolveDay(TriggerMessage{JobType: "route_report"}, defaultDay)
	if err != nil {
		t.Fatalf("resolveDay returned error: %v", err)
	}
	if !day.Equal(want) {
		t.Errorf("expected default day, got %s", day)
	}
}

func TestResolveDayRejectsBadDate(t *testing.T) {
	defaultDay := func() time.Time { return time.Now() }

	if _, err := resolveDay(TriggerMessage{ReportDate: "30/08/2026"}, defaultDay); err == nil {
		t.Fatal("expected error for malformed date")
	}
}

func TestTriggerMessageDecoding(t *testing.T) {
	var trigger TriggerMessage
	raw := []byte(`{"job_type":"route_report","report_date":"2026-08-30"}`)
	if err := json.Unmarshal(raw, &trigger); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if trigger.JobType != "route_report" || trigger.ReportDate != "2026-08-30" {
		t.Errorf("unexpected trigger %+v", trigger)
	}
}
