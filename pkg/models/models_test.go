package models

import (
	"encoding/json"
	"testing"
)

func TestWebhookEventsValueScan(t *testing.T) {
	events := WebhookEvents{
		ExportStarted:   true,
		ExportCompleted: true,
		ExportFailed:    false,
	}

	value, err := events.Value()
	if err != nil {
		t.Fatalf("Value failed: %v", err)
	}

	var scanned WebhookEvents
	if err := scanned.Scan(value); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	if scanned.ExportStarted != events.ExportStarted {
		t.Errorf("Expected ExportStarted %v, got %v", events.ExportStarted, scanned.ExportStarted)
	}
	if scanned.ExportCompleted != events.ExportCompleted {
		t.Errorf("Expected ExportCompleted %v, got %v", events.ExportCompleted, scanned.ExportCompleted)
	}
}

func TestWebhookEventsScanNil(t *testing.T) {
	var events WebhookEvents
	if err := events.Scan(nil); err != nil {
		t.Errorf("Scan(nil) should not fail: %v", err)
	}
}

func TestExportJobSerialization(t *testing.T) {
	job := ExportJob{
		ID:        "job-1",
		ProjectID: "proj-1",
		Status:    ExportStatusProcessing,
		Progress:  42.5,
	}

	data, err := json.Marshal(job)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var decoded ExportJob
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if decoded.Status != ExportStatusProcessing {
		t.Errorf("Expected status %s, got %s", ExportStatusProcessing, decoded.Status)
	}
	if decoded.Progress != 42.5 {
		t.Errorf("Expected progress 42.5, got %f", decoded.Progress)
	}
}
