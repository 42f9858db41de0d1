package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/hitoshi/jobassist/internal/model"
)

func sampleTracked() []model.TrackedJob {
	return []model.TrackedJob{
		{Job: model.Job{ID: "1", Title: "Go Engineer", Company: "Acme", Location: "Remote", Salary: "$150k", SourceURL: "https://jobs.example.com/1"}, Status: model.StatusApplied, Notes: "Referred by Sam"},
		{Job: model.Job{ID: "2", Title: "SRE", Company: "Globex"}, Status: model.StatusSaved},
		{Job: model.Job{ID: "3", Title: "Data Engineer", Company: "Initech"}, Status: model.StatusApplied},
	}
}

// TestTrackerWorkbook_Rows は各行に求人とステータスが書き出されることを検証する。
func TestTrackerWorkbook_Rows(t *testing.T) {
	data, err := TrackerWorkbook(sampleTracked(), time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("TrackerWorkbook がエラーを返した: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("ワークブックを開けない: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(trackerSheet)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 4 {
		t.Fatalf("rows = %d, want 4", len(rows))
	}
	if rows[0][0] != "Title" || rows[0][7] != "Notes" {
		t.Errorf("header = %v", rows[0])
	}
	if rows[1][0] != "Go Engineer" || rows[1][3] != "Applied" || rows[1][7] != "Referred by Sam" {
		t.Errorf("row 1 = %v", rows[1])
	}

	ok, target, err := f.GetCellHyperLink(trackerSheet, "G2")
	if err != nil || !ok || target != "https://jobs.example.com/1" {
		t.Errorf("hyperlink = %v %q %v", ok, target, err)
	}
}

// TestTrackerWorkbook_Summary はステータス別の件数を集計することを検証する。
func TestTrackerWorkbook_Summary(t *testing.T) {
	data, err := TrackerWorkbook(sampleTracked(), time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("TrackerWorkbook がエラーを返した: %v", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	checks := map[string]string{
		"B1": "2025-06-01 09:30:00",
		"B2": "3",
		"A4": "Saved",
		"B4": "1",
		"A5": "Applied",
		"B5": "2",
		"B8": "0",
	}
	for cell, want := range checks {
		got, err := f.GetCellValue(summarySheet, cell)
		if err != nil || got != want {
			t.Errorf("%s = %q (%v), want %q", cell, got, err, want)
		}
	}
}

// TestTrackerWorkbook_Empty は空の一覧でもヘッダーだけのファイルを生成することを検証する。
func TestTrackerWorkbook_Empty(t *testing.T) {
	data, err := TrackerWorkbook(nil, time.Now())
	if err != nil {
		t.Fatalf("TrackerWorkbook がエラーを返した: %v", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, _ := f.GetRows(trackerSheet)
	if len(rows) != 1 {
		t.Errorf("rows = %d, want 1", len(rows))
	}
}
