package runstore

import (
	"fmt"
	"testing"

	"github.com/seclens/vulnfix-orchestrator/internal/domain"
)

func sampleReport() *domain.RunReport {
	return &domain.RunReport{
		Source:      domain.SourceLocal,
		LocalFolder: "/srv/webapp",
		Model:       "gpt-4o-mini",
		OutputDir:   "fixed_output",
		Results: []domain.FileResult{
			{
				Path: "app.js",
				PromptResults: []domain.PromptOutcome{
					{PromptIndex: 1, Error: "network error", PromptPreview: "find XSS"},
					{PromptIndex: 2, Summary: "CWE-95: eval injection", Findings: []string{"CWE-95"},
						Written: true, OutputPath: "app_prompt_2.js", PromptPreview: "find eval risk"},
				},
			},
		},
	}
}

func TestStore_SaveAndGetRun(t *testing.T) {
	store, err := New(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	report := sampleReport()
	if err := store.SaveRun("run-1", report, false); err != nil {
		t.Fatal(err)
	}

	got, err := store.GetRun("run-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Source != domain.SourceLocal || got.LocalFolder != "/srv/webapp" {
		t.Errorf("metadata = %+v", got)
	}
	if len(got.Results) != 1 || len(got.Results[0].PromptResults) != 2 {
		t.Fatalf("results shape = %+v", got.Results)
	}
	if got.Results[0].PromptResults[1].OutputPath != "app_prompt_2.js" {
		t.Errorf("output path = %q", got.Results[0].PromptResults[1].OutputPath)
	}
	if got.FailureCount() != 1 {
		t.Errorf("failures = %d, want 1", got.FailureCount())
	}
}

func TestStore_SaveRunUpsert(t *testing.T) {
	store, err := New(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	report := sampleReport()
	if err := store.SaveRun("run-1", report, false); err != nil {
		t.Fatal(err)
	}
	report.Results[0].PromptResults[0].Error = ""
	report.Results[0].PromptResults[0].Summary = "fine on retry"
	if err := store.SaveRun("run-1", report, false); err != nil {
		t.Fatalf("saving the same run twice should upsert: %v", err)
	}

	got, _ := store.GetRun("run-1")
	if got.FailureCount() != 0 {
		t.Errorf("failures after upsert = %d, want 0", got.FailureCount())
	}

	runs, _ := store.ListRuns(0)
	if len(runs) != 1 {
		t.Errorf("upsert should not duplicate rows, got %d", len(runs))
	}
}

func TestStore_ListRuns(t *testing.T) {
	store, err := New(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	for i := 0; i < 3; i++ {
		if err := store.SaveRun(fmt.Sprintf("run-%d", i), sampleReport(), i == 2); err != nil {
			t.Fatal(err)
		}
	}

	all, err := store.ListRuns(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("runs count = %d, want 3", len(all))
	}
	for _, r := range all {
		if r.Files != 1 || r.Cells != 2 || r.Failures != 1 {
			t.Errorf("summary counts wrong: %+v", r)
		}
		if r.Descriptor != "local:/srv/webapp" {
			t.Errorf("descriptor = %q", r.Descriptor)
		}
	}

	limited, err := store.ListRuns(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 2 {
		t.Errorf("limited count = %d, want 2", len(limited))
	}
}

func TestStore_ScanHistory(t *testing.T) {
	store, err := New(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	scanID, err := store.RecordScanStart("nightly")
	if err != nil {
		t.Fatal(err)
	}

	if err := store.SaveRun("run-1", sampleReport(), false); err != nil {
		t.Fatal(err)
	}
	if err := store.RecordScanFinish(scanID, "run-1", nil); err != nil {
		t.Fatal(err)
	}

	var gotRun, gotErr string
	err = store.db.QueryRow(`SELECT run_id, error FROM scans WHERE id = ?`, scanID).Scan(&gotRun, &gotErr)
	if err != nil {
		t.Fatal(err)
	}
	if gotRun != "run-1" || gotErr != "" {
		t.Errorf("scan row = (%q, %q)", gotRun, gotErr)
	}

	failedID, _ := store.RecordScanStart("nightly")
	if err := store.RecordScanFinish(failedID, "", fmt.Errorf("source unreachable")); err != nil {
		t.Fatal(err)
	}
	var failErr string
	var runRef interface{}
	store.db.QueryRow(`SELECT run_id, error FROM scans WHERE id = ?`, failedID).Scan(&runRef, &failErr)
	if failErr != "source unreachable" {
		t.Errorf("error = %q", failErr)
	}
}
