package browser_test

import (
	"testing"

	"github.com/playwright-community/playwright-go"
)

// TestDashboard_EditorSeesMutatingActions verifies an owner-group member
// gets the submit, delete, and email affordances on the table.
func TestDashboard_EditorSeesMutatingActions(t *testing.T) {
	app := newTestApp(t)
	app.seedReport(t, "Radio check failure")

	page := app.pageAs(t, editorUserID, "Edna Editor", "edna@example.mil")
	if _, err := page.Goto(app.BaseURL + "/"); err != nil {
		t.Fatalf("failed to open dashboard: %v", err)
	}

	if err := page.Locator("text=Radio check failure").WaitFor(playwright.LocatorWaitForOptions{
		Timeout: playwright.Float(10000),
	}); err != nil {
		t.Fatalf("seeded report not visible: %v", err)
	}
	for _, selector := range []string{
		`a[href="/reports/new"]`,
		`a[href="/reports/1/delete"]`,
		`a[href="/reports/1/email"]`,
	} {
		count, err := page.Locator(selector).Count()
		if err != nil || count == 0 {
			t.Errorf("editor dashboard missing %s (count=%d, err=%v)", selector, count, err)
		}
	}
}

// TestDashboard_ViewerIsReadOnly verifies a non-member sees the table but
// none of the mutating affordances.
func TestDashboard_ViewerIsReadOnly(t *testing.T) {
	app := newTestApp(t)
	app.seedReport(t, "Radio check failure")

	page := app.pageAs(t, viewerUserID, "Vic Viewer", "vic@example.mil")
	if _, err := page.Goto(app.BaseURL + "/"); err != nil {
		t.Fatalf("failed to open dashboard: %v", err)
	}
	if err := page.Locator("text=Radio check failure").WaitFor(playwright.LocatorWaitForOptions{
		Timeout: playwright.Float(10000),
	}); err != nil {
		t.Fatalf("seeded report not visible: %v", err)
	}
	for _, selector := range []string{
		`a[href="/reports/new"]`,
		`a[href="/reports/1/delete"]`,
		`a[href="/reports/1/email"]`,
	} {
		count, err := page.Locator(selector).Count()
		if err != nil {
			t.Fatalf("locator %s: %v", selector, err)
		}
		if count != 0 {
			t.Errorf("viewer dashboard shows %s", selector)
		}
	}
}

// TestSubmitObservation_EndToEnd drives the create form through the real
// CSRF-protected round trip and checks the new report lands on the table.
func TestSubmitObservation_EndToEnd(t *testing.T) {
	app := newTestApp(t)

	page := app.pageAs(t, editorUserID, "Edna Editor", "edna@example.mil")
	if _, err := page.Goto(app.BaseURL + "/reports/new"); err != nil {
		t.Fatalf("failed to open form: %v", err)
	}

	fills := map[string]string{
		"input[name=Title]":      "Fuel resupply gap",
		"input[name=EventName]":  "Exercise Saber",
		"input[name=Topic]":      "Logistics",
		"input[name=ObservedBy]": "1",
	}
	for selector, value := range fills {
		if err := page.Locator(selector).Fill(value); err != nil {
			t.Fatalf("failed to fill %s: %v", selector, err)
		}
	}
	if _, err := page.Locator("select[name=Status]").SelectOption(playwright.SelectOptionValues{
		Values: playwright.StringSlice("New"),
	}); err != nil {
		t.Fatalf("failed to select status: %v", err)
	}

	if err := page.Locator("button[type=submit]").Click(); err != nil {
		t.Fatalf("failed to submit: %v", err)
	}
	if err := page.WaitForURL(app.BaseURL+"/", playwright.PageWaitForURLOptions{
		Timeout: playwright.Float(10000),
	}); err != nil {
		t.Fatalf("submit did not redirect to dashboard: %v", err)
	}
	if err := page.Locator("text=Fuel resupply gap").WaitFor(playwright.LocatorWaitForOptions{
		Timeout: playwright.Float(10000),
	}); err != nil {
		t.Fatalf("created report not on dashboard: %v", err)
	}
}
