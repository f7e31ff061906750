package portal

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/govqa/portalharness/internal/config"
	"github.com/govqa/portalharness/internal/driver"
	"github.com/govqa/portalharness/internal/driver/drivertest"
	"github.com/govqa/portalharness/internal/harness"
	"github.com/govqa/portalharness/internal/locator"
	"github.com/govqa/portalharness/internal/report"
)

const testTitle = "Zilla Panchayat Shivamogga"

func testOptions() Options {
	return Options{
		BaseURL: "https://portal.example/back/index",
		Title:   testTitle,
		Accounts: map[Role]config.Credentials{
			Creator:   {User: "creator@site.com", Password: "c"},
			Moderator: {User: "moderator@site.com", Password: "m"},
			Approver:  {User: "approver@site.com", Password: "a"},
		},
		Data: DefaultData(),
	}
}

// fakePortal is a drivertest page pre-populated with the login form.
type fakePortal struct {
	*drivertest.Driver
	dir      string
	user     *drivertest.Element
	password *drivertest.Element
}

func newFakePortal(t *testing.T) *fakePortal {
	t.Helper()
	p := &fakePortal{
		Driver:   drivertest.New(testTitle),
		dir:      t.TempDir(),
		user:     drivertest.NewElement(""),
		password: drivertest.NewElement(""),
	}
	p.Add(usernameField, p.user)
	p.Add(passwordField, p.password)
	p.Add(loginButton, drivertest.NewElement("Login"))
	return p
}

func (p *fakePortal) run(t *testing.T, sc harness.Scenario, timeout time.Duration) harness.RunResult {
	t.Helper()
	m := harness.NewManager(func(ctx context.Context) (driver.Driver, error) {
		return p.Driver, nil
	}, harness.Config{
		Scenario:      sc.Name,
		EvidenceDir:   p.dir,
		LocateTimeout: timeout,
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return sc.Run(context.Background(), m, nil)
}

func (p *fakePortal) evidence(t *testing.T, names ...string) {
	t.Helper()
	for _, n := range names {
		if _, err := os.Stat(filepath.Join(p.dir, n+".png")); err != nil {
			t.Errorf("evidence %s missing: %v", n, err)
		}
	}
}

func requireAllPassed(t *testing.T, res harness.RunResult) {
	t.Helper()
	if res.Err != nil {
		t.Fatalf("run error = %v", res.Err)
	}
	for _, c := range res.Cases {
		if c.Status != report.StatusPassed {
			t.Fatalf("case %q = %s: %v", c.Name, c.Status, c.Err)
		}
	}
}

func TestNamesOrderAndLookup(t *testing.T) {
	want := []string{"creator-menu", "creator-pages", "creator-trash", "moderator-menu", "approver-menu", "approver-pages"}
	if got := Names(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Names() = %v; want %v", got, want)
	}
	if _, err := Lookup("nope", testOptions()); err == nil {
		t.Fatal("Lookup(nope) = nil error")
	}
	for _, sc := range All(testOptions()) {
		if err := sc.Validate(); err != nil {
			t.Fatalf("%s: Validate() = %v", sc.Name, err)
		}
		if sc.Cases[0].Name != "open application" || sc.Cases[3].Name != "submit login form" {
			t.Fatalf("%s does not start with the login cases", sc.Name)
		}
	}
}

func TestCreatorMenuUploadCaseOnlyWithFile(t *testing.T) {
	has := func(sc harness.Scenario) bool {
		for _, c := range sc.Cases {
			if c.Name == "upload media file" {
				return true
			}
		}
		return false
	}
	o := testOptions()
	if has(CreatorMenu(o)) {
		t.Fatal("upload case present without UploadFile")
	}
	o.UploadFile = "/tmp/banner.png"
	if !has(CreatorMenu(o)) {
		t.Fatal("upload case missing with UploadFile")
	}
}

func TestApproverMenuApprovesTheModeratedRow(t *testing.T) {
	p := newFakePortal(t)
	p.Add(mainMenuLink, drivertest.NewElement("Main Menu"))
	p.Add(dataTable, drivertest.NewElement(""))

	draft := drivertest.Row("1", "Automation text", "", "", "", "", "Draft", "")
	match := drivertest.Row("2", "Automation text ಉದಾಹರಣೆಯ ಶೀರ್ಷಿಕೆ", "", "", "", "", "Moderated", "")
	later := drivertest.Row("3", "Automation text", "", "", "", "", "Moderated", "")
	matchEdit := drivertest.NewElement("Edit")
	laterEdit := drivertest.NewElement("Edit")
	match.Children[menuRowEdit.String()] = matchEdit
	later.Children[menuRowEdit.String()] = laterEdit
	p.Add(tableRows, draft, match, later)

	approve := drivertest.NewElement("Approve")
	approve.OnClick = func() { p.Add(contentBanner, drivertest.NewElement(approvedText)) }
	p.Add(menuApproveButton, approve)

	res := p.run(t, ApproverMenu(testOptions()), time.Second)
	requireAllPassed(t, res)

	if matchEdit.Clicks() != 1 || laterEdit.Clicks() != 0 {
		t.Fatalf("edit clicks = %d/%d; want 1/0", matchEdit.Clicks(), laterEdit.Clicks())
	}
	if p.user.Typed() != "approver@site.com" || p.password.Typed() != "a" {
		t.Fatalf("login typed %q / %q", p.user.Typed(), p.password.Typed())
	}
	if got := p.Navigated(); len(got) != 1 || got[0] != "https://portal.example/back/index" {
		t.Fatalf("Navigated() = %v", got)
	}
	p.evidence(t, "open_application", "submit_login_form", "click_main_menu", "matching_row_found", "request_approved", "success_message_visible")
	if p.Closes() != 1 {
		t.Fatalf("Closes() = %d; want 1", p.Closes())
	}
}

func TestApproverMenuWithoutModeratedRowIsNoMatch(t *testing.T) {
	p := newFakePortal(t)
	p.Add(mainMenuLink, drivertest.NewElement("Main Menu"))
	p.Add(dataTable, drivertest.NewElement(""))
	p.Add(tableRows, drivertest.Row("1", "Automation text", "", "", "", "", "Draft", ""))

	res := p.run(t, ApproverMenu(testOptions()), 50*time.Millisecond)
	var search harness.CaseResult
	for _, c := range res.Cases {
		if c.Name == "search and edit moderated menu" {
			search = c
		}
	}
	if !errors.Is(search.Err, harness.ErrNoMatch) || search.Status != report.StatusFailed {
		t.Fatalf("search case = %s %v; want failed NO_MATCH", search.Status, search.Err)
	}
	// Later cases still run and fail on their own.
	if n := len(res.Cases); n != 8 {
		t.Fatalf("cases run = %d; want 8", n)
	}
	p.evidence(t, "search_and_edit_moderated_menu_error")
}

func TestCreatorPagesFillsEditorAndChecksRow(t *testing.T) {
	p := newFakePortal(t)
	p.Add(pagesLink, drivertest.NewElement("Pages"))
	p.Add(addPageButton, drivertest.NewElement("Add Page"))
	category := drivertest.NewElement("")
	category.Choices = []string{"Horizontal Tabs", "Vertical Tabs", "Plain"}
	p.Add(pageCategorySelect, category)
	title := drivertest.NewElement("")
	p.Add(titleField, title)
	body := drivertest.NewElement("")
	p.AddInFrame(editorFrame, editorBody, body)
	p.Add(editorFrame, drivertest.NewElement(""))
	kannada := drivertest.NewElement("")
	p.Add(kannadaTitleField, kannada)

	save := drivertest.NewElement("Save")
	save.OnClick = func() {
		p.Add(successAlert(pageSavedText), drivertest.NewElement(pageSavedText))
		cell := drivertest.NewElement("Automation text")
		cell.Attrs = map[string]string{"innerHTML": "Automation text<br>ಉದಾಹರಣೆಯ ಶೀರ್ಷಿಕೆ"}
		p.Add(tableCell("Automation text"), cell)
	}
	p.Add(savePageButton, save)

	res := p.run(t, CreatorPages(testOptions()), time.Second)
	requireAllPassed(t, res)

	if category.Selected() != 0 {
		t.Fatalf("category Selected() = %d; want 0", category.Selected())
	}
	if title.Typed() != "Automation text" || kannada.Typed() != "ಉದಾಹರಣೆಯ ಶೀರ್ಷಿಕೆ" {
		t.Fatalf("typed title %q kannada %q", title.Typed(), kannada.Typed())
	}
	if !strings.Contains(body.Typed(), "TinyMCE") {
		t.Fatalf("editor body = %q", body.Typed())
	}
	p.evidence(t, "option_1_dropdown", "option_2_dropdown", "option_3_dropdown",
		"entered_text_in_title_field", "typed_content_in_tinymce", "success_message_displayed", "form_submission_verified")
}

func TestCreatorPagesRejectsNumericTitle(t *testing.T) {
	p := newFakePortal(t)
	p.Add(pagesLink, drivertest.NewElement("Pages"))
	p.Add(addPageButton, drivertest.NewElement("Add Page"))
	p.Add(titleField, drivertest.NewElement(""))

	o := testOptions()
	o.Data.PageTitle = "12345"
	res := p.run(t, CreatorPages(o), 50*time.Millisecond)
	for _, c := range res.Cases {
		if c.Name != "enter page title" {
			continue
		}
		if !errors.Is(c.Err, harness.ErrAssertion) {
			t.Fatalf("enter page title Err = %v; want ASSERTION_FAILURE", c.Err)
		}
		return
	}
	t.Fatal("enter page title case not run")
}

func TestModeratorMenuEditsRowByID(t *testing.T) {
	p := newFakePortal(t)
	p.Add(mainMenuLink, drivertest.NewElement("Main Menu"))
	row := drivertest.NewElement("")
	row.Attrs = map[string]string{"id": "item-42"}
	p.Add(itemRow, row)
	pencil := drivertest.NewElement("")
	p.Add(rowEditIcon("item-42"), pencil)
	save := drivertest.NewElement("Save")
	save.OnClick = func() { p.Add(contentBanner, drivertest.NewElement("Data Saved successfully!")) }
	p.Add(saveMenuButton, save)

	requireAllPassed(t, p.run(t, ModeratorMenu(testOptions()), time.Second))
	if pencil.Clicks() != 1 {
		t.Fatalf("pencil clicks = %d; want 1", pencil.Clicks())
	}
}

func TestModeratorMenuReportsFeatureAndStory(t *testing.T) {
	p := newFakePortal(t)
	p.Add(mainMenuLink, drivertest.NewElement("Main Menu"))
	row := drivertest.NewElement("")
	row.Attrs = map[string]string{"id": "item-7"}
	p.Add(itemRow, row)
	p.Add(rowEditIcon("item-7"), drivertest.NewElement(""))
	save := drivertest.NewElement("Save")
	save.OnClick = func() { p.Add(contentBanner, drivertest.NewElement("Data Saved successfully!")) }
	p.Add(saveMenuButton, save)

	w, err := report.NewWriter(t.TempDir())
	if err != nil {
		t.Fatalf("NewWriter() = %v", err)
	}
	sc := ModeratorMenu(testOptions())
	m := harness.NewManager(func(ctx context.Context) (driver.Driver, error) {
		return p.Driver, nil
	}, harness.Config{
		Scenario:      sc.Name,
		EvidenceDir:   p.dir,
		LocateTimeout: time.Second,
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	requireAllPassed(t, sc.Run(context.Background(), m, harness.WriterReports(w)))

	results, err := report.LoadResults(w.Dir())
	if err != nil {
		t.Fatalf("LoadResults() = %v", err)
	}
	want := map[string][2]string{
		"open application":               {"Login and Form Submission", "Open the application"},
		"click main menu":                {"Navigation", "click on main menu"},
		"edit first menu item":           {"Edit Button Functionality", "Click on the Edit button for a specific row"},
		"verify moderation saved banner": {"Form Submission", "Verify success message after saving data"},
	}
	seen := 0
	for _, r := range results {
		tags, ok := want[r.Name]
		if !ok {
			continue
		}
		seen++
		if r.Label("feature") != tags[0] || r.Label("story") != tags[1] {
			t.Errorf("%s labels = %q/%q; want %q/%q", r.Name, r.Label("feature"), r.Label("story"), tags[0], tags[1])
		}
	}
	if seen != len(want) {
		t.Fatalf("matched %d of %d tagged results", seen, len(want))
	}
}

func TestCreatorTrashRestoresItem(t *testing.T) {
	p := newFakePortal(t)
	p.Add(pagesLink, drivertest.NewElement("Pages"))
	del := drivertest.NewElement("Delete")
	p.Add(firstDeleteButton, del)
	p.Add(viewTrashButton, drivertest.NewElement("View Trash"))
	p.Add(dataTable, drivertest.NewElement(""))
	p.Add(locator.Parent(tableCell("Automation text")), drivertest.NewElement("Automation text"))
	p.Add(trashCard("Automation text"), drivertest.NewElement(""))
	restore := drivertest.NewElement("")
	restore.OnClick = func() { p.Remove(trashCard("Automation text")) }
	p.Add(restoreButton, restore)
	p.Add(liveItemsButton, drivertest.NewElement("Go Back to Live Items"))
	p.Add(liveTableCell("Automation text"), drivertest.NewElement("Automation text"))

	requireAllPassed(t, p.run(t, CreatorTrash(testOptions()), time.Second))
	if del.Clicks() != 1 || restore.Clicks() != 1 {
		t.Fatalf("delete/restore clicks = %d/%d", del.Clicks(), restore.Clicks())
	}
	p.evidence(t, "delete_button_visible", "form_deleted", "form_removed_from_trash_view", "restored_form_visible")
}

func TestLoadData(t *testing.T) {
	d, err := LoadData("")
	if err != nil || d != DefaultData() {
		t.Fatalf("LoadData(\"\") = %+v, %v", d, err)
	}

	path := filepath.Join(t.TempDir(), "data.yaml")
	if err := os.WriteFile(path, []byte("menu_name: Nightly menu\nreview_status: Approved\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	d, err = LoadData(path)
	if err != nil {
		t.Fatalf("LoadData() = %v", err)
	}
	if d.MenuName != "Nightly menu" || d.ReviewStatus != "Approved" || d.PageTitle != DefaultData().PageTitle {
		t.Fatalf("LoadData() = %+v", d)
	}

	if err := os.WriteFile(path, []byte("menu_name: \"\"\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadData(path); err == nil {
		t.Fatal("LoadData() with empty menu_name = nil error")
	}
	if _, err := LoadData(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("LoadData(missing) = nil error")
	}
}

func TestOptionsFrom(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.yaml")
	if err := os.WriteFile(path, []byte("page_title: Release notes\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	o, err := OptionsFrom(&config.Config{
		BaseURL:  "https://portal.example",
		Title:    testTitle,
		Approver: config.Credentials{User: "a@x", Password: "p"},
		DataFile: path,
	})
	if err != nil {
		t.Fatalf("OptionsFrom() = %v", err)
	}
	if o.Accounts[Approver].User != "a@x" || o.Data.PageTitle != "Release notes" {
		t.Fatalf("OptionsFrom() = %+v", o)
	}
}

func TestIsNumeric(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"", false},
		{"12345", true},
		{"123456789012345678901234567", true},
		{"Automation text", false},
		{"12a", false},
	}
	for _, tt := range tests {
		if got := isNumeric(tt.in); got != tt.want {
			t.Errorf("isNumeric(%q) = %v; want %v", tt.in, got, tt.want)
		}
	}
}
