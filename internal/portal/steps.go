package portal

import (
	"context"
	"fmt"
	"unicode"

	"github.com/govqa/portalharness/internal/harness"
	"github.com/govqa/portalharness/internal/locator"
)

// Report features the cases are grouped under.
const (
	featLogin       = "Login and Form Submission"
	featNavigation  = "Navigation"
	featMenu        = "Menu Management"
	featMenuSave    = "Menu Save"
	featUpload      = "File Upload"
	featDropdown    = "Dropdown Selection"
	featSubmission  = "Form Submission"
	featAddPage     = "Add Page"
	featContent     = "Content Entry"
	featFormInput   = "Form Input"
	featDeletion    = "Form Deletion"
	featDeleted     = "Form Deletion verifying"
	featRestoration = "Form Restoration"
	featEdit        = "Edit Button Functionality"
	featSearchEdit  = "Search and Edit Entry"
	featTable       = "Table Interaction"
	featApprove     = "Login and approve the request"
)

// tag is the feature/story pair a case is reported under.
type tag struct {
	feature string
	story   string
}

var savedMessageTag = tag{featSubmission, "Verify success message after saving data"}

// step builds a single-step case whose success evidence is evidence.
func step(t tag, label, evidence string, body func(ctx context.Context, s *harness.Session) error) harness.Case {
	return harness.StepCase(harness.Step{
		Label:    label,
		Feature:  t.feature,
		Story:    t.story,
		Evidence: evidence,
		Body:     body,
	})
}

// loginCases opens the back office and signs in as role.
func loginCases(o Options, role Role) []harness.Case {
	acct := o.Accounts[role]
	return []harness.Case{
		step(tag{featLogin, "Open the application"}, "open application", "open_application", func(ctx context.Context, s *harness.Session) error {
			return s.Open(ctx, o.BaseURL)
		}),
		step(tag{featLogin, "Verify page title"}, "verify page title", "", func(ctx context.Context, s *harness.Session) error {
			return s.AssertTitle(ctx, o.Title)
		}),
		step(tag{featLogin, "Fill in login credentials"}, "fill login credentials", "fill_login_credentials", func(ctx context.Context, s *harness.Session) error {
			if _, err := s.Locate(ctx, usernameField, locator.Present); err != nil {
				return err
			}
			if err := s.Type(ctx, usernameField, acct.User); err != nil {
				return err
			}
			return s.Type(ctx, passwordField, acct.Password)
		}),
		step(tag{featLogin, "Submit login form"}, "submit login form", "submit_login_form", func(ctx context.Context, s *harness.Session) error {
			return s.Click(ctx, loginButton)
		}),
	}
}

func clickCase(t tag, label, evidence string, loc locator.Locator) harness.Case {
	return step(t, label, evidence, func(ctx context.Context, s *harness.Session) error {
		return s.Click(ctx, loc)
	})
}

// bannerCase checks the flash message block is shown after a save.
func bannerCase(label string) harness.Case {
	return step(savedMessageTag, label, "success_message_visible", func(ctx context.Context, s *harness.Session) error {
		return s.AssertDisplayed(ctx, contentBanner)
	})
}

// alertCase checks the success flash reads exactly msg.
func alertCase(t tag, label, evidence, msg string) harness.Case {
	return step(t, label, evidence, func(ctx context.Context, s *harness.Session) error {
		return s.AssertText(ctx, successAlert(msg), msg)
	})
}

// savedRowCase checks the listing cell holding english also shows kannada.
func savedRowCase(label, english, kannada string) harness.Case {
	return step(tag{featLogin, "Verify the form is saved successfully"}, label, "form_submission_verified", func(ctx context.Context, s *harness.Session) error {
		if _, err := s.Locate(ctx, tableCell(english), locator.Visible); err != nil {
			return err
		}
		html, err := s.AttributeOf(ctx, tableCell(english), "innerHTML")
		if err != nil {
			return err
		}
		s.Logger().Info("saved row found", "cell", html)
		return harness.AssertContains("saved row", html, english, kannada)
	})
}

// isNumeric reports whether v is made of digits only.
func isNumeric(v string) bool {
	if v == "" {
		return false
	}
	for _, r := range v {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func optionEvidence(i int) string {
	return fmt.Sprintf("option_%d_dropdown", i+1)
}
