package portal

import (
	"context"
	"fmt"

	"github.com/govqa/portalharness/internal/harness"
	"github.com/govqa/portalharness/internal/locator"
)

const (
	menuSavedText = "Menu Saved successfully!"
	pageSavedText = "Data Saved successfully!"
	trashedText   = "Data Trashed successfully!"
	approvedText  = "Data Approved successfully!"
	menuNameCol   = 2
	menuStatusCol = 7
	pageTitleCol  = 2
	pageStatusCol = 4
)

// CreatorMenu adds a main-menu entry and checks it is listed.
func CreatorMenu(o Options) harness.Scenario {
	cases := loginCases(o, Creator)
	cases = append(cases,
		clickCase(tag{featNavigation, "click on main menu"}, "click main menu", "click_main_menu", mainMenuLink),
		clickCase(tag{featMenu, "Click on Add Menu Button"}, "click add menu button", "click_add_menu_button", addMenuButton),
		step(tag{featLogin, "Fill in form fields"}, "fill in menu form", "form_filled", func(ctx context.Context, s *harness.Session) error {
			if err := s.Fill(ctx, menuNameField, o.Data.MenuName); err != nil {
				return err
			}
			return s.Fill(ctx, menuKannadaField, o.Data.MenuKannadaName)
		}),
	)
	if o.UploadFile != "" {
		cases = append(cases, step(tag{featUpload, "Upload a media file and verify successful upload"}, "upload media file", "file_uploaded", func(ctx context.Context, s *harness.Session) error {
			if _, err := s.Locate(ctx, mediaInput, locator.Visible); err != nil {
				return err
			}
			harness.StepEvidence(ctx, s, "file_input_visible")
			if err := s.Upload(ctx, mediaInput, o.UploadFile); err != nil {
				return err
			}
			s.Logger().Info("file selected", "path", o.UploadFile)
			return nil
		}))
	}
	cases = append(cases,
		step(tag{featDropdown, "Select the first option from the dropdown"}, "select linked page", "dropdown_first_option_selected", func(ctx context.Context, s *harness.Session) error {
			text, err := s.SelectIndex(ctx, pageSelect, 1)
			if err == nil {
				s.Logger().Info("page option selected", "option", text)
			}
			return err
		}),
		step(tag{featDropdown, "Select the second option 'Main Menu' from the menu_category dropdown"}, "select menu category", "dropdown_second_option_selected", func(ctx context.Context, s *harness.Session) error {
			text, err := s.SelectIndex(ctx, menuCategorySelect, 1)
			if err == nil {
				s.Logger().Info("menu category selected", "option", text)
			}
			return err
		}),
		clickCase(tag{featLogin, "Save the form"}, "save menu form", "form_saved", saveMenuButton),
		step(tag{featMenuSave, "Verify that the menu is saved successfully and a success message is displayed"}, "verify menu saved message", "menu_save_success_message", func(ctx context.Context, s *harness.Session) error {
			text, err := s.TextOf(ctx, menuSavedAlert)
			if err != nil {
				return err
			}
			return harness.AssertContains("menu saved message", text, menuSavedText)
		}),
		savedRowCase("verify saved menu row", o.Data.MenuName, o.Data.MenuKannadaName),
		bannerCase("verify menu success banner"),
	)
	return harness.Scenario{Name: "creator-menu", Cases: cases}
}

// CreatorPages adds a page with TinyMCE content and checks it is listed.
func CreatorPages(o Options) harness.Scenario {
	cases := loginCases(o, Creator)
	cases = append(cases,
		clickCase(tag{featNavigation, "Click Pages link"}, "click pages link", "click_pages_link", pagesLink),
		clickCase(tag{featAddPage, "Click on Add Page Button"}, "click add page button", "click_add_page_button", addPageButton),
		step(tag{featLogin, "Select all options in dropdown and then select the first one"}, "browse page categories", "selected_category_option", func(ctx context.Context, s *harness.Session) error {
			opts, err := s.OptionsOf(ctx, pageCategorySelect)
			if err != nil {
				return err
			}
			for i := range opts {
				text, err := s.SelectIndex(ctx, pageCategorySelect, i)
				if err != nil {
					return err
				}
				s.Logger().Info("category option", "index", i+1, "text", text)
				harness.StepEvidence(ctx, s, optionEvidence(i))
			}
			_, err = s.SelectIndex(ctx, pageCategorySelect, 0)
			return err
		}),
		step(tag{featLogin, "Enter text in the 'Title' field and validate input"}, "enter page title", "entered_text_in_title_field", func(ctx context.Context, s *harness.Session) error {
			if err := s.Fill(ctx, titleField, o.Data.PageTitle); err != nil {
				return err
			}
			v, err := s.AttributeOf(ctx, titleField, "value")
			if err != nil {
				return err
			}
			return harness.AssertTrue(fmt.Sprintf("title %q is not only digits", v), !isNumeric(v))
		}),
		step(tag{featContent, "Type content into TinyMCE editor"}, "type page content", "typed_content_in_tinymce", func(ctx context.Context, s *harness.Session) error {
			return s.InFrame(ctx, editorFrame, func() error {
				return s.Type(ctx, editorBody, o.Data.PageContent)
			})
		}),
		step(tag{featFormInput, "Enter Kannada Title"}, "enter kannada title", "kannada_title_entered", func(ctx context.Context, s *harness.Session) error {
			return s.Type(ctx, kannadaTitleField, o.Data.PageKannadaTitle)
		}),
		clickCase(tag{featLogin, "Click on the 'Save' button"}, "save page", "clicked_save_button", savePageButton),
		alertCase(tag{featLogin, "Verify Success Message After Saving the Form"}, "verify page saved message", "success_message_displayed", pageSavedText),
		savedRowCase("verify saved page row", o.Data.PageTitle, o.Data.PageKannadaTitle),
	)
	return harness.Scenario{Name: "creator-pages", Cases: cases}
}

// CreatorTrash trashes the first page, finds it in the trash and restores it.
func CreatorTrash(o Options) harness.Scenario {
	title := o.Data.PageTitle
	cases := loginCases(o, Creator)
	cases = append(cases,
		clickCase(tag{featNavigation, "Click Pages link"}, "click pages link", "click_pages_link", pagesLink),
		step(tag{featDeletion, "Delete the form and verify deletion"}, "delete first item", "clicked_delete_button", func(ctx context.Context, s *harness.Session) error {
			if _, err := s.Locate(ctx, firstDeleteButton, locator.Clickable); err != nil {
				return err
			}
			harness.StepEvidence(ctx, s, "delete_button_visible")
			return s.Click(ctx, firstDeleteButton)
		}),
		step(tag{featDeleted, "verify deletion"}, "verify trashed message cleared", "form_deleted", func(ctx context.Context, s *harness.Session) error {
			return s.WaitGone(ctx, successAlert(trashedText))
		}),
		clickCase(tag{featDeletion, "Click on the 'View Trash' button after deletion"}, "click view trash", "clicked_view_trash_button", viewTrashButton),
		step(tag{featDeletion, "Verify the deleted form in 'Trash' view"}, "verify item in trash", "verified_deleted_form_in_trash_view", func(ctx context.Context, s *harness.Session) error {
			if _, err := s.Locate(ctx, dataTable, locator.Present); err != nil {
				return err
			}
			return s.AssertDisplayed(ctx, locator.Parent(tableCell(title)))
		}),
		step(tag{featRestoration, "Restore the deleted form from 'Trash' view and validate removal"}, "restore item", "form_removed_from_trash_view", func(ctx context.Context, s *harness.Session) error {
			if err := s.Click(ctx, restoreButton); err != nil {
				return err
			}
			return s.WaitGone(ctx, trashCard(title))
		}),
		step(tag{featRestoration, "Verify that the form is restored and visible in live items"}, "verify item restored", "restored_form_visible", func(ctx context.Context, s *harness.Session) error {
			if err := s.Click(ctx, liveItemsButton); err != nil {
				return err
			}
			if _, err := s.Locate(ctx, dataTable, locator.Present); err != nil {
				return err
			}
			return s.AssertDisplayed(ctx, liveTableCell(title))
		}),
	)
	return harness.Scenario{Name: "creator-trash", Cases: cases}
}

// ModeratorMenu opens the first menu item for edit and saves it.
func ModeratorMenu(o Options) harness.Scenario {
	cases := loginCases(o, Moderator)
	cases = append(cases,
		clickCase(tag{featNavigation, "click on main menu"}, "click main menu", "click_main_menu", mainMenuLink),
		step(tag{featEdit, "Click on the Edit button for a specific row"}, "edit first menu item", "clicked_edit_button", func(ctx context.Context, s *harness.Session) error {
			if _, err := s.Locate(ctx, itemRow, locator.Visible); err != nil {
				return err
			}
			id, err := s.AttributeOf(ctx, itemRow, "id")
			if err != nil {
				return err
			}
			s.Logger().Info("located menu row", "item_id", id)
			edit := rowEditIcon(id)
			if _, err := s.Locate(ctx, edit, locator.Clickable); err != nil {
				return err
			}
			harness.StepEvidence(ctx, s, "edit_button_visible")
			return s.Click(ctx, edit)
		}),
		clickCase(tag{featLogin, "Save the form"}, "save menu form", "form_saved", saveMenuButton),
		bannerCase("verify moderation saved banner"),
	)
	return harness.Scenario{Name: "moderator-menu", Cases: cases}
}

// ApproverMenu approves the moderated menu entry.
func ApproverMenu(o Options) harness.Scenario {
	cases := loginCases(o, Approver)
	cases = append(cases,
		clickCase(tag{featNavigation, "click on main menu"}, "click main menu", "click_main_menu", mainMenuLink),
		step(tag{featSearchEdit, fmt.Sprintf("Search for name '%s' and status '%s', then click edit", o.Data.MenuName, o.Data.ReviewStatus)}, "search and edit moderated menu", "", func(ctx context.Context, s *harness.Session) error {
			if _, err := s.Locate(ctx, dataTable, locator.Visible); err != nil {
				return err
			}
			_, err := harness.SearchAndAct(ctx, s, harness.RowSearch{
				Rows: tableRows,
				Match: harness.AllOf(
					harness.ColumnContains(menuNameCol, o.Data.MenuName),
					harness.ColumnEquals(menuStatusCol, o.Data.ReviewStatus),
				),
				Act: func(ctx context.Context, s *harness.Session, r harness.Row) error {
					harness.StepEvidence(ctx, s, "matching_row_found")
					return r.Click(ctx, menuRowEdit)
				},
			})
			return err
		}),
		clickCase(tag{featLogin, "approve the request"}, "approve menu", "request_approved", menuApproveButton),
		bannerCase("verify approval banner"),
	)
	return harness.Scenario{Name: "approver-menu", Cases: cases}
}

// ApproverPages approves the moderated page.
func ApproverPages(o Options) harness.Scenario {
	cases := loginCases(o, Approver)
	cases = append(cases,
		clickCase(tag{featNavigation, "Click Pages link"}, "click pages link", "click_pages_link", pagesLink),
		step(tag{featTable, fmt.Sprintf("Click Edit button for %s with Status %s", o.Data.PageTitle, o.Data.ReviewStatus)}, "open moderated page", "clicked_edit_button", func(ctx context.Context, s *harness.Session) error {
			if _, err := s.Locate(ctx, tableRows, locator.Present); err != nil {
				return err
			}
			_, err := harness.SearchAndAct(ctx, s, harness.RowSearch{
				Rows: tableRows,
				Match: harness.AllOf(
					harness.ColumnContains(pageTitleCol, o.Data.PageTitle),
					harness.ColumnEquals(pageStatusCol, o.Data.ReviewStatus),
				),
				Act: func(ctx context.Context, s *harness.Session, r harness.Row) error {
					harness.StepEvidence(ctx, s, "moderated_row_visible")
					return r.Click(ctx, pageRowView)
				},
			})
			return err
		}),
		clickCase(tag{featApprove, "approve the request"}, "approve page", "form_saved", pageApproveButton),
		alertCase(savedMessageTag, "verify page approved message", "success_message_visible", approvedText),
	)
	return harness.Scenario{Name: "approver-pages", Cases: cases}
}
