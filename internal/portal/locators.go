package portal

import (
	"fmt"

	"github.com/govqa/portalharness/internal/locator"
)

// Back-office page elements. Everything the scenarios touch is named here so
// call sites never carry raw selectors.
var (
	usernameField = locator.ByAttr("input", "placeholder", "Username")
	passwordField = locator.ByAttr("input", "placeholder", "Password")
	loginButton   = locator.ByAttr("input", "name", "login_button")

	mainMenuLink = locator.ByText("span", "Main Menu")
	pagesLink    = locator.ByText("span", "Pages")

	// Menu form
	addMenuButton      = locator.ByClass("a", "btn btn-sm btn-primary add_menu_button")
	menuNameField      = locator.ByName("name")
	menuKannadaField   = locator.ByName("kn_name")
	mediaInput         = locator.ByXPath("//input[@type='file' and @name='media_to_upload']")
	pageSelect         = locator.ByName("page")
	menuCategorySelect = locator.ByName("menu_category")
	saveMenuButton     = locator.ByAttr("input", "name", "add_menu_submit_button")
	menuSavedAlert     = locator.ByXPath("//div[contains(@class,'alert-success') and contains(text(),'Menu Saved successfully!')]")
	menuApproveButton  = locator.ByClass("a", "btn btn-success menu_approve_btn")

	// Page form
	addPageButton      = locator.ByText("a", "Add Page")
	pageCategorySelect = locator.ByAttr("select", "name", "data_page_category_id")
	titleField         = locator.ByAttr("input", "placeholder", "Title")
	kannadaTitleField  = locator.ByAttr("input", "placeholder", "Kannada Title")
	editorFrame        = locator.ByCSS("iframe[id^='mce_']")
	editorBody         = locator.ByCSS("body#tinymce")
	savePageButton     = locator.ByAttr("input", "name", "add_edit_page_button")
	pageApproveButton  = locator.ByClass("a", "btn btn-sm btn-success")

	// Listings
	dataTable         = locator.ByID("DataTables_Table_0")
	tableRows         = locator.ByCSS("#DataTables_Table_0 > tbody > tr")
	itemRow           = locator.ByContainsAttr("tr", "id", "item-")
	firstDeleteButton = locator.Nth(locator.ByContainsClass("a", "btn-danger"), 1)
	viewTrashButton   = locator.ByText("a", "View Trash")
	restoreButton     = locator.ByClass("i", "glyphicon glyphicon-refresh")
	liveItemsButton   = locator.ByText("a", "Go Back to Live Items")

	// Row-relative, so CSS.
	menuRowEdit = locator.ByCSS(":scope > td:nth-of-type(8) > a.edit_menu_button")
	pageRowView = locator.ByCSS(":scope a.btn.btn-primary.btn-sm > i.glyphicon-eye-open")

	// The first block of the content area holds the flash message.
	contentBanner = locator.ByXPath("//body/div[@class='ch-container']/div[@class='row']/div[@id='content']/div[1]")
)

// successAlert is the flash message whose whole text is msg.
func successAlert(msg string) locator.Locator {
	return locator.ByXPath(fmt.Sprintf("//div[@id='content']//div[@class='alert alert-success'][normalize-space()=%s]", locator.Literal(msg)))
}

// tableCell is a listing cell whose own text contains text.
func tableCell(text string) locator.Locator {
	return locator.ByContainsText("td", text)
}

func liveTableCell(text string) locator.Locator {
	return locator.ByXPath(fmt.Sprintf("//table[@id='DataTables_Table_0']//td[contains(text(),%s)]", locator.Literal(text)))
}

func trashCard(title string) locator.Locator {
	return locator.ByXPath(fmt.Sprintf("//div[@class='page_bx col-md-3 card mb-3 p-3'][@data-title=%s]", locator.Literal(title)))
}

func rowEditIcon(rowID string) locator.Locator {
	return locator.Child(locator.ByAttr("tr", "id", rowID), "//i[@class='glyphicon glyphicon-pencil']")
}
