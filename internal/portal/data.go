package portal

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Data is what the scenarios type into the portal and expect to find again.
type Data struct {
	MenuName         string `yaml:"menu_name"`
	MenuKannadaName  string `yaml:"menu_kannada_name"`
	PageTitle        string `yaml:"page_title"`
	PageKannadaTitle string `yaml:"page_kannada_title"`
	PageContent      string `yaml:"page_content"`
	// ReviewStatus is the listing status an approver looks for.
	ReviewStatus string `yaml:"review_status"`
}

// DefaultData matches the records the demo portal is seeded with.
func DefaultData() Data {
	return Data{
		MenuName:         "Automation text",
		MenuKannadaName:  "ಉದಾಹರಣೆಯ ಶೀರ್ಷಿಕೆ",
		PageTitle:        "Automation text",
		PageKannadaTitle: "ಉದಾಹರಣೆಯ ಶೀರ್ಷಿಕೆ",
		PageContent:      "This is a test content for TinyMCE editor.",
		ReviewStatus:     "Moderated",
	}
}

// LoadData reads a YAML data file over the defaults. Keys missing from the
// file keep their default value; an empty path returns the defaults.
func LoadData(path string) (Data, error) {
	d := DefaultData()
	if path == "" {
		return d, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Data{}, fmt.Errorf("portal data: %w", err)
	}
	if err := yaml.Unmarshal(raw, &d); err != nil {
		return Data{}, fmt.Errorf("portal data: %w", err)
	}
	if d.MenuName == "" || d.PageTitle == "" {
		return Data{}, fmt.Errorf("portal data: %s: menu_name and page_title must not be empty", path)
	}
	return d, nil
}
