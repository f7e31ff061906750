// Package portal holds the back-office scenarios of the Zilla Panchayat
// Shivamogga CMS: creator, moderator and approver flows over menus and pages.
package portal

import (
	"fmt"
	"sort"
	"strings"

	"github.com/govqa/portalharness/internal/config"
	"github.com/govqa/portalharness/internal/harness"
)

// Role is a back-office account type.
type Role string

const (
	Creator   Role = "creator"
	Moderator Role = "moderator"
	Approver  Role = "approver"
)

// Options configures every scenario.
type Options struct {
	BaseURL  string
	Title    string
	Accounts map[Role]config.Credentials
	// UploadFile, when set, adds the media upload case to creator-menu.
	UploadFile string
	Data       Data
}

// OptionsFrom builds Options from the loaded configuration, reading the
// data file when one is configured.
func OptionsFrom(cfg *config.Config) (Options, error) {
	data, err := LoadData(cfg.DataFile)
	if err != nil {
		return Options{}, err
	}
	return Options{
		BaseURL: cfg.BaseURL,
		Title:   cfg.Title,
		Accounts: map[Role]config.Credentials{
			Creator:   cfg.Creator,
			Moderator: cfg.Moderator,
			Approver:  cfg.Approver,
		},
		UploadFile: cfg.UploadFile,
		Data:       data,
	}, nil
}

var registry = map[string]func(Options) harness.Scenario{
	"creator-menu":   CreatorMenu,
	"creator-pages":  CreatorPages,
	"creator-trash":  CreatorTrash,
	"moderator-menu": ModeratorMenu,
	"approver-menu":  ApproverMenu,
	"approver-pages": ApproverPages,
}

// Names lists the scenario names in run order: creators first, then the
// moderator, then approvers.
func Names() []string {
	order := map[string]int{"creator": 0, "moderator": 1, "approver": 2}
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool {
		ri, rj := order[roleOf(names[i])], order[roleOf(names[j])]
		if ri != rj {
			return ri < rj
		}
		return names[i] < names[j]
	})
	return names
}

func roleOf(name string) string {
	role, _, _ := strings.Cut(name, "-")
	return role
}

// Lookup builds the scenario called name.
func Lookup(name string, o Options) (harness.Scenario, error) {
	build, ok := registry[name]
	if !ok {
		return harness.Scenario{}, fmt.Errorf("unknown scenario %q (have %v)", name, Names())
	}
	return build(o), nil
}

// All builds every scenario in Names order.
func All(o Options) []harness.Scenario {
	out := make([]harness.Scenario, 0, len(registry))
	for _, n := range Names() {
		out = append(out, registry[n](o))
	}
	return out
}
