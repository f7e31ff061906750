//go:build e2e

package e2e

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"

	"github.com/govqa/portalharness/internal/browser"
	"github.com/govqa/portalharness/internal/config"
	"github.com/govqa/portalharness/internal/driver"
	"github.com/govqa/portalharness/internal/harness"
	"github.com/govqa/portalharness/internal/portal"
	"github.com/govqa/portalharness/internal/report"
)

var env *Env

// Env holds shared state for all e2e tests.
type Env struct {
	Config  *config.Config
	Options portal.Options
	Writer  *report.Writer
}

func TestMain(m *testing.M) {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "e2e: load config: %v\n", err)
		os.Exit(1)
	}
	opts, err := portal.OptionsFrom(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "e2e: portal options: %v\n", err)
		os.Exit(1)
	}
	w, err := report.NewWriter(cfg.ResultsDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "e2e: results writer: %v\n", err)
		os.Exit(1)
	}
	env = &Env{Config: cfg, Options: opts, Writer: w}
	fmt.Fprintf(os.Stdout, "e2e: portal %s, results in %s\n", cfg.BaseURL, cfg.ResultsDir)

	os.Exit(m.Run())
}

// runScenario runs the named scenario against a real browser, one subtest per case.
func runScenario(t *testing.T, name string) {
	t.Helper()
	sc, err := portal.Lookup(name, env.Options)
	if err != nil {
		t.Fatal(err)
	}
	m := harness.NewManager(func(ctx context.Context) (driver.Driver, error) {
		return browser.Launch(ctx, env.Config.Browser(), slog.Default())
	}, harness.Config{
		Scenario:      name,
		EvidenceDir:   env.Config.EvidenceDir,
		LocateTimeout: env.Config.LocateTimeout(),
	})
	res := sc.RunTest(t, m, harness.WriterReports(env.Writer))
	t.Logf("%s: %d passed, %d failed in %s", name, res.Passed(), res.Failed(), res.Duration)
}
