package browser

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/govqa/portalharness/internal/driver"
)

// Config holds browser launch configuration.
type Config struct {
	// Path is the browser binary. Empty means auto-detect.
	Path       string
	Headless   bool
	WindowSize string

	// When a browser already answers on CDPAddress:CDPPort the launcher
	// attaches to it instead of starting a new one. CDPPort 0 disables this.
	CDPAddress string
	CDPPort    int
}

// detectBrowser finds an available Chrome/Chromium binary.
func detectBrowser() (string, error) {
	candidates := []string{"chromium-browser", "chromium", "google-chrome", "google-chrome-stable"}
	for _, name := range candidates {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	if runtime.GOOS == "darwin" {
		macPath := "/Applications/Google Chrome.app/Contents/MacOS/Google Chrome"
		if _, err := os.Stat(macPath); err == nil {
			return macPath, nil
		}
	}
	return "", fmt.Errorf("no supported browser found (tried %s)", strings.Join(candidates, ", "))
}

// isPortInUse checks whether a TCP port is already listening.
func isPortInUse(address string, port int) bool {
	conn, err := net.DialTimeout("tcp", net.JoinHostPort(address, strconv.Itoa(port)), time.Second)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// parseWindowSize parses "W,H".
func parseWindowSize(s string) (int, int, error) {
	w, h, ok := strings.Cut(strings.TrimSpace(s), ",")
	if !ok {
		return 0, 0, fmt.Errorf("window size %q: want W,H", s)
	}
	width, err := strconv.Atoi(strings.TrimSpace(w))
	if err != nil || width <= 0 {
		return 0, 0, fmt.Errorf("window size %q: bad width", s)
	}
	height, err := strconv.Atoi(strings.TrimSpace(h))
	if err != nil || height <= 0 {
		return 0, 0, fmt.Errorf("window size %q: bad height", s)
	}
	return width, height, nil
}

// ExecOptions builds the allocator options for a freshly launched browser.
func ExecOptions(cfg Config) ([]chromedp.ExecAllocatorOption, error) {
	size := cfg.WindowSize
	if size == "" {
		size = "1920,1080"
	}
	width, height, err := parseWindowSize(size)
	if err != nil {
		return nil, err
	}

	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("start-maximized", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-breakpad", true),
		chromedp.WindowSize(width, height),
	)
	if cfg.Path != "" {
		opts = append(opts, chromedp.ExecPath(cfg.Path))
	}
	return opts, nil
}

// WaitForCDP polls the CDP /json/version endpoint until it responds.
func WaitForCDP(ctx context.Context, address string, port int) error {
	url := fmt.Sprintf("http://%s/json/version", net.JoinHostPort(address, strconv.Itoa(port)))
	deadline := time.After(15 * time.Second)
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	client := &http.Client{Timeout: time.Second}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			return fmt.Errorf("CDP did not become ready within 15s at %s", url)
		case <-ticker.C:
			resp, err := client.Get(url)
			if err != nil {
				continue
			}
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
	}
}

// Allocate returns an allocator context, attaching to a running browser
// when its CDP port answers and launching a new one otherwise.
func Allocate(ctx context.Context, cfg Config, logger *slog.Logger) (context.Context, context.CancelFunc, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.CDPPort > 0 && isPortInUse(cfg.CDPAddress, cfg.CDPPort) {
		if err := WaitForCDP(ctx, cfg.CDPAddress, cfg.CDPPort); err != nil {
			return nil, nil, fmt.Errorf("waiting for CDP: %w", err)
		}
		url := fmt.Sprintf("http://%s", net.JoinHostPort(cfg.CDPAddress, strconv.Itoa(cfg.CDPPort)))
		logger.Info("browser already running, attaching", "url", url)
		allocCtx, cancel := chromedp.NewRemoteAllocator(context.Background(), url)
		return allocCtx, cancel, nil
	}

	if cfg.Path == "" {
		path, err := detectBrowser()
		if err != nil {
			return nil, nil, err
		}
		cfg.Path = path
	}
	opts, err := ExecOptions(cfg)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("launching browser", "path", cfg.Path, "headless", cfg.Headless, "window_size", cfg.WindowSize)
	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)
	return allocCtx, cancel, nil
}

// Launch allocates a browser and opens the tab the harness drives.
func Launch(ctx context.Context, cfg Config, logger *slog.Logger) (driver.Driver, error) {
	allocCtx, cancel, err := Allocate(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	d, err := driver.NewCDP(allocCtx, cancel, logger)
	if err != nil {
		return nil, err
	}
	return d, nil
}
