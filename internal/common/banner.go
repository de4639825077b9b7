package common

import (
	"fmt"
	"os"
	"strings"

	"github.com/ternarybob/banner"
)

// StorageDescription returns the backend name and its address for display.
func (c *Config) StorageDescription() string {
	switch c.Storage.Backend {
	case "memory":
		return "memory"
	case "surrealdb":
		return "surrealdb " + c.Storage.SurrealDB.Address
	case "redis":
		return "redis " + c.Storage.Redis.Address
	default:
		return "badger " + c.Storage.Badger.Path
	}
}

// PrintBanner displays the application startup banner to stderr.
func PrintBanner(config *Config, logger *Logger) {
	info := CurrentBuild()
	serviceURL := fmt.Sprintf("http://%s:%d", config.Server.Host, config.Server.Port)
	storage := config.StorageDescription()

	lineColor := banner.ColorCyan
	textColor := banner.ColorBold + banner.ColorWhite
	width := 70
	hr := lineColor + strings.Repeat("═", width) + banner.ColorReset

	art := []string{
		` ____            _    __       _ _       _   _       _     `,
		`|  _ \ ___  _ __| |_ / _| ___ | (_) ___ | | | |_   _| |__  `,
		`| |_) / _ \| '__| __| |_ / _ \| | |/ _ \| |_| | | | | '_ \ `,
		`|  __/ (_) | |  | |_|  _| (_) | | | (_) |  _  | |_| | |_) |`,
		`|_|   \___/|_|   \__|_|  \___/|_|_|\___/|_| |_|\__,_|_.__/ `,
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "%s\n", hr)
	fmt.Fprintf(os.Stderr, "\n")
	for _, line := range art {
		fmt.Fprintf(os.Stderr, "%s%s%s\n", textColor, line, banner.ColorReset)
	}
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "%s  Portfolio Valuation & Dividend Tracking%s\n", textColor, banner.ColorReset)
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "%s\n", hr)
	fmt.Fprintf(os.Stderr, "\n")

	kvPad := 16
	kvLines := [][2]string{
		{"Version", info.Version},
		{"Build", info.Build},
		{"Commit", info.Commit},
		{"Environment", config.Environment},
		{"User", config.UserID},
		{"Service URL", serviceURL},
		{"Storage", storage},
	}
	for _, kv := range kvLines {
		fmt.Fprintf(os.Stderr, "%s  %-*s %s%s\n", textColor, kvPad, kv[0], kv[1], banner.ColorReset)
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "%s\n", hr)
	fmt.Fprintf(os.Stderr, "\n")

	logger.Info().
		Str("version", info.Version).
		Str("build", info.Build).
		Str("commit", info.Commit).
		Str("environment", config.Environment).
		Str("user_id", config.UserID).
		Str("service_url", serviceURL).
		Str("storage", storage).
		Msg("Application started")
}

// PrintShutdownBanner displays the application shutdown banner to stderr.
func PrintShutdownBanner(logger *Logger) {
	lineColor := banner.ColorCyan
	textColor := banner.ColorBold + banner.ColorWhite
	width := 42
	hr := lineColor + strings.Repeat("═", width) + banner.ColorReset

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "%s\n", hr)
	fmt.Fprintf(os.Stderr, "%s  PORTFOLIOHUB SHUTTING DOWN%s\n", textColor, banner.ColorReset)
	fmt.Fprintf(os.Stderr, "%s\n", hr)
	fmt.Fprintf(os.Stderr, "\n")

	logger.Info().Msg("Application shutting down")
}
