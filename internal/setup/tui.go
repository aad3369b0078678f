// Package setup implements the interactive configuration wizard.
package setup

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/vadiminshakov/surge/config"
)

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)
)

// RunTUI launches the terminal configuration wizard and writes
// config.gen.yaml.
func RunTUI() error {
	var (
		exchange        string
		quotePrefix     string
		marketsStr      string
		basketStr       string
		scanIntervalStr string
		webhookURL      string
		dashboardAddr   string
		rpsStr          string
		confirm         bool
	)

	// defaults
	quotePrefix = "KRW-"
	basketStr = "KRW-BTC, KRW-ETH"
	scanIntervalStr = "10m"
	rpsStr = "8"

	// step 1: welcome
	fmt.Print("\033[H\033[2J") // Clear screen
	fmt.Println(headerStyle.Render("SURGE CONFIG WIZARD"))
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Let's get your market scanner configured.\n"))

	// exchange
	fmt.Println(stepStyle.Render("STEP 1: EXCHANGE"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Select Exchange").
				Options(
					huh.NewOption("Upbit", "upbit"),
					huh.NewOption("Binance", "binance"),
					huh.NewOption("Bybit", "bybit"),
				).
				Value(&exchange),
		),
	).Run()
	if err != nil {
		return err
	}

	// universe
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("SURGE CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 2: MARKET UNIVERSE"))
	if exchange == "upbit" {
		err = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Quote Prefix").
					Description("Scans all markets with this prefix (e.g. KRW-)").
					Value(&quotePrefix).
					Validate(func(s string) error {
						if s == "" {
							return fmt.Errorf("quote prefix cannot be empty")
						}
						return nil
					}),
			),
		).Run()
	} else {
		err = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Symbols").
					Description("Comma-separated list (e.g. BTCUSDT, ETHUSDT, SOLUSDT)").
					Value(&marketsStr).
					Validate(func(s string) error {
						if len(splitList(s)) == 0 {
							return fmt.Errorf("at least one symbol is required")
						}
						return nil
					}),
			),
		).Run()
	}
	if err != nil {
		return err
	}

	// reference basket
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("SURGE CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 3: REFERENCE BASKET"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Reference Markets").
				Description("Anchors for the decoupling score, comma-separated").
				Value(&basketStr),
		),
	).Run()
	if err != nil {
		return err
	}

	// timing
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("SURGE CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 4: TIMING"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Scan Interval").
				Description("Duration string (e.g. 5m, 10m)").
				Value(&scanIntervalStr).
				Validate(func(s string) error {
					_, err := time.ParseDuration(s)
					return err
				}),
			huh.NewInput().
				Title("API Requests Per Second").
				Value(&rpsStr).
				Validate(func(s string) error {
					v, err := strconv.ParseFloat(s, 64)
					if err != nil || v <= 0 {
						return fmt.Errorf("must be a positive number")
					}
					return nil
				}),
		),
	).Run()
	if err != nil {
		return err
	}

	// delivery
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("SURGE CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 5: DELIVERY"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Webhook URL").
				Description("Slack-compatible incoming webhook (optional)").
				Value(&webhookURL),
			huh.NewInput().
				Title("Dashboard Address").
				Description("e.g. :8080 (optional, empty disables)").
				Value(&dashboardAddr),
		),
	).Run()
	if err != nil {
		return err
	}

	// confirmation
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("SURGE CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("FINAL CONFIRMATION"))

	universe := quotePrefix + "*"
	if exchange != "upbit" {
		universe = marketsStr
	}
	summary := fmt.Sprintf(
		"Exchange: %s\nUniverse: %s\nBasket: %s\nInterval: %s\nWebhook: %s\nDashboard: %s\n",
		exchange, universe, basketStr, scanIntervalStr, orNone(webhookURL), orNone(dashboardAddr),
	)
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(summary))

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save Configuration?").
				Affirmative("Yes, save").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return err
	}

	if !confirm {
		return fmt.Errorf("setup cancelled by user")
	}

	scanInterval, _ := time.ParseDuration(scanIntervalStr)
	rps, _ := strconv.ParseFloat(rpsStr, 64)

	cfg := config.Default()
	cfg.Exchange = exchange
	cfg.QuotePrefix = quotePrefix
	cfg.Markets = splitList(marketsStr)
	cfg.ReferenceBasket = splitList(basketStr)
	cfg.ScanInterval = scanInterval
	cfg.RequestsPerSecond = rps
	cfg.WebhookURL = webhookURL
	cfg.DashboardAddr = dashboardAddr

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to generate yaml: %w", err)
	}

	filename := "config.gen.yaml"
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to save config file: %w", err)
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(
		fmt.Sprintf("\n✓ Configuration saved to %s\nRun: surge --config %s", filename, filename)))
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
