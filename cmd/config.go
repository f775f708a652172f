package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Davincible/gemini-code-open/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `Manage the Gemini adapter configuration.`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration interactively",
	Long:  `Initialize configuration by prompting for upstream backend details.`,
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the current configuration.`,
	RunE:  runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	Long:  `Validate the current configuration for errors.`,
	RunE:  runConfigValidate,
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	color.Blue("Gemini Code Open Configuration Setup")
	color.Yellow("Follow the prompts to configure the chat-completion backend.")

	reader := bufio.NewReader(os.Stdin)

	fmt.Printf("\nUpstream Base URL [%s]: ", config.DefaultUpstreamURL)
	baseURL, _ := reader.ReadString('\n')
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = config.DefaultUpstreamURL
	}

	fmt.Print("Upstream API Key: ")
	apiKey, _ := reader.ReadString('\n')
	apiKey = strings.TrimSpace(apiKey)

	fmt.Print("Default Model: ")
	model, _ := reader.ReadString('\n')
	model = strings.TrimSpace(model)

	// Optional adapter API key
	fmt.Print("Adapter API Key (optional, for authentication): ")
	adapterAPIKey, _ := reader.ReadString('\n')
	adapterAPIKey = strings.TrimSpace(adapterAPIKey)

	// Create configuration
	cfg := &config.Config{
		Host:   config.DefaultHost,
		Port:   config.DefaultPort,
		APIKey: adapterAPIKey,
		Upstream: config.Upstream{
			BaseURL: baseURL,
			APIKey:  apiKey,
			Model:   model,
		},
	}

	// Save configuration
	if err := cfgMgr.Save(cfg); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	color.Green("Configuration saved successfully to: %s", cfgMgr.GetPath())
	color.Cyan("You can now start the adapter with: gco start")

	return nil
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	if !cfgMgr.Exists() {
		color.Yellow("No configuration found. Run 'gco config init' to create one.")
		return nil
	}

	cfg, err := cfgMgr.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	color.Blue("Current Configuration:")
	fmt.Printf("  %-15s: %s\n", "Host", cfg.Host)
	fmt.Printf("  %-15s: %d\n", "Port", cfg.Port)
	fmt.Printf("  %-15s: %s\n", "API Key", maskString(cfg.APIKey))
	fmt.Printf("  %-15s: %s\n", "Config Path", cfgMgr.GetPath())

	fmt.Println("\nUpstream:")
	fmt.Printf("  %-15s: %s\n", "Base URL", cfg.Upstream.BaseURL)
	fmt.Printf("  %-15s: %s\n", "API Key", maskString(cfg.Upstream.APIKey))
	fmt.Printf("  %-15s: %s\n", "Model", cfg.Upstream.Model)
	if cfg.Upstream.Temperature != nil {
		fmt.Printf("  %-15s: %g\n", "Temperature", *cfg.Upstream.Temperature)
	}
	if cfg.Upstream.TopP != nil {
		fmt.Printf("  %-15s: %g\n", "Top P", *cfg.Upstream.TopP)
	}
	if cfg.Upstream.MaxTokens > 0 {
		fmt.Printf("  %-15s: %d\n", "Max Tokens", cfg.Upstream.MaxTokens)
	}

	return nil
}

func runConfigValidate(cmd *cobra.Command, _ []string) error {
	if !cfgMgr.Exists() {
		return fmt.Errorf("no configuration found")
	}

	cfg, err := cfgMgr.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Validation logic
	var errors []string

	if cfg.Upstream.BaseURL == "" {
		errors = append(errors, "upstream base URL is required")
	}

	if cfg.Upstream.APIKey == "" && os.Getenv(config.UpstreamKeyEnv) == "" {
		errors = append(errors, fmt.Sprintf("upstream API key is required (config or %s)", config.UpstreamKeyEnv))
	}

	if cfg.Upstream.Model == "" {
		errors = append(errors, "default model is required")
	}

	if len(errors) > 0 {
		color.Red("Configuration validation failed:")
		for _, err := range errors {
			fmt.Printf("  - %s\n", err)
		}
		return fmt.Errorf("configuration validation failed")
	}

	color.Green("Configuration is valid!")
	return nil
}

func maskString(s string) string {
	if s == "" {
		return "(not set)"
	}
	if len(s) <= 8 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + strings.Repeat("*", len(s)-8) + s[len(s)-4:]
}
