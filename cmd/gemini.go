package cmd

import (
	"os"
	"os/exec"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Davincible/gemini-code-open/internal/process"
)

var geminiCmd = &cobra.Command{
	Use:   "gemini [args...]",
	Short: "Execute the Gemini CLI via the adapter service",
	Long:  `Start the adapter service if needed and execute the Gemini CLI with the adapter as the backend.`,
	Args:  cobra.ArbitraryArgs,
	RunE:  runGemini,
}

func runGemini(cmd *cobra.Command, args []string) error {
	procMgr := process.NewManager(baseDir)
	cfg := cfgMgr.Get()

	// Ensure service is running and track if we started it
	serviceStartedByUs, err := procMgr.StartServiceIfNeeded()
	if err != nil {
		return err
	}

	// Set up environment variables for the Gemini CLI
	env := os.Environ()

	// Remove any existing Gemini credentials
	env = filterEnv(env, "GEMINI_API_KEY")
	env = filterEnv(env, "GOOGLE_API_KEY")

	// Point the CLI at the adapter
	if cfg.APIKey != "" {
		env = append(env, "GEMINI_API_KEY="+cfg.APIKey)
	} else {
		env = append(env, "GEMINI_API_KEY=adapter")
	}

	env = append(env, "GOOGLE_GEMINI_BASE_URL=http://"+cfg.Host+":"+strconv.Itoa(cfg.Port))

	// Track reference count
	procMgr.IncrementRef()
	defer func() {
		procMgr.DecrementRef()
		// Only stop service if we started it and no more references
		if serviceStartedByUs && procMgr.ReadRef() == 0 {
			color.Yellow("No more active sessions, stopping auto-started service...")
			procMgr.Stop()
		}
	}()

	// Execute the Gemini CLI
	geminiExec := exec.Command("gemini", args...)
	geminiExec.Env = env
	geminiExec.Stdin = os.Stdin
	geminiExec.Stdout = os.Stdout
	geminiExec.Stderr = os.Stderr

	return geminiExec.Run()
}

func filterEnv(env []string, key string) []string {
	var filtered []string
	prefix := key + "="
	for _, e := range env {
		if !startsWith(e, prefix) {
			filtered = append(filtered, e)
		}
	}
	return filtered
}

func startsWith(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}
