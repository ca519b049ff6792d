package main

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"citabot/internal/config"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks on your Citabot installation",
		Long: `Verifies that Citabot's configuration, WhatsApp credentials, scheduler
endpoint and database are correctly set up. Reports pass/fail for each check.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Same .env handling as serve, so both see the same credentials.
			godotenv.Load()

			cfgPath := resolveConfigPath()
			fmt.Printf("Citabot Doctor v%s\n", version)
			fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

			passed := 0
			failed := 0
			warned := 0

			// 1. Config file exists
			if _, err := os.Stat(cfgPath); err != nil {
				printFail("Config file", fmt.Sprintf("not found at %s", cfgPath))
				fmt.Printf("\nRun 'citabot init' to create a default configuration.\n")
				return nil
			}
			printPass("Config file", cfgPath)
			passed++

			// 2. Config loads and validates
			cfg, err := config.Load(cfgPath)
			if err != nil {
				printFail("Config validation", err.Error())
				failed++
				fmt.Printf("\nResults: %d passed, %d failed\n", passed, failed)
				return fmt.Errorf("%d check(s) failed", failed)
			}
			printPass("Config validation", "valid")
			passed++

			// 3. WhatsApp credentials
			wa := cfg.Channels.WhatsApp
			if wa.AccessToken == "" || wa.PhoneNumberID == "" {
				printWarn("WhatsApp", "access token or phone number ID missing (set WA_ACCESS_TOKEN / WA_PHONE_NUMBER_ID)")
				warned++
			} else {
				printPass("WhatsApp", "credentials configured")
				passed++
			}
			if wa.AppSecret == "" {
				printWarn("Webhook signature", "app secret not set, signature verification disabled")
				warned++
			} else {
				printPass("Webhook signature", "app secret configured")
				passed++
			}

			// 4. Scheduler endpoint
			if cfg.Scheduler.Endpoint == "" {
				printWarn("Scheduler", "no endpoint configured, using built-in fixed slots")
				warned++
			} else if err := checkEndpoint(cfg.Scheduler.Endpoint); err != nil {
				printWarn("Scheduler", fmt.Sprintf("%s unreachable: %v", cfg.Scheduler.Endpoint, err))
				warned++
			} else {
				printPass("Scheduler", cfg.Scheduler.Endpoint)
				passed++
			}

			// 5. Database writable
			if cfg.History.Enabled {
				if err := checkDatabase(cfg.History.DBPath); err != nil {
					printFail("Database", err.Error())
					failed++
				} else {
					printPass("Database", cfg.History.DBPath)
					passed++
				}
			}

			// 6. Server port
			if err := checkPort(cfg.Server.Port); err != nil {
				printWarn("Server port", fmt.Sprintf("port %d may be in use: %v", cfg.Server.Port, err))
				warned++
			} else {
				printPass("Server port", fmt.Sprintf(":%d available", cfg.Server.Port))
				passed++
			}

			// Summary
			fmt.Printf("\n━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
			fmt.Printf("Results: %d passed, %d warnings, %d failed\n", passed, warned, failed)
			if failed > 0 {
				fmt.Printf("\nPlease fix the failed checks before running Citabot.\n")
				return fmt.Errorf("%d check(s) failed", failed)
			}
			if warned > 0 {
				fmt.Printf("\nCitabot should work but consider fixing the warnings.\n")
			} else {
				fmt.Printf("\nAll checks passed! Citabot is ready to run.\n")
			}
			return nil
		},
	}
}

func checkDatabase(dbPath string) error {
	dir := dbPath
	for i := len(dir) - 1; i >= 0; i-- {
		if dir[i] == '/' || dir[i] == '\\' {
			dir = dir[:i]
			break
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return fmt.Errorf("cannot open: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("cannot ping: %w", err)
	}

	// Try a write.
	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS _doctor_test (id INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("not writable: %w", err)
	}
	db.ExecContext(ctx, "DROP TABLE IF EXISTS _doctor_test")

	return nil
}

// checkEndpoint probes the scheduler URL. Any HTTP response counts as
// reachable; the gateway itself decides what status codes mean.
func checkEndpoint(endpoint string) error {
	client := &http.Client{Timeout: 5 * time.Second}
	req, err := http.NewRequest(http.MethodHead, endpoint, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func checkPort(port int) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return err
	}
	ln.Close()
	return nil
}

func printPass(check, detail string) {
	fmt.Printf("  [PASS] %-20s %s\n", check, detail)
}

func printFail(check, detail string) {
	fmt.Printf("  [FAIL] %-20s %s\n", check, detail)
}

func printWarn(check, detail string) {
	fmt.Printf("  [WARN] %-20s %s\n", check, detail)
}
