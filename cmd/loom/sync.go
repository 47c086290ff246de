package main

import (
	"bytes"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/loomdb/loom/internal/secret"
	"github.com/loomdb/loom/internal/sync"
	"github.com/loomdb/loom/internal/sync/dashboard"
	"github.com/loomdb/loom/internal/sync/db"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Operation log management",
	Long: `Manage the CRDT operation log for this device.

The operation log records every entity and relation the library knows
about as ordered create operations. Other devices replay the log to
reconstruct this device's state.`,
}

var syncBackfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Rebuild the operation log from the library database",
	Long: `Regenerate this device's operation log from current relational state.

This performs a full rebuild:
  1. Deletes every operation tagged with this device's identity
  2. Re-reads devices, tags, labels, locations, objects, EXIF data,
     file paths, and tag/label memberships
  3. Writes fresh create operations for all of them

The whole rebuild runs in one transaction, so a failure leaves the
previous log untouched.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openLibrary()
		if err != nil {
			return err
		}
		defer database.Close()

		devicePubID, err := loadDeviceID()
		if err != nil {
			return err
		}

		manager := sync.NewManager(database, devicePubID, logger)
		manager.SetProgress(func(ev sync.ProgressEvent) {
			if ev.Phase == sync.ProgressTable {
				fmt.Printf("   %-20s %d\n", ev.Model, ev.Rows)
			}
		})

		fmt.Printf("🔄 Backfilling operation log for device %s...\n", devicePubID)
		start := time.Now()

		if err := manager.Backfill(cmd.Context()); err != nil {
			return fmt.Errorf("backfill failed: %w", err)
		}

		count, err := database.OperationCount(cmd.Context(), &devicePubID)
		if err != nil {
			return err
		}

		fmt.Printf("✓ Backfill complete in %v\n", time.Since(start).Round(time.Millisecond))
		fmt.Printf("   Operations: %d\n", count)
		fmt.Printf("   Database: %s\n", database.Path())
		return nil
	},
}

var syncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show operation log status",
	Long: `Display the current state of the operation log.

Shows:
  - Database location and size
  - Operation counts, total and for this device`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath := viper.GetString("db_path")

		info, err := os.Stat(dbPath)
		if os.IsNotExist(err) {
			fmt.Printf("\n⚠ Library database not initialized\n")
			fmt.Printf("   Run 'loom sync backfill' to create it\n\n")
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to check database: %w", err)
		}

		database, err := openLibrary()
		if err != nil {
			return err
		}
		defer database.Close()

		total, err := database.OperationCount(cmd.Context(), nil)
		if err != nil {
			return err
		}

		devicePubID, err := loadDeviceID()
		if err != nil {
			return err
		}
		local, err := database.OperationCount(cmd.Context(), &devicePubID)
		if err != nil {
			return err
		}

		size := info.Size()
		sizeStr := fmt.Sprintf("%d bytes", size)
		if size > 1024*1024 {
			sizeStr = fmt.Sprintf("%.1f MB", float64(size)/(1024*1024))
		} else if size > 1024 {
			sizeStr = fmt.Sprintf("%.1f KB", float64(size)/1024)
		}

		fmt.Printf("\n📊 Operation Log Status\n\n")
		fmt.Printf("Database: %s\n", dbPath)
		fmt.Printf("Size: %s\n", sizeStr)
		fmt.Printf("Device: %s\n", devicePubID)
		fmt.Printf("Operations (this device): %d\n", local)
		fmt.Printf("Operations (total): %d\n", total)
		fmt.Printf("Modified: %s\n", info.ModTime().Format("2006-01-02 15:04:05"))
		fmt.Println()
		return nil
	},
}

var syncExportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Export the operation log to a JSONL file",
	Long: `Write this device's operation log to a JSONL file, one operation
per line in log order. Useful for debugging and for feeding the log to
external tooling.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openLibrary()
		if err != nil {
			return err
		}
		defer database.Close()

		devicePubID, err := loadDeviceID()
		if err != nil {
			return err
		}

		manager := sync.NewManager(database, devicePubID, logger)
		count, err := manager.ExportToFile(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("export failed: %w", err)
		}

		fmt.Printf("✓ Exported %d operations to %s\n", count, args[0])
		return nil
	},
}

var syncDashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Run a backfill with a live WebSocket dashboard",
	Long: `Start the dashboard server, run a backfill, and keep serving.

Connected WebSocket clients receive backfill_started, table_progress,
and backfill_finished events in real time, then operation statistics.
The server keeps running after the backfill so late clients can still
read the final stats. Stop with Ctrl+C.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openLibrary()
		if err != nil {
			return err
		}
		defer database.Close()

		devicePubID, err := loadDeviceID()
		if err != nil {
			return err
		}

		server := dashboard.NewServer(&dashboard.Config{
			Port:   viper.GetInt("dashboard.port"),
			Logger: logger,
		})
		if err := server.Start(); err != nil {
			return err
		}
		defer server.Stop()

		handler := dashboard.NewHandler(server, logger)

		manager := sync.NewManager(database, devicePubID, logger)
		manager.SetProgress(handler.ProgressFunc(devicePubID))

		fmt.Printf("🚀 Dashboard listening on %s\n", server.GetAddr())
		fmt.Printf("   WebSocket: ws://%s/ws\n\n", server.GetAddr())

		if err := manager.Backfill(cmd.Context()); err != nil {
			return fmt.Errorf("backfill failed: %w", err)
		}
		fmt.Printf("✓ Backfill complete, dashboard still serving\n")
		fmt.Printf("\nPress Ctrl+C to stop\n")

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		select {
		case <-sig:
		case <-cmd.Context().Done():
		}
		return nil
	},
}

// openLibrary opens the configured database and ensures the schema.
func openLibrary() (*db.DB, error) {
	database, err := db.Open(viper.GetString("db_path"))
	if err != nil {
		return nil, fmt.Errorf("failed to open library database: %w", err)
	}
	if err := database.InitSchema(); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return database, nil
}

// loadDeviceID reads this device's identity from the configured file,
// generating and persisting a new one on first run. The raw file
// contents are held in a Protected wrapper so they never appear in
// logs if parsing fails.
func loadDeviceID() (uuid.UUID, error) {
	path := viper.GetString("device_id_file")

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		id := uuid.New()
		if mkErr := os.MkdirAll(filepath.Dir(path), 0755); mkErr != nil {
			return uuid.Nil, fmt.Errorf("failed to create identity directory: %w", mkErr)
		}
		if wrErr := os.WriteFile(path, []byte(id.String()), 0600); wrErr != nil {
			return uuid.Nil, fmt.Errorf("failed to persist device identity: %w", wrErr)
		}
		logger.Printf("generated new device identity %s", id)
		return id, nil
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to read device identity: %w", err)
	}

	identity := secret.New(raw)
	defer identity.Zeroize()

	id, err := uuid.ParseBytes(bytes.TrimSpace(identity.Expose()))
	if err != nil {
		return uuid.Nil, fmt.Errorf("device identity file %s is malformed: %w", path, err)
	}
	return id, nil
}

func init() {
	syncCmd.AddCommand(syncBackfillCmd)
	syncCmd.AddCommand(syncStatusCmd)
	syncCmd.AddCommand(syncExportCmd)
	syncCmd.AddCommand(syncDashboardCmd)
	rootCmd.AddCommand(syncCmd)
}
