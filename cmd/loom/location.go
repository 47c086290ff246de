package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/loomdb/loom/internal/location"
)

var locationCmd = &cobra.Command{
	Use:   "location",
	Short: "Location metadata tooling",
	Long: `Inspect and watch the metadata sidecar files that tie directories
on disk back to the libraries that indexed them.`,
}

var locationInspectCmd = &cobra.Command{
	Use:   "inspect <path>",
	Short: "Show a location's metadata sidecar",
	Long: `Read and display the metadata sidecar of a location directory.

Corrupt sidecars are handled per the metadata.recovery config value:
strict reports an error, self-heal deletes the file and reports the
location as unregistered.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		meta, err := location.TryLoad(args[0], recoveryMode())
		if err != nil {
			return err
		}
		if meta == nil {
			fmt.Printf("\n⚠ No location metadata at %s\n\n", args[0])
			return nil
		}

		devicePubID, err := loadDeviceID()
		if err != nil {
			return err
		}

		fmt.Printf("\n📁 Location Metadata\n\n")
		fmt.Printf("Sidecar: %s\n", meta.Path())
		if meta.HasLibrary(devicePubID) {
			pubID, err := meta.LocationPubID(devicePubID)
			if err != nil {
				return err
			}
			fmt.Printf("Registered by this device's library: yes\n")
			fmt.Printf("Location sync id: %s\n", pubID)
		} else {
			fmt.Printf("Registered by this device's library: no\n")
		}
		fmt.Println()
		return nil
	},
}

var locationWatchCmd = &cobra.Command{
	Use:   "watch <path> [path...]",
	Short: "Watch location sidecars for external changes",
	Long: `Watch one or more location directories and report external changes
to their metadata sidecars: another process creating, rewriting, or
deleting the sidecar file. Stop with Ctrl+C.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		watcher, err := location.NewWatcher()
		if err != nil {
			return err
		}
		if err := watcher.Start(args...); err != nil {
			return err
		}
		defer watcher.Stop()

		fmt.Printf("👀 Watching %d location(s) for sidecar changes\n", len(args))
		fmt.Printf("\nPress Ctrl+C to stop\n\n")

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

		for {
			select {
			case ev, ok := <-watcher.Events():
				if !ok {
					return nil
				}
				logger.Printf("sidecar %s: %s", ev.Op, ev.LocationPath)
				fmt.Printf("%s  %s\n", ev.Op, ev.LocationPath)
			case err, ok := <-watcher.Errors():
				if !ok {
					return nil
				}
				logger.Printf("watch error: %v", err)
			case <-sig:
				return nil
			case <-cmd.Context().Done():
				return nil
			}
		}
	},
}

func init() {
	locationCmd.AddCommand(locationInspectCmd)
	locationCmd.AddCommand(locationWatchCmd)
	rootCmd.AddCommand(locationCmd)
}
