// Package main is the CLI entry point for appguard.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/app_guard/internal/daemon"
	"github.com/eliteGoblin/focusd/app_guard/internal/domain"
	"github.com/eliteGoblin/focusd/app_guard/internal/infra"
	"github.com/eliteGoblin/focusd/app_guard/internal/policy"
)

var (
	// Version info (set via ldflags)
	Version   = "0.1.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

var nowFunc = time.Now

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "appguard",
	Short: "App guard - keeps blocked apps out of the foreground",
	Long: `appguard is a daemon that watches which application has focus and
moves you away from the ones on your block list. It survives being
killed: stopping it schedules its own restart, and it starts again at
boot or login.

Use 'appguard disable' to pause blocking. The daemon keeps running.`,
	Version:      Version,
	SilenceUsage: true,
}

var blockCmd = &cobra.Command{
	Use:   "block [app-id...]",
	Short: "Block applications",
	Long: `Adds application ids to the block list. An id is a bundle id on macOS
(com.valvesoftware.steam) or a process name on Linux (steam).
Use --preset to block a known bundle of ids.`,
	RunE: runBlock,
}

var unblockCmd = &cobra.Command{
	Use:   "unblock app-id...",
	Short: "Remove applications from the block list",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runUnblock,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List blocked applications",
	RunE:  runList,
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every application from the block list",
	RunE:  runClear,
}

var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "List block list presets",
	Run:   runPresets,
}

var enableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Turn blocking on",
	RunE:  func(cmd *cobra.Command, args []string) error { return runToggle(true) },
}

var disableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Turn blocking off (the daemon stays alive)",
	RunE:  func(cmd *cobra.Command, args []string) error { return runToggle(false) },
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start protection",
	Long: `Installs the binary and the autostart entry (systemd unit on Linux,
launchd plist on macOS), then launches the daemon if it is not running.`,
	RunE: runStart,
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running daemon (it restarts after the restart delay)",
	RunE:  runStop,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show enforcement and capability status",
	RunE:  runStatus,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Prints version, commit, and build time. Use --json for machine-readable output.`,
	Run:   runVersion,
}

// Hidden commands - used for self-exec by the daemon, restart tickets and autostart entries
var daemonCmd = &cobra.Command{
	Use:    "daemon",
	Hidden: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDaemonCmd("")
	},
}

var restartCmd = &cobra.Command{
	Use:    "restart",
	Hidden: true,
	RunE:   runRestart,
}

var bootCmd = &cobra.Command{
	Use:    "boot",
	Hidden: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDaemonCmd(domain.ReasonBootCompleted)
	},
}

var (
	presetNames   []string
	restartReason string
	restartTicket string
	jsonOutput    bool
)

func init() {
	blockCmd.Flags().StringSliceVar(&presetNames, "preset", nil, "Preset to block (see 'appguard presets')")
	restartCmd.Flags().StringVar(&restartReason, "reason", string(domain.ReasonKilled), "Restart reason")
	restartCmd.Flags().StringVar(&restartTicket, "ticket", "", "Restart ticket id")
	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")

	rootCmd.AddCommand(blockCmd, unblockCmd, listCmd, clearCmd, presetsCmd)
	rootCmd.AddCommand(enableCmd, disableCmd)
	rootCmd.AddCommand(startCmd, stopCmd, statusCmd, versionCmd)
	rootCmd.AddCommand(daemonCmd, restartCmd, bootCmd)
}

// withStore runs fn against the policy store.
func withStore(fn func(a *app, store *infra.SQLPolicyStore) error) error {
	a, err := newApp("appguard-cli")
	if err != nil {
		return err
	}
	defer a.close()

	store, err := a.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	return fn(a, store)
}

func runBlock(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && len(presetNames) == 0 {
		return fmt.Errorf("give at least one app id or --preset")
	}

	registry := policy.NewRegistry()
	presets := make([]policy.AppPreset, 0, len(presetNames))
	for _, name := range presetNames {
		p, err := registry.Get(name)
		if err != nil {
			return err
		}
		presets = append(presets, p)
	}

	return withStore(func(a *app, store *infra.SQLPolicyStore) error {
		var failed []string
		for _, id := range args {
			if store.SetBlocked(id, true) {
				fmt.Printf("Blocked %s\n", id)
			} else {
				failed = append(failed, id)
			}
		}
		for _, p := range presets {
			pf := policy.Apply(p, store)
			failed = append(failed, pf...)
			fmt.Printf("Blocked preset %s (%d ids)\n", p.Name(), len(p.ApplicationIDs())-len(pf))
		}
		if len(failed) > 0 {
			return fmt.Errorf("failed to block: %v", failed)
		}
		return nil
	})
}

func runUnblock(cmd *cobra.Command, args []string) error {
	return withStore(func(a *app, store *infra.SQLPolicyStore) error {
		var failed []string
		for _, id := range args {
			if store.SetBlocked(id, false) {
				fmt.Printf("Unblocked %s\n", id)
			} else {
				failed = append(failed, id)
			}
		}
		if len(failed) > 0 {
			return fmt.Errorf("failed to unblock: %v", failed)
		}
		return nil
	})
}

func runList(cmd *cobra.Command, args []string) error {
	return withStore(func(a *app, store *infra.SQLPolicyStore) error {
		ids := store.ListBlocked()
		sort.Strings(ids)

		fmt.Println("\n=== Blocked Applications ===")
		if len(ids) == 0 {
			fmt.Println("(none)")
		}
		for _, id := range ids {
			fmt.Printf("  - %s\n", id)
		}
		fmt.Println("============================")
		return nil
	})
}

func runClear(cmd *cobra.Command, args []string) error {
	return withStore(func(a *app, store *infra.SQLPolicyStore) error {
		if !store.Clear() {
			return fmt.Errorf("failed to clear block list")
		}
		fmt.Println("Block list cleared")
		return nil
	})
}

func runPresets(cmd *cobra.Command, args []string) {
	fmt.Println("\n=== Presets ===")
	for _, p := range policy.NewRegistry().GetAll() {
		fmt.Printf("\n[%s] %s\n", p.ID(), p.Name())
		for _, id := range p.ApplicationIDs() {
			fmt.Printf("    - %s\n", id)
		}
	}
	fmt.Println("\n===============")
}

func runToggle(enabled bool) error {
	return withStore(func(a *app, store *infra.SQLPolicyStore) error {
		if !store.SetBlockingEnabled(enabled) {
			return fmt.Errorf("failed to persist blocking toggle")
		}
		if enabled {
			fmt.Println("Blocking enabled")
		} else {
			fmt.Println("Blocking disabled")
		}
		if a.liveStatus(store) != nil {
			fmt.Printf("The running daemon picks this up within %s.\n", a.cfg.PolicySyncInterval)
		}
		return nil
	})
}

func runStart(cmd *cobra.Command, args []string) error {
	return withStore(func(a *app, store *infra.SQLPolicyStore) error {
		currentExecPath, err := os.Executable()
		if err != nil {
			return fmt.Errorf("failed to get executable path: %w", err)
		}

		// Copy binary to the install location if not already there
		binaryPath := a.mode.BinaryPath
		if currentExecPath != binaryPath {
			if err := os.MkdirAll(filepath.Dir(binaryPath), 0755); err != nil {
				fmt.Printf("Warning: Could not create binary directory: %v\n", err)
				binaryPath = currentExecPath
			} else if err := copyBinary(currentExecPath, binaryPath); err != nil {
				fmt.Printf("Warning: Could not copy binary to %s: %v\n", binaryPath, err)
				binaryPath = currentExecPath
			} else {
				fmt.Printf("Installed binary to %s\n", binaryPath)
			}
		}

		capability := infra.NewAutostartCapability(a.autostart(), binaryPath)
		if err := capability.RequestGrant(); err != nil {
			fmt.Printf("Warning: Could not install autostart entry: %v\n", err)
			fmt.Println("         (appguard will still run, but won't survive a reboot)")
		} else {
			fmt.Printf("Autostart entry: %s\n", a.autostart().GetPath())
		}

		if status := a.liveStatus(store); status != nil {
			fmt.Printf("appguard is already running (%s)\n", status.Enforcement)
			return nil
		}

		if err := daemon.Spawn(a.runner, binaryPath); err != nil {
			return err
		}

		// Wait a moment for the daemon to publish
		time.Sleep(500 * time.Millisecond)

		fmt.Println("\n=== appguard Started ===")
		fmt.Printf("Binary: %s\n", binaryPath)
		fmt.Printf("Blocking: %s\n", onOff(store.BlockingEnabled()))
		fmt.Printf("Blocked applications: %d\n", len(store.ListBlocked()))
		if !store.BlockingEnabled() {
			fmt.Println("\nBlocking is off. Run 'appguard enable' to turn it on.")
		}
		fmt.Println("\nThe daemon runs in the background and restarts if killed.")
		fmt.Println("========================")
		return nil
	})
}

func runStop(cmd *cobra.Command, args []string) error {
	return withStore(func(a *app, store *infra.SQLPolicyStore) error {
		status := a.liveStatus(store)
		if status == nil {
			fmt.Println("appguard is not running")
			return nil
		}
		if err := a.pm.Terminate(status.PID); err != nil {
			return fmt.Errorf("failed to stop daemon: %w", err)
		}
		fmt.Printf("appguard stopped. It restarts in %s.\n", a.cfg.RestartDelay)
		return nil
	})
}

func runStatus(cmd *cobra.Command, args []string) error {
	return withStore(func(a *app, store *infra.SQLPolicyStore) error {
		autostart := a.autostart()

		fmt.Println("\n=== appguard Status ===")

		status := a.liveStatus(store)
		if status == nil {
			fmt.Printf("Enforcement: %s\n", domain.StateStopped)
			capability := domain.CapabilityRevoked
			if autostart.IsInstalled() {
				capability = domain.CapabilityGranted
			}
			fmt.Printf("Capability: %s\n", capability)
			fmt.Println("\nRun 'appguard start' to enable protection.")
		} else {
			fmt.Printf("Enforcement: %s\n", status.Enforcement)
			fmt.Printf("Capability: %s\n", status.Capability)
			fmt.Printf("Daemon version: %s\n", status.AppVersion)
			fmt.Printf("Up since: %s\n", time.Unix(status.StartedAt, 0).Format(time.RFC3339))
			lastBeat := time.Unix(status.LastHeartbeat, 0)
			fmt.Printf("Last heartbeat: %s ago\n", nowFunc().Sub(lastBeat).Round(time.Second))
		}

		fmt.Println()
		fmt.Printf("Blocking: %s\n", onOff(store.BlockingEnabled()))
		fmt.Printf("Blocked applications: %d\n", len(store.ListBlocked()))
		fmt.Printf("Autostart entry: %s", autostart.GetPath())
		if autostart.IsInstalled() {
			fmt.Println()
		} else {
			fmt.Println(" (missing)")
		}
		fmt.Printf("Data: %s\n", store.Path())
		fmt.Println("=======================")
		return nil
	})
}

func runRestart(cmd *cobra.Command, args []string) error {
	reason, err := domain.ParseRestartReason(restartReason)
	if err != nil {
		return err
	}
	return runDaemonCmd(reason)
}

func runDaemonCmd(reason domain.RestartReason) error {
	a, err := newApp("appguard")
	if err != nil {
		return err
	}
	defer a.close()

	if restartTicket != "" {
		a.logger = a.logger.With(zap.String("ticket", restartTicket))
	}
	return a.runDaemon(reason)
}

func runVersion(cmd *cobra.Command, args []string) {
	if jsonOutput {
		out, _ := json.Marshal(map[string]string{
			"version":    Version,
			"commit":     Commit,
			"build_time": BuildTime,
		})
		fmt.Println(string(out))
	} else {
		fmt.Printf("appguard %s (commit: %s, built: %s)\n",
			Version, Commit, BuildTime)
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// copyBinary copies the binary file to destination using atomic write pattern.
// Writes to temp file first, syncs, chmods, then renames to avoid corruption.
func copyBinary(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	tmpFile, err := os.CreateTemp(filepath.Dir(dst), ".appguard-tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err = io.Copy(tmpFile, sourceFile); err != nil {
		tmpFile.Close()
		return err
	}
	if err = tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return err
	}
	tmpFile.Close()

	if err = os.Chmod(tmpPath, 0755); err != nil {
		return err
	}
	if err = os.Rename(tmpPath, dst); err != nil {
		return err
	}

	success = true
	return nil
}
