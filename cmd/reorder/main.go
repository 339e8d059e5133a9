package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"reorder-go/internal/app"
	"reorder-go/internal/config"
	"reorder-go/internal/reorder"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates a ReorderApp. The caller must defer closeApp.
// operation identifies the CLI command being run (e.g. "sync", "item add").
func newApp(cmd *cobra.Command, operation string) (*app.ReorderApp, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	opts := []app.Option{app.WithPassphrase(readPassphrase)}
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		opts = append(opts, app.WithLogEcho(os.Stderr))
	}

	a, err := app.NewReorderApp(cmd.Context(), cfg, operation, opts...)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

// closeApp marks the operation failed when *errp is set, then closes a.
func closeApp(a *app.ReorderApp, errp *error) {
	if *errp != nil {
		a.Fail()
	}
	if err := a.Close(); err != nil && *errp == nil {
		*errp = err
	}
}

func printState(st reorder.State) {
	fmt.Printf("%s: %s\n", st.Status.Label(), st.Detail)
	if link := st.SyncLink(); link != nil {
		auto := "off"
		if st.AutoSync {
			auto = "on"
		}
		fmt.Printf("File:      %s (%s)\n", link.Name, link.Ref)
		fmt.Printf("Auto-sync: %s\n", auto)
	}
	if !st.LastSyncedAt.IsZero() {
		fmt.Printf("Last sync: %s\n", st.LastSyncedAt.Local().Format("2006-01-02 15:04:05"))
	}
}

var rootCmd = &cobra.Command{
	Use:          "reorder",
	Short:        "Household inventory with file sync",
	SilenceUsage: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		deviceID := uuid.New().String()
		cfg := config.NewConfig(deviceID, defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Device ID: %s\n", deviceID)
		fmt.Printf("Base Dir:  %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Device ID: %s\n", cfg.DeviceID)
		fmt.Printf("Base Dir:  %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:   %s\n", cfg.LogDir)
		fmt.Printf("Store:     %s %s\n", cfg.Store.Type, cfg.Store.Dir)
		fmt.Printf("Database:  %s %s\n", cfg.Database.Type, cfg.Database.DataDir)
		fmt.Printf("Debounce:  %s\n", cfg.Sync.Debounce)
		fmt.Printf("Encrypt:   %t\n", cfg.Sync.Encrypt)
		return nil
	},
}

// status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sync status",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		a, err := newApp(cmd, "status")
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		snap := a.Service().Current()
		printState(a.Status())
		fmt.Printf("Items:     %d (revision %d)\n", len(snap.Items), snap.Revision)
		return nil
	},
}

// link command
var linkCmd = &cobra.Command{
	Use:   "link REF",
	Short: "Link a sync file (path, file://, s3://bucket/key or mem://name)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		encrypt, _ := cmd.Flags().GetBool("encrypt")

		a, err := newApp(cmd, "link")
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		_, st, err := a.Link(cmd.Context(), args[0], encrypt)
		if err != nil {
			return fmt.Errorf("linking: %w", err)
		}
		printState(st)
		return nil
	},
}

var unlinkCmd = &cobra.Command{
	Use:   "unlink",
	Short: "Forget the sync file",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		a, err := newApp(cmd, "unlink")
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		a.Unlink()
		fmt.Println("Sync file unlinked.")
		return nil
	},
}

// sync command
var syncCmd = &cobra.Command{
	Use:     "sync",
	Aliases: []string{"resolve"},
	Short: "Sync with the linked file (run again after a conflict to merge)",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		a, err := newApp(cmd, "sync")
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		st := a.Sync(cmd.Context())
		if st.SyncLink() == nil {
			return reorder.ErrNotLinked
		}
		printState(st)
		if st.Status == reorder.StatusOffline {
			return fmt.Errorf("sync failed: %s", st.Detail)
		}
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View sync history",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd, "history")
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		records, err := a.History(limit)
		if err != nil {
			return err
		}

		if len(records) == 0 {
			fmt.Println("No syncs recorded.")
			return nil
		}

		for _, r := range records {
			d := r.FinishedAt.Sub(r.StartedAt).Truncate(time.Millisecond)
			fmt.Printf("#%d  %-6s  %s  %-8s  %-8s  %s\n",
				r.ID,
				r.Trigger,
				r.StartedAt.Local().Format("2006-01-02 15:04:05"),
				r.Status,
				d,
				r.Detail,
			)
		}
		return nil
	},
}

// export / import commands
var exportCmd = &cobra.Command{
	Use:   "export [FILE]",
	Short: "Write a JSON backup (stdout when FILE is omitted or -)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		a, err := newApp(cmd, "export")
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		path := "-"
		if len(args) > 0 {
			path = args[0]
		}
		if err := a.ExportBackup(path, os.Stdout); err != nil {
			return err
		}
		if path != "-" {
			fmt.Printf("Backup written to %s\n", path)
		}
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Replace the inventory with a JSON backup",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		a, err := newApp(cmd, "import")
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		snap, err := a.ImportBackup(args[0])
		if err != nil {
			return fmt.Errorf("import failed: %w", err)
		}
		fmt.Printf("Imported %d item(s), revision %d\n", len(snap.Items), snap.Revision)
		return nil
	},
}

// item command
var itemCmd = &cobra.Command{
	Use:   "item",
	Short: "Manage inventory items",
}

var itemListCmd = &cobra.Command{
	Use:   "list",
	Short: "List items",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		lowOnly, _ := cmd.Flags().GetBool("low")

		a, err := newApp(cmd, "item list")
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		snap := a.Service().Current()
		shown := 0
		for _, item := range snap.Items {
			if lowOnly && !item.IsLowStock() {
				continue
			}
			marker := " "
			if item.IsLowStock() {
				marker = "!"
			}
			buy := ""
			if n := snap.Shopping.BuyQuantityByItemID[item.ID]; n > 0 {
				buy = fmt.Sprintf("  buy %d", n)
			}
			fmt.Printf("%s %-24s %4d / low %-3d %-14s %s%s\n",
				marker, item.Name, item.Quantity, item.LowThreshold, item.Room, item.ID, buy)
			shown++
		}
		if shown == 0 {
			fmt.Println("No items.")
		}
		return nil
	},
}

var itemAddCmd = &cobra.Command{
	Use:   "add NAME",
	Short: "Add an item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		in := reorder.ItemInput{Name: args[0]}
		in.Quantity, _ = cmd.Flags().GetInt("quantity")
		in.TargetQuantity, _ = cmd.Flags().GetInt("target")
		in.Room, _ = cmd.Flags().GetString("room")
		in.SourceCategories, _ = cmd.Flags().GetStringSlice("source")
		if cmd.Flags().Changed("low") {
			low, _ := cmd.Flags().GetInt("low")
			in.LowThreshold = &low
		}

		a, err := newApp(cmd, "item add")
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		item, err := a.Service().AddItem(in)
		if err != nil {
			return err
		}
		fmt.Printf("Added %s (%s)\n", item.Name, item.ID)
		return nil
	},
}

var itemQtyCmd = &cobra.Command{
	Use:   "qty ITEM QUANTITY",
	Short: "Set an item's quantity (ITEM is an id or name)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		qty, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid quantity %q", args[1])
		}

		a, err := newApp(cmd, "item qty")
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		item, err := a.FindItem(args[0])
		if err != nil {
			return err
		}
		updated, err := a.Service().SetQuantity(item.ID, qty)
		if err != nil {
			return err
		}
		fmt.Printf("%s: %d\n", updated.Name, updated.Quantity)
		return nil
	},
}

var itemBuyCmd = &cobra.Command{
	Use:   "buy ITEM QUANTITY",
	Short: "Set how many of an item to buy (0 removes it from the list)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		qty, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid quantity %q", args[1])
		}

		a, err := newApp(cmd, "item buy")
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		item, err := a.FindItem(args[0])
		if err != nil {
			return err
		}
		return a.Service().SetBuyQuantity(item.ID, qty)
	},
}

var itemRmCmd = &cobra.Command{
	Use:   "rm ITEM",
	Short: "Remove an item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		a, err := newApp(cmd, "item rm")
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		item, err := a.FindItem(args[0])
		if err != nil {
			return err
		}
		if err := a.Service().RemoveItem(item.ID); err != nil {
			return err
		}
		fmt.Printf("Removed %s\n", item.Name)
		return nil
	},
}

// preset command
var presetCmd = &cobra.Command{
	Use:   "preset",
	Short: "Manage source and room presets",
}

func presetKind(arg string) (reorder.PresetKind, error) {
	switch kind := reorder.PresetKind(arg); kind {
	case reorder.PresetSource, reorder.PresetRoom:
		return kind, nil
	default:
		return "", fmt.Errorf("preset kind must be %q or %q", reorder.PresetSource, reorder.PresetRoom)
	}
}

var presetAddCmd = &cobra.Command{
	Use:   "add source|room LABEL",
	Short: "Add a preset label",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		kind, err := presetKind(args[0])
		if err != nil {
			return err
		}

		a, err := newApp(cmd, "preset add")
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		return a.Service().AddPreset(kind, args[1])
	},
}

var presetRmCmd = &cobra.Command{
	Use:   "rm source|room LABEL",
	Short: "Remove a preset label; items using it become unassigned",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		kind, err := presetKind(args[0])
		if err != nil {
			return err
		}

		a, err := newApp(cmd, "preset rm")
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		return a.Service().RemovePreset(kind, args[1])
	},
}

// settings command
var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Change preferences",
}

var settingsThemeCmd = &cobra.Command{
	Use:   "theme light|dark",
	Short: "Set the theme",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		a, err := newApp(cmd, "settings theme")
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		return a.Service().SetTheme(args[0])
	},
}

var settingsLowCmd = &cobra.Command{
	Use:   "low-threshold N",
	Short: "Set the default low-stock threshold for new items",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid threshold %q", args[0])
		}

		a, err := newApp(cmd, "settings low-threshold")
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		return a.Service().SetDefaultLowThreshold(n)
	},
}

// watch command
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow edits made by other processes and auto-sync them until interrupted",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(cmd, "watch")
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		if a.Status().SyncLink() != nil {
			printState(a.Service().Sync(ctx, reorder.TriggerAuto))
		}
		fmt.Println("Watching for changes, press Ctrl-C to stop.")
		return a.Watch(ctx)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Echo log lines to stderr")

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// item subcommands
	itemCmd.AddCommand(itemListCmd)
	itemListCmd.Flags().Bool("low", false, "Only show items at or below their threshold")
	itemCmd.AddCommand(itemAddCmd)
	itemAddCmd.Flags().IntP("quantity", "q", 0, "Quantity on hand")
	itemAddCmd.Flags().Int("low", 0, "Low-stock threshold (default from settings)")
	itemAddCmd.Flags().Int("target", 0, "Quantity to restock to")
	itemAddCmd.Flags().String("room", "", "Room the item is kept in")
	itemAddCmd.Flags().StringSlice("source", nil, "Where the item is bought (repeatable)")
	itemCmd.AddCommand(itemQtyCmd)
	itemCmd.AddCommand(itemBuyCmd)
	itemCmd.AddCommand(itemRmCmd)

	presetCmd.AddCommand(presetAddCmd)
	presetCmd.AddCommand(presetRmCmd)

	settingsCmd.AddCommand(settingsThemeCmd)
	settingsCmd.AddCommand(settingsLowCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(linkCmd)
	linkCmd.Flags().Bool("encrypt", false, "Encrypt the sync file with a passphrase")
	rootCmd.AddCommand(unlinkCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of syncs to show")
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(itemCmd)
	rootCmd.AddCommand(presetCmd)
	rootCmd.AddCommand(settingsCmd)
	rootCmd.AddCommand(watchCmd)
}
