package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"fyne.io/fyne/v2/app"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"kpos-print/internal/bluetooth"
	"kpos-print/internal/config"
	"kpos-print/internal/printer"
	"kpos-print/internal/registry"
)

const (
	AppVersion = "1.0.0"
	AppName    = "K.POS Print"
)

var (
	configPath string
	paperFlag  int
	debug      bool
)

// App wires the printer subsystem for one command invocation
type App struct {
	cfg      *config.Config
	printer  printer.Config
	log      *log.Logger
	manager  *printer.Manager
	executor *printer.Executor
	registry *registry.Registry
	matcher  *printer.Matcher
}

func newApp() (*App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if paperFlag != 0 {
		cfg.Paper = paperFlag
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	pcfg, err := cfg.Printer()
	if err != nil {
		return nil, err
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: debug})
	if debug {
		logger.SetLevel(log.DebugLevel)
	} else {
		logger.SetLevel(log.WarnLevel)
	}

	binding, err := bluetooth.New(bluetooth.Options{
		Encoding: pcfg.Encoding,
		Channel:  cfg.RFCOMMChannel,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}
	mgr := printer.NewManager(binding, printer.ManagerOptions{
		ScanWindow:     cfg.ScanWindow(),
		WaitForAdapter: cfg.WaitForAdapter,
		Logger:         logger,
	})
	mgr.Subscribe(func(c printer.StateChange) {
		if c.Err != nil {
			logger.Debug("printer state", "state", c.State, "device", c.Device, "err", c.Err)
			return
		}
		logger.Debug("printer state", "state", c.State, "device", c.Device)
	})

	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	return &App{
		cfg:      cfg,
		printer:  pcfg,
		log:      logger,
		manager:  mgr,
		executor: printer.NewExecutor(mgr, pcfg, logger),
		registry: registry.New(store, mgr, logger),
		matcher:  printer.NewMatcher(cfg.PrinterKeywords),
	}, nil
}

func openStore(cfg *config.Config) (registry.Store, error) {
	switch strings.ToLower(cfg.StoreBackend) {
	case config.BackendPreferences:
		return registry.NewPreferencesStore(app.NewWithID(cfg.AppID).Preferences()), nil
	case config.BackendFile:
		return registry.NewFileStore(cfg.StorePath()), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

var rootCmd = &cobra.Command{
	Use:           "kpos-print",
	Short:         "Print K.POS receipts on Bluetooth thermal printers",
	Long:          `kpos-print finds paired 58mm and 80mm ESC/POS receipt printers, remembers the one you pick and prints sales receipts on it.`,
	Version:       AppVersion,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath(), "settings file")
	rootCmd.PersistentFlags().IntVar(&paperFlag, "paper", 0, "paper width in mm (58 or 80), overrides the settings file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "log printer state changes and native calls")

	rootCmd.AddCommand(
		newScanCommand(),
		newSelectCommand(),
		newStatusCommand(),
		newUnpairCommand(),
		newPrintCommand(),
		newPreviewCommand(),
		newTestCommand(),
	)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+describe(err)))
		os.Exit(1)
	}
}

// describe prefers the user-facing message of printer errors
func describe(err error) string {
	code := printer.CodeOf(err)
	if code == printer.CodeUnknown {
		return err.Error()
	}
	if debug {
		return err.Error()
	}
	return fmt.Sprintf("%s (%s)", code.Message(), code)
}
