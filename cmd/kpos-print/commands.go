package main

import (
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"kpos-print/internal/imaging"
	"kpos-print/internal/printer"
	"kpos-print/internal/receipt"
)

func newScanCommand() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "List paired printers and discover nearby ones",
		Long: `Runs one Bluetooth discovery window and lists paired devices and newly
found devices. Only names that look like receipt printers are shown unless
--all is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, dimStyle.Render(fmt.Sprintf("Scanning for %s...", a.cfg.ScanWindow())))

			res, err := a.manager.ScanDevices(cmd.Context())
			if err != nil {
				return err
			}
			paired, found := res.Paired, res.Found
			if !all {
				paired, found = a.matcher.Filter(paired), a.matcher.Filter(found)
			}

			selected, _ := a.registry.Get()
			listDevices(out, "Paired", paired, selected)
			listDevices(out, "Found", found, selected)
			if len(found) > 0 {
				fmt.Fprintln(out, dimStyle.Render("Pair found devices in the system Bluetooth settings, then run select."))
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&all, "all", "a", false, "show every device, not just printers")
	return cmd
}

func listDevices(w io.Writer, title string, devices []printer.BluetoothDevice, selected *printer.BluetoothDevice) {
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("%s (%d)", title, len(devices))))
	if len(devices) == 0 {
		fmt.Fprintln(w, dimStyle.Render("  none"))
		return
	}
	for _, d := range devices {
		mark := "  "
		if selected != nil && strings.EqualFold(selected.Address, d.Address) {
			mark = okStyle.Render("* ")
		}
		name := d.Name
		if name == "" {
			name = dimStyle.Render("(no name)")
		}
		fmt.Fprintf(w, "%s%-20s %s\n", mark, d.Address, name)
	}
}

func newSelectCommand() *cobra.Command {
	var check bool
	cmd := &cobra.Command{
		Use:   "select <address>",
		Short: "Remember a paired printer for printing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			paired, err := a.manager.PairedDevices(ctx)
			if err != nil {
				return err
			}
			var dev *printer.BluetoothDevice
			for i := range paired {
				if strings.EqualFold(paired[i].Address, args[0]) {
					dev = &paired[i]
					break
				}
			}
			if dev == nil {
				return printer.NewError(printer.CodeDeviceNotFound, fmt.Errorf("%s is not paired", args[0]))
			}
			if !a.matcher.Match(dev.Name) {
				fmt.Fprintln(cmd.ErrOrStderr(), warnStyle.Render(fmt.Sprintf("%q does not look like a receipt printer", dev.Name)))
			}

			if check {
				if err := a.manager.Connect(ctx, *dev); err != nil {
					return err
				}
				a.manager.Disconnect(ctx)
			}

			if err := a.registry.Save(*dev); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("Selected "+dev.String()))
			return nil
		},
	}
	cmd.Flags().BoolVar(&check, "check", false, "open and close a connection before saving")
	return cmd
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the selected printer and paper settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			ctx := cmd.Context()

			fmt.Fprintln(out, titleStyle.Render(AppName))
			fmt.Fprintf(out, "Paper     %dmm, %d chars, %d dots, %s\n",
				a.printer.Paper, a.printer.CharsPerLine, a.printer.DeviceWidth, a.printer.Encoding)

			on, err := a.manager.Enabled(ctx)
			switch {
			case err != nil:
				fmt.Fprintln(out, "Bluetooth "+warnStyle.Render(describe(err)))
			case on:
				fmt.Fprintln(out, "Bluetooth "+okStyle.Render("on"))
			default:
				fmt.Fprintln(out, "Bluetooth "+warnStyle.Render("off"))
			}

			dev, err := a.registry.Load(ctx)
			if err != nil {
				return err
			}
			if dev == nil {
				fmt.Fprintln(out, "Printer   "+dimStyle.Render("none selected"))
				return nil
			}
			fmt.Fprintln(out, "Printer   "+okStyle.Render(dev.String()))
			return nil
		},
	}
}

func newUnpairCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "unpair",
		Short: "Forget the selected printer and remove its pairing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			dev, err := a.registry.Get()
			if err != nil {
				return err
			}
			if dev == nil {
				fmt.Fprintln(cmd.OutOrStdout(), dimStyle.Render("No printer selected"))
				return nil
			}

			unpairErr := a.manager.Unpair(cmd.Context(), dev.Address)
			// the selection goes even when the OS refused, a half-removed bond is not usable
			if err := a.registry.Clear(); err != nil {
				return err
			}
			if unpairErr != nil {
				return unpairErr
			}
			fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("Removed "+dev.String()))
			return nil
		},
	}
}

func newPrintCommand() *cobra.Command {
	var noLogo bool
	cmd := &cobra.Command{
		Use:   "print <transaction.json|->",
		Short: "Print a receipt for a ledger transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			tx, err := readTransaction(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			var logo image.Image
			if !noLogo {
				if logo, err = a.logo(); err != nil {
					return err
				}
			}
			return a.print(cmd, tx, logo)
		},
	}
	cmd.Flags().BoolVar(&noLogo, "no-logo", false, "skip the logo from the settings file")
	return cmd
}

func newPreviewCommand() *cobra.Command {
	var pngPath string
	cmd := &cobra.Command{
		Use:   "preview <transaction.json|->",
		Short: "Show a receipt as it would be printed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			tx, err := readTransaction(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			lines := receipt.Lines(receipt.Format(tx), a.printer.CharsPerLine)
			fmt.Fprintln(cmd.OutOrStdout(), paperStyle.Render(strings.Join(lines, "\n")))

			if pngPath == "" {
				return nil
			}
			logo, err := a.logo()
			if err != nil {
				return err
			}
			img, err := imaging.RenderReceipt(lines, imaging.RenderOptions{
				Columns: a.printer.CharsPerLine,
				Width:   a.printer.DeviceWidth,
				Logo:    logo,
				Margin:  16,
			})
			if err != nil {
				return err
			}
			if err := writePNG(pngPath, img); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), dimStyle.Render("Wrote "+pngPath))
			return nil
		},
	}
	cmd.Flags().StringVar(&pngPath, "png", "", "also render the receipt to a PNG file")
	return cmd
}

func newTestCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Print a sample receipt on the selected printer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			return a.print(cmd, sampleSale(time.Now()), nil)
		},
	}
}

// print formats tx and sends it to the selected printer
func (a *App) print(cmd *cobra.Command, tx receipt.Transaction, logo image.Image) error {
	if err := tx.Validate(); err != nil {
		return err
	}
	dev, err := a.registry.Load(cmd.Context())
	if err != nil {
		return err
	}

	cmds := receipt.Format(tx)
	res := a.executor.PrintReceipt(cmd.Context(), dev, cmds, logo)
	if !res.Success {
		return res.Err
	}
	fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render(fmt.Sprintf("Printed %s on %s", receipt.ShortID(tx.ID), dev)))
	return nil
}

func (a *App) logo() (image.Image, error) {
	if a.cfg.Logo == "" {
		return nil, nil
	}
	return imaging.LoadImage(a.cfg.Logo)
}

func readTransaction(stdin io.Reader, name string) (receipt.Transaction, error) {
	var tx receipt.Transaction
	r := stdin
	if name != "-" {
		f, err := os.Open(name)
		if err != nil {
			return tx, fmt.Errorf("open transaction: %w", err)
		}
		defer f.Close()
		r = f
	}
	if err := json.NewDecoder(r).Decode(&tx); err != nil {
		return tx, fmt.Errorf("decode transaction: %w", err)
	}
	return tx, nil
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode png: %w", err)
	}
	return f.Close()
}

// sampleSale is a small cash sale for checking paper, encoding and alignment
func sampleSale(now time.Time) receipt.Transaction {
	return receipt.Transaction{
		ID:        uuid.NewString(),
		Kind:      receipt.KindSale,
		StoreName: AppName,
		CreatedAt: now,
		Items: []receipt.LineItem{
			{Name: "Kopi Susu", Qty: 2, UnitPrice: decimal.NewFromInt(18000), LineTotal: decimal.NewFromInt(36000)},
			{Name: "Roti Bakar Cokelat Keju", Qty: 1, UnitPrice: decimal.NewFromInt(22000), LineTotal: decimal.NewFromInt(22000)},
			{Name: "Air Mineral", Qty: 3, UnitPrice: decimal.NewFromInt(4000), LineTotal: decimal.NewFromInt(12000)},
		},
		Total: decimal.NewFromInt(70000),
		Payment: &receipt.Payment{
			CashReceived: decimal.NewFromInt(100000),
			Change:       decimal.NewFromInt(30000),
		},
	}
}
