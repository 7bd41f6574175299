package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/wrenhall/dchwatch/internal/config"
	"github.com/wrenhall/dchwatch/internal/hnap"
	"github.com/wrenhall/dchwatch/internal/poller"
	"github.com/wrenhall/dchwatch/internal/provision"
)

// Device selection flags
var (
	deviceName string
	deviceHost string
	devicePIN  string
)

// set-detector flags
var (
	detNickName    string
	detDescription string
	detSensitivity int
	detBackoff     int
	detDisabled    bool
)

// set-time flags
var (
	tzNTPServer string
	tzOffset    float64
	tzNoDST     bool
)

// provision flags
var (
	provSSID       string
	provMAC        string
	provPassphrase string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&deviceName, "device", "", "Device name from the config file")
	rootCmd.PersistentFlags().StringVar(&deviceHost, "host", "", "Device IP address or hostname (bypasses config)")
	rootCmd.PersistentFlags().StringVar(&devicePIN, "pin", "", "6-digit device PIN (prompted if omitted)")

	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(setDetectorCmd)
	rootCmd.AddCommand(setTimeCmd)
	rootCmd.AddCommand(rebootCmd)
	rootCmd.AddCommand(provisionCmd)

	setDetectorCmd.Flags().StringVar(&detNickName, "nickname", "", "Detector nickname")
	setDetectorCmd.Flags().StringVar(&detDescription, "description", "", "Detector description")
	setDetectorCmd.Flags().IntVar(&detSensitivity, "sensitivity", hnap.DefaultSensitivity, "Motion sensitivity 0-100 (motion model only)")
	setDetectorCmd.Flags().IntVar(&detBackoff, "backoff", hnap.DefaultBackoffSeconds, "Detection backoff in seconds (motion model only)")
	setDetectorCmd.Flags().BoolVar(&detDisabled, "disable", false, "Turn the detector off instead of on")

	setTimeCmd.Flags().StringVar(&tzNTPServer, "ntp-server", hnap.DefaultNTPServer, "NTP server to push (the factory default no longer exists)")
	setTimeCmd.Flags().Float64Var(&tzOffset, "tz-offset", -6, "UTC offset in hours")
	setTimeCmd.Flags().BoolVar(&tzNoDST, "no-dst", false, "Disable daylight saving")

	provisionCmd.Flags().StringVar(&provSSID, "ssid", "", "SSID of the access point to join (required)")
	provisionCmd.Flags().StringVar(&provMAC, "mac", "", "Device MAC address from the label on the back (required)")
	provisionCmd.Flags().StringVar(&provPassphrase, "passphrase", "", "Wi-Fi passphrase (omit for an open network)")
	_ = provisionCmd.MarkFlagRequired("ssid")
	_ = provisionCmd.MarkFlagRequired("mac")
}

// resolveDevice builds a device entry from --device (config file) or
// --host/--pin, prompting for the PIN when it is missing.
func resolveDevice() (*config.Device, error) {
	if deviceName != "" {
		registry, err := config.LoadRegistry()
		if err != nil {
			return nil, err
		}
		device := registry.GetDevice(deviceName)
		if device == nil {
			return nil, fmt.Errorf("device %q not found in config file", deviceName)
		}
		return device, nil
	}

	if deviceHost == "" {
		return nil, fmt.Errorf("specify --device <name> or --host <ip>")
	}

	pin := devicePIN
	if pin == "" {
		var err error
		pin, err = promptPIN()
		if err != nil {
			return nil, err
		}
	}

	return &config.Device{Host: deviceHost, PIN: pin}, nil
}

// promptPIN reads the device PIN without echoing it
func promptPIN() (string, error) {
	fmt.Fprint(os.Stderr, "Device PIN: ")
	pin, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read PIN: %w", err)
	}
	return strings.TrimSpace(string(pin)), nil
}

func interruptibleContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// showCmd fetches and prints one data snapshot
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show device identity and last detection",
	Long: `Connect to a sensor, authenticate, and print its identity fields and
the most recent detection time.`,
	Example: `  # From the config file
  dchwatch show --device hallway

  # Ad hoc
  dchwatch show --host 10.1.1.1 --pin 123456`,
	RunE: runShow,
}

func runShow(cmd *cobra.Command, args []string) error {
	device, err := resolveDevice()
	if err != nil {
		return err
	}

	ctx, cancel := interruptibleContext()
	defer cancel()

	client := device.NewClient()
	snapshot, err := client.Data(ctx)
	if err != nil {
		fmt.Printf("%s %s\n", labelStyle.Render("Status"), renderStatus(client.Status()))
		return err
	}

	fmt.Println(headerStyle.Render(snapshot.DeviceName))
	fmt.Printf("%s %s\n", labelStyle.Render("Status"), renderStatus(client.Status()))
	fmt.Printf("%s %s\n", labelStyle.Render("Model"), snapshot.ModelName)
	fmt.Printf("%s %s\n", labelStyle.Render("MAC"), snapshot.MACAddress)
	fmt.Printf("%s %s\n", labelStyle.Render("Firmware"), snapshot.FirmwareVersion)
	fmt.Printf("%s %s\n", labelStyle.Render("Hardware"), snapshot.HardwareVersion)
	fmt.Printf("%s %s\n", labelStyle.Render("Vendor"), snapshot.VendorName)
	fmt.Printf("%s %s\n", labelStyle.Render("Last detection"), snapshot.LastDetection.Format(time.RFC1123))
	fmt.Printf("%s %s\n", labelStyle.Render("Next reboot"), client.NextRebootAt().Format(time.RFC1123))
	return nil
}

// watchCmd polls the device and prints detection events as they happen
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Poll a sensor and print detection events",
	Long: `Poll the sensor on its configured interval and print a line whenever a
new detection is reported. Runs until interrupted.

Failures are printed but not fatal; the device reboots itself nightly and
drops sessions routinely, and the poller re-authenticates as needed.`,
	Example: `  dchwatch watch --device hallway
  dchwatch watch --host 10.1.1.1 --pin 123456`,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	device, err := resolveDevice()
	if err != nil {
		return err
	}

	ctx, cancel := interruptibleContext()
	defer cancel()

	client := device.NewClient()
	p := poller.New(client, device.Interval(), device.BackoffSeconds())

	var lastSeen time.Time
	var lastFailure string
	p.AddListener(func(u poller.Update) {
		now := time.Now().Format("15:04:05")
		if u.Err != nil {
			// Only report a failure once, not every poll cycle
			if msg := u.Err.Error(); msg != lastFailure {
				lastFailure = msg
				fmt.Printf("%s %s\n", now, failedStyle.Render(msg))
			}
			return
		}
		lastFailure = ""
		if !u.Data.LastDetection.Equal(lastSeen) {
			lastSeen = u.Data.LastDetection
			fmt.Printf("%s %s at %s\n", now,
				detectionStyle.Render("detection"),
				u.Data.LastDetection.Format(time.RFC1123))
		}
	})

	fmt.Printf("Watching %s (interval %s, Ctrl-C to stop)...\n", device.Host, device.Interval())
	err = p.Run(ctx)
	if err == context.Canceled {
		return nil
	}
	return err
}

// devicesCmd lists configured devices
var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List devices from the config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := config.LoadRegistry()
		if err != nil {
			return err
		}
		if len(registry.Devices) == 0 {
			path, _ := config.GetConfigPath()
			fmt.Println("No devices configured.")
			fmt.Printf("Add entries to %s\n", path)
			return nil
		}
		names := make([]string, 0, len(registry.Devices))
		for name := range registry.Devices {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			device := registry.Devices[name]
			enabled := ""
			if !device.IsEnabled() {
				enabled = failedStyle.Render(" (disabled)")
			}
			fmt.Printf("%s %s%s\n", labelStyle.Render(name), device.Host, enabled)
		}
		return nil
	},
}

// setDetectorCmd pushes detector settings to the device
var setDetectorCmd = &cobra.Command{
	Use:   "set-detector",
	Short: "Push detector settings to a sensor",
	Long: `Authenticate and push detector settings. Motion sensors (DCH-S150) take
sensitivity and backoff; water sensors (DCH-S160) take only the on/off flag
and labels. Any other model is rejected.`,
	Example: `  dchwatch set-detector --device hallway --sensitivity 75 --backoff 60
  dchwatch set-detector --host 10.1.1.1 --pin 123456 --disable`,
	RunE: runSetDetector,
}

func runSetDetector(cmd *cobra.Command, args []string) error {
	device, err := resolveDevice()
	if err != nil {
		return err
	}

	ctx, cancel := interruptibleContext()
	defer cancel()

	client := hnap.NewClient(device.Host, device.PIN)
	client.SetDetectionSettings(&hnap.DetectionSettings{
		NickName:    detNickName,
		Description: detDescription,
		Sensitivity: detSensitivity,
		OPStatus:    !detDisabled,
		Backoff:     detBackoff,
	})

	// Login runs the initialization sequence, which pushes the settings
	if err := client.Login(ctx); err != nil {
		return err
	}

	fmt.Printf("Detector settings pushed to %s (%s)\n", device.Host, client.ModelName())
	return nil
}

// setTimeCmd pushes clock/DST settings to the device
var setTimeCmd = &cobra.Command{
	Use:   "set-time",
	Short: "Push clock and DST settings to a sensor",
	Long: `Authenticate and push NTP and timezone settings. The factory NTP server
(ntp1.dlink.com) no longer exists, so a fresh or factory-reset sensor has a
wandering clock until this is done.

DST rule fields beyond start/end defaults can be set in the config file.`,
	Example: `  dchwatch set-time --device hallway --tz-offset -5
  dchwatch set-time --host 10.1.1.1 --pin 123456 --ntp-server pool.ntp.org`,
	RunE: runSetTime,
}

func runSetTime(cmd *cobra.Command, args []string) error {
	device, err := resolveDevice()
	if err != nil {
		return err
	}

	ctx, cancel := interruptibleContext()
	defer cancel()

	ts := hnap.DefaultTimeSettings()
	ts.NTPServer = tzNTPServer
	ts.TZOffset = tzOffset
	ts.DST = !tzNoDST
	if configured := device.TimeSettings(); configured != nil {
		ts = configured
	}

	client := hnap.NewClient(device.Host, device.PIN)
	client.SetTimeSettings(ts)

	if err := client.Login(ctx); err != nil {
		return err
	}

	fmt.Printf("Time settings pushed to %s\n", device.Host)
	return nil
}

// rebootCmd reboots the device immediately
var rebootCmd = &cobra.Command{
	Use:   "reboot",
	Short: "Reboot a sensor now",
	Long: `Authenticate and issue an immediate reboot. The sensor drops off the
network for half a minute or so afterwards.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		device, err := resolveDevice()
		if err != nil {
			return err
		}

		ctx, cancel := interruptibleContext()
		defer cancel()

		client := hnap.NewClient(device.Host, device.PIN)
		if err := client.Login(ctx); err != nil {
			return err
		}
		if err := client.Reboot(ctx); err != nil {
			return err
		}
		fmt.Printf("Reboot issued to %s\n", device.Host)
		return nil
	},
}

// provisionCmd joins a factory-fresh sensor to a Wi-Fi network
var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Join a factory-fresh sensor to a Wi-Fi network",
	Long: `Push Wi-Fi client settings to a sensor that is in setup mode (acting as
its own access point).

Connect this machine to the sensor's hotspot first, then run this command
against the sensor's setup address. The PIN and MAC address are printed on
the label on the back of the device.`,
	Example: `  dchwatch provision --host 192.168.0.60 --pin 123456 \
      --mac C4:BE:84:11:22:33 --ssid HomeNet --passphrase hunter2`,
	RunE: runProvision,
}

func runProvision(cmd *cobra.Command, args []string) error {
	device, err := resolveDevice()
	if err != nil {
		return err
	}

	ctx, cancel := interruptibleContext()
	defer cancel()

	client := hnap.NewClient(device.Host, device.PIN)
	resp, err := provision.Configure(ctx, client, provision.APSettings{
		SSID:       provSSID,
		DeviceMAC:  provMAC,
		Passphrase: provPassphrase,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Access point settings pushed: %v\n", resp)
	fmt.Println("The sensor should join the network shortly; find its new address on your router.")
	return nil
}
