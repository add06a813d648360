// ant-monitor: open one ANT+ channel and print every metric observed on it
// until interrupted.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/herlein/antplus"
	"github.com/herlein/antplus/internal/antconfig"
	"github.com/herlein/antplus/internal/profile"
	"github.com/herlein/antplus/internal/transport/antusb"
)

var (
	deviceSel  = flag.String("d", "", `Dongle selector: "" (first), "#N", or "bus:addr"`)
	profileArg = flag.String("profile", "hr", "Channel profile: hr, power, fec")
	deviceID   = flag.Uint("id", 0, "Device id filter (0 = wildcard/background scan)")
	scanning   = flag.Bool("scan", true, "Enable background scan mode")
	verbose    = flag.Bool("v", false, "Verbose (debug) logging")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Open one ANT+ channel and print observed device metrics.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -profile hr\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -profile power -id 12345 -scan=false\n", os.Args[0])
	}
	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func parseProfile(s string) (profile.ChannelType, error) {
	switch s {
	case "hr":
		return profile.HeartRate, nil
	case "power":
		return profile.Power, nil
	case "fec":
		return profile.FitnessEquipment, nil
	default:
		return profile.None, fmt.Errorf("unknown profile %q (want hr, power, or fec)", s)
	}
}

func run() error {
	if *verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}
	log := logrus.NewEntry(logrus.StandardLogger())

	chType, err := parseProfile(*profileArg)
	if err != nil {
		return err
	}

	fmt.Println("Opening ANT USB stick...")
	t, err := antusb.Open(antusb.Selector(*deviceSel), log)
	if err != nil {
		return fmt.Errorf("open dongle: %w", err)
	}

	opts := antconfig.Default()
	opts.ChannelCount = 1

	session, err := antplus.New(t, opts)
	if err != nil {
		return err
	}
	session.SetLogger(log)

	if err := session.Init(); err != nil {
		return fmt.Errorf("init session: %w", err)
	}
	defer session.Shutdown()

	if err := session.Start(); err != nil {
		return fmt.Errorf("start dispatcher: %w", err)
	}

	fmt.Printf("Opening channel 0 as %s...\n", chType)
	if err := session.OpenChannel(0, chType, uint16(*deviceID), *scanning); err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	fmt.Println("Channel open. Waiting for devices (Ctrl-C to stop)...")
	fmt.Println()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-sigCh:
			fmt.Println("\nShutting down...")
			return nil
		case <-ticker.C:
			printDevices(session)
		}
	}
}

func printDevices(session *antplus.Facade) {
	devices := session.Devices(0)
	if len(devices) == 0 {
		fmt.Println("(no devices yet)")
		return
	}
	for _, d := range devices {
		fmt.Printf("%s (id=%d):\n", d.Name, d.ID.ID)
		for _, metric := range d.Metrics() {
			series := d.TimeSeries(metric)
			if len(series) == 0 {
				continue
			}
			last := series[len(series)-1]
			fmt.Printf("  %-24s %10.3f  @ %s\n", metric, last.Value, last.Timestamp.Format(time.RFC3339))
		}
	}
	fmt.Println()
}
