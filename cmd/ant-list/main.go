// ant-list: list connected ANT USB dongles.
//
// This tool enumerates all ANT USB sticks connected to the system and
// displays their bus/address, mirroring the teacher's lsys1 tool for the
// ANT dongle family.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/google/gousb"

	"github.com/herlein/antplus/internal/transport/antusb"
)

func main() {
	verbose := flag.Bool("v", false, "Verbose output")
	flag.Parse()

	if err := run(*verbose); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(verbose bool) error {
	ctx := gousb.NewContext()
	defer ctx.Close()

	devices, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		if desc.Vendor != gousb.ID(antusb.VendorID) {
			return false
		}
		switch gousb.ID(desc.Product) {
		case gousb.ID(antusb.ProductIDStick2), gousb.ID(antusb.ProductIDStick3), gousb.ID(antusb.ProductIDStickMini):
			return true
		default:
			return false
		}
	})
	if err != nil {
		return fmt.Errorf("enumerate devices: %w", err)
	}
	defer func() {
		for _, d := range devices {
			d.Close()
		}
	}()

	if len(devices) == 0 {
		fmt.Println("No ANT USB sticks found")
		return nil
	}

	fmt.Printf("Found %d ANT USB stick(s):\n\n", len(devices))
	for i, d := range devices {
		serial, _ := d.SerialNumber()
		product, _ := d.Product()
		manufacturer, _ := d.Manufacturer()

		if verbose {
			fmt.Printf("Device #%d:\n", i)
			fmt.Printf("  Bus:Address:  %d:%d\n", d.Desc.Bus, d.Desc.Address)
			fmt.Printf("  Serial:       %s\n", serial)
			fmt.Printf("  Manufacturer: %s\n", manufacturer)
			fmt.Printf("  Product:      %s\n", product)
			fmt.Println()
		} else {
			fmt.Printf("  #%d  %d:%d  %s\n", i, d.Desc.Bus, d.Desc.Address, serial)
		}
	}

	if !verbose {
		fmt.Println()
		fmt.Println("Use -d with ant-monitor/ant-dump to select a device:")
		fmt.Println(`  -d "#0"    Select by index`)
		fmt.Println(`  -d "1:10"  Select by bus:address`)
	}
	return nil
}
