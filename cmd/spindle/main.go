// Package main provides the spindle command line tool.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/spindle-gpu/spindle/compute"
	"github.com/spindle-gpu/spindle/driver"
	"github.com/spindle-gpu/spindle/driver/soft"
)

const version = "v0.1.0-dev"

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}
	switch os.Args[1] {
	case "version":
		fmt.Printf("spindle %s\n", version)
	case "devices":
		os.Exit(cmdDevices(os.Args[2:]))
	case "probe":
		os.Exit(cmdProbe(os.Args[2:]))
	default:
		fmt.Fprintf(os.Stderr, "spindle: unknown command %q\n\n", os.Args[1])
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Println("spindle - host-side parallel compute for Go")
	fmt.Printf("Version: %s\n\n", version)
	fmt.Println("Commands:")
	fmt.Println("  version    Show version")
	fmt.Println("  devices    List drivers, platforms and devices")
	fmt.Println("  probe      Run a write/fill/copy/read round trip")
	fmt.Println("")
	fmt.Printf("Both devices and probe take -driver (%s).\n", driverChoices())
}

func driverChoices() string {
	if nativeName == "" {
		return "soft or auto"
	}
	return "soft, " + nativeName + " or auto"
}

// pickDriver resolves a -driver value. auto prefers the platform's
// native driver when it is actually usable and falls back to soft.
func pickDriver(name string) (driver.Driver, error) {
	switch {
	case name == "soft":
		return soft.New(), nil
	case name == "auto":
		if nd := nativeDriver(); nd != nil && nd.Available() {
			return nd, nil
		}
		return soft.New(), nil
	case name == nativeName && nativeName != "":
		return nativeDriver(), nil
	}
	return nil, fmt.Errorf("unknown driver %q (want %s)", name, driverChoices())
}

func allDrivers() []driver.Driver {
	ds := []driver.Driver{soft.New()}
	if nd := nativeDriver(); nd != nil {
		ds = append(ds, nd)
	}
	return ds
}

func cmdDevices(args []string) int {
	fs := flag.NewFlagSet("devices", flag.ExitOnError)
	name := fs.String("driver", "all", "driver to list: all, "+driverChoices())
	fs.Parse(args)

	var drivers []driver.Driver
	if *name == "all" {
		drivers = allDrivers()
	} else {
		d, err := pickDriver(*name)
		if err != nil {
			fmt.Fprintln(os.Stderr, "spindle:", err)
			return 2
		}
		drivers = []driver.Driver{d}
	}

	for _, d := range drivers {
		fmt.Printf("Driver %s:", d.Name())
		if !d.Available() {
			fmt.Println(" not available")
			continue
		}
		fmt.Println()
		listPlatforms(d)
	}
	return 0
}

func listPlatforms(d driver.Driver) {
	platforms, err := compute.Platforms(d)
	if err != nil {
		fmt.Printf("  platforms: %v\n", err)
		return
	}
	for i, p := range platforms {
		fmt.Printf("  Platform %d: %s\n", i, p.Report())
		devs, err := p.Devices(driver.DeviceAll)
		if err != nil {
			fmt.Printf("    devices: %v\n", err)
			continue
		}
		for j, dev := range devs {
			fmt.Printf("    Device %d:\n%s\n", j, indent(dev.Report(), "      "))
		}
	}
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}

func cmdProbe(args []string) int {
	fs := flag.NewFlagSet("probe", flag.ExitOnError)
	name := fs.String("driver", "auto", "driver to probe: "+driverChoices())
	fs.Parse(args)

	drv, err := pickDriver(*name)
	if err != nil {
		fmt.Fprintln(os.Stderr, "spindle:", err)
		return 2
	}
	if err := runProbe(drv); err != nil {
		fmt.Fprintln(os.Stderr, "spindle: probe failed:", err)
		return 1
	}
	fmt.Println("probe ok")
	return 0
}

// runProbe opens a session and pushes one kilobyte through the full
// transfer surface: host write at creation, device fill, device copy
// and a blocking read back.
func runProbe(drv driver.Driver) error {
	sess, err := compute.Open(drv)
	if err != nil {
		return err
	}
	defer sess.Release()

	devName, _ := compute.Maybe(sess.Device.Name())
	fmt.Printf("probing driver %s, device %s\n", drv.Name(), devName)

	const n = 1 << 10
	src := compute.NewHostMem(n)
	pattern := src.Bytes()
	for i := range pattern {
		pattern[i] = byte(i % 251)
	}
	dst := compute.NewHostMem(n)

	return compute.WithRelease(func(s *compute.Scope) error {
		a, err := sess.Context.CreateBufferFrom(src)
		if err != nil {
			return err
		}
		s.Add(a)
		b, err := sess.Context.CreateBuffer(n)
		if err != nil {
			return err
		}
		s.Add(b)

		if err := sess.Queue.Chain().
			Fill(b, []byte{0xEE}).
			Copy(a, b, n).
			Read(b, dst).
			Finish(); err != nil {
			return err
		}
		if !bytes.Equal(dst.Bytes(), src.Bytes()) {
			return fmt.Errorf("read back %d bytes, content mismatch", n)
		}
		return nil
	})
}
