//go:build linux

package main

import (
	"flag"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/ardnew/softhpi/backend"
	"github.com/ardnew/softhpi/config"
	"github.com/ardnew/softhpi/hal/linux"
	"github.com/ardnew/softhpi/pkg/linux/pciid"
)

// candidate is a PCI function with identifiers some backend accepts.
type candidate struct {
	dev  linux.Device
	kind backend.Kind
}

// scan lists the supported functions under root. When addresses is not
// empty only those functions are returned.
func scan(root string, addresses []string) ([]candidate, error) {
	devices, err := linux.Scan(root)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}

	want := make(map[string]bool, len(addresses))
	for _, a := range addresses {
		want[a] = true
	}

	var found []candidate
	for _, dev := range devices {
		if len(want) > 0 && !want[dev.Address] {
			continue
		}
		kind, err := backend.KindOf(dev.IDs)
		if err != nil {
			continue
		}
		found = append(found, candidate{dev: dev, kind: kind})
	}
	return found, nil
}

func runList(cfg *config.Config, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	found, err := scan(cfg.Sysfs.Root, fs.Args())
	if err != nil {
		return err
	}
	if len(found) == 0 {
		fmt.Fprintln(out, "no supported adapters found")
		return nil
	}

	db := pciid.New()
	db.Load()

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ADDRESS\tKIND\tIDS\tNAME")
	for _, c := range found {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.dev.Address, c.kind, c.dev.IDs, db.Describe(c.dev.IDs))
	}
	return tw.Flush()
}
