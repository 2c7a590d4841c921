// hdboot
// Builds, inspects and boots fixed-disk images for the Lisa hard disk
// bootloader, in a simulated machine with an optional fullscreen console.
//
// Build:
//
//	go build -o hdboot .
package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"hdboot/machine"
)

func must(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}
}

func parseSize(s string) (int64, error) {
	ss := strings.TrimSpace(strings.ToLower(s))
	if ss == "" {
		return 0, fmt.Errorf("empty size")
	}
	if strings.HasPrefix(ss, "$") || strings.HasPrefix(ss, "0x") {
		v, err := parseAddr(ss)
		return int64(v), err
	}
	mult := int64(1)
	switch {
	case strings.HasSuffix(ss, "k"):
		mult = 1024
		ss = strings.TrimSuffix(ss, "k")
	case strings.HasSuffix(ss, "m"):
		mult = 1024 * 1024
		ss = strings.TrimSuffix(ss, "m")
	case strings.HasSuffix(ss, "b"):
		ss = strings.TrimSuffix(ss, "b")
	}
	v, err := strconv.ParseFloat(ss, 64)
	if err != nil {
		return 0, err
	}
	return int64(v * float64(mult)), nil
}

// parseAddr accepts decimal, 0x-prefixed or $-prefixed hex.
func parseAddr(s string) (uint32, error) {
	ss := strings.TrimSpace(strings.ToLower(s))
	base := 10
	switch {
	case strings.HasPrefix(ss, "$"):
		ss, base = ss[1:], 16
	case strings.HasPrefix(ss, "0x"):
		ss, base = ss[2:], 16
	}
	v, err := strconv.ParseUint(ss, base, 32)
	if err != nil {
		return 0, fmt.Errorf("bad number %q", s)
	}
	return uint32(v), nil
}

func parseBlockList(list []string) (map[uint32]bool, error) {
	out := make(map[uint32]bool)
	for _, s := range list {
		b, err := parseAddr(s)
		if err != nil {
			return nil, err
		}
		out[b] = true
	}
	return out, nil
}

func human(b int64) string {
	if b >= 1024*1024 {
		return fmt.Sprintf("%dM", b/(1024*1024))
	}
	if b >= 1024 {
		return fmt.Sprintf("%dK", b/1024)
	}
	return fmt.Sprintf("%dB", b)
}

func newRootCmd() *cobra.Command {
	var logLevel string
	root := &cobra.Command{
		Use:           "hdboot",
		Short:         "Lisa hard disk boot image builder and boot simulator",
		Long:          "Build bootable ProFile/Widget disk images, inspect their block tags, boot them in a simulated machine, and write them to emulator media",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			lvl, err := log.ParseLevel(logLevel)
			if err != nil {
				return err
			}
			log.SetLevel(lvl)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "panic|fatal|error|warn|info|debug|trace")

	root.AddCommand(newBootCmd())
	root.AddCommand(newMkimageCmd())
	root.AddCommand(newInspectCmd())
	root.AddCommand(newWriteCmd())
	return root
}

func main() {
	log.SetOutput(os.Stderr)
	err := newRootCmd().Execute()
	var me *machine.MonitorError
	if errors.As(err, &me) {
		fmt.Fprintf(os.Stderr, "boot aborted: %v\n", me)
		os.Exit(1)
	}
	must(err)
}
