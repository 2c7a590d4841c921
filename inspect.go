package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"hdboot/blocktag"
	"hdboot/diskimage"
	"hdboot/ioprim"
)

func newInspectCmd() *cobra.Command {
	var (
		imagePath, formatStr, deviceStr string
		limit                           uint32
		all                             bool
	)
	cmd := &cobra.Command{
		Use:   "inspect --image <file>",
		Short: "List the tagged program blocks of a disk image",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInspect(imagePath, formatStr, deviceStr, limit, all, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&imagePath, "image", "", "disk image")
	_ = cmd.MarkFlagRequired("image")
	cmd.Flags().StringVar(&formatStr, "format", "dc42", "image format: raw|usbwidex|dc42")
	cmd.Flags().StringVar(&deviceStr, "device", "profile", "hard drive type: profile|profile-10|widget")
	cmd.Flags().Uint32Var(&limit, "limit", 0, "stop after this many blocks (0: no limit)")
	cmd.Flags().BoolVar(&all, "all", false, "keep going past the terminal block")
	return cmd
}

func runInspect(imagePath, formatStr, deviceStr string, limit uint32, all bool, out io.Writer) error {
	format, err := diskimage.ParseFormat(formatStr)
	if err != nil {
		return err
	}
	layout, err := format.Layout()
	if err != nil {
		return err
	}
	dev, err := ioprim.ParseDevice(deviceStr)
	if err != nil {
		return err
	}
	media, err := ioprim.OpenFile(imagePath, false)
	if err != nil {
		return err
	}
	defer media.Close()

	d := ioprim.NewDrive(media, layout, ioprim.Params{})
	if err := d.Setup(dev); err != nil {
		return err
	}
	if err := d.Init(); err != nil {
		return err
	}

	fmt.Fprintf(out, "%s: %d blocks\n", imagePath, d.Blocks())
	fmt.Fprintf(out, "  %-6s  %-4s  %-6s  %-18s  %s\n", "Block", "Sum", "Tag", "Message", "Note")
	buf := make([]byte, blocktag.BlockSize)
	bad := 0
	for b := uint32(0); b < d.Blocks(); b++ {
		if limit != 0 && b >= limit {
			break
		}
		if !d.Transfer(ioprim.Read, b, buf) {
			fmt.Fprintf(out, "  %-6d  read error: %v\n", b, d.LastError())
			bad++
			continue
		}
		if b < 2 {
			fmt.Fprintf(out, "  %-6d  %-4s  %-6s  %-18s  %s\n", b, "-", "-", "", "bootloader")
			continue
		}
		if err := blocktag.Swap(buf); err != nil {
			return err
		}
		tag, err := blocktag.ParseTag(buf[blocktag.DataSize:])
		if err != nil {
			return err
		}
		sum := "ok"
		if !blocktag.Verify(buf[:blocktag.DataSize], tag.Checksum) {
			sum = "BAD"
			bad++
		}
		note := ""
		if tag.IsTerminal() {
			note = "terminal"
		}
		fmt.Fprintf(out, "  %-6d  %-4s  %04X    %-18q  %s\n", b, sum, tag.Checksum, blocktag.DisplayText(tag.Message[:]), note)
		if tag.IsTerminal() && !all {
			break
		}
	}
	if bad > 0 {
		return fmt.Errorf("%d bad blocks", bad)
	}
	return nil
}
