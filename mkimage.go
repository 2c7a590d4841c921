package main

import (
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"hdboot/diskimage"
	"hdboot/ioprim"
)

type mkimageOptions struct {
	out        string
	format     string
	device     string
	blocks     string
	clip       bool
	tagsFile   string
	bootloader string
}

func newMkimageCmd() *cobra.Command {
	var o mkimageOptions
	cmd := &cobra.Command{
		Use:   "mkimage <program> --out <image>",
		Short: "Build a bootable disk image around a program",
		Long: "Place the bootloader in blocks 0 and 1 and the program from block 2 on, " +
			"one 512-byte chunk per block, each tagged with its checksum and a progress message",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMkimage(args[0], o, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&o.out, "out", "", "output image file")
	_ = cmd.MarkFlagRequired("out")
	cmd.Flags().StringVar(&o.format, "format", "dc42", "image format: dc42|blu|raw|usbwidex")
	cmd.Flags().StringVar(&o.device, "device", "profile", "hard drive type: profile|profile-10|widget")
	cmd.Flags().StringVar(&o.blocks, "blocks", "", "total blocks (default: the drive's capacity)")
	cmd.Flags().BoolVar(&o.clip, "clip", false, "make the image only as large as the program needs")
	cmd.Flags().StringVar(&o.tagsFile, "tags-file", "", "progress messages, one per line, for every program block but the last")
	cmd.Flags().StringVar(&o.bootloader, "bootloader", "", "replace the built-in bootloader")
	return cmd
}

func runMkimage(programPath string, o mkimageOptions, out io.Writer) error {
	format, err := diskimage.ParseFormat(o.format)
	if err != nil {
		return err
	}
	dev, err := ioprim.ParseDevice(o.device)
	if err != nil {
		return err
	}
	program, err := os.ReadFile(programPath)
	if err != nil {
		return fmt.Errorf("read program: %w", err)
	}
	opts := diskimage.Options{Device: dev, Clip: o.clip}
	if o.blocks != "" {
		if opts.Blocks, err = parseAddr(o.blocks); err != nil {
			return fmt.Errorf("--blocks: %w", err)
		}
	}
	if o.tagsFile != "" {
		f, err := os.Open(o.tagsFile)
		if err != nil {
			return fmt.Errorf("open tags: %w", err)
		}
		defer f.Close()
		opts.Tags = diskimage.NewFileTags(f)
	}
	if o.bootloader != "" {
		if opts.Bootloader, err = os.ReadFile(o.bootloader); err != nil {
			return fmt.Errorf("read bootloader: %w", err)
		}
	}

	img, err := diskimage.Build(program, opts)
	if err != nil {
		return err
	}
	enc, err := diskimage.Encode(img, format)
	if err != nil {
		return err
	}
	if err := os.WriteFile(o.out, enc, 0o644); err != nil {
		return fmt.Errorf("write image: %w", err)
	}
	log.Infof("mkimage: %s written", o.out)
	fmt.Fprintf(out, "%s: %s %s image, %d blocks, program %s in blocks 2-%d, %s on disk\n",
		o.out, dev, format, img.Blocks(), human(int64(len(program))), img.ProgramBlocks+1, human(int64(len(enc))))
	return nil
}
