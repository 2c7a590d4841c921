package main

import (
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"hdboot/blocktag"
	"hdboot/ioprim"
	"hdboot/retrodfrg"
)

func newWriteCmd() *cobra.Command {
	var (
		in, device string
		force, ui  bool
		blockSize  int
	)
	cmd := &cobra.Command{
		Use:   "write --in <image> --device <device>",
		Short: "Write an image to a block device (e.g. an emulator's CF card)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !force {
				return fmt.Errorf("--force is required for device operations")
			}
			if blockSize <= 0 {
				return fmt.Errorf("--block-size must be positive")
			}
			return writeImage(in, device, int64(blockSize), ui, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&in, "in", "", "source image file")
	cmd.Flags().StringVar(&device, "device", "", "target block device (e.g. /dev/sdb) [DANGEROUS]")
	cmd.Flags().BoolVar(&force, "force", false, "confirm device operation")
	cmd.Flags().IntVar(&blockSize, "block-size", 64*1024, "write size (bytes)")
	cmd.Flags().BoolVar(&ui, "ui", false, "show progress in a fullscreen console, one block per step")
	_ = cmd.MarkFlagRequired("in")
	_ = cmd.MarkFlagRequired("device")
	return cmd
}

func writeImage(imagePath, devicePath string, blockSize int64, ui bool, out io.Writer) error {
	src, err := os.Open(imagePath)
	if err != nil {
		return fmt.Errorf("open image: %w", err)
	}
	defer src.Close()

	imageStat, err := src.Stat()
	if err != nil {
		return fmt.Errorf("stat image: %w", err)
	}
	imageSize := imageStat.Size()

	dst, release, err := openDevice(devicePath)
	if err != nil {
		return err
	}
	defer release()
	defer dst.Close()

	deviceSize, err := ioprim.DeviceSize(dst)
	if err != nil {
		return fmt.Errorf("get device size: %w", err)
	}
	if deviceSize < imageSize {
		return fmt.Errorf("device too small: has %s, need %s", human(deviceSize), human(imageSize))
	}
	if deviceSize > imageSize {
		log.Warnf("write: device is %s, only writing %s", human(deviceSize), human(imageSize))
	}

	if ui {
		data, err := io.ReadAll(src)
		if err != nil {
			return fmt.Errorf("read image: %w", err)
		}
		u, err := retrodfrg.NewUI()
		if err != nil {
			return fmt.Errorf("console: %w", err)
		}
		defer u.Close()
		u.SetTitle(" HDBOOT WRITE ")
		u.SetSummaryLines([]string{
			fmt.Sprintf("Image:  %s (%s)", imagePath, human(imageSize)),
			fmt.Sprintf("Device: %s (%s)", devicePath, human(deviceSize)),
		})
		if err := retrodfrg.WriteBlocks(dst, data, blocktag.BlockSize, u); err != nil {
			return err
		}
		u.Close()
		fmt.Fprintf(out, "Write complete: %s written to device\n", human(imageSize))
		return nil
	}

	fmt.Fprintf(out, "Copying %s (%s) to %s...\n", imagePath, human(imageSize), devicePath)
	buf := make([]byte, blockSize)
	var totalCopied int64
	for totalCopied < imageSize {
		n, err := src.Read(buf)
		if err != nil && err != io.EOF {
			return fmt.Errorf("read image: %w", err)
		}
		if n == 0 {
			break
		}
		if _, err := dst.Write(buf[:n]); err != nil {
			return fmt.Errorf("write device: %w", err)
		}
		totalCopied += int64(n)
		if totalCopied%(blockSize*16) == 0 || totalCopied >= imageSize {
			percent := float64(totalCopied) * 100.0 / float64(imageSize)
			fmt.Fprintf(out, "\rProgress: %s / %s (%.1f%%)", human(totalCopied), human(imageSize), percent)
		}
	}

	if err := dst.Sync(); err != nil {
		return fmt.Errorf("sync device: %w", err)
	}
	fmt.Fprintf(out, "\nWrite complete: %s written to device\n", human(totalCopied))
	return nil
}
