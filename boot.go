package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"hdboot/diskimage"
	"hdboot/ioprim"
	"hdboot/loader"
	"hdboot/machine"
	"hdboot/retrodfrg"
	"hdboot/snapshot"
)

type bootOptions struct {
	image          string
	format         string
	device         string
	memory         string
	retries        int
	spareThreshold int
	failBlocks     []string
	corruptBlocks  []string
	step           uint32
	ui             bool
	delay          time.Duration
	snapshot       string
	dump           string
}

var bootPhases = []string{"Bootstrap", "Relocate", "Load", "Run"}

func newBootCmd() *cobra.Command {
	var o bootOptions
	cmd := &cobra.Command{
		Use:   "boot --image <file>",
		Short: "Boot a disk image in the simulated machine",
		Long:  "Load block 0 the way the boot ROM does, then run the bootstrap, relocator and chain loader against the image and report what the loaded program received",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBoot(o, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&o.image, "image", "", "disk image to boot")
	_ = cmd.MarkFlagRequired("image")
	cmd.Flags().StringVar(&o.format, "format", "dc42", "image format: raw|usbwidex|dc42")
	cmd.Flags().StringVar(&o.device, "device", "profile", "boot device: profile|profile-10|widget")
	cmd.Flags().StringVar(&o.memory, "memory", "1m", "RAM size (e.g. 512k, 1m, 0x100000)")
	cmd.Flags().IntVar(&o.retries, "retries", ioprim.DefaultParams.Retries, "retries per block transfer")
	cmd.Flags().IntVar(&o.spareThreshold, "spare-threshold", ioprim.DefaultParams.SpareThreshold, "attempts after which a block is recorded as spared")
	cmd.Flags().StringSliceVar(&o.failBlocks, "fail-block", nil, "make reads of these blocks fail")
	cmd.Flags().StringSliceVar(&o.corruptBlocks, "corrupt-block", nil, "flip a data byte when reading these blocks")
	cmd.Flags().Uint32Var(&o.step, "step", loader.DefaultBlockStep, "distance between program blocks")
	cmd.Flags().BoolVar(&o.ui, "ui", false, "show the display in a fullscreen console")
	cmd.Flags().DurationVar(&o.delay, "delay", 0, "pause after each block in the console")
	cmd.Flags().StringVar(&o.snapshot, "snapshot", "", "write the final display to a PNG file")
	cmd.Flags().StringVar(&o.dump, "dump", "", "write the load buffer to a file")
	return cmd
}

func runBoot(o bootOptions, out io.Writer) error {
	format, err := diskimage.ParseFormat(o.format)
	if err != nil {
		return err
	}
	layout, err := format.Layout()
	if err != nil {
		return err
	}
	dev, err := ioprim.ParseDevice(o.device)
	if err != nil {
		return err
	}
	memSize, err := parseSize(o.memory)
	if err != nil {
		return fmt.Errorf("--memory: %w", err)
	}
	if memSize <= 0 || memSize > 1<<24 {
		return fmt.Errorf("--memory: %s is outside the 24-bit address space", human(memSize))
	}
	if err := loader.CheckLayout(uint32(memSize), machine.DisplaySize, loader.ResidentSize); err != nil {
		return err
	}
	fails, err := parseBlockList(o.failBlocks)
	if err != nil {
		return fmt.Errorf("--fail-block: %w", err)
	}
	corrupts, err := parseBlockList(o.corruptBlocks)
	if err != nil {
		return fmt.Errorf("--corrupt-block: %w", err)
	}

	media, err := ioprim.OpenFile(o.image, false)
	if err != nil {
		return err
	}
	defer media.Close()
	drive := ioprim.NewDrive(media, layout, ioprim.Params{Retries: o.retries, SpareThreshold: o.spareThreshold})
	faulty := ioprim.NewFaulty(drive)
	faulty.FailBlocks = fails
	faulty.CorruptBlocks = corrupts

	mem, err := machine.NewMemory(uint32(memSize))
	if err != nil {
		return err
	}
	fw := machine.NewFirmware(mem)

	var u *retrodfrg.UI
	if o.ui {
		u, err = retrodfrg.NewUI()
		if err != nil {
			return fmt.Errorf("console: %w", err)
		}
		defer u.Close()
		u.SetTitle(" HDBOOT ")
		u.SetSummaryLines([]string{
			fmt.Sprintf("Image: %s (%s, %s)", o.image, format, dev),
			fmt.Sprintf("Memory: %s  Display at $%06X", human(memSize), mem.DisplayBase()),
		})
		u.SetPhases(bootPhases)
		u.SetStatusLines([]string{"Powering on..."})
		fw.OnDisplay = func(s *machine.Screen) {
			u.SetDisplay(s.Lines())
			u.LayoutAndDraw()
		}
		u.SetDisplay(fw.Screen.Lines())
		u.LayoutAndDraw()
	}

	if err := fw.PowerOn(faulty, dev); err != nil {
		return err
	}
	log.Infof("boot: %s image %s on a %s, %s RAM", format, o.image, dev, human(memSize))

	started := time.Now()
	cfg := loader.Config{
		Device:    dev,
		BlockStep: o.step,
		Program: func(h loader.HandleSet, load []byte) error {
			log.Infof("boot: program started with %d bytes loaded", len(load))
			if u != nil {
				u.SetPhaseDone("Load")
			}
			return nil
		},
	}
	if u != nil {
		cfg.Progress = func(p loader.Progress) error {
			u.SetPhaseDone("Bootstrap")
			u.SetPhaseDone("Relocate")
			u.SetStatusLines([]string{
				fmt.Sprintf("Block:  %d", p.Block),
				fmt.Sprintf("Loaded: %d bytes", p.Loaded),
				fmt.Sprintf("Reads:  %d  Retries: %d", drive.Stats().Reads, drive.Stats().Retries),
			})
			u.LayoutAndDraw()
			return retrodfrg.WaitWithStop(u, o.delay)
		}
	}

	res, bootErr := loader.Boot(&loader.Machine{Mem: mem, Host: fw, IO: faulty}, cfg)

	if o.snapshot != "" {
		if err := snapshot.SavePNG(o.snapshot, fw.Screen.Lines(), 2); err != nil {
			return err
		}
	}
	if o.dump != "" && res != nil && res.LoadBuffer != nil {
		if err := os.WriteFile(o.dump, res.LoadBuffer, 0o644); err != nil {
			return fmt.Errorf("dump load buffer: %w", err)
		}
	}

	summary := bootSummary(res, drive, time.Since(started))
	if u != nil {
		if bootErr == nil {
			u.SetPhaseDone("Run")
		} else {
			summary = append(summary, "Stopped: "+bootErr.Error())
		}
		u.SetStatusLines(append(summary, "Press Q to exit"))
		u.LayoutAndDraw()
		<-u.Stopped()
		u.Close()
	}

	if screen := strings.TrimRight(fw.Screen.String(), "\n"); strings.TrimSpace(screen) != "" {
		fmt.Fprintln(out, "Display:")
		for _, line := range strings.Split(screen, "\n") {
			if strings.TrimSpace(line) != "" {
				fmt.Fprintf(out, "  |%s\n", line)
			}
		}
	}
	for _, line := range summary {
		fmt.Fprintln(out, line)
	}
	return bootErr
}

func bootSummary(res *loader.Result, drive *ioprim.Drive, took time.Duration) []string {
	st := drive.Stats()
	lines := []string{}
	if res != nil {
		lines = append(lines,
			fmt.Sprintf("Relocated to $%06X", res.Target),
			fmt.Sprintf("Blocks read: %d", len(res.Blocks)),
		)
		if res.LoadBuffer != nil {
			lines = append(lines, fmt.Sprintf("Load buffer: %d bytes at $%06X", len(res.LoadBuffer), machine.LoadAddress))
		}
	}
	lines = append(lines, fmt.Sprintf("Transfers: %d reads, %d retries in %s", st.Reads, st.Retries, took.Round(time.Millisecond)))
	if sp := drive.Spared(); len(sp) > 0 {
		lines = append(lines, fmt.Sprintf("Spared blocks: %v", sp))
	}
	return lines
}
