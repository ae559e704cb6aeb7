// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"image"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ntios/peripherald/pkg/channel"
	"github.com/ntios/peripherald/pkg/device"
	"github.com/ntios/peripherald/pkg/tablet"
	"github.com/ntios/peripherald/pkg/touch"
)

var (
	recordDuration int
	replayFast     bool
	replayCutoff   time.Duration
)

var recordCmd = &cobra.Command{
	Use:   "record FILE",
	Short: "Record the peripheral's event stream to a capture file",
	Long: `Record every chunk read from (and written to) the peripheral, with its
original timing and boundaries, as a CBOR sequence.

Recording stops on Ctrl+C or after --duration seconds. Captures can be
inspected with 'replay' or fed to any command with --from.`,
	Args: cobra.ExactArgs(1),
	RunE: runRecord,
}

var replayCmd = &cobra.Command{
	Use:   "replay FILE",
	Short: "Replay a capture through the touch classifier",
	Long: `Decode a capture file and classify its touches into press, release,
click and drag gestures using the recorded timing.

By default chunks are released at their recorded pace. --fast replays as
quickly as possible; gestures are still classified on recorded time.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(recordCmd, replayCmd)
	recordCmd.Flags().IntVar(&recordDuration, "duration", 0, "Stop after N seconds (0 records until Ctrl+C)")
	replayCmd.Flags().BoolVar(&replayFast, "fast", false, "Replay without waiting between chunks")
	replayCmd.Flags().DurationVar(&replayCutoff, "cutoff", touch.DefaultCutoff, "Tap/drag cutoff")
}

func runRecord(cmd *cobra.Command, args []string) error {
	ch, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}

	f, err := os.Create(args[0])
	if err != nil {
		ch.Close()
		return err
	}
	defer f.Close()

	rec := channel.NewRecorder(ch, f)
	dev := device.New(rec, deviceConfig())
	defer dev.Close()

	fmt.Printf("Peripherald - Record\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Capture: %s\n", args[0])
	fmt.Printf("Press Ctrl+C to stop\n\n")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if recordDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(recordDuration)*time.Second)
		defer cancel()
	}

	events := make(chan tablet.Event, 100)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(events)
		return pollEvents(ctx, dev, events)
	})
	g.Go(func() error {
		for evt := range events {
			fmt.Print(tablet.FormatEvent(evt))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	if err := rec.Err(); err != nil {
		return err
	}
	fmt.Printf("\nRecorded %d chunks to %s\n", rec.Chunks(), args[0])
	return nil
}

// gesturePrinter prints classifier callbacks with the recorded time
type gesturePrinter struct {
	now time.Time
}

func (g *gesturePrinter) print(name string, detail string) {
	fmt.Printf("[%s] %-8s %s\n", g.now.Format("15:04:05.000"), name, detail)
}

func (g *gesturePrinter) OnPress(p tablet.Point)   { g.print("PRESS", tablet.FormatPoint(p)) }
func (g *gesturePrinter) OnRelease(p tablet.Point) { g.print("RELEASE", tablet.FormatPoint(p)) }
func (g *gesturePrinter) OnClick(p tablet.Point)   { g.print("CLICK", tablet.FormatPoint(p)) }
func (g *gesturePrinter) OnDrag(from, to tablet.Point) {
	g.print("DRAG", tablet.FormatPoint(from)+" -> "+tablet.FormatPoint(to))
}

func runReplay(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}
	defer f.Close()

	chunks, err := channel.ReadCapture(f)
	if err != nil {
		return err
	}

	fmt.Printf("Peripherald - Replay\n")
	fmt.Printf("Capture: %s (%d chunks)\n\n", args[0], len(chunks))

	in := make(chan channel.Chunk, 100)

	var g errgroup.Group
	g.Go(func() error { return classifyChunks(in) })
	g.Go(func() error { return releaseChunks(in, chunks, !replayFast) })

	return g.Wait()
}

// releaseChunks sends the inbound chunks to out, sleeping between them
// when paced
func releaseChunks(out chan<- channel.Chunk, chunks []channel.Chunk, paced bool) error {
	defer close(out)
	var last time.Time
	for _, c := range chunks {
		if c.Direction != channel.Inbound {
			continue
		}
		if paced && !last.IsZero() {
			time.Sleep(c.Time().Sub(last))
		}
		last = c.Time()
		out <- c
	}
	return nil
}

// classifyChunks decodes chunks and runs touches through the classifier on
// recorded time
func classifyChunks(in <-chan channel.Chunk) error {
	decoder := tablet.NewDecoder()
	stats := tablet.NewStatistics()
	printer := &gesturePrinter{}
	classifier := touch.NewClassifier(touch.WithCutoff(replayCutoff))
	classifier.Add(image.Rectangle{}, printer)

	for c := range in {
		printer.now = c.Time()
		stats.BytesIn += uint64(len(c.Data))
		for _, evt := range decoder.Feed(c.Data) {
			stats.RecordEvent(evt)
			switch e := evt.(type) {
			case tablet.TouchEvent:
				classifier.Update(e.Points, c.Time())
			case tablet.BatteryEvent:
				printer.print("BATTERY", fmt.Sprintf("%.2f V, %+.3f A", e.Voltage, e.Current))
			case tablet.KeyPressEvent:
				printer.print("KEY", "")
			}
		}
	}

	stats.SkippedBytes = decoder.Skipped()
	fmt.Println()
	fmt.Print(stats.String())
	return nil
}
