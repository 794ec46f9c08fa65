// Command ratchetdemo builds a small lazy tensor graph on a GPU device
// opened through the default provider in package gpu, resolves it, and
// prints the resolved shape. It exits with an error when no GPU device can
// be opened.
package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/philpax/ratchet"
	"github.com/philpax/ratchet/cpubuf"
	_ "github.com/philpax/ratchet/gpu"
)

func main() {
	var verbose = flag.Bool("v", false, "enable debug logging")
	flag.Parse()

	if *verbose {
		ratchet.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	if err := run(); err != nil {
		log.Fatalf("ratchetdemo: %v", err)
	}
}

func run() error {
	device, err := ratchet.RequestDevice(ratchet.DeviceRequest{Kind: ratchet.DeviceGPU})
	if err != nil {
		return fmt.Errorf("open GPU device: %w", err)
	}
	defer device.Close()

	a, err := vector(device, []float32{-1, 0, 1, 2})
	if err != nil {
		return fmt.Errorf("build a: %w", err)
	}
	b, err := vector(device, []float32{0.5, 0.5, 0.5, 0.5})
	if err != nil {
		return fmt.Errorf("build b: %w", err)
	}

	sum, err := a.Add(b)
	if err != nil {
		return fmt.Errorf("add: %w", err)
	}
	out, err := sum.Gelu()
	if err != nil {
		return fmt.Errorf("gelu: %w", err)
	}

	if err := ratchet.Resolve(out); err != nil {
		return fmt.Errorf("resolve: %w", err)
	}

	result, err := out.To(ratchet.CPU())
	if err != nil {
		return fmt.Errorf("readback: %w", err)
	}
	fmt.Printf("gelu(a+b) shape=%v\n", result.Shape())
	return nil
}

func vector(device ratchet.Device, data []float32) (ratchet.Tensor, error) {
	buf, err := cpubuf.FromSlice(data, len(data))
	if err != nil {
		return ratchet.Tensor{}, err
	}
	return ratchet.FromData(buf, ratchet.Shape{uint32(len(data))}, ratchet.F32, device)
}
