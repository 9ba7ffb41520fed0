// File: cmd/ringpump/main.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// ringpump pushes messages through a transfer ring to an in-process
// consumer that reads them back through the region descriptors and
// acknowledges out of order. It prints ring metrics when done.

package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/momentics/hioload-ring/api"
	"github.com/momentics/hioload-ring/control"
	"github.com/momentics/hioload-ring/pool"
	"github.com/momentics/hioload-ring/transfer"
)

var (
	capacity = flag.Uint64("capacity", transfer.DefaultCapacity, "ring capacity in bytes (power of two)")
	messages = flag.Int("messages", 10000, "messages to send")
	size     = flag.Int("size", 1500, "maximum message size in bytes")
	streams  = flag.Int("streams", 4, "number of streams")
	shm      = flag.String("shm", "", "directory for a shared memory segment (empty = heap)")
	wire     = flag.String("wire", "binary", "region list encoding: binary or proto")
	seed     = flag.Int64("seed", 1, "random seed for sizes and ack order")
	cpu      = flag.Int("cpu", -1, "pin the ring loop to this CPU (-1 = no pinning)")
	debug    = flag.Bool("debug", false, "debug logging")
)

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "ringpump:", err)
		os.Exit(1)
	}
}

func run() error {
	log, err := newLogger(*debug)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	plane := control.NewPlane()
	if err := plane.SetConfig(map[string]any{transfer.KeyCapacity: *capacity}); err != nil {
		return err
	}
	cfg, err := transfer.ConfigFromStore(plane.Config())
	if err != nil {
		return err
	}

	backing, err := newBacking(*shm, int(cfg.Capacity))
	if err != nil {
		return err
	}
	arena, err := pool.NewArena(backing, cfg.Capacity, pool.WithArenaLogger(log))
	if err != nil {
		return multierr.Append(err, backing.Close())
	}
	defer arena.Close()

	w, err := transfer.NewWriter(arena, cfg,
		transfer.WithLogger(log.Named("writer")),
		transfer.WithMetrics(plane.Metrics()))
	if err != nil {
		return err
	}

	link := newLink(*wire)
	ext := transfer.NewExtensionCache(pool.DefaultManager().GetPool(cfg.ExtensionBufferSize), cfg.ExtensionBufferSize)
	d, err := transfer.NewDriver(w, link,
		transfer.WithDriverLogger(log.Named("driver")),
		transfer.WithExtensionCache(ext),
		transfer.WithCPU(*cpu),
		transfer.WithFaultHandler(func(err error) { log.Error("channel fault", zap.Error(err)) }))
	if err != nil {
		return err
	}
	d.RegisterProbes(plane.Probes(), "ring")
	d.Start()
	shutdown := func(cause error) error {
		link.Close()
		return multierr.Append(cause, d.Stop())
	}

	rng := rand.New(rand.NewSource(*seed))
	reader := newConsumer(arena, link, d, rng.Int63())
	go reader.run(ctx)

	sent := make(map[uint64][]byte)
	done := make(chan error, 64)
	started := time.Now()
	for i := 0; i < *messages; i++ {
		streamID := uint64(i % *streams)
		msg := make([]byte, 1+rng.Intn(*size))
		rng.Read(msg)
		sent[streamID] = append(sent[streamID], msg...)
		for {
			err := d.Write(msg, streamID, func(err error) { done <- err })
			if err == nil {
				break
			}
			if !errors.Is(err, api.ErrResourceExhausted) {
				return shutdown(err)
			}
			time.Sleep(50 * time.Microsecond)
		}
	}

	for i := 0; i < *messages; i++ {
		select {
		case err := <-done:
			if err != nil {
				return shutdown(err)
			}
		case <-ctx.Done():
			return shutdown(ctx.Err())
		}
	}
	elapsed := time.Since(started)

	// the consumer reads ring memory in place, so it must be done before
	// the lease goes back to the arena
	reader.waitIdle(ctx)
	if err := d.CloseWrite(); err != nil {
		return shutdown(err)
	}
	if err := shutdown(nil); err != nil {
		return err
	}

	for id, want := range sent {
		if !bytes.Equal(want, reader.stream(id)) {
			return fmt.Errorf("stream %d corrupted", id)
		}
	}

	total := 0
	for _, b := range sent {
		total += len(b)
	}
	log.Info("transfer complete",
		zap.Int("messages", *messages),
		zap.Int("bytes", total),
		zap.Duration("elapsed", elapsed),
		zap.Uint64("capacity", cfg.Capacity),
		zap.String("wire", *wire),
		zap.Any("indices", d.Indices()))

	printStats(plane.Stats(), arena.Stats())
	return nil
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func newBacking(dir string, size int) (pool.Backing, error) {
	if dir == "" {
		return pool.NewHeapBacking(size), nil
	}
	return pool.NewSharedBacking(dir, size)
}

func printStats(stats map[string]any, arena pool.ArenaStats) {
	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("%-48s %v\n", k, stats[k])
	}
	fmt.Printf("%-48s %+v\n", "arena", arena)
}
