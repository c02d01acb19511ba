// Command loopback runs a packet-stream source and sink over one shared
// region inside a single process, pushing a configurable amount of block
// traffic through the full alloc/submit/process/ack/release cycle. It is
// the transport's smoke test and micro-benchmark.
package main

import (
	"errors"
	"flag"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/strataos/packetstream/internal/alloc"
	"github.com/strataos/packetstream/internal/block"
	"github.com/strataos/packetstream/internal/config"
	"github.com/strataos/packetstream/internal/logging"
	"github.com/strataos/packetstream/internal/monitoring"
	"github.com/strataos/packetstream/internal/region"
	"github.com/strataos/packetstream/internal/shared/id"
	"github.com/strataos/packetstream/internal/stream"
)

func main() {
	packets := flag.Int("packets", 1024, "Number of packets to push through the stream")
	payload := flag.Int("payload", 4096, "Payload bytes per packet")
	metricsAddr := flag.String("metrics", "", "Serve Prometheus metrics on this address (empty: off)")
	timeout := flag.Duration("timeout", 30*time.Second, "Abort if the run has not finished by then")
	flag.Parse()

	cfg := config.LoadOrDefault()
	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
		OutputPaths: []string{"stdout"},
	})
	if err != nil {
		logger = logging.NewDefault()
	}
	defer logger.Sync()

	registry := prometheus.NewRegistry()
	metrics := monitoring.New(registry)
	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		go func() {
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				logger.Warn("metrics server stopped", zap.Error(err))
			}
		}()
	}

	streamID := id.NewStreamID()
	reg, err := region.NewAnonymous(cfg.Stream.RegionBytes)
	if err != nil {
		logger.Fatal("region setup failed", zap.Error(err))
	}

	policy := stream.Policy{SubmitSlots: cfg.Stream.SubmitSlots, AckSlots: cfg.Stream.AckSlots}
	src, err := stream.NewSource[block.Request](reg, stream.SourceConfig{
		Policy:  policy,
		Logger:  logger,
		Metrics: metrics,
	})
	if err != nil {
		logger.Fatal("source setup failed", zap.Error(err))
	}
	snk, err := stream.NewSink[block.Request](reg, stream.SinkConfig{
		Policy:  policy,
		Logger:  logger,
		Metrics: metrics,
	})
	if err != nil {
		logger.Fatal("sink setup failed", zap.Error(err))
	}

	// Session setup in miniature: each side hands the bells it waits on
	// to the other.
	src.RegisterPacketAvailBell(snk.PacketAvailBell())
	src.RegisterReadyToAckBell(snk.ReadyToAckBell())
	snk.RegisterAckAvailBell(src.AckAvailBell())
	snk.RegisterReadyToSubmitBell(src.ReadyToSubmitBell())

	logger.Info("loopback starting",
		zap.String("stream_id", streamID.String()),
		zap.Int("packets", *packets),
		zap.Int("payload", *payload),
		zap.Uint64("bulk_size", src.BulkBufferSize()))

	// The transport itself has no timeouts; the watchdog lives above it.
	watchdog := time.AfterFunc(*timeout, func() {
		logger.Fatal("loopback stalled", zap.Duration("timeout", *timeout))
	})
	defer watchdog.Stop()

	start := time.Now()
	var g errgroup.Group
	g.Go(func() error { return runSource(src, *packets, *payload) })
	g.Go(func() error { return runSink(snk, *packets) })

	if err := g.Wait(); err != nil {
		logger.Fatal("loopback failed", zap.Error(err))
	}
	elapsed := time.Since(start)

	src.Close()
	snk.Close()
	reg.Close()

	moved := int64(*packets) * int64(*payload)
	logger.Info("loopback done",
		zap.Duration("elapsed", elapsed),
		zap.Int64("bytes", moved),
		zap.Float64("mb_per_sec", float64(moved)/elapsed.Seconds()/(1<<20)))
}

// runSource drives the producer side: allocate, fill, submit, and
// release every acknowledged packet exactly once.
func runSource(src *stream.Source[block.Request], packets, payload int) error {
	reap := func(req block.Request) error {
		if !req.Succeeded() {
			return errors.New("sink reported failure")
		}
		return src.ReleasePacket(req)
	}

	outstanding := 0
	for i := 0; i < packets; i++ {
		d, err := src.AllocPacket(uint64(payload), 0)
		for err != nil {
			if !errors.Is(err, alloc.ErrAllocFailed) {
				return err
			}
			if outstanding == 0 {
				return errors.New("payload does not fit the bulk buffer")
			}
			// Bulk space is tied up in flight; reclaim before retrying.
			if rerr := reap(src.GetAckedPacket()); rerr != nil {
				return rerr
			}
			outstanding--
			d, err = src.AllocPacket(uint64(payload), 0)
		}

		buf, err := src.PacketBytes(d)
		if err != nil {
			return err
		}
		for j := range buf {
			buf[j] = byte(i)
		}

		src.SubmitPacket(block.NewRequest(d, block.Write, uint64(i), uint32(payload/512)))
		outstanding++

		for {
			req, ok := src.TryGetAckedPacket()
			if !ok {
				break
			}
			if err := reap(req); err != nil {
				return err
			}
			outstanding--
		}
		src.Wakeup()
	}

	for ; outstanding > 0; outstanding-- {
		if err := reap(src.GetAckedPacket()); err != nil {
			return err
		}
	}
	return nil
}

// runSink drives the consumer side: drain, verify payload in place,
// acknowledge.
func runSink(snk *stream.Sink[block.Request], packets int) error {
	for i := 0; i < packets; i++ {
		req := snk.GetPacket()

		buf, err := snk.PacketBytes(req.Descriptor)
		if err != nil {
			// Fatal peer misbehavior per the transport contract.
			return err
		}
		ok := true
		for _, b := range buf {
			if b != byte(req.BlockNumber) {
				ok = false
				break
			}
		}
		snk.AcknowledgePacket(req.WithSuccess(ok))
	}
	return nil
}
