package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/corewire/secchan"
	"github.com/corewire/secchan/observability/prom"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout io.Writer, stderr io.Writer) int {
	logger := log.New(stderr, "", log.LstdFlags)

	listen := envString("SECCHAN_LISTEN", "127.0.0.1:0")
	metricsListen := envString("SECCHAN_METRICS_LISTEN", "")
	maxPackageSize := envUint("SECCHAN_MAX_PACKAGE_SIZE", 0)
	noCompress := envBool("SECCHAN_NO_COMPRESS", false)

	fs := flag.NewFlagSet("secchan-server", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&listen, "listen", listen, "listen address (env: SECCHAN_LISTEN)")
	fs.StringVar(&metricsListen, "metrics-listen", metricsListen, "listen address for /metrics (empty disables) (env: SECCHAN_METRICS_LISTEN)")
	fs.UintVar(&maxPackageSize, "max-package-size", maxPackageSize, "max frame size in bytes (0 uses default) (env: SECCHAN_MAX_PACKAGE_SIZE)")
	fs.BoolVar(&noCompress, "no-compress", noCompress, "disable gzip compression (env: SECCHAN_NO_COMPRESS)")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	reg := prometheus.NewRegistry()
	observer := prom.NewObserver(reg)

	opts := secchan.Options{Observer: observer}
	if maxPackageSize > 0 {
		opts.MaxPackageSize = uint32(maxPackageSize)
	}
	if noCompress {
		never := secchan.CompressNever
		opts.Compress = &never
	}

	ln, err := net.Listen("tcp", listen)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	defer ln.Close()

	var metricsSrv *http.Server
	if metricsListen != "" {
		metricsLn, err := net.Listen("tcp", metricsListen)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		metricsSrv = &http.Server{Handler: mux}
		go func() {
			if err := metricsSrv.Serve(metricsLn); err != nil && err != http.ErrServerClosed {
				logger.Printf("metrics server: %v", err)
			}
		}()
		fmt.Fprintf(stdout, "metrics listening on %s\n", metricsLn.Addr())
	}

	fmt.Fprintf(stdout, "secchan-server listening on %s\n", ln.Addr())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	connCh := make(chan net.Conn)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			connCh <- conn
		}
	}()

	for {
		select {
		case conn := <-connCh:
			go handleConn(logger, conn, opts)
		case <-sig:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if metricsSrv != nil {
				_ = metricsSrv.Shutdown(ctx)
			}
			cancel()
			return 0
		}
	}
}

func handleConn(logger *log.Logger, conn net.Conn, opts secchan.Options) {
	defer conn.Close()
	ep := secchan.New(secchan.RoleServer, conn, opts)
	defer ep.Close()

	ctx := context.Background()
	for {
		msg, tooLarge, err := ep.ReadString(ctx)
		if tooLarge {
			logger.Printf("%s: incoming frame exceeded max package size, closing", ep.ID)
			return
		}
		if err != nil {
			logger.Printf("%s: read: %v", ep.ID, err)
			return
		}
		if msg == "" {
			continue
		}
		logger.Printf("%s: received %d bytes", ep.ID, len(msg))
		if ok, err := ep.WriteString(ctx, "ack: "+msg); err != nil {
			logger.Printf("%s: write: %v", ep.ID, err)
			return
		} else if !ok {
			logger.Printf("%s: reply too large to send", ep.ID)
			return
		}
	}
}

func envString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envUint(key string, fallback uint) uint {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return fallback
	}
	return uint(v)
}
