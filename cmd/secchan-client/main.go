package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/corewire/secchan"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout io.Writer, stderr io.Writer) int {
	addr := envString("SECCHAN_ADDR", "127.0.0.1:9443")
	maxPackageSize := envUint("SECCHAN_MAX_PACKAGE_SIZE", 0)

	fs := flag.NewFlagSet("secchan-client", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&addr, "addr", addr, "server address (env: SECCHAN_ADDR)")
	fs.UintVar(&maxPackageSize, "max-package-size", maxPackageSize, "max frame size in bytes (0 uses default) (env: SECCHAN_MAX_PACKAGE_SIZE)")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	defer conn.Close()

	opts := secchan.Options{}
	if maxPackageSize > 0 {
		opts.MaxPackageSize = uint32(maxPackageSize)
	}
	ep := secchan.New(secchan.RoleClient, conn, opts)
	defer ep.Close()

	ctx := context.Background()
	scanner := bufio.NewScanner(stdin)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		ok, err := ep.WriteString(ctx, line)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		if !ok {
			fmt.Fprintln(stderr, "message too large to send")
			continue
		}
		reply, tooLarge, err := ep.ReadString(ctx)
		if tooLarge {
			fmt.Fprintln(stderr, "reply exceeded max package size, connection closed")
			return 1
		}
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		fmt.Fprintln(stdout, reply)
	}
	return 0
}

func envString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
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
