// ABOUTME: Diagnostic tool that queries the configured NTP servers once
// ABOUTME: Prints per-server latency/offset and the chosen best sample
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"strings"
	"time"

	"github.com/InkClock-Project/inkclock-go/internal/config"
	"github.com/InkClock-Project/inkclock-go/internal/ntp"
)

var (
	configPath = flag.String("config", "", "Path to YAML config (default: built-in defaults)")
	servers    = flag.String("servers", "", "Comma-separated server list overriding the config")
	timeoutMs  = flag.Int("timeout-ms", 2000, "Per-exchange timeout")
)

func main() {
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatalf("config: %v", err)
		}
	}

	hosts := cfg.NTP.Servers
	if *servers != "" {
		hosts = strings.Split(*servers, ",")
	}

	ctx := context.Background()
	resolved := ntp.ResolveServers(ctx, net.DefaultResolver, hosts, 2, true, nil)
	if len(resolved) == 0 {
		fmt.Fprintln(os.Stderr, "no server resolved")
		os.Exit(1)
	}
	for host, addr := range resolved {
		fmt.Printf("%-28s -> %s\n", host, addr)
	}

	client := &ntp.Client{
		Attempts:    cfg.NTP.AttemptsPerServer,
		MaxOffsetMs: cfg.NTP.MaxOffsetMs,
		Timeout:     time.Duration(*timeoutMs) * time.Millisecond,
	}

	sample, err := client.Query(hosts, resolved)
	if err != nil {
		fmt.Fprintf(os.Stderr, "query failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Printf("best server : %s\n", sample.Server)
	fmt.Printf("latency     : %d ms\n", sample.LatencyMs)
	fmt.Printf("offset      : %+.1f ms\n", sample.OffsetMs)
	fmt.Printf("epoch       : %d (%s)\n", sample.EpochS, time.Unix(sample.EpochS, 0).UTC().Format(time.RFC3339))
	if sample.Emergency {
		fmt.Println("emergency   : offset above ceiling, would be applied as a step")
	}
}
