// discover listens for sensor datagrams and prints a running table of every
// distinct sensor seen, for working out what a given phone app actually sends.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/oakfield-data/motion.report/internal/telemetry"
)

var (
	listen = flag.String("listen", ":5005", "UDP listen address")
)

type sensorKey struct {
	Type telemetry.SensorType
	Name string
}

func main() {
	flag.Parse()

	udpAddr, err := net.ResolveUDPAddr("udp", *listen)
	if err != nil {
		log.Fatalf("Failed to resolve %s: %v", *listen, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		log.Fatalf("Failed to bind %s: %v", *listen, err)
	}
	defer conn.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Printf("Listening on %s, waiting for data to discover sensors...", *listen)

	seen := make(map[sensorKey]bool)
	buffer := make([]byte, 65535)

	for {
		if ctx.Err() != nil {
			log.Print("Stopping.")
			return
		}

		conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
		n, _, err := conn.ReadFromUDP(buffer)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			log.Printf("Read error: %v", err)
			continue
		}

		// Decode errors are expected while probing unknown apps; keep the
		// readings that did parse.
		readings, _ := telemetry.DecodeDatagram(buffer[:n], time.Now())
		for _, r := range readings {
			key := sensorKey{Type: r.Type, Name: r.Name}
			if seen[key] {
				continue
			}
			seen[key] = true
			fmt.Printf("\n[+] New sensor found: %s\n", r.Name)
			printTable(seen)
		}
	}
}

func printTable(seen map[sensorKey]bool) {
	keys := make([]sensorKey, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Type < keys[j].Type })

	fmt.Fprintln(os.Stdout, "--- All Active Sensors Seen So Far ---")
	for _, k := range keys {
		fmt.Printf("  Type %-3d | %-20s | Name: %s\n", int(k.Type), k.Type, k.Name)
	}
	fmt.Fprintln(os.Stdout, "--------------------------------------")
}
