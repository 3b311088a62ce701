// udp-send replays a JSONL fixture file as UDP datagrams, for exercising the
// ingestion pipeline without a phone on the network.
//
// Usage:
//
//	go run ./cmd/tools/udp-send -addr localhost:5005 -file testdata/sensors.jsonl -batch 4 -interval 50ms
package main

import (
	"bufio"
	"flag"
	"log"
	"net"
	"os"
	"strings"
	"time"
)

var (
	addr     = flag.String("addr", "localhost:5005", "Destination UDP address")
	file     = flag.String("file", "", "JSONL fixture file to replay (required)")
	batch    = flag.Int("batch", 4, "Number of JSON lines per datagram")
	interval = flag.Duration("interval", 50*time.Millisecond, "Delay between datagrams")
	loop     = flag.Bool("loop", false, "Replay the file forever")
)

func main() {
	flag.Parse()

	if *file == "" {
		log.Fatal("-file is required")
	}
	if *batch < 1 {
		log.Fatal("-batch must be at least 1")
	}

	udpAddr, err := net.ResolveUDPAddr("udp", *addr)
	if err != nil {
		log.Fatalf("Failed to resolve %s: %v", *addr, err)
	}
	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		log.Fatalf("Failed to dial %s: %v", *addr, err)
	}
	defer conn.Close()

	total := 0
	for {
		n, err := replayFile(conn, *file)
		if err != nil {
			log.Fatalf("Replay failed: %v", err)
		}
		total += n
		if !*loop {
			break
		}
	}
	log.Printf("Sent %d datagrams to %s", total, *addr)
}

func replayFile(conn *net.UDPConn, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	sent := 0
	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		lines = append(lines, line)
		if len(lines) >= *batch {
			if err := sendBatch(conn, lines); err != nil {
				return sent, err
			}
			sent++
			lines = lines[:0]
			time.Sleep(*interval)
		}
	}
	if len(lines) > 0 {
		if err := sendBatch(conn, lines); err != nil {
			return sent, err
		}
		sent++
	}
	return sent, scanner.Err()
}

func sendBatch(conn *net.UDPConn, lines []string) error {
	payload := strings.Join(lines, "\n") + "\n"
	_, err := conn.Write([]byte(payload))
	return err
}
