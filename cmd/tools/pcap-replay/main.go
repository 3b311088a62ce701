//go:build pcap
// +build pcap

// pcap-replay resends the UDP payloads of a capture file to a live listener,
// respecting the original inter-packet timing. Useful for replaying a
// recorded phone session against a development daemon.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
)

var (
	pcapFile = flag.String("file", "", "PCAP capture file to replay (required)")
	udpPort  = flag.Int("port", 5005, "UDP port filter for the capture")
	target   = flag.String("addr", "localhost:5005", "Destination UDP address")
	speed    = flag.Float64("speed", 1.0, "Replay speed multiplier (1.0 = real-time)")
)

func main() {
	flag.Parse()

	if *pcapFile == "" {
		log.Fatal("-file is required")
	}
	if *speed <= 0 {
		*speed = 1.0
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := replay(ctx); err != nil && err != context.Canceled {
		log.Fatalf("Replay failed: %v", err)
	}
}

func replay(ctx context.Context) error {
	handle, err := pcap.OpenOffline(*pcapFile)
	if err != nil {
		return fmt.Errorf("failed to open PCAP file %s: %w", *pcapFile, err)
	}
	defer handle.Close()

	filterStr := fmt.Sprintf("udp port %d", *udpPort)
	if err := handle.SetBPFFilter(filterStr); err != nil {
		return fmt.Errorf("failed to set BPF filter '%s': %w", filterStr, err)
	}
	log.Printf("Replaying %s with filter %q at %.1fx to %s", *pcapFile, filterStr, *speed, *target)

	udpAddr, err := net.ResolveUDPAddr("udp", *target)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", *target, err)
	}
	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w", *target, err)
	}
	defer conn.Close()

	packetSource := gopacket.NewPacketSource(handle, handle.LinkType())
	packetCount := 0
	startTime := time.Now()

	var lastPacketTime time.Time

	for {
		select {
		case <-ctx.Done():
			log.Printf("Replay stopping (sent %d packets)", packetCount)
			return ctx.Err()
		case packet := <-packetSource.Packets():
			if packet == nil {
				log.Printf("Replay complete: %d packets in %v", packetCount, time.Since(startTime))
				return nil
			}

			captureTime := packet.Metadata().Timestamp
			if !lastPacketTime.IsZero() {
				delay := captureTime.Sub(lastPacketTime)
				scaledDelay := time.Duration(float64(delay) / *speed)
				if scaledDelay > 0 {
					select {
					case <-ctx.Done():
						return ctx.Err()
					case <-time.After(scaledDelay):
					}
				}
			}
			lastPacketTime = captureTime

			udpLayer := packet.Layer(layers.LayerTypeUDP)
			if udpLayer == nil {
				continue
			}
			udp, ok := udpLayer.(*layers.UDP)
			if !ok || len(udp.Payload) == 0 {
				continue
			}

			if _, err := conn.Write(udp.Payload); err != nil {
				fmt.Fprintf(os.Stderr, "send error: %v\n", err)
				continue
			}
			packetCount++
		}
	}
}
