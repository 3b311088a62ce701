//go:build !pcap
// +build !pcap

package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Fprintln(os.Stderr, "pcap-replay requires the pcap build tag: go build -tags pcap ./cmd/tools/pcap-replay")
	os.Exit(1)
}
