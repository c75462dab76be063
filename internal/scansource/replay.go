package scansource

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"

	"blewatch/internal/classify"
)

// Capture dump line format, one advertisement per line:
//
//	<address> <rssi> <hexblock>[;<hexblock>...] [local name...]
//
// A hexblock is the raw manufacturer-data block: 2 bytes company identifier
// little-endian followed by the vendor payload. "-" in the block column means
// the advertisement carried no manufacturer data. Lines starting with '#' and
// blank lines are skipped without counting as malformed.

// ParseLine decodes one capture line into a raw advertisement.
func ParseLine(line string) (classify.RawAdvertisement, error) {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return classify.RawAdvertisement{}, fmt.Errorf("want at least 3 fields, got %d", len(fields))
	}

	addr := strings.ToLower(fields[0])
	if _, err := net.ParseMAC(addr); err != nil {
		return classify.RawAdvertisement{}, fmt.Errorf("bad address %q: %w", fields[0], err)
	}

	rssi, err := strconv.ParseInt(fields[1], 10, 16)
	if err != nil {
		return classify.RawAdvertisement{}, fmt.Errorf("bad rssi %q: %w", fields[1], err)
	}
	if rssi > 20 || rssi < -127 {
		return classify.RawAdvertisement{}, fmt.Errorf("rssi %d out of range", rssi)
	}

	adv := classify.RawAdvertisement{
		Address: addr,
		RSSI:    int16(rssi),
	}

	if fields[2] != "-" {
		for _, blockHex := range strings.Split(fields[2], ";") {
			raw, err := hex.DecodeString(blockHex)
			if err != nil {
				return classify.RawAdvertisement{}, fmt.Errorf("bad hex block %q: %w", blockHex, err)
			}
			block, ok := classify.ParseBlock(raw)
			if !ok {
				return classify.RawAdvertisement{}, fmt.Errorf("block %q shorter than a company identifier", blockHex)
			}
			adv.Blocks = append(adv.Blocks, block)
		}
	}

	if len(fields) > 3 {
		adv.Name = strings.Join(fields[3:], " ")
	}

	return adv, nil
}

// ReadDump parses a whole capture stream. Malformed lines are skipped and
// counted, never fatal; only a read error aborts.
func ReadDump(r io.Reader) ([]classify.RawAdvertisement, int, error) {
	s := bufio.NewScanner(r)

	var out []classify.RawAdvertisement
	var malformed int
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		adv, err := ParseLine(line)
		if err != nil {
			malformed++
			continue
		}
		out = append(out, adv)
	}
	if err := s.Err(); err != nil {
		return nil, malformed, err
	}
	return out, malformed, nil
}

// ReadDumpFile is ReadDump against a file on disk.
func ReadDumpFile(path string) ([]classify.RawAdvertisement, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()
	return ReadDump(f)
}
