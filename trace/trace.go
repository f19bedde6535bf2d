// Package trace parses memory-access traces for the replay driver.
//
// The format is line oriented. Each line is either a read:
//
//	R <address>
//
// or a write:
//
//	W <address> <data> [byte-enable]
//
// Addresses and data are hexadecimal, with or without a 0x prefix. The
// optional byte-enable is a 4-bit lane mask defaulting to 0xF (full word).
// Blank lines and lines starting with '#' are skipped.
package trace

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Access is one replayed memory access.
type Access struct {
	IsWrite    bool
	Address    uint64
	Data       uint32
	ByteEnable uint8
}

// Parse reads a trace from r.
func Parse(r io.Reader) ([]Access, error) {
	var accesses []Access

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		access, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		accesses = append(accesses, access)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read trace: %w", err)
	}

	return accesses, nil
}

// Load reads a trace file.
func Load(path string) ([]Access, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace file: %w", err)
	}
	defer f.Close()

	accesses, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return accesses, nil
}

func parseLine(line string) (Access, error) {
	fields := strings.Fields(line)

	switch strings.ToUpper(fields[0]) {
	case "R":
		if len(fields) != 2 {
			return Access{}, fmt.Errorf("read takes one operand, got %q", line)
		}
		addr, err := parseHex(fields[1], 64)
		if err != nil {
			return Access{}, fmt.Errorf("bad address %q: %w", fields[1], err)
		}
		return Access{Address: addr, ByteEnable: 0xF}, nil

	case "W":
		if len(fields) != 3 && len(fields) != 4 {
			return Access{}, fmt.Errorf(
				"write takes two or three operands, got %q", line)
		}
		addr, err := parseHex(fields[1], 64)
		if err != nil {
			return Access{}, fmt.Errorf("bad address %q: %w", fields[1], err)
		}
		data, err := parseHex(fields[2], 32)
		if err != nil {
			return Access{}, fmt.Errorf("bad data %q: %w", fields[2], err)
		}
		enable := uint64(0xF)
		if len(fields) == 4 {
			enable, err = parseHex(fields[3], 4)
			if err != nil {
				return Access{}, fmt.Errorf(
					"bad byte-enable %q: %w", fields[3], err)
			}
		}
		return Access{
			IsWrite:    true,
			Address:    addr,
			Data:       uint32(data),
			ByteEnable: uint8(enable),
		}, nil
	}

	return Access{}, fmt.Errorf("unknown operation %q", fields[0])
}

func parseHex(s string, bits int) (uint64, error) {
	s = strings.TrimPrefix(strings.ToLower(s), "0x")
	return strconv.ParseUint(s, 16, bits)
}
