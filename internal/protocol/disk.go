package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

type DiskOp byte

const (
	DiskIdentify DiskOp = 'I'
	DiskRead     DiskOp = 'R'
	DiskWrite    DiskOp = 'W'
)

// Block device replies.
const (
	DiskTagValid = '1'
	DiskOK       = "1\n"
	DiskInvalid  = "0\n"
)

// DiskRequest is one block device command line. Length is only set for
// writes and counts the raw bytes that follow the line.
type DiskRequest struct {
	Op       DiskOp
	Cylinder int
	Sector   int
	Length   int
}

func ParseDiskRequest(line string) (DiskRequest, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return DiskRequest{}, malformed("empty command")
	}

	switch fields[0] {
	case "I":
		return DiskRequest{Op: DiskIdentify}, nil
	case "R":
		nums, err := parseInts(fields[1:], 2)
		if err != nil {
			return DiskRequest{}, err
		}
		return DiskRequest{Op: DiskRead, Cylinder: nums[0], Sector: nums[1]}, nil
	case "W":
		nums, err := parseInts(fields[1:], 3)
		if err != nil {
			return DiskRequest{}, err
		}
		return DiskRequest{Op: DiskWrite, Cylinder: nums[0], Sector: nums[1], Length: nums[2]}, nil
	default:
		return DiskRequest{}, malformed("unknown command %q", fields[0])
	}
}

// Encode renders the request line, newline included.
func (r DiskRequest) Encode() string {
	switch r.Op {
	case DiskRead:
		return fmt.Sprintf("R %d %d\n", r.Cylinder, r.Sector)
	case DiskWrite:
		return fmt.Sprintf("W %d %d %d\n", r.Cylinder, r.Sector, r.Length)
	default:
		return "I\n"
	}
}

// FormatGeometry renders the reply to an identify request.
func FormatGeometry(cylinders, sectors int) string {
	return fmt.Sprintf("%d %d\n", cylinders, sectors)
}

func ParseGeometry(line string) (cylinders, sectors int, err error) {
	nums, err := parseInts(strings.Fields(line), 2)
	if err != nil {
		return 0, 0, err
	}
	if nums[0] <= 0 || nums[1] <= 0 {
		return 0, 0, malformed("bad geometry %q", line)
	}
	return nums[0], nums[1], nil
}

func parseInts(fields []string, n int) ([]int, error) {
	if len(fields) < n {
		return nil, malformed("want %d arguments, got %d", n, len(fields))
	}
	out := make([]int, n)
	for i := 0; i < n; i++ {
		v, err := strconv.Atoi(fields[i])
		if err != nil {
			return nil, malformed("argument %q is not a number", fields[i])
		}
		out[i] = v
	}
	return out, nil
}
