package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	OpFormat = "F"
	OpCreate = "C"
	OpDelete = "D"
	OpRead   = "R"
	OpWrite  = "W"
	OpList   = "L"
	OpMkdir  = "mkdir"
	OpCd     = "cd"
	OpPwd    = "pwd"
	OpRmdir  = "rmdir"
)

// FSRequest is one filesystem command line. For OpWrite, Length raw bytes and
// a newline follow the line.
type FSRequest struct {
	Op      string
	Name    string
	Length  int
	Verbose bool
}

func ParseFSRequest(line string) (FSRequest, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return FSRequest{}, malformed("empty command")
	}

	req := FSRequest{Op: fields[0]}
	switch req.Op {
	case OpFormat, OpPwd:
		return req, nil
	case OpCreate, OpDelete, OpRead, OpMkdir, OpCd, OpRmdir:
		if len(fields) < 2 {
			return FSRequest{}, malformed("%s needs a name", req.Op)
		}
		req.Name = fields[1]
		return req, nil
	case OpWrite:
		if len(fields) < 3 {
			return FSRequest{}, malformed("W needs a name and a length")
		}
		n, err := strconv.Atoi(fields[2])
		if err != nil || n < 0 {
			return FSRequest{}, malformed("bad length %q", fields[2])
		}
		req.Name = fields[1]
		req.Length = n
		return req, nil
	case OpList:
		if len(fields) < 2 {
			return FSRequest{}, malformed("L needs a verbosity flag")
		}
		v, err := strconv.Atoi(fields[1])
		if err != nil {
			return FSRequest{}, malformed("bad verbosity %q", fields[1])
		}
		req.Verbose = v != 0
		return req, nil
	default:
		return FSRequest{}, malformed("unknown command %q", req.Op)
	}
}

// Encode renders the request line, newline included.
func (r FSRequest) Encode() string {
	switch r.Op {
	case OpFormat, OpPwd:
		return r.Op + "\n"
	case OpWrite:
		return fmt.Sprintf("W %s %d\n", r.Name, r.Length)
	case OpList:
		if r.Verbose {
			return "L 1\n"
		}
		return "L 0\n"
	default:
		return fmt.Sprintf("%s %s\n", r.Op, r.Name)
	}
}

// ListLine renders one directory listing line without its newline.
func ListLine(name string, dir bool, size int, verbose bool) string {
	if verbose {
		kind := 'F'
		if dir {
			kind = 'D'
		}
		return fmt.Sprintf("%c %s %d", kind, name, size)
	}
	if dir {
		return name + "/"
	}
	return name
}
