package ttylog

import (
	"encoding/binary"
	"fmt"
	"iter"
	"strconv"
)

// Op is the record opcode of a capture frame.
type Op int32

// Opcodes written by the sensor. Any other value is passed through untouched.
const (
	OpOpen  Op = 1
	OpClose Op = 2
	OpWrite Op = 3
	OpExec  Op = 4
)

func (o Op) String() string {
	switch o {
	case OpOpen:
		return "open"
	case OpClose:
		return "close"
	case OpWrite:
		return "write"
	case OpExec:
		return "exec"
	default:
		return fmt.Sprintf("op(%d)", int32(o))
	}
}

// ParseOp accepts an opcode name ("write") or its numeric value ("3").
func ParseOp(s string) (Op, error) {
	switch s {
	case "open":
		return OpOpen, nil
	case "close":
		return OpClose, nil
	case "write":
		return OpWrite, nil
	case "exec":
		return OpExec, nil
	}
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("unknown op %q", s)
	}
	return Op(n), nil
}

// Direction is the raw stream tag of a WRITE frame. The format does not say
// which tag is terminal output; see Tracker.
type Direction int32

const (
	DirInput    Direction = 1
	DirOutput   Direction = 2
	DirInteract Direction = 3
)

func (d Direction) String() string {
	switch d {
	case DirInput:
		return "input"
	case DirOutput:
		return "output"
	case DirInteract:
		return "interact"
	default:
		return fmt.Sprintf("dir(%d)", int32(d))
	}
}

// HeaderSize is the fixed size of a frame header:
// int32 op, uint32 channel, int32 length, int32 direction, uint32 sec, uint32 usec.
const HeaderSize = 24

// Frame is one decoded capture record.
type Frame struct {
	Op        Op
	Channel   uint32
	Length    int32
	Direction Direction
	Sec       uint32
	Usec      uint32
	// Payload aliases the capture buffer and must not be modified.
	Payload []byte
	// Offset is the position of the frame header in the capture.
	Offset int
}

// Reader decodes frames from an in-memory capture. It never fails: a header or
// payload that does not fit in the remaining bytes ends the sequence.
type Reader struct {
	buf []byte
	off int
}

// NewReader returns a Reader positioned at the start of buf.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Next decodes the frame at the cursor. ok is false once the remaining bytes
// cannot hold a complete frame; the cursor is then left on the incomplete tail.
func (r *Reader) Next() (f Frame, ok bool) {
	if len(r.buf)-r.off < HeaderSize {
		return Frame{}, false
	}
	h := r.buf[r.off : r.off+HeaderSize]
	f = Frame{
		Op:        Op(int32(binary.LittleEndian.Uint32(h[0:4]))),
		Channel:   binary.LittleEndian.Uint32(h[4:8]),
		Length:    int32(binary.LittleEndian.Uint32(h[8:12])),
		Direction: Direction(int32(binary.LittleEndian.Uint32(h[12:16]))),
		Sec:       binary.LittleEndian.Uint32(h[16:20]),
		Usec:      binary.LittleEndian.Uint32(h[20:24]),
		Offset:    r.off,
	}
	if f.Length < 0 {
		return Frame{}, false
	}
	start := r.off + HeaderSize
	end := start + int(f.Length)
	if end > len(r.buf) {
		return Frame{}, false
	}
	f.Payload = r.buf[start:end:end]
	r.off = end
	return f, true
}

// Frames returns the remaining frames as a single-use sequence.
func (r *Reader) Frames() iter.Seq[Frame] {
	return func(yield func(Frame) bool) {
		for {
			f, ok := r.Next()
			if !ok || !yield(f) {
				return
			}
		}
	}
}

// Offset is the number of bytes consumed by complete frames.
func (r *Reader) Offset() int { return r.off }

// Remaining is the number of bytes after the last complete frame.
func (r *Reader) Remaining() int { return len(r.buf) - r.off }

// AppendFrame encodes f in capture format and appends it to dst. Length is
// taken from the payload.
func AppendFrame(dst []byte, f Frame) []byte {
	var h [HeaderSize]byte
	binary.LittleEndian.PutUint32(h[0:4], uint32(f.Op))
	binary.LittleEndian.PutUint32(h[4:8], f.Channel)
	binary.LittleEndian.PutUint32(h[8:12], uint32(len(f.Payload)))
	binary.LittleEndian.PutUint32(h[12:16], uint32(f.Direction))
	binary.LittleEndian.PutUint32(h[16:20], f.Sec)
	binary.LittleEndian.PutUint32(h[20:24], f.Usec)
	dst = append(dst, h[:]...)
	return append(dst, f.Payload...)
}
