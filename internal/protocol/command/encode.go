package command

import "encoding/binary"

// Field sizes of the fixed-width integers in a frame.
const (
	OrdinalLen = 4
	LengthLen  = 4
)

// Encode returns the frame for cmd as the ordered chunks that go on the wire:
// ordinal, address length, address text, metadata length and, when non-empty,
// metadata. All integers are little-endian int32.
func Encode(cmd Command) [][]byte {
	addr := []byte(addressText(cmd))
	chunks := make([][]byte, 0, 5)
	chunks = append(chunks,
		putInt32(int32(cmd.Type)),
		putInt32(int32(len(addr))),
		addr,
		putInt32(int32(len(cmd.Metadata))),
	)
	if len(cmd.Metadata) > 0 {
		meta := make([]byte, len(cmd.Metadata))
		copy(meta, cmd.Metadata)
		chunks = append(chunks, meta)
	}
	return chunks
}

// EncodeFrame is Encode flattened into one buffer.
func EncodeFrame(cmd Command) []byte {
	chunks := Encode(cmd)
	n := 0
	for _, c := range chunks {
		n += len(c)
	}
	out := make([]byte, 0, n)
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out
}

// FrameLen is the encoded size of cmd in bytes.
func FrameLen(cmd Command) int {
	return OrdinalLen + LengthLen + len(addressText(cmd)) + LengthLen + len(cmd.Metadata)
}

func addressText(cmd Command) string {
	if !cmd.Target.IsValid() {
		return ""
	}
	return cmd.Target.String()
}

func putInt32(v int32) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, uint32(v))
	return buf
}
