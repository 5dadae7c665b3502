package command

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net/netip"
)

var (
	ErrShortFrame       = errors.New("command: short frame")
	ErrInvalidLength    = errors.New("command: invalid length")
	ErrAddressTooLong   = errors.New("command: address too long")
	ErrMetadataTooLarge = errors.New("command: metadata too large")
	ErrInvalidAddress   = errors.New("command: invalid address")
	ErrUnknownType      = errors.New("command: unknown command type")
)

// Limits constrains decode memory use.
type Limits struct {
	MaxAddressBytes  int32
	MaxMetadataBytes int32
}

func DefaultLimits() Limits {
	return Limits{
		MaxAddressBytes:  64,
		MaxMetadataBytes: 1 << 20,
	}
}

// Decode reads one frame from r. Unknown ordinals are returned as-is so that
// a receiver can skip commands added by newer clients; check Type.Valid.
// A clean io.EOF before the first byte is returned unchanged.
func Decode(r io.Reader, limits Limits) (Command, error) {
	ordinal, err := readInt32(r)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Command{}, io.EOF
		}
		return Command{}, shortFrame(err)
	}

	addrLen, err := readInt32(r)
	if err != nil {
		return Command{}, shortFrame(err)
	}
	if addrLen < 0 {
		return Command{}, fmt.Errorf("%w: address length %d", ErrInvalidLength, addrLen)
	}
	if addrLen > limits.MaxAddressBytes {
		return Command{}, fmt.Errorf("%w: %d bytes", ErrAddressTooLong, addrLen)
	}
	addrBytes := make([]byte, addrLen)
	if _, err := io.ReadFull(r, addrBytes); err != nil {
		return Command{}, shortFrame(err)
	}

	var target netip.Addr
	if addrLen > 0 {
		target, err = netip.ParseAddr(string(addrBytes))
		if err != nil {
			return Command{}, fmt.Errorf("%w: %q", ErrInvalidAddress, string(addrBytes))
		}
	}

	metaLen, err := readInt32(r)
	if err != nil {
		return Command{}, shortFrame(err)
	}
	if metaLen < 0 {
		return Command{}, fmt.Errorf("%w: metadata length %d", ErrInvalidLength, metaLen)
	}
	if metaLen > limits.MaxMetadataBytes {
		return Command{}, fmt.Errorf("%w: %d bytes", ErrMetadataTooLarge, metaLen)
	}
	var meta []byte
	if metaLen > 0 {
		meta = make([]byte, metaLen)
		if _, err := io.ReadFull(r, meta); err != nil {
			return Command{}, shortFrame(err)
		}
	}

	return Command{Type: Type(ordinal), Target: target, Metadata: meta}, nil
}

func readInt32(r io.Reader) (int32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(buf[:])), nil
}

func shortFrame(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrShortFrame
	}
	return err
}
