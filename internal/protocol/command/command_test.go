package command

import (
	"bytes"
	"errors"
	"io"
	"net/netip"
	"testing"
)

func TestEncodeUserExitChunks(t *testing.T) {
	cmd := New(UserExit, netip.MustParseAddr("127.0.0.1"), []byte{10, 0})
	got := Encode(cmd)
	want := [][]byte{
		{0, 0, 0, 0},
		{9, 0, 0, 0},
		[]byte("127.0.0.1"),
		{2, 0, 0, 0},
		{10, 0},
	}
	if len(got) != len(want) {
		t.Fatalf("chunk count got=%d want=%d", len(got), len(want))
	}
	for i := range want {
		if !bytes.Equal(got[i], want[i]) {
			t.Fatalf("chunk[%d] got=%v want=%v", i, got[i], want[i])
		}
	}
}

func TestEncodeAbsentMetadataOmitsChunk(t *testing.T) {
	cmd := New(UserExit, netip.MustParseAddr("127.0.0.1"), nil)
	got := Encode(cmd)
	if len(got) != 4 {
		t.Fatalf("expected 4 chunks, got %d", len(got))
	}
	if !bytes.Equal(got[3], []byte{0, 0, 0, 0}) {
		t.Fatalf("metadata length chunk got=%v", got[3])
	}

	empty := Encode(New(UserExit, netip.MustParseAddr("127.0.0.1"), []byte{}))
	if len(empty) != 4 {
		t.Fatalf("empty metadata should encode like absent, got %d chunks", len(empty))
	}
}

func TestEncodeOrdinalLittleEndian(t *testing.T) {
	got := Encode(New(FreeCommand, netip.MustParseAddr("10.0.0.1"), nil))
	if !bytes.Equal(got[0], []byte{12, 0, 0, 0}) {
		t.Fatalf("ordinal chunk got=%v", got[0])
	}

	got = Encode(New(Type(0x01020304), netip.MustParseAddr("10.0.0.1"), nil))
	if !bytes.Equal(got[0], []byte{4, 3, 2, 1}) {
		t.Fatalf("ordinal byte order got=%v", got[0])
	}
}

func TestEncodeIsIdempotent(t *testing.T) {
	meta := []byte("hello")
	cmd := New(Message, netip.MustParseAddr("192.168.1.20"), meta)
	first := EncodeFrame(cmd)
	second := EncodeFrame(cmd)
	if !bytes.Equal(first, second) {
		t.Fatalf("encode not idempotent: %v vs %v", first, second)
	}

	chunks := Encode(cmd)
	chunks[4][0] = 'X'
	if meta[0] != 'h' {
		t.Fatalf("encode must not alias caller metadata")
	}
	if len(first) != FrameLen(cmd) {
		t.Fatalf("frame len got=%d want=%d", len(first), FrameLen(cmd))
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	cases := []Command{
		New(UserExit, netip.MustParseAddr("127.0.0.1"), []byte{10, 0}),
		New(ClientLoginInform, netip.MustParseAddr("::1"), []byte("desk-7")),
		New(PCShutdown, netip.MustParseAddr("fe80::1%eth0"), nil),
	}
	var buf bytes.Buffer
	for _, c := range cases {
		buf.Write(EncodeFrame(c))
	}
	for i, want := range cases {
		got, err := Decode(&buf, DefaultLimits())
		if err != nil {
			t.Fatalf("decode[%d]: %v", i, err)
		}
		if got.Type != want.Type || got.Target != want.Target || !bytes.Equal(got.Metadata, want.Metadata) {
			t.Fatalf("decode[%d] got=%v want=%v", i, got, want)
		}
	}
	if _, err := Decode(&buf, DefaultLimits()); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF after last frame, got %v", err)
	}
}

func TestDecodeTruncatedFrame(t *testing.T) {
	frame := EncodeFrame(New(Message, netip.MustParseAddr("127.0.0.1"), []byte("abc")))
	_, err := Decode(bytes.NewReader(frame[:len(frame)-1]), DefaultLimits())
	if !errors.Is(err, ErrShortFrame) {
		t.Fatalf("expected ErrShortFrame, got %v", err)
	}
	_, err = Decode(bytes.NewReader(frame[:2]), DefaultLimits())
	if !errors.Is(err, ErrShortFrame) {
		t.Fatalf("expected ErrShortFrame on partial ordinal, got %v", err)
	}
}

func TestDecodeLimits(t *testing.T) {
	frame := EncodeFrame(New(Message, netip.MustParseAddr("127.0.0.1"), []byte("abcdef")))
	_, err := Decode(bytes.NewReader(frame), Limits{MaxAddressBytes: 64, MaxMetadataBytes: 4})
	if !errors.Is(err, ErrMetadataTooLarge) {
		t.Fatalf("expected ErrMetadataTooLarge, got %v", err)
	}
	_, err = Decode(bytes.NewReader(frame), Limits{MaxAddressBytes: 4, MaxMetadataBytes: 64})
	if !errors.Is(err, ErrAddressTooLong) {
		t.Fatalf("expected ErrAddressTooLong, got %v", err)
	}
}

func TestDecodeRejectsBadAddressAndLength(t *testing.T) {
	bad := append([]byte{0, 0, 0, 0, 3, 0, 0, 0}, []byte("abc")...)
	bad = append(bad, 0, 0, 0, 0)
	if _, err := Decode(bytes.NewReader(bad), DefaultLimits()); !errors.Is(err, ErrInvalidAddress) {
		t.Fatalf("expected ErrInvalidAddress, got %v", err)
	}

	neg := []byte{0, 0, 0, 0, 0xff, 0xff, 0xff, 0xff}
	if _, err := Decode(bytes.NewReader(neg), DefaultLimits()); !errors.Is(err, ErrInvalidLength) {
		t.Fatalf("expected ErrInvalidLength, got %v", err)
	}
}

func TestDecodePassesUnknownOrdinal(t *testing.T) {
	frame := EncodeFrame(New(Type(99), netip.MustParseAddr("127.0.0.1"), nil))
	got, err := Decode(bytes.NewReader(frame), DefaultLimits())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Type != 99 || got.Type.Valid() {
		t.Fatalf("unexpected type: %v valid=%v", got.Type, got.Type.Valid())
	}
}

func TestParseType(t *testing.T) {
	if got, err := ParseType(" User_Exit "); err != nil || got != UserExit {
		t.Fatalf("parse name got=%v err=%v", got, err)
	}
	if got, err := ParseType("7"); err != nil || got != Message {
		t.Fatalf("parse ordinal got=%v err=%v", got, err)
	}
	if _, err := ParseType("42"); !errors.Is(err, ErrUnknownType) {
		t.Fatalf("expected ErrUnknownType, got %v", err)
	}
	for _, typ := range Types() {
		back, err := ParseType(typ.String())
		if err != nil || back != typ {
			t.Fatalf("name round trip %v got=%v err=%v", typ, back, err)
		}
	}
}

func TestTypeOrdinalsAreFrozen(t *testing.T) {
	frozen := map[Type]int32{
		UserExit:           0,
		PCLockWithTimer:    1,
		PCLock:             2,
		PCUnlock:           3,
		PCRestart:          4,
		PCLogOff:           5,
		PCShutdown:         6,
		Message:            7,
		ClientLoginInform:  8,
		ClientLogOffInform: 9,
		IsNameExists:       10,
		SendClientList:     11,
		FreeCommand:        12,
	}
	for typ, ord := range frozen {
		if int32(typ) != ord {
			t.Fatalf("%s ordinal moved: got=%d want=%d", typ, int32(typ), ord)
		}
	}
}
