package netphys

import (
	"math"
	"testing"
)

func TestSerializerRoundTrip(t *testing.T) {
	var s Serializer
	s.WriteBool(true)
	s.WriteBool(false)
	s.WriteUint8(0x7f)
	s.WriteFloat(3.25)
	s.WriteSint32(-123456)
	s.WriteUint16(54321)
	s.WriteUint32(0xdeadbeef)
	s.WriteUint64(0x0123456789abcdef)

	var d Deserializer
	d.Receive(s.Bytes())

	if got := d.ReadBool(); got != true {
		t.Errorf("ReadBool = %v, want true", got)
	}
	if got := d.ReadBool(); got != false {
		t.Errorf("ReadBool = %v, want false", got)
	}
	if got := d.ReadUint8(); got != 0x7f {
		t.Errorf("ReadUint8 = %#x, want 0x7f", got)
	}
	if got := d.ReadFloat(); got != 3.25 {
		t.Errorf("ReadFloat = %v, want 3.25", got)
	}
	if got := d.ReadSint32(); got != -123456 {
		t.Errorf("ReadSint32 = %d, want -123456", got)
	}
	if got := d.ReadUint16(); got != 54321 {
		t.Errorf("ReadUint16 = %d, want 54321", got)
	}
	if got := d.ReadUint32(); got != 0xdeadbeef {
		t.Errorf("ReadUint32 = %#x, want 0xdeadbeef", got)
	}
	if got := d.ReadUint64(); got != 0x0123456789abcdef {
		t.Errorf("ReadUint64 = %#x, want 0x0123456789abcdef", got)
	}
}

func TestSerializerFloatSpecialValues(t *testing.T) {
	tests := []struct {
		name string
		in   float32
	}{
		{"negative zero", float32(math.Copysign(0, -1))},
		{"max float32", math.MaxFloat32},
		{"smallest positive", math.SmallestNonzeroFloat32},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s Serializer
			s.WriteFloat(tt.in)
			var d Deserializer
			d.Receive(s.Bytes())
			got := d.ReadFloat()
			if math.Float32bits(got) != math.Float32bits(tt.in) {
				t.Errorf("ReadFloat = %v (%#x), want %v (%#x)",
					got, math.Float32bits(got), tt.in, math.Float32bits(tt.in))
			}
		})
	}
}

// 読みすぎた場合はエラーではなくゼロ値が返る
func TestDeserializerUnderrun(t *testing.T) {
	var d Deserializer
	d.Receive([]byte{0x01})

	if got := d.ReadUint8(); got != 0x01 {
		t.Fatalf("ReadUint8 = %#x, want 0x01", got)
	}
	if got := d.ReadUint32(); got != 0 {
		t.Errorf("ReadUint32 past end = %d, want 0", got)
	}
	if got := d.ReadFloat(); got != 0 {
		t.Errorf("ReadFloat past end = %v, want 0", got)
	}
	if got := d.ReadBool(); got != false {
		t.Errorf("ReadBool past end = %v, want false", got)
	}
	if got := d.ReadUint64(); got != 0 {
		t.Errorf("ReadUint64 past end = %d, want 0", got)
	}
}

// 複数バイトの読みが途中で尽きた場合もゼロ値になり、位置は末尾で止まる
func TestDeserializerPartialRead(t *testing.T) {
	var d Deserializer
	d.Receive([]byte{0xaa, 0xbb})

	if got := d.ReadUint32(); got != 0 {
		t.Errorf("ReadUint32 with 2 bytes = %d, want 0", got)
	}
	if got := len(d.Remaining()); got != 0 {
		t.Errorf("Remaining length = %d, want 0", got)
	}
}

func TestRewriteFirstUint32(t *testing.T) {
	var s Serializer
	s.WriteUint32(0)
	s.WriteUint16(7)
	s.RewriteFirstUint32(99)

	var d Deserializer
	d.Receive(s.Bytes())
	if got := d.ReadUint32(); got != 99 {
		t.Errorf("first uint32 = %d, want 99", got)
	}
	if got := d.ReadUint16(); got != 7 {
		t.Errorf("second uint16 = %d, want 7", got)
	}
}

func TestRewriteFirstUint32OnShortBuffer(t *testing.T) {
	var s Serializer
	s.WriteUint8(1)
	s.RewriteFirstUint32(99)
	if got := len(s.Bytes()); got != 1 {
		t.Errorf("buffer length = %d, want 1", got)
	}
}

func TestSerializerReset(t *testing.T) {
	var s Serializer
	s.WriteUint64(42)
	s.Reset()
	if got := len(s.Bytes()); got != 0 {
		t.Errorf("buffer length after reset = %d, want 0", got)
	}
}

func TestDeserializerRemaining(t *testing.T) {
	var s Serializer
	s.WriteUint16(1)
	s.WriteBytes([]byte{9, 8, 7})

	var d Deserializer
	d.Receive(s.Bytes())
	d.ReadUint16()
	rest := d.Remaining()
	if len(rest) != 3 || rest[0] != 9 || rest[2] != 7 {
		t.Errorf("Remaining = %v, want [9 8 7]", rest)
	}
}
