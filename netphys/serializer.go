package netphys

import (
	"encoding/binary"
	"math"
)

// バイトオーダー: リトルエンディアン
var byteOrder = binary.LittleEndian

// Serializer は送信メッセージを書き込み順に蓄積する軽量シリアライザです。
// 型情報は持たず、読み出す側が書き込みと同じ順序・同じ型で読む契約です。
type Serializer struct {
	buf []byte
}

func (s *Serializer) WriteBool(b bool) {
	if b {
		s.buf = append(s.buf, 1)
	} else {
		s.buf = append(s.buf, 0)
	}
}

func (s *Serializer) WriteUint8(b byte) {
	s.buf = append(s.buf, b)
}

func (s *Serializer) WriteFloat(f float32) {
	s.buf = byteOrder.AppendUint32(s.buf, math.Float32bits(f))
}

func (s *Serializer) WriteSint32(i int32) {
	s.buf = byteOrder.AppendUint32(s.buf, uint32(i))
}

func (s *Serializer) WriteUint16(i uint16) {
	s.buf = byteOrder.AppendUint16(s.buf, i)
}

func (s *Serializer) WriteUint32(i uint32) {
	s.buf = byteOrder.AppendUint32(s.buf, i)
}

func (s *Serializer) WriteUint64(i uint64) {
	s.buf = byteOrder.AppendUint64(s.buf, i)
}

// WriteBytes はバイト列を長さプレフィックスなしでそのまま追記します。
func (s *Serializer) WriteBytes(v []byte) {
	s.buf = append(s.buf, v...)
}

// RewriteFirstUint32 はバッファ先頭の4バイトを書き換えます。
// 本体を構築した後でタイプや件数をヘッダーに埋め込むために使用します。
// バッファが4バイト未満の場合は何もしません。
func (s *Serializer) RewriteFirstUint32(i uint32) {
	if len(s.buf) < 4 {
		return
	}
	byteOrder.PutUint32(s.buf[0:4], i)
}

// Bytes は蓄積したバイト列を返します。
func (s *Serializer) Bytes() []byte {
	return s.buf
}

func (s *Serializer) Reset() {
	s.buf = s.buf[:0]
}

// Deserializer は受信メッセージを書き込み順に読み出すデシリアライザです。
// 末尾を越えて読み出した場合はエラーではなくゼロ値を返します。破損した
// ペイロードでセッションを落とさないためのベストエフォート方針です。
type Deserializer struct {
	data []byte
	pos  int
}

// Receive は新しいメッセージを読み込み、読み出し位置を先頭に戻します。
func (d *Deserializer) Receive(data []byte) {
	d.data = data
	d.pos = 0
}

func (d *Deserializer) ReadBool() bool {
	if d.pos+1 > len(d.data) {
		return false
	}
	b := d.data[d.pos]
	d.pos++
	return b != 0
}

func (d *Deserializer) ReadUint8() byte {
	if d.pos+1 > len(d.data) {
		return 0
	}
	b := d.data[d.pos]
	d.pos++
	return b
}

func (d *Deserializer) ReadFloat() float32 {
	return math.Float32frombits(d.ReadUint32())
}

func (d *Deserializer) ReadSint32() int32 {
	return int32(d.ReadUint32())
}

func (d *Deserializer) ReadUint16() uint16 {
	if d.pos+2 > len(d.data) {
		d.pos = len(d.data)
		return 0
	}
	v := byteOrder.Uint16(d.data[d.pos : d.pos+2])
	d.pos += 2
	return v
}

func (d *Deserializer) ReadUint32() uint32 {
	if d.pos+4 > len(d.data) {
		d.pos = len(d.data)
		return 0
	}
	v := byteOrder.Uint32(d.data[d.pos : d.pos+4])
	d.pos += 4
	return v
}

func (d *Deserializer) ReadUint64() uint64 {
	if d.pos+8 > len(d.data) {
		d.pos = len(d.data)
		return 0
	}
	v := byteOrder.Uint64(d.data[d.pos : d.pos+8])
	d.pos += 8
	return v
}

// Remaining は未読部分をそのまま返します。可変長の末尾ペイロード用です。
func (d *Deserializer) Remaining() []byte {
	return d.data[d.pos:]
}
