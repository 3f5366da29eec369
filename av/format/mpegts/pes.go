// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mpegts

// the mpegts header specifed the stream id.
const (
	StreamIDAudio = 0xc0 // ts aac stream id.
	StreamIDVideo = 0xe0 // ts avc stream id.
)

// MPEG-2 TS 固定时间刻度
const Mpeg2Timescale = 90000

// PesPacket 一个就绪的 PES 负载。
// Pts/Dts are in the 90 kHz MPEG-2 timebase. The caller applies the PES
// header (packet_start_code_prefix, flags, coded PTS/DTS) and splits the
// result into 188-byte TS packets.
type PesPacket struct {
	StreamID byte
	Pts      int64
	Dts      int64
	Data     []byte
}

// IsVideo .
func (p *PesPacket) IsVideo() bool {
	return p.StreamID == StreamIDVideo
}

// IsAudio .
func (p *PesPacket) IsAudio() bool {
	return p.StreamID == StreamIDAudio
}

// PesPacketWriter 包装 WritePesPacket 方法的接口
type PesPacketWriter interface {
	WritePesPacket(packet *PesPacket) error
}
