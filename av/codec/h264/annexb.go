// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package h264

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/novoreel/shaka-packager/av/codec"
)

// Annex-B 相关常量
var (
	// StartCode Annex-B 起始码
	StartCode = []byte{0x00, 0x00, 0x00, 0x01}
	// audNal 分界符 NAL，参照 ngx_rtmp_hls_append_aud
	audNal = []byte{0x09, 0xF0}
)

var (
	errDecoderConfig = errors.New("invalid avc decoder configuration record")
	errTruncatedNalu = errors.New("truncated nal unit in sample")
)

// decoderConfiguration AVCDecoderConfigurationRecord 解析结果
type decoderConfiguration struct {
	naluLengthSize int
	sps            [][]byte
	pps            [][]byte
}

// parseDecoderConfiguration 解析 AVCDecoderConfigurationRecord。
// ISO/IEC 14496-15 5.2.4.1.1.
func parseDecoderConfiguration(config []byte) (*decoderConfiguration, error) {
	if len(config) < 7 {
		return nil, errDecoderConfig
	}
	if config[0] != 0x01 { // configurationVersion
		return nil, fmt.Errorf("avc decoder configuration version = %d, must be 1", config[0])
	}

	c := &decoderConfiguration{
		naluLengthSize: int(config[4]&0x03) + 1,
	}
	if c.naluLengthSize == 3 {
		return nil, fmt.Errorf("nal length size = %d, must be 1, 2 or 4", c.naluLengthSize)
	}

	readParamSets := func(data []byte, count int) (sets [][]byte, rest []byte, err error) {
		for i := 0; i < count; i++ {
			if len(data) < 2 {
				return nil, nil, errDecoderConfig
			}
			length := int(binary.BigEndian.Uint16(data))
			data = data[2:]
			if len(data) < length {
				return nil, nil, errDecoderConfig
			}
			sets = append(sets, data[:length])
			data = data[length:]
		}
		return sets, data, nil
	}

	numSps := int(config[5] & 0x1F)
	sps, rest, err := readParamSets(config[6:], numSps)
	if err != nil {
		return nil, err
	}
	c.sps = sps

	if len(rest) < 1 {
		return nil, errDecoderConfig
	}
	numPps := int(rest[0])
	pps, _, err := readParamSets(rest[1:], numPps)
	if err != nil {
		return nil, err
	}
	c.pps = pps

	return c, nil
}

// ByteStreamConverter 将 MP4 长度前缀形式的采样改写为 Annex-B 字节流。
// With escaping disabled the output keeps raw payload bytes so that the
// sample-encryption stripe layout can be computed on them.
type ByteStreamConverter struct {
	naluLengthSize int
	escapeData     bool
	sps            [][]byte
	pps            [][]byte
}

// Initialize 解析 AVCDecoderConfigurationRecord 并保留 SPS/PPS。
func (c *ByteStreamConverter) Initialize(decoderConfig []byte, escapeData bool) error {
	cfg, err := parseDecoderConfiguration(decoderConfig)
	if err != nil {
		return err
	}

	c.naluLengthSize = cfg.naluLengthSize
	c.escapeData = escapeData
	c.sps = cfg.sps
	c.pps = cfg.pps
	return nil
}

// NaluLengthSize 采样中 NAL 长度前缀的字节数
func (c *ByteStreamConverter) NaluLengthSize() int { return c.naluLengthSize }

// ConvertUnit 转换一个访问单元。
// a ts sample is format as:
// 00 00 00 01 // header
//       xxxxxxx // data bytes
// 00 00 00 01 // continue header
//       xxxxxxx // data bytes.
// 关键帧的 IDR 前插入 AUD 和 SPS/PPS。
func (c *ByteStreamConverter) ConvertUnit(sample []byte, isKeyFrame bool) ([]byte, error) {
	out := make([]byte, 0, len(sample)+len(sample)/16+64)
	paramsWritten := false

	for off := 0; off < len(sample); {
		if len(sample)-off < c.naluLengthSize {
			return nil, errTruncatedNalu
		}
		length := 0
		for i := 0; i < c.naluLengthSize; i++ {
			length = length<<8 | int(sample[off+i])
		}
		off += c.naluLengthSize

		if length == 0 || len(sample)-off < length {
			return nil, errTruncatedNalu
		}
		nalu := sample[off : off+length]
		off += length

		// 关键帧在首个 IDR 之前补 AUD 和参数集
		if isKeyFrame && IsIdrSlice(nalu[0]) && !paramsWritten {
			out = append(out, StartCode...)
			out = append(out, audNal...)
			for _, sps := range c.sps {
				out = append(out, StartCode...)
				out = append(out, sps...)
			}
			for _, pps := range c.pps {
				out = append(out, StartCode...)
				out = append(out, pps...)
			}
			paramsWritten = true
		}

		out = append(out, StartCode...)
		if c.escapeData {
			out = EscapeNalByteSequence(out, nalu)
		} else {
			out = append(out, nalu...)
		}
	}

	return out, nil
}

// EscapeNalByteSequence 向 dst 追加 payload，在每个 0x00 0x00 之后、
// 下一字节 <= 0x03 时插入防竞争字节 0x03。
func EscapeNalByteSequence(dst, payload []byte) []byte {
	zeros := 0
	for _, b := range payload {
		if zeros >= 2 && b <= 0x03 {
			dst = append(dst, 0x03)
			zeros = 0
		}
		dst = append(dst, b)
		if b == 0x00 {
			zeros++
		} else {
			zeros = 0
		}
	}
	return dst
}

// MetadataIsReady 依据 AVCDecoderConfigurationRecord 中的 SPS 补全视频元数据。
func MetadataIsReady(vi *codec.VideoStreamInfo) bool {
	cfg, err := parseDecoderConfiguration(vi.ExtraData)
	if err != nil || len(cfg.sps) == 0 {
		return false
	}

	if vi.NaluLengthSize == 0 {
		vi.NaluLengthSize = cfg.naluLengthSize
	}

	if vi.Width == 0 {
		// decode
		var rawsps RawSPS
		if err := rawsps.Decode(cfg.sps[0]); err != nil {
			return false
		}
		vi.Width = rawsps.Width()
		vi.Height = rawsps.Height()
		vi.FrameRate = rawsps.FrameRate()
	}
	return true
}
