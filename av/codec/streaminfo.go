// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package codec

// StreamInfo 单个基本流的描述信息
type StreamInfo interface {
	StreamType() MediaType
	TimeScale() uint32
}

// VideoStreamInfo 视频基本流描述
type VideoStreamInfo struct {
	Codec          string  `json:"codec"`
	ClockRate      uint32  `json:"clockrate"`
	Width          int     `json:"width,omitempty"`
	Height         int     `json:"height,omitempty"`
	FrameRate      float64 `json:"framerate,omitempty"`
	NaluLengthSize int     `json:"nalulengthsize,omitempty"`
	ExtraData      []byte  `json:"-"` // AVCDecoderConfigurationRecord
}

// StreamType .
func (si *VideoStreamInfo) StreamType() MediaType { return MediaTypeVideo }

// TimeScale .
func (si *VideoStreamInfo) TimeScale() uint32 { return si.ClockRate }

// AudioStreamInfo 音频基本流描述
type AudioStreamInfo struct {
	Codec      string `json:"codec"`
	ClockRate  uint32 `json:"clockrate"`
	SampleRate int    `json:"samplerate,omitempty"`
	Channels   int    `json:"channels,omitempty"`
	ExtraData  []byte `json:"-"` // AudioSpecificConfig
}

// StreamType .
func (si *AudioStreamInfo) StreamType() MediaType { return MediaTypeAudio }

// TimeScale .
func (si *AudioStreamInfo) TimeScale() uint32 { return si.ClockRate }

// TextStreamInfo 文本流描述，仅用于识别并拒绝
type TextStreamInfo struct {
	Codec     string `json:"codec"`
	ClockRate uint32 `json:"clockrate"`
	Language  string `json:"language,omitempty"`
}

// StreamType .
func (si *TextStreamInfo) StreamType() MediaType { return MediaTypeSubtitle }

// TimeScale .
func (si *TextStreamInfo) TimeScale() uint32 { return si.ClockRate }
