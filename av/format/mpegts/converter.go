// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mpegts

import (
	"github.com/novoreel/shaka-packager/av/codec/aac"
	"github.com/novoreel/shaka-packager/av/codec/h264"
)

// VideoStreamConverter 把长度前缀的视频采样转换为 Annex-B 字节流。
// Tests substitute fakes; production uses h264.ByteStreamConverter.
type VideoStreamConverter interface {
	Initialize(decoderConfig []byte, escapeData bool) error
	ConvertUnit(sample []byte, isKeyFrame bool) ([]byte, error)
}

// AudioStreamConverter 把原始音频访问单元包装为可直接复用的帧。
type AudioStreamConverter interface {
	Decode(config []byte) error
	ConvertToADTS(frame []byte) ([]byte, error)
}

// ConverterFactory 创建编解码转换器，由生成器在初始化时调用。
type ConverterFactory struct {
	NewVideoConverter func() VideoStreamConverter
	NewAudioConverter func() AudioStreamConverter
}

// DefaultConverterFactory 生产环境的转换器工厂。
var DefaultConverterFactory = &ConverterFactory{
	NewVideoConverter: func() VideoStreamConverter { return &h264.ByteStreamConverter{} },
	NewAudioConverter: func() AudioStreamConverter { return &aacStreamConverter{} },
}

// aacStreamConverter 生产环境的 ADTS 打包器。
type aacStreamConverter struct {
	asc aac.AudioSpecificConfig
}

func (c *aacStreamConverter) Decode(config []byte) error {
	if err := c.asc.Decode(config); err != nil {
		return err
	}
	return c.asc.Validate()
}

func (c *aacStreamConverter) ConvertToADTS(frame []byte) ([]byte, error) {
	return c.asc.ConvertToADTS(frame)
}
