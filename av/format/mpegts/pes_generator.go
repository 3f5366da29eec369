// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mpegts

import (
	"errors"
	"fmt"

	"github.com/cnotch/queue"
	"github.com/cnotch/xlog"
	"github.com/novoreel/shaka-packager/av/codec"
	"github.com/novoreel/shaka-packager/av/codec/h264"
)

// PesPacketGenerator 从定时的媒体采样生成 PES 负载。
// One generator serves one elementary stream (H264 video or AAC audio);
// completed packets queue up in FIFO order until the TS muxer polls them.
// All entry points run to completion on the caller's goroutine.
type PesPacketGenerator struct {
	factory    *ConverterFactory
	streamType codec.MediaType
	streamID   byte
	timeScale  uint32
	extraData  []byte

	converter VideoStreamConverter
	adts      AudioStreamConverter

	key       *codec.EncryptionKey
	encryptor *sampleEncryptor

	ready  queue.Queue
	logger *xlog.Logger // 日志对象
}

// NewPesPacketGenerator .
func NewPesPacketGenerator(logger *xlog.Logger) *PesPacketGenerator {
	return NewPesPacketGeneratorWithFactory(DefaultConverterFactory, logger)
}

// NewPesPacketGeneratorWithFactory 使用指定的转换器工厂创建生成器。
func NewPesPacketGeneratorWithFactory(factory *ConverterFactory, logger *xlog.Logger) *PesPacketGenerator {
	if logger == nil {
		logger = xlog.L()
	}
	return &PesPacketGenerator{
		factory: factory,
		logger:  logger,
	}
}

// Initialize 绑定流信息并构造编解码转换器。
// The codec is fixed for the lifetime of the generator.
func (g *PesPacketGenerator) Initialize(info codec.StreamInfo) error {
	if g.streamID != 0 {
		return errors.New("pes generator is already initialized")
	}
	if info.TimeScale() == 0 {
		return errors.New("pes generator requires a positive stream time scale")
	}

	switch info := info.(type) {
	case *codec.VideoStreamInfo:
		if info.Codec != "H264" {
			return fmt.Errorf("pes generator unsupport video codec type:%s", info.Codec)
		}
		converter := g.factory.NewVideoConverter()
		if err := converter.Initialize(info.ExtraData, true); err != nil {
			return err
		}
		if !h264.MetadataIsReady(info) {
			g.logger.Warnf("pes generator: video metadata not derivable from decoder configuration")
		}
		g.converter = converter
		g.extraData = info.ExtraData
		g.streamType = codec.MediaTypeVideo
		g.streamID = StreamIDVideo

	case *codec.AudioStreamInfo:
		if info.Codec != "AAC" {
			return fmt.Errorf("pes generator unsupport audio codec type:%s", info.Codec)
		}
		adts := g.factory.NewAudioConverter()
		if err := adts.Decode(info.ExtraData); err != nil {
			return err
		}
		g.adts = adts
		g.streamType = codec.MediaTypeAudio
		g.streamID = StreamIDAudio

	default:
		return fmt.Errorf("pes generator unsupport stream type:%s", info.StreamType())
	}

	g.timeScale = info.TimeScale()
	g.logger.Debugf("pes generator: stream bound, type=%s timescale=%d", g.streamType, g.timeScale)
	return nil
}

// SetEncryptionKey 启用采样加密，对后续全部采样生效。
func (g *PesPacketGenerator) SetEncryptionKey(key *codec.EncryptionKey) error {
	if g.streamID == 0 {
		return errors.New("pes generator is not initialized")
	}

	encryptor, err := newSampleEncryptor(key)
	if err != nil {
		return err
	}

	if g.streamType == codec.MediaTypeVideo {
		// 加密的条带布局在未转义的字节流上计算，转义推迟到加密之后
		if err := g.converter.Initialize(g.extraData, false); err != nil {
			return err
		}
	}

	g.key = key
	g.encryptor = encryptor
	return nil
}

// PushSample 处理一个采样；成功时恰好入列一个 PES 包。
// On failure the sample is dropped and the ready queue is unchanged.
func (g *PesPacketGenerator) PushSample(sample *codec.MediaSample) error {
	if g.streamID == 0 {
		return errors.New("pes generator is not initialized")
	}

	var data []byte
	var err error
	if g.streamType == codec.MediaTypeVideo {
		data, err = g.converter.ConvertUnit(sample.Payload, sample.KeyFrame)
		if err == nil && g.encryptor != nil {
			data, err = g.encryptor.EncryptNalByteStream(data)
		}
	} else {
		data, err = g.adts.ConvertToADTS(sample.Payload)
		if err == nil && g.encryptor != nil {
			g.encryptor.EncryptAacFrame(data)
		}
	}
	if err != nil {
		g.logger.Warnf("pes generator: sample dropped - %s", err.Error())
		return err
	}

	g.ready.Push(&PesPacket{
		StreamID: g.streamID,
		Pts:      RescaleTimestamp(sample.Pts, g.timeScale),
		Dts:      RescaleTimestamp(sample.Dts, g.timeScale),
		Data:     data,
	})
	return nil
}

// NumberOfReadyPesPackets 就绪队列深度。
func (g *PesPacketGenerator) NumberOfReadyPesPackets() int {
	return g.ready.Len()
}

// GetNextPesPacket 出列队首的 PES 包，队列为空时返回 nil。
func (g *PesPacketGenerator) GetNextPesPacket() *PesPacket {
	p, ok := g.ready.Pop()
	if !ok {
		return nil
	}
	return p.(*PesPacket)
}

// Flush 排空内部待处理状态，不清除就绪队列。
// Samples complete synchronously inside PushSample, so there is never a
// partially assembled packet to drain.
func (g *PesPacketGenerator) Flush() error {
	return nil
}

// Close 释放就绪队列并清零密钥材料。
func (g *PesPacketGenerator) Close() error {
	if g.encryptor != nil {
		g.encryptor.erase()
		g.encryptor = nil
	}
	if g.key != nil {
		g.key.Erase()
		g.key = nil
	}
	g.ready.Reset()
	return nil
}
