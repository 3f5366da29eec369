// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package aac

import "sort"

const (
	// SamplesPerFrame 每帧采样数
	SamplesPerFrame = 1024
)

// Audio Object Type
const (
	AOT_NULL     = 0
	AOT_AAC_MAIN = 1  // Main
	AOT_AAC_LC   = 2  // Low Complexity
	AOT_AAC_SSR  = 3  // Scalable Sample Rate
	AOT_AAC_LTP  = 4  // Long Term Prediction
	AOT_SBR      = 5  // Spectral Band Replication HE-AAC
	AOT_ER_BSAC  = 22 // Error Resilient Bit-Sliced Arithmetic Coding
	AOT_PS       = 29 // Parametric Stereo
	AOT_ESCAPE   = 31 // Escape Value
)

// AAC Profile 表示使用哪个级别的 AAC。
// 如 01 Low Complexity(LC) – AAC LC
const (
	ProfileMain = AOT_AAC_MAIN - 1
	ProfileLow  = AOT_AAC_LC - 1
	ProfileSSR  = AOT_AAC_SSR - 1
	ProfileLTP  = AOT_AAC_LTP - 1
)

// SampleRate 获取采样频率具体值
func SampleRate(index int) int {
	return SampleRates[index]
}

// SamplingIndex .
func SamplingIndex(rate int) int {
	i := sort.Search(len(SampleRates), func(i int) bool { return SampleRates[i] <= rate })
	if i < len(SampleRates) && SampleRates[i] == rate {
		return i
	}
	return -1
}

// SampleRates 采样频率集合
var SampleRates = [16]int{
	96000, 88200, 64000, 48000,
	44100, 32000, 24000, 22050,
	16000, 12000, 11025, 8000,
	7350}

// MaxSamplingIndex ADTS 头可表达的最大采样频率索引
const MaxSamplingIndex = 12

// AAC ChannelConfig 声道配置
// 0x00 - defined in audioDecoderSpecificConfig
// 0x01 单声道 ... 0x07 7.1声道，0x08-0x0F reserved
const (
	ChannelSpecific     = iota // 0
	ChannelMono                // 1
	ChannelStereo              // 2
	ChannelThree               // 3
	ChannelFour                // 4
	ChannelFive                // 5
	ChannelFivePlusOne         // 6
	ChannelSevenPlusOne        // 7
	ChannelReserved            // 8
)

var aacAudioChannels = [8]uint8{
	0, 1, 2, 3,
	4, 5, 6, 8,
}
