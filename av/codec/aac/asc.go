// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
//
// Translate from FFmpeg mpeg4audio.h mpeg4audio.c
//
package aac

import (
	"encoding/hex"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/novoreel/shaka-packager/utils/bits"
)

// AudioSpecificConfig MPEG-4 音频配置描述。
type AudioSpecificConfig struct {
	ObjectType       uint8
	SamplingIndex    uint8
	SampleRate       int
	ChannelConfig    uint8
	Sbr              int ///< -1 implicit, 1 presence
	ExtObjectType    uint8
	ExtSamplingIndex uint8
	ExtSampleRate    int
	Channels         uint8
	Ps               int ///< -1 implicit, 1 presence
}

// DecodeString 从 hex 字串解码配置
func (asc *AudioSpecificConfig) DecodeString(config string) error {
	data, err := hex.DecodeString(config)
	if err != nil {
		return err
	}
	return asc.Decode(data)
}

// Decode 从字节序列中解码配置
func (asc *AudioSpecificConfig) Decode(config []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("AudioSpecificConfig decode panic；r = %v \n %s", r, debug.Stack())
		}
	}()

	if len(config) < 2 {
		return errors.New("audio specific config is not enough")
	}

	r := bits.NewReader(config)

	asc.ObjectType = getObjectType(r)
	asc.SamplingIndex, asc.SampleRate = getSampleRate(r)
	asc.ChannelConfig = r.ReadUint8(4)
	if int(asc.ChannelConfig) < len(aacAudioChannels) {
		asc.Channels = aacAudioChannels[asc.ChannelConfig]
	}
	asc.Sbr = -1
	asc.Ps = -1
	if asc.ObjectType == AOT_SBR || (asc.ObjectType == AOT_PS &&
		0 == r.Peek(3)&0x03 && 0 == r.Peek(9)&0x3F) { // check for W6132 Annex YYYY draft MP3onMP4
		if asc.ObjectType == AOT_PS {
			asc.Ps = 1
		}
		asc.ExtObjectType = AOT_SBR
		asc.Sbr = 1
		asc.ExtSamplingIndex, asc.ExtSampleRate = getSampleRate(r)
		asc.ObjectType = getObjectType(r)
	} else {
		asc.ExtObjectType = AOT_NULL
		asc.ExtSampleRate = 0
	}

	if asc.ExtObjectType != AOT_SBR {
		for r.BitsLeft() > 15 {
			if r.Peek(11) == 0x2b7 { // sync extension
				r.Skip(11)
				asc.ExtObjectType = getObjectType(r)
				if asc.ExtObjectType == AOT_SBR {
					asc.Sbr = int(r.ReadBit())
					if asc.Sbr == 1 {
						asc.ExtSamplingIndex, asc.ExtSampleRate = getSampleRate(r)
						if asc.ExtSampleRate == asc.SampleRate {
							asc.Sbr = -1
						}
					}
				}
				if r.BitsLeft() > 11 && r.Read(11) == 0x548 {
					asc.Ps = int(r.ReadBit())
				}
				break
			}
			r.Skip(1)
		}
	}

	// PS requires SBR
	if asc.Sbr == 0 {
		asc.Ps = 0
	}
	// Limit implicit PS to the HE-AACv2 Profile
	if (asc.Ps == -1 && asc.ObjectType != AOT_AAC_LC) || (asc.Channels&^0x01) != 0 {
		asc.Ps = 0
	}
	return
}

// Validate 校验配置是否可以表达为 ADTS 头。
func (asc *AudioSpecificConfig) Validate() error {
	if asc.ObjectType < AOT_AAC_MAIN || asc.ObjectType > AOT_AAC_LTP {
		return fmt.Errorf("adts unsupport aac object type=%d", asc.ObjectType)
	}
	if asc.adtsSamplingIndex() > MaxSamplingIndex {
		return fmt.Errorf("adts unsupport sampling frequency index=%d", asc.adtsSamplingIndex())
	}
	if asc.ChannelConfig == ChannelSpecific || asc.ChannelConfig >= ChannelReserved {
		return fmt.Errorf("adts unsupport channel configuration=%d", asc.ChannelConfig)
	}
	return nil
}

// ToAdtsHeader 生成访问单元的 ADTS 头。
func (asc *AudioSpecificConfig) ToAdtsHeader(payloadSize int) ADTSHeader {
	return NewADTSHeader(asc.ObjectType-1, asc.adtsSamplingIndex(), asc.ChannelConfig, payloadSize)
}

// ConvertToADTS 将一个原始 AAC 访问单元包装为 ADTS 帧。
func (asc *AudioSpecificConfig) ConvertToADTS(frame []byte) ([]byte, error) {
	if err := asc.Validate(); err != nil {
		return nil, err
	}
	// frame_length 13bits
	if len(frame)+ADTSHeaderSize >= 1<<13 {
		return nil, fmt.Errorf("access unit size %d overflows the adts frame length", len(frame))
	}

	header := asc.ToAdtsHeader(len(frame))
	out := make([]byte, 0, ADTSHeaderSize+len(frame))
	out = append(out, header[:]...)
	out = append(out, frame...)
	return out, nil
}

func (asc *AudioSpecificConfig) adtsSamplingIndex() uint8 {
	if asc.ExtSampleRate > 0 {
		return asc.ExtSamplingIndex
	}
	return asc.SamplingIndex
}

// Encode2BytesASC 编码 2 字节的 AudioSpecificConfig。
func Encode2BytesASC(objType, samplingIdx, channelConfig byte) []byte {
	var config = make([]byte, 2)
	config[0] = objType<<3 | (samplingIdx>>1)&0x07
	config[1] = samplingIdx<<7 | (channelConfig&0x0f)<<3
	return config
}

func getObjectType(r *bits.Reader) (objType uint8) {
	objType = r.ReadUint8(5)
	if AOT_ESCAPE == objType {
		objType = r.ReadUint8(6) + 32
	}
	return
}

func getSampleRate(r *bits.Reader) (sampleRateIdx uint8, sampleRate int) {
	sampleRateIdx = r.ReadUint8(4)
	if sampleRateIdx == 0xf {
		sampleRate = r.ReadInt(24)
	} else {
		sampleRate = SampleRate(int(sampleRateIdx))
	}
	return
}
