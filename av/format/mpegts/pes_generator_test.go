// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mpegts

import (
	"testing"

	"github.com/novoreel/shaka-packager/av/codec"
	"github.com/stretchr/testify/assert"
)

var anyData = []byte{0x56, 0x87, 0x88, 0x33, 0x98, 0xAF, 0xE5}

var testVideoExtraData = []byte{
	0x01,       // configuration version (must be 1)
	0x00,       // AVCProfileIndication (bogus)
	0x00,       // profile_compatibility (bogus)
	0x00,       // AVCLevelIndication (bogus)
	0xFF,       // Length size minus 1 == 3
	0xE1,       // 1 sps.
	0x00, 0x1D, // SPS length == 29
	0x67, 0x64, 0x00, 0x1E, 0xAC, 0xD9, 0x40, 0xB4,
	0x2F, 0xF9, 0x7F, 0xF0, 0x00, 0x80, 0x00, 0x91,
	0x00, 0x00, 0x03, 0x03, 0xE9, 0x00, 0x00, 0xEA,
	0x60, 0x0F, 0x16, 0x2D, 0x96,
	0x01,       // 1 pps.
	0x00, 0x0A, // PPS length == 10
	0x68, 0xFE, 0xFD, 0xFC, 0xFB, 0x11, 0x12, 0x13, 0x14, 0x15,
}

var testAudioExtraData = []byte{0x12, 0x10}

// byteRange 生成 [from, to] 的连续字节序列
func byteRange(from, to byte) []byte {
	out := make([]byte, 0, int(to)-int(from)+1)
	for b := from; ; b++ {
		out = append(out, b)
		if b == to {
			break
		}
	}
	return out
}

func cat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// openssl aes-128-cbc -nopad -e -K 00..0 -iv 00..0 over the matching
// plaintext runs.
var (
	encryptedBlock1 = []byte{
		0x93, 0x3A, 0x2C, 0x38, 0x86, 0x4B, 0x64, 0xE2, 0x62, 0x7E, 0xCC, 0x75,
		0x71, 0xFB, 0x60, 0x7C,
	}
	encryptedBlock2 = []byte{
		0xB7, 0x1C, 0x64, 0xAE, 0x90, 0xA4, 0x35, 0x88, 0x4F, 0xD1, 0x30, 0xC2,
		0x06, 0x2E, 0xF8, 0xA5,
	}
	aacEncryptedBlocks = []byte{
		0xE3, 0x42, 0x9B, 0x27, 0x33, 0x67, 0x68, 0x08, 0xA5, 0xB3, 0x3E, 0xB1,
		0xEE, 0xFC, 0x9E, 0x0A, 0x8E, 0x0C, 0x73, 0xC5, 0x57, 0xEE, 0x58, 0xC7,
		0x48, 0x74, 0x2A, 0x12, 0x38, 0x4F, 0x4E, 0xAC,
	}
)

type fakeVideoConverter struct {
	initErr    error
	convertErr error
	out        []byte
	escapeData bool
}

func (f *fakeVideoConverter) Initialize(decoderConfig []byte, escapeData bool) error {
	f.escapeData = escapeData
	return f.initErr
}

func (f *fakeVideoConverter) ConvertUnit(sample []byte, isKeyFrame bool) ([]byte, error) {
	if f.convertErr != nil {
		return nil, f.convertErr
	}
	if f.out != nil {
		return append([]byte(nil), f.out...), nil
	}
	return append([]byte(nil), sample...), nil
}

type fakeAudioConverter struct {
	decodeErr  error
	convertErr error
}

func (f *fakeAudioConverter) Decode(config []byte) error {
	return f.decodeErr
}

func (f *fakeAudioConverter) ConvertToADTS(frame []byte) ([]byte, error) {
	if f.convertErr != nil {
		return nil, f.convertErr
	}
	return append([]byte(nil), frame...), nil
}

func fakeFactory(v VideoStreamConverter, a AudioStreamConverter) *ConverterFactory {
	return &ConverterFactory{
		NewVideoConverter: func() VideoStreamConverter { return v },
		NewAudioConverter: func() AudioStreamConverter { return a },
	}
}

func videoStreamInfo(timescale uint32) *codec.VideoStreamInfo {
	return &codec.VideoStreamInfo{
		Codec:     "H264",
		ClockRate: timescale,
		ExtraData: testVideoExtraData,
	}
}

func audioStreamInfo(timescale uint32) *codec.AudioStreamInfo {
	return &codec.AudioStreamInfo{
		Codec:     "AAC",
		ClockRate: timescale,
		ExtraData: testAudioExtraData,
	}
}

func allZeroKey() *codec.EncryptionKey {
	return &codec.EncryptionKey{
		Key: make([]byte, 16),
		IV:  make([]byte, 16),
	}
}

func TestPesPacketGenerator_InitializeVideo(t *testing.T) {
	g := NewPesPacketGenerator(nil)
	info := videoStreamInfo(90000)
	assert.NoError(t, g.Initialize(info))
	// metadata supplements from the sps in the decoder configuration
	assert.Equal(t, 4, info.NaluLengthSize)
}

func TestPesPacketGenerator_InitializeVideoNonH264(t *testing.T) {
	g := NewPesPacketGenerator(nil)
	info := videoStreamInfo(90000)
	info.Codec = "VP9"
	assert.Error(t, g.Initialize(info))
}

func TestPesPacketGenerator_InitializeAudio(t *testing.T) {
	g := NewPesPacketGenerator(nil)
	assert.NoError(t, g.Initialize(audioStreamInfo(90000)))
}

func TestPesPacketGenerator_InitializeAudioNonAac(t *testing.T) {
	g := NewPesPacketGenerator(nil)
	info := audioStreamInfo(90000)
	info.Codec = "OPUS"
	assert.Error(t, g.Initialize(info))
}

func TestPesPacketGenerator_InitializeText(t *testing.T) {
	g := NewPesPacketGenerator(nil)
	info := &codec.TextStreamInfo{Codec: "WVTT", ClockRate: 90000}
	assert.Error(t, g.Initialize(info))
}

func TestPesPacketGenerator_PushSampleBeforeInitialize(t *testing.T) {
	g := NewPesPacketGenerator(nil)
	err := g.PushSample(&codec.MediaSample{Payload: anyData})
	assert.Error(t, err)
	assert.Equal(t, 0, g.NumberOfReadyPesPackets())
}

func TestPesPacketGenerator_AddVideoSample(t *testing.T) {
	g := NewPesPacketGeneratorWithFactory(fakeFactory(&fakeVideoConverter{}, nil), nil)
	assert.NoError(t, g.Initialize(videoStreamInfo(90000)))
	assert.Equal(t, 0, g.NumberOfReadyPesPackets())

	sample := &codec.MediaSample{
		Pts:      12345,
		Dts:      12300,
		KeyFrame: true,
		Payload:  anyData,
	}
	assert.NoError(t, g.PushSample(sample))
	assert.Equal(t, 1, g.NumberOfReadyPesPackets())

	pes := g.GetNextPesPacket()
	if assert.NotNil(t, pes) {
		assert.Equal(t, byte(StreamIDVideo), pes.StreamID)
		assert.Equal(t, int64(12345), pes.Pts)
		assert.Equal(t, int64(12300), pes.Dts)
		assert.Equal(t, anyData, pes.Data)
	}
	assert.Equal(t, 0, g.NumberOfReadyPesPackets())
	assert.Nil(t, g.GetNextPesPacket())
	assert.NoError(t, g.Flush())
}

func TestPesPacketGenerator_AddVideoSampleFailedToConvert(t *testing.T) {
	fake := &fakeVideoConverter{convertErr: assert.AnError}
	g := NewPesPacketGeneratorWithFactory(fakeFactory(fake, nil), nil)
	assert.NoError(t, g.Initialize(videoStreamInfo(90000)))

	err := g.PushSample(&codec.MediaSample{KeyFrame: true, Payload: anyData})
	assert.Error(t, err)
	assert.Equal(t, 0, g.NumberOfReadyPesPackets())
	assert.NoError(t, g.Flush())
}

func TestPesPacketGenerator_AddAudioSample(t *testing.T) {
	g := NewPesPacketGeneratorWithFactory(fakeFactory(nil, &fakeAudioConverter{}), nil)
	assert.NoError(t, g.Initialize(audioStreamInfo(90000)))

	assert.NoError(t, g.PushSample(&codec.MediaSample{Payload: anyData}))
	assert.Equal(t, 1, g.NumberOfReadyPesPackets())

	pes := g.GetNextPesPacket()
	if assert.NotNil(t, pes) {
		assert.Equal(t, byte(StreamIDAudio), pes.StreamID)
		assert.Equal(t, anyData, pes.Data)
	}
	assert.Equal(t, 0, g.NumberOfReadyPesPackets())
	assert.NoError(t, g.Flush())
}

func TestPesPacketGenerator_AddAudioSampleFailedToConvert(t *testing.T) {
	fake := &fakeAudioConverter{convertErr: assert.AnError}
	g := NewPesPacketGeneratorWithFactory(fakeFactory(nil, fake), nil)
	assert.NoError(t, g.Initialize(audioStreamInfo(90000)))

	err := g.PushSample(&codec.MediaSample{Payload: anyData})
	assert.Error(t, err)
	assert.Equal(t, 0, g.NumberOfReadyPesPackets())
	assert.NoError(t, g.Flush())
}

// Because TS has to use 90000 as its timescale, the timestamps must be
// scaled.
func TestPesPacketGenerator_TimeStampScaling(t *testing.T) {
	g := NewPesPacketGeneratorWithFactory(fakeFactory(&fakeVideoConverter{}, nil), nil)
	assert.NoError(t, g.Initialize(videoStreamInfo(1000)))

	sample := &codec.MediaSample{
		Pts:      5000,
		Dts:      4000,
		KeyFrame: true,
		Payload:  anyData,
	}
	assert.NoError(t, g.PushSample(sample))

	pes := g.GetNextPesPacket()
	if assert.NotNil(t, pes) {
		assert.Equal(t, int64(450000), pes.Pts)
		assert.Equal(t, int64(360000), pes.Dts)
	}
}

func TestPesPacketGenerator_ReadyQueueIsFifo(t *testing.T) {
	g := NewPesPacketGeneratorWithFactory(fakeFactory(&fakeVideoConverter{}, nil), nil)
	assert.NoError(t, g.Initialize(videoStreamInfo(90000)))

	for i := int64(0); i < 3; i++ {
		assert.NoError(t, g.PushSample(&codec.MediaSample{Pts: i, Dts: i, Payload: anyData}))
	}
	assert.Equal(t, 3, g.NumberOfReadyPesPackets())
	for i := int64(0); i < 3; i++ {
		pes := g.GetNextPesPacket()
		if assert.NotNil(t, pes) {
			assert.Equal(t, i, pes.Pts)
		}
	}
	assert.Nil(t, g.GetNextPesPacket())
}

func TestPesPacketGenerator_SetEncryptionKeyBeforeInitialize(t *testing.T) {
	g := NewPesPacketGenerator(nil)
	assert.Error(t, g.SetEncryptionKey(allZeroKey()))
}

func TestPesPacketGenerator_SetEncryptionKeyBadKeyMaterial(t *testing.T) {
	g := NewPesPacketGeneratorWithFactory(fakeFactory(&fakeVideoConverter{}, nil), nil)
	assert.NoError(t, g.Initialize(videoStreamInfo(90000)))

	assert.Error(t, g.SetEncryptionKey(&codec.EncryptionKey{Key: make([]byte, 24), IV: make([]byte, 16)}))
	assert.Error(t, g.SetEncryptionKey(&codec.EncryptionKey{Key: make([]byte, 16), IV: make([]byte, 8)}))
	assert.Error(t, g.SetEncryptionKey(nil))
}

func h264EncryptionTest(t *testing.T, input, expected []byte) {
	fake := &fakeVideoConverter{out: input}
	g := NewPesPacketGeneratorWithFactory(fakeFactory(fake, nil), nil)
	assert.NoError(t, g.Initialize(videoStreamInfo(90000)))
	assert.Equal(t, 0, g.NumberOfReadyPesPackets())

	assert.NoError(t, g.SetEncryptionKey(allZeroKey()))
	// the stripe layout is computed on the unescaped byte stream
	assert.False(t, fake.escapeData)

	sample := &codec.MediaSample{
		Pts:      12345,
		Dts:      12300,
		KeyFrame: true,
		Payload:  input,
	}
	assert.NoError(t, g.PushSample(sample))
	assert.Equal(t, 1, g.NumberOfReadyPesPackets())

	pes := g.GetNextPesPacket()
	if assert.NotNil(t, pes) {
		assert.Equal(t, expected, pes.Data)
	}
}

func aacEncryptionTest(t *testing.T, input, expected []byte) {
	g := NewPesPacketGeneratorWithFactory(fakeFactory(nil, &fakeAudioConverter{}), nil)
	assert.NoError(t, g.Initialize(audioStreamInfo(90000)))
	assert.Equal(t, 0, g.NumberOfReadyPesPackets())

	assert.NoError(t, g.SetEncryptionKey(allZeroKey()))

	assert.NoError(t, g.PushSample(&codec.MediaSample{Payload: input}))
	assert.Equal(t, 1, g.NumberOfReadyPesPackets())

	pes := g.GetNextPesPacket()
	if assert.NotNil(t, pes) {
		assert.Equal(t, expected, pes.Data)
	}
}

// The nalu is too small for it to be encrypted; it must not be modified.
func TestPesPacketGenerator_H264SampleEncryptionSmallNalu(t *testing.T) {
	naluData := []byte{0x00, 0x00, 0x00, 0x01, 0x61, 0xBB, 0xCC, 0xDD}
	h264EncryptionTest(t, naluData, naluData)
}

func TestPesPacketGenerator_H264SampleEncryption(t *testing.T) {
	input := cat(
		[]byte{0x00, 0x00, 0x00, 0x01}, // start code
		[]byte{0x61},                   // nalu type 1; this type gets encrypted
		byteRange(0x00, 0x1E),          // 31 bytes, clear leader
		byteRange(0x1F, 0x2E),          // 16 bytes, encrypted
		byteRange(0x2F, 0xBE),          // 144 bytes, clear run
		byteRange(0xBF, 0xCE),          // 16 bytes, encrypted
		[]byte{0xCF},                   // trailer, clear
	)
	expected := cat(
		[]byte{0x00, 0x00, 0x00, 0x01},
		[]byte{0x61},
		byteRange(0x00, 0x1E),
		encryptedBlock1,
		byteRange(0x2F, 0xBE),
		encryptedBlock2,
		[]byte{0xCF},
	)
	h264EncryptionTest(t, input, expected)
}

// If any block is encrypted, the whole nal unit must be re-escaped.
func TestPesPacketGenerator_H264SampleEncryptionVerifyReescape(t *testing.T) {
	input := cat(
		[]byte{0x00, 0x00, 0x00, 0x01},
		[]byte{0x61},
		[]byte{0x00, 0x00, 0x03, 0x02}, // clear, but 00 00 03 must be re-escaped
		byteRange(0x04, 0x1E),
		byteRange(0x1F, 0x2E), // encrypted block
		byteRange(0x2F, 0x9A),
		[]byte{0x9B, 0x9C, 0x9D, 0x00, 0x00, 0x03, 0x01}, // clear, re-escaped
		byteRange(0xA2, 0xBE),
		byteRange(0xBF, 0xCE), // encrypted block
		[]byte{0xCF},
	)
	expected := cat(
		[]byte{0x00, 0x00, 0x00, 0x01},
		[]byte{0x61},
		[]byte{0x00, 0x00, 0x03, 0x03, 0x02},
		byteRange(0x04, 0x1E),
		encryptedBlock1,
		byteRange(0x2F, 0x9A),
		[]byte{0x9B, 0x9C, 0x9D, 0x00, 0x00, 0x03, 0x03, 0x01},
		byteRange(0xA2, 0xBE),
		encryptedBlock2,
		[]byte{0xCF},
	)
	h264EncryptionTest(t, input, expected)
}

// When only 16 bytes remain after a clear run they stay in the clear.
func TestPesPacketGenerator_H264SampleEncryptionLast16BytesNotEncrypted(t *testing.T) {
	input := cat(
		[]byte{0x00, 0x00, 0x00, 0x01},
		[]byte{0x61},
		byteRange(0x00, 0x1E),
		byteRange(0x1F, 0x2E), // encrypted block
		byteRange(0x2F, 0xBE),
		byteRange(0xBF, 0xCE), // trailing 16 bytes, clear
	)
	expected := cat(
		[]byte{0x00, 0x00, 0x00, 0x01},
		[]byte{0x61},
		byteRange(0x00, 0x1E),
		encryptedBlock1,
		byteRange(0x2F, 0xBE),
		byteRange(0xBF, 0xCE),
	)
	h264EncryptionTest(t, input, expected)
}

// The sample is too small and must not be encrypted.
func TestPesPacketGenerator_AacSampleEncryptionSmallSample(t *testing.T) {
	clearData := byteRange(0x00, 0x1E) // 31 bytes
	aacEncryptionTest(t, clearData, clearData)
}

func TestPesPacketGenerator_AacSampleEncryption(t *testing.T) {
	input := cat(
		byteRange(0x07, 0x16), // first 16 bytes always clear
		byteRange(0x17, 0x36), // 2 blocks, encrypted
		[]byte{0x37, 0x38},    // trailer, clear
	)
	expected := cat(
		byteRange(0x07, 0x16),
		aacEncryptedBlocks,
		[]byte{0x37, 0x38},
	)
	aacEncryptionTest(t, input, expected)
}

// Unlike h264, the last full block is encrypted even when it is final.
func TestPesPacketGenerator_AacSampleEncryptionLastBytesAreEncrypted(t *testing.T) {
	input := cat(
		byteRange(0x07, 0x16),
		byteRange(0x17, 0x36),
	)
	expected := cat(
		byteRange(0x07, 0x16),
		aacEncryptedBlocks,
	)
	aacEncryptionTest(t, input, expected)
}

func TestPesPacketGenerator_Close(t *testing.T) {
	g := NewPesPacketGeneratorWithFactory(fakeFactory(&fakeVideoConverter{}, nil), nil)
	assert.NoError(t, g.Initialize(videoStreamInfo(90000)))

	assert.NoError(t, g.PushSample(&codec.MediaSample{Payload: anyData}))
	assert.Equal(t, 1, g.NumberOfReadyPesPackets())

	key := allZeroKey()
	key.Key[0] = 0xAB
	assert.NoError(t, g.SetEncryptionKey(key))

	assert.NoError(t, g.Close())
	assert.Equal(t, 0, g.NumberOfReadyPesPackets())
	assert.Equal(t, byte(0), key.Key[0])
}
