// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mpegts

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"fmt"

	"github.com/novoreel/shaka-packager/av/codec"
	"github.com/novoreel/shaka-packager/av/codec/h264"
)

// HLS 采样加密的分块布局
const (
	aesBlockSize = 16

	// 视频：NAL 头起算的前 32 字节和最后 16 字节明文，
	// 其余按 16 字节加密 + 144 字节明文交替。
	videoClearLeaderSize = 32
	videoClearRunSize    = 144

	// 音频：ADTS 帧的前 16 字节明文，其余完整块全部加密。
	audioClearLeaderSize = 16
)

// sampleEncryptor 对已准备好的字节流应用 AES-128-CBC 采样加密模式。
// The CBC chain runs across the encrypted blocks of one NAL unit or one
// ADTS frame and restarts from the configured IV for every NAL unit and
// every sample.
type sampleEncryptor struct {
	block cipher.Block
	iv    []byte
}

func newSampleEncryptor(key *codec.EncryptionKey) (*sampleEncryptor, error) {
	if key == nil || len(key.Key) != aesBlockSize {
		return nil, fmt.Errorf("encryption key must be %d bytes", aesBlockSize)
	}
	if len(key.IV) != aesBlockSize {
		return nil, fmt.Errorf("encryption iv must be %d bytes", aesBlockSize)
	}

	block, err := aes.NewCipher(key.Key)
	if err != nil {
		return nil, err
	}

	return &sampleEncryptor{
		block: block,
		iv:    append([]byte(nil), key.IV...),
	}, nil
}

// encryptBlock 加密一个 16 字节块，IV 重置为配置值。
func (e *sampleEncryptor) encryptBlock(b []byte) {
	cipher.NewCBCEncrypter(e.block, e.iv).CryptBlocks(b, b)
}

// erase 清零 IV 副本；cipher.Block 持有的 AES 轮密钥不在此清零
func (e *sampleEncryptor) erase() {
	for i := range e.iv {
		e.iv[i] = 0
	}
}

// EncryptAacFrame 就地加密一个 ADTS 帧。
// Frames shorter than 32 bytes pass through untouched; unlike the video
// pattern the final full block is encrypted even when it is the last.
func (e *sampleEncryptor) EncryptAacFrame(frame []byte) {
	if len(frame) < audioClearLeaderSize+aesBlockSize {
		return
	}

	mode := cipher.NewCBCEncrypter(e.block, e.iv)
	for off := audioClearLeaderSize; len(frame)-off >= aesBlockSize; off += aesBlockSize {
		mode.CryptBlocks(frame[off:off+aesBlockSize], frame[off:off+aesBlockSize])
	}
}

// EncryptNalByteStream 加密一个未转义的 Annex-B 字节流。
// Only VCL slices (types 1 and 5) are touched. A unit whose size from the
// NAL header is 48 bytes or less carries no encryptable block and passes
// through byte-identical; an encrypted unit is re-escaped as a whole,
// since ciphertext can fabricate start-code prefixes.
func (e *sampleEncryptor) EncryptNalByteStream(stream []byte) ([]byte, error) {
	out := make([]byte, 0, len(stream)+len(stream)/64+16)

	for off := 0; off < len(stream); {
		prefix, body, next, err := nextNalUnit(stream, off)
		if err != nil {
			return nil, err
		}
		off = next

		if !h264.IsVclSlice(body[0]) || len(body) <= videoClearLeaderSize+aesBlockSize {
			out = append(out, prefix...)
			out = append(out, body...)
			continue
		}

		unit := append([]byte(nil), body...)
		mode := cipher.NewCBCEncrypter(e.block, e.iv)
		for p := videoClearLeaderSize; len(unit)-p > aesBlockSize; {
			mode.CryptBlocks(unit[p:p+aesBlockSize], unit[p:p+aesBlockSize])
			p += aesBlockSize

			run := videoClearRunSize
			if rest := len(unit) - p - aesBlockSize; run > rest {
				run = rest
				if run < 0 {
					run = 0
				}
			}
			p += run
		}

		out = append(out, prefix...)
		out = h264.EscapeNalByteSequence(out, unit)
	}

	return out, nil
}

var errNalByteStream = errors.New("malformed annex-b byte stream")

// nextNalUnit 从 off 处读取一个带起始码的 NAL 单元。
// Returns the start code, the unit body up to the next start code, and
// the offset past the unit.
func nextNalUnit(stream []byte, off int) (prefix, body []byte, next int, err error) {
	rest := stream[off:]

	prefixLen := 0
	switch {
	case len(rest) > 4 && rest[0] == 0 && rest[1] == 0 && rest[2] == 0 && rest[3] == 1:
		prefixLen = 4
	case len(rest) > 3 && rest[0] == 0 && rest[1] == 0 && rest[2] == 1:
		prefixLen = 3
	default:
		return nil, nil, 0, errNalByteStream
	}

	end := len(rest)
	for i := prefixLen; i+2 < len(rest); i++ {
		if rest[i] == 0 && rest[i+1] == 0 && rest[i+2] == 1 {
			end = i
			if i > prefixLen && rest[i-1] == 0 {
				end = i - 1
			}
			break
		}
	}

	if end == prefixLen {
		return nil, nil, 0, errNalByteStream
	}
	return rest[:prefixLen], rest[prefixLen:end], off + end, nil
}
