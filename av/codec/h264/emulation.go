// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package h264

import "bytes"

// RemoveNaluSeparator 移除 NALU 分隔符 0x00000001 或 0x000001
func RemoveNaluSeparator(nalu []byte) []byte {
	if bytes.HasPrefix(nalu, StartCode) {
		return nalu[4:]
	}
	if bytes.HasPrefix(nalu, StartCode[1:]) {
		return nalu[3:]
	}
	return nalu
}

// RemoveEmulationBytes 复制 NAL 单元并移除其中的防竞争字节。
// copy from live555
func RemoveEmulationBytes(from []byte) []byte {
	from = RemoveNaluSeparator(from)
	to := make([]byte, 0, len(from))
	i := 0
	for i < len(from) {
		if i+2 < len(from) && from[i] == 0 && from[i+1] == 0 && from[i+2] == 3 {
			to = append(to, 0, 0)
			i += 3
		} else {
			to = append(to, from[i])
			i++
		}
	}
	return to
}
