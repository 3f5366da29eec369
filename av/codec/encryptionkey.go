// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package codec

// EncryptionKey 一对已解析好的 AES-128-CBC 密钥和初始向量。
// Key acquisition from a DRM system happens upstream; the muxing core
// only consumes the resolved pair.
type EncryptionKey struct {
	Key []byte
	IV  []byte
}

// Erase 清零密钥材料
func (k *EncryptionKey) Erase() {
	for i := range k.Key {
		k.Key[i] = 0
	}
	for i := range k.IV {
		k.IV[i] = 0
	}
}
