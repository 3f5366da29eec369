// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mpegts

import "math/bits"

// RescaleTimestamp 把时间戳从流时间刻度换算到 90kHz。
// The product ts*90000 can overflow 64 bits for large timestamps, so the
// intermediate runs through a 128-bit multiply/divide. Rounding is
// half to even.
func RescaleTimestamp(ts int64, timescale uint32) int64 {
	if timescale == Mpeg2Timescale {
		return ts
	}

	neg := ts < 0
	u := uint64(ts)
	if neg {
		u = uint64(-ts)
	}

	hi, lo := bits.Mul64(u, Mpeg2Timescale)
	if hi >= uint64(timescale) {
		// quotient does not fit in 64 bits
		if neg {
			return -1 << 63
		}
		return 1<<63 - 1
	}
	q, r := bits.Div64(hi, lo, uint64(timescale))

	switch {
	case 2*r > uint64(timescale):
		q++
	case 2*r == uint64(timescale) && q&1 == 1:
		q++
	}

	if neg {
		return -int64(q)
	}
	return int64(q)
}
