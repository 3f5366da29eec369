// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package codec

import (
	"fmt"
	"strings"
)

// MediaType 媒体类型
type MediaType int

// 媒体类型常量
const (
	MediaTypeUnknown MediaType = iota - 1
	MediaTypeVideo
	MediaTypeAudio
	MediaTypeSubtitle
)

// String returns a lower-case ASCII representation of the media type.
func (mt MediaType) String() string {
	switch mt {
	case MediaTypeVideo:
		return "video"
	case MediaTypeAudio:
		return "audio"
	case MediaTypeSubtitle:
		return "subtitle"
	default:
		return ""
	}
}

// MarshalText marshals the MediaType to text.
func (mt *MediaType) MarshalText() ([]byte, error) {
	return []byte(mt.String()), nil
}

// UnmarshalText unmarshals text to a MediaType.
func (mt *MediaType) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "video":
		*mt = MediaTypeVideo
	case "audio":
		*mt = MediaTypeAudio
	case "subtitle":
		*mt = MediaTypeSubtitle
	default:
		return fmt.Errorf("unrecognized media type: %q", text)
	}
	return nil
}

// MediaSample 一个完整的媒体采样。
// Video payload is length-prefixed NAL units as carried in MP4/AVCC;
// audio payload is one raw AAC access unit.
type MediaSample struct {
	Pts      int64  // 采样的 PTS，单位为流的时间刻度
	Dts      int64  // 采样的 DTS，单位为流的时间刻度
	KeyFrame bool   // 是否关键帧
	Payload  []byte // 媒体数据载荷
}

// SampleWriter 包装 WriteSample 方法的接口
type SampleWriter interface {
	WriteSample(sample *MediaSample) error
}
