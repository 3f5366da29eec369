// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
//
// Translate from FFmpeg cbs_h264_syntax_template.c
//
package h264

import (
	"encoding/base64"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/novoreel/shaka-packager/utils/bits"
)

// RawSPS 序列参数集中与封装相关的部分。
// Only the syntax needed to reach the picture dimensions and the VUI
// timing info is kept; SVC/MVC extensions are rejected.
type RawSPS struct {
	ProfileIdc uint8
	LevelIdc   uint8

	SeqParameterSetID uint8

	ChromaFormatIdc         uint8
	SeparateColourPlaneFlag uint8
	BitDepthLumaMinus8      uint8
	BitDepthChromaMinus8    uint8

	Log2MaxFrameNumMinus4 uint8
	PicOrderCntType       uint8

	MaxNumRefFrames           uint8
	GapsInFrameNumAllowedFlag uint8

	PicWidthInMbsMinus1       uint16
	PicHeightInMapUnitsMinus1 uint16

	FrameMbsOnlyFlag         uint8
	MbAdaptiveFrameFieldFlag uint8
	Direct8x8InferenceFlag   uint8

	FrameCroppingFlag     uint8
	FrameCropLeftOffset   uint16
	FrameCropRightOffset  uint16
	FrameCropTopOffset    uint16
	FrameCropBottomOffset uint16

	// VUI 中与帧率相关的部分
	TimingInfoPresentFlag uint8
	NumUnitsInTick        uint32
	TimeScale             uint32
	FixedFrameRateFlag    uint8
}

// Width 视频宽度（像素）
func (sps *RawSPS) Width() int {
	w := (sps.PicWidthInMbsMinus1+1)*16 - sps.FrameCropLeftOffset*2 - sps.FrameCropRightOffset*2
	return int(w)
}

// Height 视频高度（像素）
func (sps *RawSPS) Height() int {
	h := (2-uint16(sps.FrameMbsOnlyFlag))*(sps.PicHeightInMapUnitsMinus1+1)*16 - sps.FrameCropTopOffset*2 - sps.FrameCropBottomOffset*2
	return int(h)
}

// FrameRate Video frame rate
func (sps *RawSPS) FrameRate() float64 {
	if sps.NumUnitsInTick == 0 {
		return 0.0
	}
	return float64(sps.TimeScale) / float64(sps.NumUnitsInTick*2)
}

// IsFixedFrameRate 是否固定帧率
func (sps *RawSPS) IsFixedFrameRate() bool {
	return sps.FixedFrameRateFlag == 1
}

// DecodeString 从 base64 字串解码 sps NAL
func (sps *RawSPS) DecodeString(b64 string) error {
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return err
	}
	return sps.Decode(data)
}

// Decode 从字节序列中解码 sps NAL
func (sps *RawSPS) Decode(data []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("RawSPS decode panic；r = %v \n %s", r, debug.Stack())
		}
	}()

	rbsp := RemoveEmulationBytes(data)
	if len(rbsp) < 4 {
		return errors.New("sps data is not enough")
	}

	r := bits.NewReader(rbsp)

	// nal_unit_header
	r.Skip(1) // forbidden_zero_bit
	r.Skip(2) // nal_ref_idc
	nalUnitType := r.ReadUint8(5)
	if nalUnitType != NalSps {
		return errors.New("not a sps NAL UNIT")
	}

	sps.ProfileIdc = r.ReadUint8(8)
	r.Skip(8) // constraint_setN_flag + reserved_zero_2bits
	sps.LevelIdc = r.ReadUint8(8)

	sps.SeqParameterSetID = r.ReadUe8()

	sps.ChromaFormatIdc = 1
	switch sps.ProfileIdc {
	case 100, 110, 122, 244, 44, 83, 86, 118, 128, 138:
		sps.ChromaFormatIdc = r.ReadUe8()
		if sps.ChromaFormatIdc == 3 {
			sps.SeparateColourPlaneFlag = r.ReadBit()
		}

		sps.BitDepthLumaMinus8 = r.ReadUe8()
		sps.BitDepthChromaMinus8 = r.ReadUe8()
		r.Skip(1) // qpprime_y_zero_transform_bypass_flag

		if r.ReadBit() != 0 { // seq_scaling_matrix_present_flag
			maxI := 8
			if sps.ChromaFormatIdc == 3 {
				maxI = 12
			}
			for i := 0; i < maxI; i++ {
				if r.ReadBit() != 0 { // seq_scaling_list_present_flag[i]
					skipScalingList(r, i)
				}
			}
		}
	case 183:
		sps.ChromaFormatIdc = 0
	}

	sps.Log2MaxFrameNumMinus4 = r.ReadUe8()

	sps.PicOrderCntType = r.ReadUe8()
	if sps.PicOrderCntType == 0 {
		r.ReadUe() // log2_max_pic_order_cnt_lsb_minus4
	} else if sps.PicOrderCntType == 1 {
		r.Skip(1)  // delta_pic_order_always_zero_flag
		r.ReadSe() // offset_for_non_ref_pic
		r.ReadSe() // offset_for_top_to_bottom_field
		numRefFrames := r.ReadUe()
		for i := uint32(0); i < numRefFrames; i++ {
			r.ReadSe() // offset_for_ref_frame
		}
	}

	sps.MaxNumRefFrames = r.ReadUe8()
	sps.GapsInFrameNumAllowedFlag = r.ReadBit()

	sps.PicWidthInMbsMinus1 = r.ReadUe16()
	sps.PicHeightInMapUnitsMinus1 = r.ReadUe16()

	sps.FrameMbsOnlyFlag = r.ReadBit()
	if sps.FrameMbsOnlyFlag == 0 {
		sps.MbAdaptiveFrameFieldFlag = r.ReadBit()
	}

	sps.Direct8x8InferenceFlag = r.ReadBit()

	sps.FrameCroppingFlag = r.ReadBit()
	if sps.FrameCroppingFlag == 1 {
		sps.FrameCropLeftOffset = r.ReadUe16()
		sps.FrameCropRightOffset = r.ReadUe16()
		sps.FrameCropTopOffset = r.ReadUe16()
		sps.FrameCropBottomOffset = r.ReadUe16()
	}

	if r.ReadBit() == 1 { // vui_parameters_present_flag
		sps.decodeVuiTiming(r)
	}

	return
}

// decodeVuiTiming 读 VUI 直到 timing_info，后续的 HRD 等字段不再消费。
func (sps *RawSPS) decodeVuiTiming(r *bits.Reader) {
	if r.ReadBit() == 1 { // aspect_ratio_info_present_flag
		if r.ReadUint8(8) == 255 { // aspect_ratio_idc == Extended_SAR
			r.Skip(32) // sar_width + sar_height
		}
	}

	if r.ReadBit() == 1 { // overscan_info_present_flag
		r.Skip(1)
	}

	if r.ReadBit() == 1 { // video_signal_type_present_flag
		r.Skip(4) // video_format + video_full_range_flag
		if r.ReadBit() == 1 {
			r.Skip(24) // colour_primaries + transfer + matrix
		}
	}

	if r.ReadBit() == 1 { // chroma_loc_info_present_flag
		r.ReadUe()
		r.ReadUe()
	}

	sps.TimingInfoPresentFlag = r.ReadBit()
	if sps.TimingInfoPresentFlag == 1 {
		sps.NumUnitsInTick = r.ReadUint32(32)
		sps.TimeScale = r.ReadUint32(32)
		sps.FixedFrameRateFlag = r.ReadBit()
	}
}

func skipScalingList(r *bits.Reader, i int) {
	sizeOfScan := 16
	if i >= 6 {
		sizeOfScan = 64
	}

	scale := 8
	for j := 0; j < sizeOfScan; j++ {
		delta := r.ReadSe()
		scale = (scale + int(delta) + 256) % 256
		if scale == 0 {
			break
		}
	}
}
