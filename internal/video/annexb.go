package video

// SplitAnnexB scans an Annex-B byte stream (NAL units delimited by 3- or
// 4-byte start codes 0x000001 / 0x00000001) and returns the NAL units with
// start codes stripped. It does not interpret NAL headers; callers classify
// slice types to decide Keyframe on AccessUnit themselves.
func SplitAnnexB(data []byte) [][]byte {
	starts := findStartCodes(data)
	if len(starts) == 0 {
		return nil
	}

	var nalus [][]byte
	for i, start := range starts {
		end := len(data)
		if i+1 < len(starts) {
			end = starts[i+1].codeStart
		}
		if start.nalStart >= end {
			continue
		}
		nalus = append(nalus, data[start.nalStart:end])
	}
	return nalus
}

type startCode struct {
	codeStart int
	nalStart  int
}

func findStartCodes(data []byte) []startCode {
	var starts []startCode
	for i := 0; i+2 < len(data); {
		if data[i] == 0 && data[i+1] == 0 && data[i+2] == 1 {
			codeStart := i
			if i > 0 && data[i-1] == 0 {
				codeStart = i - 1 // 4-byte start code
			}
			starts = append(starts, startCode{codeStart: codeStart, nalStart: i + 3})
			i += 3
			continue
		}
		i++
	}
	return starts
}

// IsKeyframeNAL reports whether nalu is an IDR slice (H.264, nal_unit_type
// 5) or an IRAP picture (H.265, nal_unit_type 16-23: BLA, IDR, CRA and the
// reserved IRAP types). It assumes the
// start code has already been stripped.
func IsKeyframeNAL(codec Codec, nalu []byte) bool {
	if len(nalu) == 0 {
		return false
	}
	switch codec {
	case CodecH264:
		nalType := nalu[0] & 0x1f
		return nalType == 5
	case CodecH265:
		nalType := (nalu[0] >> 1) & 0x3f
		return nalType >= 16 && nalType <= 23
	default:
		return false
	}
}
