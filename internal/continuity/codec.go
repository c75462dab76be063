package continuity

import "encoding/binary"

// Decode parses a vendor manufacturer-data payload as a sequence of
// back-to-back type/length/value frames and returns one Message per frame.
//
// Recovery policy: a trailer shorter than the 2-byte header is discarded; a
// declared length that overruns the remaining bytes would desynchronize every
// later frame boundary, so the remainder is returned as a single truncated
// Unknown and decoding stops. Everything else is frame-local: an
// unrecognized type code or an undersized body degrades to Unknown and the
// next frame still decodes.
func Decode(payload []byte) []Message {
	var out []Message
	off := 0
	for off+2 <= len(payload) {
		code := payload[off]
		length := int(payload[off+1])
		if off+2+length > len(payload) {
			out = append(out, Unknown{
				Code:      code,
				Raw:       cloneBytes(payload[off+2:]),
				Truncated: true,
			})
			break
		}
		out = append(out, decodeBody(code, payload[off+2:off+2+length]))
		off += 2 + length
	}
	return out
}

func decodeBody(code byte, body []byte) Message {
	switch code {
	case TypeFindMy:
		if len(body) < 1 {
			break
		}
		status := body[0]
		m := FindMy{StatusRaw: status, Rest: cloneBytes(body[1:])}
		switch status >> 6 {
		case 0:
			m.Ownership = OwnershipOwned
			if status&0x01 != 0 {
				m.Phase = PhaseMaintained
			}
		case 1:
			m.Ownership = OwnershipNotOwned
		default:
			m.Ownership = OwnershipUnknown
		}
		return m
	case TypeNearbyInfo:
		if len(body) < 2 {
			break
		}
		return NearbyInfo{
			Activity: Activity(body[0]),
			Flags:    NearbyFlags(body[1]),
			Rest:     cloneBytes(body[2:]),
		}
	case TypeAirPlayTarget:
		if len(body) < 1 {
			break
		}
		return AirPlayTarget{Class: body[0], Rest: cloneBytes(body[1:])}
	case TypeHandoff:
		if len(body) < 2 {
			break
		}
		return Handoff{
			SeqNo:   binary.BigEndian.Uint16(body[:2]),
			AuthTag: cloneBytes(body[2:]),
		}
	case TypeAudioAccessory:
		if len(body) < 3 {
			break
		}
		return AudioAccessoryStatus{
			ModelHint:    binary.BigEndian.Uint16(body[:2]),
			BatteryFlags: BatteryFlags(body[2]),
			Rest:         cloneBytes(body[3:]),
		}
	case TypeNearbyAction:
		if len(body) < 1 {
			break
		}
		return NearbyAction{Action: body[0], Rest: cloneBytes(body[1:])}
	}
	return Unknown{Code: code, Raw: cloneBytes(body)}
}

// EncodeFrames re-encodes messages as a wire payload: type, length, body,
// packed back-to-back with no prefix or checksum.
func EncodeFrames(msgs []Message) []byte {
	var out []byte
	for _, m := range msgs {
		body := m.AppendPayload(nil)
		out = append(out, m.TypeCode(), byte(len(body)))
		out = append(out, body...)
	}
	return out
}

// Summarize renders messages the way the scanner reports them, one segment
// per decoded frame.
func Summarize(msgs []Message) string {
	s := ""
	for i, m := range msgs {
		if i > 0 {
			s += " | "
		}
		s += m.String()
	}
	return s
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
