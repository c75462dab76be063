package continuity

import (
	"bytes"
	"math/rand"
	"testing"
)

func TestDecode_FindMyOwnedMaintained(t *testing.T) {
	msgs := Decode([]byte{0x0C, 0x02, 0x01, 0x00})
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	m, ok := msgs[0].(FindMy)
	if !ok {
		t.Fatalf("expected FindMy, got %T", msgs[0])
	}
	if m.Ownership != OwnershipOwned {
		t.Fatalf("expected owned, got %v", m.Ownership)
	}
	if m.Phase != PhaseMaintained {
		t.Fatalf("expected maintained, got %v", m.Phase)
	}
}

func TestDecode_FindMyOwnedUnmaintained(t *testing.T) {
	msgs := Decode([]byte{0x0C, 0x01, 0x00})
	m, ok := msgs[0].(FindMy)
	if !ok {
		t.Fatalf("expected FindMy, got %T", msgs[0])
	}
	if m.Ownership != OwnershipOwned || m.Phase != PhaseUnmaintained {
		t.Fatalf("expected owned+unmaintained, got %v/%v", m.Ownership, m.Phase)
	}
}

func TestDecode_FindMyNotOwned(t *testing.T) {
	msgs := Decode([]byte{0x0C, 0x01, 0x40})
	m := msgs[0].(FindMy)
	if m.Ownership != OwnershipNotOwned {
		t.Fatalf("expected not owned, got %v", m.Ownership)
	}
}

func TestDecode_UnknownType(t *testing.T) {
	msgs := Decode([]byte{0xFF, 0x03, 0xAA, 0xBB, 0xCC})
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	u, ok := msgs[0].(Unknown)
	if !ok {
		t.Fatalf("expected Unknown, got %T", msgs[0])
	}
	if u.Code != 0xFF {
		t.Fatalf("expected type 0xFF, got 0x%02X", u.Code)
	}
	if !bytes.Equal(u.Raw, []byte{0xAA, 0xBB, 0xCC}) {
		t.Fatalf("unexpected raw bytes: %x", u.Raw)
	}
	if u.Truncated {
		t.Fatalf("frame was complete, should not be truncated")
	}
}

func TestDecode_LengthOverrunStopsWithRemainder(t *testing.T) {
	msgs := Decode([]byte{0x10, 0x05, 0x01, 0x02})
	if len(msgs) != 1 {
		t.Fatalf("expected a single message, got %d", len(msgs))
	}
	u, ok := msgs[0].(Unknown)
	if !ok {
		t.Fatalf("expected Unknown, got %T", msgs[0])
	}
	if u.Code != 0x10 || !u.Truncated {
		t.Fatalf("expected truncated type 0x10, got code=0x%02X truncated=%v", u.Code, u.Truncated)
	}
	if !bytes.Equal(u.Raw, []byte{0x01, 0x02}) {
		t.Fatalf("expected remainder attached, got %x", u.Raw)
	}
}

func TestDecode_PartialTrailerDiscarded(t *testing.T) {
	msgs := Decode([]byte{0x0C, 0x01, 0x00, 0x42})
	if len(msgs) != 1 {
		t.Fatalf("expected the valid frame only, got %d messages", len(msgs))
	}
	if _, ok := msgs[0].(FindMy); !ok {
		t.Fatalf("expected FindMy, got %T", msgs[0])
	}
}

func TestDecode_EmptyAndNil(t *testing.T) {
	if msgs := Decode(nil); len(msgs) != 0 {
		t.Fatalf("nil payload should decode to nothing, got %d", len(msgs))
	}
	if msgs := Decode([]byte{0x0C}); len(msgs) != 0 {
		t.Fatalf("single-byte payload should decode to nothing, got %d", len(msgs))
	}
}

func TestDecode_FrameLocalRecovery(t *testing.T) {
	// Unrecognized frame followed by a valid one: the second frame must
	// still decode.
	payload := []byte{
		0xEE, 0x01, 0x99, // unassigned type
		0x09, 0x01, 0x10, // AirPlay target, Apple TV class
	}
	msgs := Decode(payload)
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if _, ok := msgs[0].(Unknown); !ok {
		t.Fatalf("expected Unknown first, got %T", msgs[0])
	}
	tgt, ok := msgs[1].(AirPlayTarget)
	if !ok {
		t.Fatalf("expected AirPlayTarget second, got %T", msgs[1])
	}
	if tgt.Kind() != KindAppleTV {
		t.Fatalf("expected Apple TV, got %v", tgt.Kind())
	}
}

func TestDecode_UndersizedBodyDegrades(t *testing.T) {
	// Handoff needs at least the 2-byte sequence number.
	msgs := Decode([]byte{0x0D, 0x01, 0x07})
	u, ok := msgs[0].(Unknown)
	if !ok {
		t.Fatalf("expected Unknown for undersized handoff, got %T", msgs[0])
	}
	if u.Code != 0x0D || !bytes.Equal(u.Raw, []byte{0x07}) {
		t.Fatalf("unexpected fallback: code=0x%02X raw=%x", u.Code, u.Raw)
	}
}

func TestDecode_NearbyInfo(t *testing.T) {
	msgs := Decode([]byte{0x10, 0x02, 0x0A, 0x01})
	m, ok := msgs[0].(NearbyInfo)
	if !ok {
		t.Fatalf("expected NearbyInfo, got %T", msgs[0])
	}
	if m.Activity != ActivityWatchOnWrist {
		t.Fatalf("expected watch-on-wrist, got %v", m.Activity)
	}
	if !m.Flags.Locked() {
		t.Fatalf("expected locked flag set")
	}
	if m.Activity.String() != "watch on wrist" {
		t.Fatalf("unexpected activity label %q", m.Activity)
	}
}

func TestDecode_NearbyInfoUnknownActivityKeepsCode(t *testing.T) {
	msgs := Decode([]byte{0x10, 0x02, 0x7E, 0x00})
	m := msgs[0].(NearbyInfo)
	if m.Activity.Known() {
		t.Fatalf("0x7E should not be a known activity")
	}
	if m.Activity.String() != "activity 0x7E" {
		t.Fatalf("unexpected label %q", m.Activity)
	}
}

func TestDecode_AirPlayUnknownClassMapsToOther(t *testing.T) {
	msgs := Decode([]byte{0x09, 0x01, 0xF7})
	m := msgs[0].(AirPlayTarget)
	if m.Kind() != KindOther {
		t.Fatalf("unknown class nibble must map to other, got %v", m.Kind())
	}
	if m.Flags() != 0x07 {
		t.Fatalf("expected flag nibble 0x7, got 0x%X", m.Flags())
	}
}

func TestDecode_Handoff(t *testing.T) {
	msgs := Decode([]byte{0x0D, 0x05, 0x01, 0x2C, 0xDE, 0xAD, 0xBF})
	m, ok := msgs[0].(Handoff)
	if !ok {
		t.Fatalf("expected Handoff, got %T", msgs[0])
	}
	if m.SeqNo != 300 {
		t.Fatalf("expected seq 300, got %d", m.SeqNo)
	}
	if !bytes.Equal(m.AuthTag, []byte{0xDE, 0xAD, 0xBF}) {
		t.Fatalf("unexpected auth tag %x", m.AuthTag)
	}
}

func TestDecode_AudioAccessory(t *testing.T) {
	msgs := Decode([]byte{0x07, 0x03, 0x06, 0x20, 0x04})
	m, ok := msgs[0].(AudioAccessoryStatus)
	if !ok {
		t.Fatalf("expected AudioAccessoryStatus, got %T", msgs[0])
	}
	if m.ModelHint != 0x0620 {
		t.Fatalf("expected model 0x0620, got 0x%04X", m.ModelHint)
	}
	if m.ModelName() != "AirPods Pro" {
		t.Fatalf("unexpected model name %q", m.ModelName())
	}
	if !m.BatteryFlags.Charging() {
		t.Fatalf("expected charging flag")
	}
}

func TestDecode_NearbyAction(t *testing.T) {
	msgs := Decode([]byte{0x0F, 0x01, 0x08})
	m, ok := msgs[0].(NearbyAction)
	if !ok {
		t.Fatalf("expected NearbyAction, got %T", msgs[0])
	}
	if m.ActionName() != "Wi-Fi Password" {
		t.Fatalf("unexpected action name %q", m.ActionName())
	}
}

func TestRoundTrip_KnownTypes(t *testing.T) {
	payloads := [][]byte{
		{0x0C, 0x02, 0x01, 0x00},                   // FindMy
		{0x10, 0x02, 0x0A, 0x01},                   // NearbyInfo
		{0x09, 0x02, 0x23, 0x7F},                   // AirPlay target
		{0x0D, 0x05, 0x01, 0x2C, 0xDE, 0xAD, 0xBF}, // Handoff
		{0x07, 0x04, 0x02, 0x20, 0x04, 0x55},       // Audio accessory
		{0x0F, 0x02, 0x08, 0xC0},                   // Nearby action
		{0xFF, 0x02, 0xAA, 0xBB},                   // Unknown
	}
	for _, payload := range payloads {
		msgs := Decode(payload)
		if len(msgs) != 1 {
			t.Fatalf("payload %x: expected 1 message, got %d", payload, len(msgs))
		}
		if got := EncodeFrames(msgs); !bytes.Equal(got, payload) {
			t.Fatalf("payload %x: round trip produced %x", payload, got)
		}
	}
}

func TestRoundTrip_ConstructedMessages(t *testing.T) {
	msgs := []Message{
		FindMy{Ownership: OwnershipOwned, Phase: PhaseMaintained},
		NearbyInfo{Activity: ActivityWorkout},
		Handoff{SeqNo: 0xBEEF, AuthTag: []byte{0x01, 0x02}},
	}
	wire := EncodeFrames(msgs)
	again := Decode(wire)
	if len(again) != len(msgs) {
		t.Fatalf("expected %d messages back, got %d", len(msgs), len(again))
	}
	fm := again[0].(FindMy)
	if fm.Ownership != OwnershipOwned || fm.Phase != PhaseMaintained {
		t.Fatalf("findmy fields lost: %+v", fm)
	}
	ho := again[2].(Handoff)
	if ho.SeqNo != 0xBEEF || !bytes.Equal(ho.AuthTag, []byte{0x01, 0x02}) {
		t.Fatalf("handoff fields lost: %+v", ho)
	}
}

// Every byte the decoder consumes must be attributable to a returned
// message, and random input must never make it read past the buffer.
func TestDecode_RandomInputsTerminateAndAccount(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 2000; i++ {
		payload := make([]byte, rng.Intn(256))
		rng.Read(payload)

		msgs := Decode(payload)

		consumed := 0
		truncated := false
		for _, m := range msgs {
			if u, ok := m.(Unknown); ok && u.Truncated {
				consumed += 2 + len(u.Raw)
				truncated = true
				continue
			}
			consumed += 2 + len(m.AppendPayload(nil))
		}
		if consumed > len(payload) {
			t.Fatalf("payload %x: accounted %d bytes out of %d", payload, consumed, len(payload))
		}
		if truncated && consumed != len(payload) {
			t.Fatalf("payload %x: truncated decode must consume the remainder (%d != %d)", payload, consumed, len(payload))
		}
		if !truncated && len(payload)-consumed >= 2 {
			t.Fatalf("payload %x: decoder left %d undecoded bytes", payload, len(payload)-consumed)
		}
	}
}

func TestSummarize(t *testing.T) {
	msgs := Decode([]byte{
		0x0C, 0x02, 0x01, 0x00,
		0x07, 0x03, 0x02, 0x20, 0x00,
	})
	got := Summarize(msgs)
	want := "FindMy (owned, maintained) | AirPods"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}
