package continuity

import "fmt"

// VendorID is the company identifier whose manufacturer data carries the
// continuity sub-protocol.
const VendorID uint16 = 0x004C

// Sub-message type codes. The codes below are the ones we decode into typed
// messages; everything else degrades to Unknown but keeps a readable label
// when typeNames covers it.
const (
	TypeAudioAccessory byte = 0x07
	TypeAirPlayTarget  byte = 0x09
	TypeFindMy         byte = 0x0C
	TypeHandoff        byte = 0x0D
	TypeNearbyAction   byte = 0x0F
	TypeNearbyInfo     byte = 0x10
)

// Labels for sub-message types, including ones we do not decode further.
// Source: https://github.com/furiousMAC/continuity
var typeNames = map[byte]string{
	0x02:               "iBeacon",
	0x03:               "AirPrint",
	0x05:               "AirDrop",
	0x06:               "HomeKit",
	TypeAudioAccessory: "Audio Accessory Status",
	0x08:               "Hey Siri",
	TypeAirPlayTarget:  "AirPlay Target",
	0x0A:               "AirPlay Source",
	0x0B:               "Magic Switch",
	TypeFindMy:         "FindMy",
	TypeHandoff:        "Handoff",
	0x0E:               "Tethering Target",
	TypeNearbyAction:   "Nearby Action",
	TypeNearbyInfo:     "Nearby Info",
	0x11:               "Tethering Source",
	0x16:               "Accessory Pairing",
}

// TypeName returns a readable label for a sub-message type code.
func TypeName(code byte) string {
	if name, ok := typeNames[code]; ok {
		return name
	}
	return fmt.Sprintf("Unknown (0x%02X)", code)
}

// Message is one decoded continuity sub-message. The set of implementations
// is closed; unrecognized or malformed frames surface as Unknown rather than
// being dropped.
type Message interface {
	TypeCode() byte
	// AppendPayload re-encodes the message body (without the type/length
	// header) onto dst.
	AppendPayload(dst []byte) []byte
	fmt.Stringer
}

// Ownership describes who the advertising device belongs to, as far as the
// FindMy status byte reveals.
type Ownership uint8

const (
	OwnershipUnknown Ownership = iota
	OwnershipOwned
	OwnershipNotOwned
)

func (o Ownership) String() string {
	switch o {
	case OwnershipOwned:
		return "owned"
	case OwnershipNotOwned:
		return "not owned"
	default:
		return "unknown"
	}
}

// MaintenancePhase qualifies an owned device: maintained means the owner's
// registered device has been within range recently.
type MaintenancePhase uint8

const (
	PhaseUnmaintained MaintenancePhase = iota
	PhaseMaintained
)

func (p MaintenancePhase) String() string {
	if p == PhaseMaintained {
		return "maintained"
	}
	return "unmaintained"
}

// FindMy is the item/device locator hint. Ownership lives in the top two
// bits of the status byte, the maintained bit marks an owned device whose
// owner is in range. StatusRaw keeps the wire byte for bit patterns the
// enums do not model.
type FindMy struct {
	Ownership Ownership
	Phase     MaintenancePhase
	StatusRaw byte
	Rest      []byte
}

func (FindMy) TypeCode() byte { return TypeFindMy }

func (m FindMy) AppendPayload(dst []byte) []byte {
	return append(append(dst, m.statusByte()), m.Rest...)
}

func (m FindMy) statusByte() byte {
	if m.StatusRaw != 0 {
		return m.StatusRaw
	}
	switch m.Ownership {
	case OwnershipOwned:
		if m.Phase == PhaseMaintained {
			return 0x01
		}
		return 0x00
	case OwnershipNotOwned:
		return 0x40
	default:
		return 0x80
	}
}

func (m FindMy) String() string {
	if m.Ownership == OwnershipOwned {
		return fmt.Sprintf("FindMy (%s, %s)", m.Ownership, m.Phase)
	}
	return fmt.Sprintf("FindMy (%s)", m.Ownership)
}

// Activity is the NearbyInfo device-activity code, matched by value.
type Activity byte

const (
	ActivityOff            Activity = 0x01
	ActivityIdle           Activity = 0x03
	ActivityAudio          Activity = 0x05
	ActivityScreenOn       Activity = 0x07
	ActivityScreenOnVideo  Activity = 0x09
	ActivityWatchOnWrist   Activity = 0x0A
	ActivityRecentCall     Activity = 0x0B
	ActivityActiveCall     Activity = 0x0D
	ActivityHomeScreen     Activity = 0x11
	ActivityUsingDevice    Activity = 0x13
	ActivityDriving        Activity = 0x17
	ActivityTransportation Activity = 0x18
	ActivityNavigation     Activity = 0x1A
	ActivityWorkout        Activity = 0x1B
	ActivitySiri           Activity = 0x1C
)

var activityNames = map[Activity]string{
	ActivityOff:            "off",
	ActivityIdle:           "idle",
	ActivityAudio:          "audio",
	ActivityScreenOn:       "screen on",
	ActivityScreenOnVideo:  "screen on (video)",
	ActivityWatchOnWrist:   "watch on wrist",
	ActivityRecentCall:     "recent call",
	ActivityActiveCall:     "active call",
	ActivityHomeScreen:     "home screen",
	ActivityUsingDevice:    "using device",
	ActivityDriving:        "driving",
	ActivityTransportation: "transportation",
	ActivityNavigation:     "navigation",
	ActivityWorkout:        "workout",
	ActivitySiri:           "siri",
}

// Known reports whether the activity code has an assigned meaning.
func (a Activity) Known() bool {
	_, ok := activityNames[a]
	return ok
}

func (a Activity) String() string {
	if name, ok := activityNames[a]; ok {
		return name
	}
	return fmt.Sprintf("activity 0x%02X", byte(a))
}

// NearbyFlags is the NearbyInfo auxiliary flag byte.
type NearbyFlags uint8

const NearbyFlagLocked NearbyFlags = 0x01

func (f NearbyFlags) Locked() bool { return f&NearbyFlagLocked != 0 }

// NearbyInfo carries the device's current activity plus auxiliary flags.
type NearbyInfo struct {
	Activity Activity
	Flags    NearbyFlags
	Rest     []byte
}

func (NearbyInfo) TypeCode() byte { return TypeNearbyInfo }

func (m NearbyInfo) AppendPayload(dst []byte) []byte {
	return append(append(dst, byte(m.Activity), byte(m.Flags)), m.Rest...)
}

func (m NearbyInfo) String() string {
	if m.Flags.Locked() {
		return fmt.Sprintf("Nearby Info (%s, locked)", m.Activity)
	}
	return fmt.Sprintf("Nearby Info (%s)", m.Activity)
}

// DeviceKind classifies an AirPlay target.
type DeviceKind uint8

const (
	KindOther DeviceKind = iota
	KindAppleTV
	KindHomePod
)

func (k DeviceKind) String() string {
	switch k {
	case KindAppleTV:
		return "Apple TV"
	case KindHomePod:
		return "HomePod"
	default:
		return "other"
	}
}

// AirPlayTarget advertises screen-mirroring availability. The class byte
// holds the device-class nibble (high) and flag bits (low); unknown class
// nibbles map to KindOther, never to a decode failure.
type AirPlayTarget struct {
	Class byte
	Rest  []byte
}

func (AirPlayTarget) TypeCode() byte { return TypeAirPlayTarget }

func (m AirPlayTarget) AppendPayload(dst []byte) []byte {
	return append(append(dst, m.Class), m.Rest...)
}

func (m AirPlayTarget) Kind() DeviceKind {
	switch m.Class >> 4 {
	case 0x1:
		return KindAppleTV
	case 0x2:
		return KindHomePod
	default:
		return KindOther
	}
}

func (m AirPlayTarget) Flags() uint8 { return m.Class & 0x0F }

func (m AirPlayTarget) String() string {
	return fmt.Sprintf("AirPlay Target (%s)", m.Kind())
}

// Handoff advertises cross-device activity handoff: a big-endian sequence
// number followed by an opaque authentication tag.
type Handoff struct {
	SeqNo   uint16
	AuthTag []byte
}

func (Handoff) TypeCode() byte { return TypeHandoff }

func (m Handoff) AppendPayload(dst []byte) []byte {
	dst = append(dst, byte(m.SeqNo>>8), byte(m.SeqNo))
	return append(dst, m.AuthTag...)
}

func (m Handoff) String() string {
	return fmt.Sprintf("Handoff (seq %d)", m.SeqNo)
}

// BatteryFlags is the audio-accessory battery/charging flag byte.
type BatteryFlags uint8

const BatteryFlagCharging BatteryFlags = 0x04

func (f BatteryFlags) Charging() bool { return f&BatteryFlagCharging != 0 }

// Audio accessory model hints observed in proximity-pairing payloads.
var accessoryModels = map[uint16]string{
	0x0220: "AirPods",
	0x0320: "Powerbeats3",
	0x0520: "BeatsX",
	0x0620: "AirPods Pro",
	0x0A20: "AirPods Max",
	0x0E20: "AirPods Pro 2",
	0x1020: "Beats Fit Pro",
	0x1220: "AirPods 3",
	0x1420: "AirPods Pro 2 (USB-C)",
}

// AudioAccessoryStatus is the proximity-pairing status of an audio
// accessory: big-endian model hint, then the battery flag byte.
type AudioAccessoryStatus struct {
	ModelHint    uint16
	BatteryFlags BatteryFlags
	Rest         []byte
}

func (AudioAccessoryStatus) TypeCode() byte { return TypeAudioAccessory }

func (m AudioAccessoryStatus) AppendPayload(dst []byte) []byte {
	dst = append(dst, byte(m.ModelHint>>8), byte(m.ModelHint), byte(m.BatteryFlags))
	return append(dst, m.Rest...)
}

// ModelName resolves the model hint to a product name when known.
func (m AudioAccessoryStatus) ModelName() string {
	if name, ok := accessoryModels[m.ModelHint]; ok {
		return name
	}
	return fmt.Sprintf("Audio Device (0x%04X)", m.ModelHint)
}

func (m AudioAccessoryStatus) String() string {
	if m.BatteryFlags.Charging() {
		return m.ModelName() + " (charging)"
	}
	return m.ModelName()
}

// Nearby Action action codes.
var actionNames = map[byte]string{
	0x01: "Apple TV Setup",
	0x04: "Mobile Backup",
	0x05: "Watch Setup",
	0x06: "Apple TV Pairing",
	0x07: "Internet Tethering",
	0x08: "Wi-Fi Password",
	0x09: "iOS Setup",
	0x0A: "Repair",
	0x0B: "Speaker Setup",
	0x0C: "Apple Pay",
	0x0D: "Whole Home Audio Setup",
	0x0E: "Developer Tools",
	0x0F: "Answered Call",
	0x10: "Ended Call",
	0x11: "DD Ping",
	0x12: "DD Pong",
	0x13: "Remote Auto Fill",
	0x14: "Companion Link",
	0x15: "Remote Management",
	0x16: "Remote Auto Fill Pong",
	0x17: "Remote Display",
}

// NearbyAction is a one-shot proximity action prompt.
type NearbyAction struct {
	Action byte
	Rest   []byte
}

func (NearbyAction) TypeCode() byte { return TypeNearbyAction }

func (m NearbyAction) AppendPayload(dst []byte) []byte {
	return append(append(dst, m.Action), m.Rest...)
}

// ActionName resolves the action code when known.
func (m NearbyAction) ActionName() string {
	if name, ok := actionNames[m.Action]; ok {
		return name
	}
	return fmt.Sprintf("Action 0x%02X", m.Action)
}

func (m NearbyAction) String() string {
	return "Nearby Action: " + m.ActionName()
}

// Unknown is the mandatory fallback: an unrecognized type code, a payload
// too short for its type, or a frame whose declared length overran the
// remaining bytes (Truncated).
type Unknown struct {
	Code      byte
	Raw       []byte
	Truncated bool
}

func (m Unknown) TypeCode() byte { return m.Code }

func (m Unknown) AppendPayload(dst []byte) []byte {
	return append(dst, m.Raw...)
}

func (m Unknown) String() string {
	if m.Truncated {
		return TypeName(m.Code) + " (truncated)"
	}
	return TypeName(m.Code)
}
