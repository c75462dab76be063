package classify

import (
	"blewatch/internal/continuity"
	"blewatch/internal/manufacturer"
)

// ManufacturerBlock is one vendor-tagged data block from an advertisement.
// Blocks keep the order they appeared in on air; a map would lose it.
type ManufacturerBlock struct {
	CompanyID uint16
	Data      []byte
}

// RawAdvertisement is the boundary contract with the scanning layer: one
// observed broadcast, already split into address, optional local name, RSSI
// and manufacturer-data blocks.
type RawAdvertisement struct {
	Address string
	Name    string
	RSSI    int16
	Blocks  []ManufacturerBlock
}

// DeviceSnapshot is the classified view of a single advertisement. Produced
// fresh per advertisement and not mutated afterwards.
type DeviceSnapshot struct {
	Address      string
	Name         string
	RSSI         int16
	Manufacturer *manufacturer.Record
	Messages     []continuity.Message
}

// ParseBlock splits a wire-level manufacturer-data block: company identifier
// as 2 bytes little-endian, followed by the vendor payload.
func ParseBlock(raw []byte) (ManufacturerBlock, bool) {
	if len(raw) < 2 {
		return ManufacturerBlock{}, false
	}
	return ManufacturerBlock{
		CompanyID: uint16(raw[0]) | uint16(raw[1])<<8,
		Data:      raw[2:],
	}, true
}

// Classify resolves the manufacturer and decodes continuity sub-messages for
// every vendor block that carries them. It never fails: an advertisement
// with no manufacturer data simply yields a snapshot with no manufacturer
// and no messages.
func Classify(adv RawAdvertisement) DeviceSnapshot {
	snap := DeviceSnapshot{
		Address: adv.Address,
		Name:    adv.Name,
		RSSI:    adv.RSSI,
	}

	for _, block := range adv.Blocks {
		if snap.Manufacturer == nil {
			if rec, ok := manufacturer.Lookup(block.CompanyID); ok {
				snap.Manufacturer = &rec
			}
		}
		if block.CompanyID == continuity.VendorID {
			snap.Messages = append(snap.Messages, continuity.Decode(block.Data)...)
		}
	}

	return snap
}
