package session

import (
	"sort"
	"strings"
	"sync"
	"time"

	"blewatch/internal/classify"
)

// Order selects the report sort key.
type Order string

const (
	OrderRSSI         Order = "rssi"
	OrderName         Order = "name"
	OrderManufacturer Order = "manufacturer"
)

// ParseOrder canonicalizes a sort key, defaulting to RSSI.
func ParseOrder(value string) Order {
	switch Order(strings.ToLower(strings.TrimSpace(value))) {
	case OrderName:
		return OrderName
	case OrderManufacturer:
		return OrderManufacturer
	default:
		return OrderRSSI
	}
}

// AggregatedDevice is the per-address accumulation across sightings within
// one scan session. Latest always holds the most recent snapshot; SeenTypes
// is the union of continuity type codes observed so far.
type AggregatedDevice struct {
	Address   string
	Latest    classify.DeviceSnapshot
	FirstSeen time.Time
	LastSeen  time.Time
	Sightings int
	SeenTypes []byte
}

// ManufacturerName returns the resolved manufacturer name, or "" when the
// device never advertised a registered company identifier.
func (d AggregatedDevice) ManufacturerName() string {
	if d.Latest.Manufacturer == nil {
		return ""
	}
	return d.Latest.Manufacturer.Name
}

// ReportOptions controls ordering, grouping and filtering of a report.
type ReportOptions struct {
	Order      Order
	Grouped    bool
	NameFilter string
}

// Aggregator accumulates classified snapshots per device address. Observe is
// a read-modify-write on shared state and is serialized internally; the
// decoding core upstream of it is pure and needs no such discipline.
type Aggregator struct {
	mu      sync.Mutex
	devices map[string]*AggregatedDevice
	now     func() time.Time
}

func New() *Aggregator {
	return &Aggregator{
		devices: make(map[string]*AggregatedDevice),
		now:     time.Now,
	}
}

// NewWithClock is New with an injectable clock.
func NewWithClock(now func() time.Time) *Aggregator {
	a := New()
	if now != nil {
		a.now = now
	}
	return a
}

// Observe updates or creates the aggregate for the snapshot's address.
func (a *Aggregator) Observe(snap classify.DeviceSnapshot) {
	if a == nil || snap.Address == "" {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	ts := a.now()
	dev, ok := a.devices[snap.Address]
	if !ok {
		dev = &AggregatedDevice{
			Address:   snap.Address,
			FirstSeen: ts,
		}
		a.devices[snap.Address] = dev
	}

	// A sighting without a name must not erase one we already learned.
	if snap.Name == "" && dev.Latest.Name != "" {
		snap.Name = dev.Latest.Name
	}
	if snap.Manufacturer == nil && dev.Latest.Manufacturer != nil {
		snap.Manufacturer = dev.Latest.Manufacturer
	}

	dev.Latest = snap
	dev.LastSeen = ts
	dev.Sightings++
	for _, m := range snap.Messages {
		dev.SeenTypes = addTypeCode(dev.SeenTypes, m.TypeCode())
	}
}

// Len reports the number of distinct addresses observed.
func (a *Aggregator) Len() int {
	if a == nil {
		return 0
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.devices)
}

// Get returns the aggregate for one address.
func (a *Aggregator) Get(address string) (AggregatedDevice, bool) {
	if a == nil {
		return AggregatedDevice{}, false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	dev, ok := a.devices[address]
	if !ok {
		return AggregatedDevice{}, false
	}
	return *dev, true
}

// Report produces a deterministically ordered view of the session. The
// returned values are copies; callers may render them without holding any
// lock.
func (a *Aggregator) Report(opts ReportOptions) []AggregatedDevice {
	if a == nil {
		return nil
	}

	a.mu.Lock()
	out := make([]AggregatedDevice, 0, len(a.devices))
	filter := strings.ToLower(strings.TrimSpace(opts.NameFilter))
	for _, dev := range a.devices {
		if filter != "" && !strings.Contains(strings.ToLower(dev.Latest.Name), filter) {
			continue
		}
		out = append(out, *dev)
	}
	a.mu.Unlock()

	sortDevices(out, opts.Order)
	if opts.Grouped {
		out = groupByManufacturer(out)
	}
	return out
}

func sortDevices(devices []AggregatedDevice, order Order) {
	switch order {
	case OrderName:
		sort.SliceStable(devices, func(i, j int) bool {
			return lessByOptionalString(
				devices[i].Latest.Name, devices[j].Latest.Name,
				devices[i].Address, devices[j].Address,
			)
		})
	case OrderManufacturer:
		sort.SliceStable(devices, func(i, j int) bool {
			return lessByOptionalString(
				devices[i].ManufacturerName(), devices[j].ManufacturerName(),
				devices[i].Address, devices[j].Address,
			)
		})
	default:
		// Strongest signal (closest to 0 dBm) first; address breaks ties.
		sort.SliceStable(devices, func(i, j int) bool {
			if devices[i].Latest.RSSI != devices[j].Latest.RSSI {
				return devices[i].Latest.RSSI > devices[j].Latest.RSSI
			}
			return devices[i].Address < devices[j].Address
		})
	}
}

// Case-insensitive lexicographic; devices missing the field sort after all
// devices that have it.
func lessByOptionalString(a, b, addrA, addrB string) bool {
	a = strings.ToLower(a)
	b = strings.ToLower(b)
	if (a == "") != (b == "") {
		return a != ""
	}
	if a != b {
		return a < b
	}
	return addrA < addrB
}

// groupByManufacturer partitions an already-sorted sequence into contiguous
// runs sharing a manufacturer, runs ordered by first appearance.
func groupByManufacturer(devices []AggregatedDevice) []AggregatedDevice {
	groups := make(map[string][]AggregatedDevice)
	var keys []string
	for _, dev := range devices {
		key := dev.ManufacturerName()
		if _, ok := groups[key]; !ok {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], dev)
	}

	out := make([]AggregatedDevice, 0, len(devices))
	for _, key := range keys {
		out = append(out, groups[key]...)
	}
	return out
}

func addTypeCode(codes []byte, code byte) []byte {
	for _, c := range codes {
		if c == code {
			return codes
		}
	}
	codes = append(codes, code)
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	return codes
}
