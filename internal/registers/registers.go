// Package registers holds the published read vocabulary for RCT Power
// inverters: the well-known 32-bit register ids this tooling can ask for,
// with names and units for display. The protocol engine itself is
// vocabulary-agnostic; it reads whatever id it is given.
package registers

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Well-known readable registers.
const (
	BatterySOC      = 0x959930BF // battery.soc, state of charge as fraction 0..1
	BatteryPower    = 0x400F015B // g_sync.p_acc_lp, battery power in W (negative = charging)
	GridPower       = 0x91617C58 // g_sync.p_ac_grid_sum_lp, grid power in W (negative = feed-in)
	InverterACPower = 0xDB2D69AE // g_sync.p_ac_sum_lp, inverter AC power in W
	HouseholdLoad   = 0x1AC87AA0 // g_sync.p_ac_load_sum_lp, household load in W
	SolarGenAPower  = 0xDB11855B // dc_conv.dc_conv_struct[0].p_dc_lp, solar generator A power in W
	SolarGenBPower  = 0x0CB5D21B // dc_conv.dc_conv_struct[1].p_dc_lp, solar generator B power in W
)

// Register describes one readable register.
type Register struct {
	ID          uint32
	Name        string // short CLI name
	Description string
	Unit        string
}

// Percentage reports whether the register's value is a 0..1 fraction that
// should be displayed as a percentage.
func (r Register) Percentage() bool {
	return r.Unit == "%"
}

// FormatValue renders a raw reading for display.
func (r Register) FormatValue(value float32) string {
	if r.Percentage() {
		return fmt.Sprintf("%.1f %%", value*100)
	}
	return fmt.Sprintf("%.1f %s", value, r.Unit)
}

// String returns "name (0xID)".
func (r Register) String() string {
	return fmt.Sprintf("%s (0x%08X)", r.Name, r.ID)
}

// table is ordered for display: energy flow first, then storage.
var table = []Register{
	{SolarGenAPower, "solar-a", "Solar generator A power", "W"},
	{SolarGenBPower, "solar-b", "Solar generator B power", "W"},
	{InverterACPower, "inverter-power", "Inverter AC power", "W"},
	{GridPower, "grid-power", "Grid power (negative = feed-in)", "W"},
	{HouseholdLoad, "load", "Household load", "W"},
	{BatteryPower, "battery-power", "Battery power (negative = charging)", "W"},
	{BatterySOC, "battery-soc", "Battery state of charge", "%"},
}

var (
	byName map[string]Register
	byID   map[uint32]Register
)

func init() {
	byName = make(map[string]Register, len(table))
	byID = make(map[uint32]Register, len(table))
	for _, r := range table {
		byName[r.Name] = r
		byID[r.ID] = r
	}
}

// All returns the published registers in display order.
func All() []Register {
	out := make([]Register, len(table))
	copy(out, table)
	return out
}

// ByName looks a register up by its CLI name.
func ByName(name string) (Register, bool) {
	r, ok := byName[strings.ToLower(name)]
	return r, ok
}

// ByID looks a register up by id. Unknown ids are still readable; they just
// have no display metadata.
func ByID(id uint32) (Register, bool) {
	r, ok := byID[id]
	return r, ok
}

// Names returns the sorted CLI names, for help output.
func Names() []string {
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Parse resolves a register reference: either a published CLI name or a
// numeric id ("0x959930BF" or decimal).
func Parse(ref string) (Register, error) {
	if r, ok := ByName(ref); ok {
		return r, nil
	}

	var id uint64
	var err error
	if lower := strings.ToLower(ref); strings.HasPrefix(lower, "0x") {
		id, err = strconv.ParseUint(lower[2:], 16, 32)
	} else {
		id, err = strconv.ParseUint(lower, 10, 32)
	}
	if err != nil {
		return Register{}, fmt.Errorf("unknown register %q (expected a name like %s or a hex id)", ref, table[0].Name)
	}

	if r, ok := ByID(uint32(id)); ok {
		return r, nil
	}
	return Register{
		ID:   uint32(id),
		Name: fmt.Sprintf("0x%08X", uint32(id)),
		Unit: "",
	}, nil
}
