// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package adxl345

// Register addresses.
const (
	RegDevID      byte = 0x00
	RegThreshTap  byte = 0x1D
	RegOfsX       byte = 0x1E
	RegOfsY       byte = 0x1F
	RegOfsZ       byte = 0x20
	RegBWRate     byte = 0x2C
	RegPowerCtl   byte = 0x2D
	RegIntEnable  byte = 0x2E
	RegIntMap     byte = 0x2F
	RegIntSource  byte = 0x30
	RegDataFormat byte = 0x31
	RegDataX0     byte = 0x32
	RegDataX1     byte = 0x33
	RegDataY0     byte = 0x34
	RegDataY1     byte = 0x35
	RegDataZ0     byte = 0x36
	RegDataZ1     byte = 0x37
	RegFIFOCtl    byte = 0x38
	RegFIFOStatus byte = 0x39
)

// DeviceID is the fixed DEVID value of an ADXL345.
const DeviceID byte = 0xE5

// Register values.
const (
	PowerMeasure byte = 0x08
	PowerStandby byte = 0x00

	IntWatermark byte = 1 << 1
	IntOverrun   byte = 1 << 0

	FIFOBypass  byte = 0x00
	FIFOFifo    byte = 0x40
	FIFOStream  byte = 0x80
	FIFOTrigger byte = 0xC0

	// FIFOEntriesMask selects the entry count in FIFO_STATUS.
	FIFOEntriesMask byte = 0x3F
	// FIFODepth is the number of samples the hardware FIFO holds.
	FIFODepth = 32
)

// BitField describes a bit range of a register.
type BitField struct {
	Bits        string `json:"bits"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Values      string `json:"values,omitempty"`
}

// RegisterInfo describes one register for the debug surface.
type RegisterInfo struct {
	Address     byte       `json:"-"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Access      string     `json:"access"` // "R", "RW"
	Default     string     `json:"default,omitempty"`
	BitFields   []BitField `json:"bit_fields,omitempty"`
}

// RegisterMap returns metadata for the registers this driver touches.
func RegisterMap() []RegisterInfo {
	return []RegisterInfo{
		{Address: RegDevID, Name: "DEVID", Description: "Device ID", Access: "R", Default: "0xE5"},
		{Address: RegOfsX, Name: "OFSX", Description: "X-axis offset", Access: "RW", Default: "0x00"},
		{Address: RegOfsY, Name: "OFSY", Description: "Y-axis offset", Access: "RW", Default: "0x00"},
		{Address: RegOfsZ, Name: "OFSZ", Description: "Z-axis offset", Access: "RW", Default: "0x00"},
		{Address: RegBWRate, Name: "BW_RATE", Description: "Data rate and power mode control", Access: "RW", Default: "0x0A",
			BitFields: []BitField{
				{Bits: "4", Name: "LOW_POWER", Description: "Reduced power operation", Values: "0=Normal, 1=Low power"},
				{Bits: "3:0", Name: "RATE", Description: "Output data rate", Values: "0x8=25Hz, 0x9=50Hz, 0xA=100Hz, 0xB=200Hz ... 0xF=3200Hz"},
			}},
		{Address: RegPowerCtl, Name: "POWER_CTL", Description: "Power-saving features control", Access: "RW", Default: "0x00",
			BitFields: []BitField{
				{Bits: "5", Name: "LINK", Description: "Link activity and inactivity", Values: ""},
				{Bits: "4", Name: "AUTO_SLEEP", Description: "Auto sleep", Values: ""},
				{Bits: "3", Name: "MEASURE", Description: "Measurement mode", Values: "0=Standby, 1=Measure"},
				{Bits: "2", Name: "SLEEP", Description: "Sleep mode", Values: ""},
				{Bits: "1:0", Name: "WAKEUP", Description: "Readings per second in sleep", Values: "0=8Hz, 1=4Hz, 2=2Hz, 3=1Hz"},
			}},
		{Address: RegIntEnable, Name: "INT_ENABLE", Description: "Interrupt enable control", Access: "RW", Default: "0x00",
			BitFields: []BitField{
				{Bits: "7", Name: "DATA_READY", Description: "Data ready"},
				{Bits: "6", Name: "SINGLE_TAP", Description: "Single tap"},
				{Bits: "5", Name: "DOUBLE_TAP", Description: "Double tap"},
				{Bits: "4", Name: "ACTIVITY", Description: "Activity"},
				{Bits: "3", Name: "INACTIVITY", Description: "Inactivity"},
				{Bits: "2", Name: "FREE_FALL", Description: "Free fall"},
				{Bits: "1", Name: "WATERMARK", Description: "FIFO watermark"},
				{Bits: "0", Name: "OVERRUN", Description: "FIFO overrun"},
			}},
		{Address: RegIntMap, Name: "INT_MAP", Description: "Interrupt mapping control", Access: "RW", Default: "0x00",
			BitFields: []BitField{
				{Bits: "7:0", Name: "INT_MAP", Description: "Route each interrupt to INT1 or INT2", Values: "0=INT1, 1=INT2"},
			}},
		{Address: RegIntSource, Name: "INT_SOURCE", Description: "Source of interrupts", Access: "R", Default: "0x02"},
		{Address: RegDataFormat, Name: "DATA_FORMAT", Description: "Data format control", Access: "RW", Default: "0x00",
			BitFields: []BitField{
				{Bits: "7", Name: "SELF_TEST", Description: "Self-test force", Values: "0=Off, 1=On"},
				{Bits: "5", Name: "INT_INVERT", Description: "Interrupt polarity", Values: "0=Active high, 1=Active low"},
				{Bits: "3", Name: "FULL_RES", Description: "Full resolution", Values: "0=10-bit, 1=4mg/LSB"},
				{Bits: "2", Name: "JUSTIFY", Description: "Left justify", Values: "0=Right, 1=Left"},
				{Bits: "1:0", Name: "RANGE", Description: "g range", Values: "0=±2g, 1=±4g, 2=±8g, 3=±16g"},
			}},
		{Address: RegDataX0, Name: "DATAX0", Description: "X-axis data LSB", Access: "R"},
		{Address: RegDataX1, Name: "DATAX1", Description: "X-axis data MSB", Access: "R"},
		{Address: RegDataY0, Name: "DATAY0", Description: "Y-axis data LSB", Access: "R"},
		{Address: RegDataY1, Name: "DATAY1", Description: "Y-axis data MSB", Access: "R"},
		{Address: RegDataZ0, Name: "DATAZ0", Description: "Z-axis data LSB", Access: "R"},
		{Address: RegDataZ1, Name: "DATAZ1", Description: "Z-axis data MSB", Access: "R"},
		{Address: RegFIFOCtl, Name: "FIFO_CTL", Description: "FIFO control", Access: "RW", Default: "0x00",
			BitFields: []BitField{
				{Bits: "7:6", Name: "FIFO_MODE", Description: "FIFO mode", Values: "0=Bypass, 1=FIFO, 2=Stream, 3=Trigger"},
				{Bits: "5", Name: "TRIGGER", Description: "Trigger event routing", Values: "0=INT1, 1=INT2"},
				{Bits: "4:0", Name: "SAMPLES", Description: "Watermark level", Values: "0-31"},
			}},
		{Address: RegFIFOStatus, Name: "FIFO_STATUS", Description: "FIFO status", Access: "R", Default: "0x00",
			BitFields: []BitField{
				{Bits: "7", Name: "FIFO_TRIG", Description: "Trigger event occurred"},
				{Bits: "5:0", Name: "ENTRIES", Description: "Samples stored in the FIFO", Values: "0-32"},
			}},
	}
}

// RegisterName returns the datasheet name of reg, or "" if unknown.
func RegisterName(reg byte) string {
	for _, r := range RegisterMap() {
		if r.Address == reg {
			return r.Name
		}
	}
	return ""
}

// PopsFIFO reports whether reading reg consumes a FIFO entry. Only the
// interrupt handler may read these registers.
func PopsFIFO(reg byte) bool {
	return reg >= RegDataX0 && reg <= RegDataZ1
}
