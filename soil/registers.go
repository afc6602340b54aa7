package soil

import "fmt"

// Register is a Chirp firmware command byte. Every transaction starts with one.
type Register byte

const (
	RegCapacitance  Register = 0x00
	RegSetAddress   Register = 0x01
	RegGetAddress   Register = 0x02
	RegMeasureLight Register = 0x03
	RegLight        Register = 0x04
	RegTemperature  Register = 0x05
	RegReset        Register = 0x06
	RegVersion      Register = 0x07
	RegSleep        Register = 0x08
	RegBusy         Register = 0x09
)

type registerDesc struct {
	name string
	// payload is the number of bytes following the register byte on write.
	payload int
	// result is the number of bytes read back; 0 means write-only.
	result int
}

var registers = map[Register]registerDesc{
	RegCapacitance:  {name: "capacitance", result: 2},
	RegSetAddress:   {name: "set-address", payload: 1},
	RegGetAddress:   {name: "get-address", result: 1},
	RegMeasureLight: {name: "measure"},
	RegLight:        {name: "light", result: 2},
	RegTemperature:  {name: "temperature", result: 2},
	RegReset:        {name: "reset"},
	RegVersion:      {name: "version", result: 1},
	RegSleep:        {name: "sleep"},
	RegBusy:         {name: "busy", result: 1},
}

func (r Register) String() string {
	if d, ok := registers[r]; ok {
		return d.name
	}
	return fmt.Sprintf("register(%#04x)", byte(r))
}

// PayloadLen returns the number of argument bytes the register takes.
func (r Register) PayloadLen() int {
	return registers[r].payload
}

// ResultLen returns the number of bytes the sensor answers with, 0 for commands.
func (r Register) ResultLen() int {
	return registers[r].result
}

// IsQuery reports whether the register is read with a write-then-read transaction.
func (r Register) IsQuery() bool {
	return registers[r].result > 0
}

// Known reports whether r belongs to the firmware register set.
func (r Register) Known() bool {
	_, ok := registers[r]
	return ok
}
