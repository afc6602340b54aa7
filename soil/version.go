package soil

import "fmt"

// Version is the firmware version byte as reported by the sensor.
// 0x26 reads as 2.6.
type Version byte

func (v Version) Major() int {
	return int(v >> 4)
}

func (v Version) Minor() int {
	return int(v & 0x0F)
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major(), v.Minor())
}
