package distance_modbus

import (
	"fmt"
	"strings"

	"github.com/simonvetter/modbus"
)

const (
	REGISTER_TYPE_HOLDING = "holding"
	REGISTER_TYPE_INPUT   = "input"

	VALUE_FORMAT_UINT16  = "uint16"
	VALUE_FORMAT_UINT32  = "uint32"
	VALUE_FORMAT_FLOAT32 = "float32"
)

// DistanceReader reads the raw distance between the sensor face and the
// liquid surface.
type DistanceReader interface {
	Open() error
	Close() error
	ReadDistanceCm() (float64, error)
}

func ParseRegisterType(name string) (modbus.RegType, error) {
	switch strings.ToLower(name) {
	case "", REGISTER_TYPE_HOLDING:
		return modbus.HOLDING_REGISTER, nil
	case REGISTER_TYPE_INPUT:
		return modbus.INPUT_REGISTER, nil
	}
	return 0, fmt.Errorf("modbus: unknown register type %q", name)
}

func CheckValueFormat(format string) error {
	switch format {
	case "", VALUE_FORMAT_UINT16, VALUE_FORMAT_UINT32, VALUE_FORMAT_FLOAT32:
		return nil
	}
	return fmt.Errorf("modbus: unknown value format %q", format)
}
