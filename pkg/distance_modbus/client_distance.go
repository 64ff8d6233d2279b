package distance_modbus

import (
	"time"

	"github.com/simonvetter/modbus"
	"go.uber.org/zap"
)

type DistanceModbusReader struct {
	ModbusClient
	register uint16
	regType  modbus.RegType
	format   string
	// raw register value * scale = centimeters
	scale float64
}

func traceLoggerInstrumentation(logger *zap.Logger) *ModbusInstrument {
	if !logger.Core().Enabled(zap.DebugLevel) {
		return nil
	}
	return &ModbusInstrument{
		RecordTime: func(fnName string, readTime time.Duration) {
			logger.Debug("modbus read", zap.String("fn", fnName), zap.Int64("millis", readTime.Milliseconds()))
		},
	}
}

// CreateDistanceModbusReader builds a reader for a single distance register.
// url is a simonvetter/modbus client URL such as tcp://10.0.0.5:502 or
// rtu:///dev/ttyUSB0.
func CreateDistanceModbusReader(url string, unitId uint8, register uint16, regType string, format string, scale float64,
	timeout time.Duration, logger *zap.Logger, instrumentation *ModbusInstrument) (DistanceReader, error) {
	rt, err := ParseRegisterType(regType)
	if err != nil {
		return nil, err
	}
	if err := CheckValueFormat(format); err != nil {
		return nil, err
	}
	if scale == 0 {
		scale = 1
	}
	client, err := modbus.NewClient(&modbus.ClientConfiguration{
		URL:     url,
		Timeout: timeout,
	})
	if err != nil {
		return nil, err
	}
	// instrumentation
	var inst []ModbusInstrument
	logInst := traceLoggerInstrumentation(logger.With(zap.String("target", "distanceSensor"), zap.Uint8("unitId", unitId)))
	if logInst != nil {
		inst = append(inst, *logInst)
	}
	if instrumentation != nil {
		inst = append(inst, *instrumentation)
	}

	err = client.SetUnitId(unitId)
	if err != nil {
		return nil, err
	}
	return &DistanceModbusReader{
		ModbusClient: ModbusClient{
			client:     client,
			instrument: inst,
		},
		register: register,
		regType:  rt,
		format:   format,
		scale:    scale,
	}, nil
}

func (reader *DistanceModbusReader) Open() error {
	return reader.client.Open()
}

func (reader *DistanceModbusReader) Close() error {
	return reader.client.Close()
}

func (reader *DistanceModbusReader) ReadDistanceCm() (float64, error) {
	switch reader.format {
	case VALUE_FORMAT_UINT32:
		v, err := reader.readUint32(reader.register, reader.regType)
		if err != nil {
			return 0, err
		}
		return float64(v) * reader.scale, nil
	case VALUE_FORMAT_FLOAT32:
		v, err := reader.readFloat32(reader.register, reader.regType)
		if err != nil {
			return 0, err
		}
		return float64(v) * reader.scale, nil
	default:
		v, err := reader.readRegister(reader.register, reader.regType)
		if err != nil {
			return 0, err
		}
		return float64(v) * reader.scale, nil
	}
}
