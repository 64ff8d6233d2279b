package distance_modbus

import (
	"testing"
	"time"

	"github.com/simonvetter/modbus"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestSimulatedReaderCapsDistance(t *testing.T) {

	assert := assert.New(t)
	reader := NewSimulatedDistanceReader(100, 120)

	d, err := reader.ReadDistanceCm()
	assert.Nil(err)
	assert.Equal(100.0, d)

	assert.Equal(120.0, reader.Set(500))
	assert.Equal(0.0, reader.Set(-3))
	assert.Equal(42.5, reader.Set(42.5))

	d, _ = reader.ReadDistanceCm()
	assert.Equal(42.5, d)
}

func TestParseRegisterType(t *testing.T) {

	assert := assert.New(t)

	rt, err := ParseRegisterType("Input")
	assert.Nil(err)
	assert.Equal(modbus.INPUT_REGISTER, rt)

	rt, err = ParseRegisterType("")
	assert.Nil(err)
	assert.Equal(modbus.HOLDING_REGISTER, rt)

	_, err = ParseRegisterType("coil")
	assert.NotNil(err)
}

func TestCreateReaderValidatesArguments(t *testing.T) {

	logger := zap.Must(zap.NewDevelopment())

	_, err := CreateDistanceModbusReader("tcp://127.0.0.1:502", 1, 0, "discrete", "", 1, time.Second, logger, nil)
	assert.NotNil(t, err)

	_, err = CreateDistanceModbusReader("tcp://127.0.0.1:502", 1, 0, "holding", "int8", 1, time.Second, logger, nil)
	assert.NotNil(t, err)

	reader, err := CreateDistanceModbusReader("tcp://127.0.0.1:502", 1, 0, "holding", "", 0.1, time.Second, logger, nil)
	assert.Nil(t, err)
	assert.NotNil(t, reader)
}

func TestRecordTimer(t *testing.T) {

	var names []string
	inst := []ModbusInstrument{{RecordTime: func(fnName string, readTime time.Duration) {
		names = append(names, fnName)
	}}}

	RecordTimer("ReadRegister", inst)()
	RecordTimer("ReadFloat32", nil)()

	assert.Equal(t, []string{"ReadRegister"}, names)
}
