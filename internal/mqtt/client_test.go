package mqtt

import (
	"testing"

	"github.com/jossmilde/tanklevel2mqtt/internal/config"
	"github.com/jossmilde/tanklevel2mqtt/internal/core/domain"
	"github.com/jossmilde/tanklevel2mqtt/internal/core/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInputNumberCommandParse(t *testing.T) {

	assert := assert.New(t)

	baseTopic := "loremTopic"
	topic := "loremTopic/number/number_name/set"
	r := inputNumberCommandExtractor(baseTopic)
	matches := r.FindAllStringSubmatch(topic, 1)

	assert.Equal(matches[0][1], "number_name", "number_id extract")
}

func TestInputNumberCommandParseFail(t *testing.T) {

	assert := assert.New(t)

	baseTopic := "loremTopic"
	topic := "loremTopic/switch/number_name/command"
	r := inputNumberCommandExtractor(baseTopic)
	matches := r.FindAllStringSubmatch(topic, 1)

	assert.Equal(len(matches), 0, "no matches")
}

func TestInputNumberCommandOtherBaseTopic(t *testing.T) {

	r := inputNumberCommandExtractor("tank")
	matches := r.FindAllStringSubmatch("other_tank/number/low_alarm_percent/set", 1)

	assert.Equal(t, 0, len(matches), "base topic must be a prefix")
}

func TestParseNumberCommandPayload(t *testing.T) {

	assert := assert.New(t)
	r := inputNumberCommandExtractor("tanklevel")

	cmd, err := parseInputNumberCommand(r, "tanklevel/number/low_alarm_percent/set", []byte(" 12.5\n"))
	require.Nil(t, err)
	assert.Equal("low_alarm_percent", cmd.DeviceId)
	assert.Equal("number", cmd.Command)
	assert.Equal("12.5", cmd.Payload)

	_, err = parseInputNumberCommand(r, "tanklevel/number/low_alarm_percent/set", []byte("twelve"))
	assert.NotNil(err)
}

func TestHADiscoveryMessages(t *testing.T) {

	assert := assert.New(t)

	cfg := config.Config{MQTT: config.MQTTConfig{Host: "localhost", Port: 1883, BaseTopic: "tanklevel"}}
	client := CreateMQTTClient(&cfg, OptsFromConfig(&cfg), nil, nil)

	bridge := events.BridgeDevice("tanklevel")
	tank := events.TankDevice("tanklevel", "Fresh water", bridge)
	sensors := events.TankSensors(tank, domain.VolumeUnitLiter)

	var lowAlarm domain.GenericSensor
	for _, s := range sensors {
		if s.Id == events.SENSOR_ID_TANK_LOW_ALARM {
			lowAlarm = s
		}
	}
	msg := GenericSensorToHADiscoveryMessage(client, lowAlarm)
	assert.Equal("tanklevel/binary_sensor/tank_low_alarm/state", msg.StateTopic)
	assert.Equal(MQTT_PAYLOAD_ON, msg.PayloadOn)
	assert.Equal("tanklevel/bridge/state", msg.AvTopic)
	assert.Equal("homeassistant/binary_sensor/"+tank.Id+"/tank_low_alarm/config", HADiscoverySensorTopic(client.HADiscoveryPrefix(), lowAlarm))
	assert.Nil(msg.DisplayPrecision)

	for _, s := range events.TankSensors(tank, domain.VolumeUnitCubicMeter) {
		if s.Id == events.SENSOR_ID_TANK_VOLUME_DISPLAY {
			vmsg := GenericSensorToHADiscoveryMessage(client, s)
			if assert.NotNil(vmsg.DisplayPrecision) {
				assert.Equal(3, *vmsg.DisplayPrecision)
			}
			assert.Equal("m³", vmsg.UnitOfMeasurement)
		}
	}

	numbers := events.TankInputNumbers(tank, domain.DefaultDeviceConfig())
	nmsg := GenericInputNumberToHADiscoveryMessage(client, numbers[0])
	assert.Equal("tanklevel/number/low_alarm_percent/set", nmsg.CommandTopic)
	assert.Equal(10.0, nmsg.InitialValue)
}
