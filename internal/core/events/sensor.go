package events

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"

	. "github.com/jossmilde/tanklevel2mqtt/internal/core/domain"

	"github.com/carlmjohnson/versioninfo"
)

const (
	SENSOR_ID_BRIDGE_STATE                = "bridge"
	SENSOR_ID_TANK_DISTANCE               = "tank_distance"
	SENSOR_ID_TANK_LEVEL                  = "tank_level"
	SENSOR_ID_TANK_VOLUME                 = "tank_volume"
	SENSOR_ID_TANK_VOLUME_DISPLAY         = "tank_volume_display"
	SENSOR_ID_TANK_LOW_ALARM              = "tank_low_alarm"
	SENSOR_ID_TANK_HIGH_ALARM             = "tank_high_alarm"
	INPUT_NUMBER_ID_LOW_ALARM_PERCENT     = "low_alarm_percent"
	INPUT_NUMBER_ID_HIGH_ALARM_PERCENT    = "high_alarm_percent"
	INPUT_NUMBER_ID_TRANSMISSION_INTERVAL = "transmission_interval"
	STATE_CLASS_MEASUREMENT               = "measurement"
	DEVICE_CLASS_DISTANCE                 = "distance"
	DEVICE_CLASS_VOLUME_STORAGE           = "volume_storage"
	DEVICE_CLASS_PROBLEM                  = "problem"
	DEVICE_CLASS_CONNECTIVITY             = "connectivity"
	ENTITY_CLASS_DIAGNOSTIC               = "diagnostic"
	ENTITY_CLASS_CONFIG                   = "config"
	SENSOR_TYPE_SENSOR                    = "sensor"
	SENSOR_TYPE_BINARY                    = "binary_sensor"
	INPUT_NUMBER_MODE_BOX                 = "box"
	INPUT_NUMBER_MODE_SLIDER              = "slider"
)

func BridgeDevice(baseTopic string) Device {
	return Device{
		Id:           fmt.Sprintf("tanklevel_bridge_%s", md5HashShort(baseTopic)),
		Manufacturer: "jossmilde",
		Model:        "tanklevel2mqtt",
		Version:      versioninfo.Short(),
		Name:         fmt.Sprintf("Tank level bridge %s", md5HashShort(baseTopic)),
	}
}

// TankDevice is keyed on the base topic so renaming the device keeps the
// Home Assistant entities.
func TankDevice(baseTopic string, deviceName string, bridge Device) Device {
	return Device{
		Id:           fmt.Sprintf("tanklevel_tank_%s", md5HashShort(baseTopic)),
		Manufacturer: "jossmilde",
		Model:        "Ultrasonic tank level sensor",
		Version:      versioninfo.Short(),
		Name:         deviceName,
		ViaDevice:    bridge.Id,
	}
}

func BridgeSensors(bridgeDevice Device) []GenericSensor {

	var sensors []GenericSensor

	sensors = append(sensors, GenericSensor{
		Device:         bridgeDevice,
		Id:             SENSOR_ID_BRIDGE_STATE,
		SensorType:     SENSOR_TYPE_BINARY,
		Name:           "Bridge state",
		DeviceClass:    DEVICE_CLASS_CONNECTIVITY,
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:       uniqueId(bridgeDevice.Id, SENSOR_ID_BRIDGE_STATE),
	})

	return sensors
}

func TankSensors(tankDevice Device, volumeUnit VolumeUnit) []GenericSensor {

	var sensors []GenericSensor

	// Raw distance
	sensors = append(sensors, GenericSensor{
		Device:            tankDevice,
		Id:                SENSOR_ID_TANK_DISTANCE,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Sensor distance",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_DISTANCE,
		UnitOfMeasurement: "cm",
		EntityCategory:    ENTITY_CLASS_DIAGNOSTIC,
		DisplayPrecision:  optionalInt(1),
		UniqueId:          uniqueId(tankDevice.Id, SENSOR_ID_TANK_DISTANCE),
	})

	// Fill level
	sensors = append(sensors, GenericSensor{
		Device:            tankDevice,
		Id:                SENSOR_ID_TANK_LEVEL,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Tank level",
		StateClass:        STATE_CLASS_MEASUREMENT,
		UnitOfMeasurement: "%",
		Icon:              "mdi:storage-tank",
		DisplayPrecision:  optionalInt(1),
		UniqueId:          uniqueId(tankDevice.Id, SENSOR_ID_TANK_LEVEL),
	})

	// Volume
	sensors = append(sensors, GenericSensor{
		Device:            tankDevice,
		Id:                SENSOR_ID_TANK_VOLUME,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Tank volume",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_VOLUME_STORAGE,
		UnitOfMeasurement: "L",
		DisplayPrecision:  optionalInt(1),
		UniqueId:          uniqueId(tankDevice.Id, SENSOR_ID_TANK_VOLUME),
	})

	// Volume in the configured unit
	sensors = append(sensors, GenericSensor{
		Device:            tankDevice,
		Id:                SENSOR_ID_TANK_VOLUME_DISPLAY,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Tank volume (display unit)",
		StateClass:        STATE_CLASS_MEASUREMENT,
		UnitOfMeasurement: string(volumeUnit),
		EnabledByDefault:  optionalBool(volumeUnit != VolumeUnitLiter),
		DisplayPrecision:  optionalInt(volumeDecimals(volumeUnit)),
		UniqueId:          uniqueId(tankDevice.Id, SENSOR_ID_TANK_VOLUME_DISPLAY),
	})

	// Alarms
	sensors = append(sensors, GenericSensor{
		Device:      tankDevice,
		Id:          SENSOR_ID_TANK_LOW_ALARM,
		SensorType:  SENSOR_TYPE_BINARY,
		Name:        "Low level alarm",
		DeviceClass: DEVICE_CLASS_PROBLEM,
		UniqueId:    uniqueId(tankDevice.Id, SENSOR_ID_TANK_LOW_ALARM),
	})
	sensors = append(sensors, GenericSensor{
		Device:      tankDevice,
		Id:          SENSOR_ID_TANK_HIGH_ALARM,
		SensorType:  SENSOR_TYPE_BINARY,
		Name:        "High level alarm",
		DeviceClass: DEVICE_CLASS_PROBLEM,
		UniqueId:    uniqueId(tankDevice.Id, SENSOR_ID_TANK_HIGH_ALARM),
	})

	return sensors
}

func TankInputNumbers(tankDevice Device, cfg DeviceConfig) []GenericInputNumber {

	var inputNumbers []GenericInputNumber

	inputNumbers = append(inputNumbers, GenericInputNumber{
		Device:            tankDevice,
		Id:                INPUT_NUMBER_ID_LOW_ALARM_PERCENT,
		Name:              "Low alarm threshold",
		UniqueId:          uniqueId(tankDevice.Id, INPUT_NUMBER_ID_LOW_ALARM_PERCENT),
		Icon:              "mdi:arrow-collapse-down",
		UnitOfMeasurement: "%",
		EntityCategory:    ENTITY_CLASS_CONFIG,
		Max:               100,
		Min:               0,
		Step:              1,
		Mode:              INPUT_NUMBER_MODE_BOX,
		InitialValue:      cfg.Tank.LowAlarmPct,
	})
	inputNumbers = append(inputNumbers, GenericInputNumber{
		Device:            tankDevice,
		Id:                INPUT_NUMBER_ID_HIGH_ALARM_PERCENT,
		Name:              "High alarm threshold",
		UniqueId:          uniqueId(tankDevice.Id, INPUT_NUMBER_ID_HIGH_ALARM_PERCENT),
		Icon:              "mdi:arrow-collapse-up",
		UnitOfMeasurement: "%",
		EntityCategory:    ENTITY_CLASS_CONFIG,
		Max:               100,
		Min:               0,
		Step:              1,
		Mode:              INPUT_NUMBER_MODE_BOX,
		InitialValue:      cfg.Tank.HighAlarmPct,
	})
	inputNumbers = append(inputNumbers, GenericInputNumber{
		Device:            tankDevice,
		Id:                INPUT_NUMBER_ID_TRANSMISSION_INTERVAL,
		Name:              "Transmission interval",
		UniqueId:          uniqueId(tankDevice.Id, INPUT_NUMBER_ID_TRANSMISSION_INTERVAL),
		Icon:              "mdi:timer-outline",
		UnitOfMeasurement: "ms",
		EntityCategory:    ENTITY_CLASS_CONFIG,
		Max:               MAX_TRANSMISSION_INTERVAL,
		Min:               MIN_TRANSMISSION_INTERVAL,
		Step:              100,
		Mode:              INPUT_NUMBER_MODE_BOX,
		InitialValue:      float64(cfg.TransmissionIntervalMs),
	})

	return inputNumbers
}

func uniqueId(baseId, id string) string {
	return fmt.Sprintf("uid_%s_%s", baseId, id)
}

func md5Hash(text string) string {
	hash := md5.Sum([]byte(text))
	return hex.EncodeToString(hash[:])
}

func md5HashShort(text string) string {
	hash := md5Hash(text)
	return hash[0:8]
}

func optionalBool(value bool) *bool {
	return &value
}

func optionalInt(value int) *int {
	return &value
}

// volumeDecimals keeps roughly liter resolution in the display unit.
func volumeDecimals(unit VolumeUnit) int {
	switch unit {
	case VolumeUnitCubicMeter:
		return 3
	case VolumeUnitGallon, VolumeUnitImperialGallon:
		return 2
	}
	return 1
}
