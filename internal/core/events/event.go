package events

import (
	. "github.com/jossmilde/tanklevel2mqtt/internal/core/domain"
)

func LevelReadingToUpdateEvents(r LevelReading) []any {
	var events []any

	// Raw distance
	events = append(events, FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_TANK_DISTANCE,
		},
		Value:    r.DistanceCm,
		Decimals: 1,
	})
	// Fill level
	events = append(events, FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_TANK_LEVEL,
		},
		Value:    r.Percent,
		Decimals: 1,
	})
	// Volume
	events = append(events, FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_TANK_VOLUME,
		},
		Value:    r.VolumeLiters,
		Decimals: 2,
	})
	events = append(events, FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_TANK_VOLUME_DISPLAY,
		},
		Value:    r.VolumeDisplay,
		Decimals: 2,
	})
	events = append(events, AlarmStateUpdateEvents(r.Alarms)...)

	return events
}

func AlarmStateUpdateEvents(s AlarmState) []any {
	var events []any
	events = append(events, BinarySensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_TANK_LOW_ALARM,
		},
		Value: s.LowActive,
	})
	events = append(events, BinarySensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_TANK_HIGH_ALARM,
		},
		Value: s.HighActive,
	})
	return events
}

// AlarmTransitionEvents returns one event per channel that changed state.
func AlarmTransitionEvents(t AlarmTransition, volumeLiters float64) []AlarmEdgeEvent {
	var events []AlarmEdgeEvent
	if t.Low != AlarmEdgeNone {
		events = append(events, AlarmEdgeEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{Id: SENSOR_ID_TANK_LOW_ALARM},
			Edge:                   t.Low,
			VolumeLiters:           volumeLiters,
		})
	}
	if t.High != AlarmEdgeNone {
		events = append(events, AlarmEdgeEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{Id: SENSOR_ID_TANK_HIGH_ALARM},
			Edge:                   t.High,
			VolumeLiters:           volumeLiters,
		})
	}
	return events
}

func ConfigInputNumberUpdateEvents(cfg DeviceConfig) []any {
	var events []any
	events = append(events, InputNumberSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: INPUT_NUMBER_ID_LOW_ALARM_PERCENT,
		},
		Value:    cfg.Tank.LowAlarmPct,
		Decimals: 1,
	})
	events = append(events, InputNumberSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: INPUT_NUMBER_ID_HIGH_ALARM_PERCENT,
		},
		Value:    cfg.Tank.HighAlarmPct,
		Decimals: 1,
	})
	events = append(events, InputNumberSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: INPUT_NUMBER_ID_TRANSMISSION_INTERVAL,
		},
		Value: float64(cfg.TransmissionIntervalMs),
	})
	return events
}
