package domain

import "time"

const (
	ACTOR_ID_MASTER       = "master"
	ACTOR_ID_SENSOR       = "sensor"
	ACTOR_ID_LEVEL        = "level"
	ACTOR_ID_PUBLISHER    = "publisher"
	ACTOR_ID_HA_DISCOVERY = "hadiscovery"
)

type GetDistanceRequest struct {
	ActorRequestMixIn
}

type GetDistanceResponse struct {
	ActorResponseMixIn
	DistanceCm float64
	ReadAt     time.Time
}

type SetSimulatedDistanceRequest struct {
	ActorRequestMixIn
	DistanceCm float64
}

type SetSimulatedDistanceResponse struct {
	ActorResponseMixIn
	DistanceCm float64
}

type GetLevelRequest struct {
	ActorRequestMixIn
}

type GetLevelResponse struct {
	ActorResponseMixIn
	Reading       LevelReading
	LastPublished time.Time
	PublishFailed bool
}

type PublishLevelRequest struct {
	ActorRequestMixIn
	DeviceName string
	Reading    LevelReading
	Transition AlarmTransition
}

type PublishLevelResponse struct {
	ActorResponseMixIn
}

type PublishMessageRequest struct {
	ActorRequestMixIn
	Topic   string
	Payload string
	Retain  bool
}

type PublishMessageResponse struct {
	ActorResponseMixIn
}

type PublishSensorUpdateRequest struct {
	ActorRequestMixIn
	Retain bool
	Event  SensorUpdateEvent
}

type PublishSensorUpdateResponse struct {
	ActorResponseMixIn
}

type PublishDiscoveryRequest struct {
	ActorRequestMixIn
	Sensors      []GenericSensor
	InputNumbers []GenericInputNumber
}

type PublishDiscoveryResponse struct {
	ActorResponseMixIn
}

// ConfigChangedEvent is sent to the master actor after the device
// configuration was replaced.
type ConfigChangedEvent struct {
	Config DeviceConfig
}

type ActorHealthRequest struct {
	ActorRequestMixIn
}

type ActorHealthResponse struct {
	ActorResponseMixIn
	Id      string
	Healthy bool
	State   string
}
