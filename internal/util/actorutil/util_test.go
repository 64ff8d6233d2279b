package actorutil

import (
	"errors"
	"testing"
	"time"

	"github.com/jossmilde/tanklevel2mqtt/internal/core/events"
	"github.com/jossmilde/tanklevel2mqtt/internal/mqtt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsedMQTTCommandToSettings(t *testing.T) {

	assert := assert.New(t)

	cmd, err := ParsedMQTTCommandToSettings(mqtt.ParsedMQTTCommand{
		DeviceId: events.INPUT_NUMBER_ID_HIGH_ALARM_PERCENT,
		Command:  "number",
		Payload:  "85",
	})
	require.Nil(t, err)
	require.NotNil(t, cmd.Tank)
	assert.Nil(cmd.Device)
	assert.Equal("85", *cmd.Tank.HighAlarmPercent)
	assert.Nil(cmd.Tank.LowAlarmPercent)

	cmd, err = ParsedMQTTCommandToSettings(mqtt.ParsedMQTTCommand{
		DeviceId: events.INPUT_NUMBER_ID_TRANSMISSION_INTERVAL,
		Command:  "number",
		Payload:  "2000",
	})
	require.Nil(t, err)
	require.NotNil(t, cmd.Device)
	assert.Equal("2000", *cmd.Device.Interval)

	_, err = ParsedMQTTCommandToSettings(mqtt.ParsedMQTTCommand{DeviceId: "tank_volume", Command: "number", Payload: "1"})
	assert.NotNil(err)
}

func TestBackgroundTaskRecoversFromTimeout(t *testing.T) {

	var got string
	NewBackgroundTask(nil, func() (*string, error) {
		time.Sleep(200 * time.Millisecond)
		v := "late"
		return &v, nil
	}).WithTimeout(20 * time.Millisecond).Recover(func(err error) string {
		return "recovered"
	}).OnSuccess(func(v string) {
		got = v
	}).Run()

	assert.Equal(t, "recovered", got)
}

func TestBackgroundTaskOnError(t *testing.T) {

	var gotErr error
	called := false
	NewBackgroundTask(nil, func() (*int, error) {
		return nil, errors.New("boom")
	}).OnError(func(err error) {
		gotErr = err
	}).OnSuccess(func(int) {
		called = true
	}).Run()

	assert.NotNil(t, gotErr)
	assert.False(t, called)
}
