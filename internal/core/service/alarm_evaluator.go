package service

import "github.com/jossmilde/tanklevel2mqtt/internal/core/domain"

// AlarmThresholds holds the low and high alarm levels in liters.
type AlarmThresholds struct {
	LowLiters  float64
	HighLiters float64
}

func Thresholds(tank domain.TankConfig) AlarmThresholds {
	return AlarmThresholds{
		LowLiters:  tank.VolumeLiters * tank.LowAlarmPct / 100,
		HighLiters: tank.VolumeLiters * tank.HighAlarmPct / 100,
	}
}

// AlarmEvaluator tracks two independent alarm channels. The low channel is
// active while volume <= low, the high channel while volume >= high. A
// transition is reported only on the update that changes a channel state.
type AlarmEvaluator struct {
	state domain.AlarmState
}

func NewAlarmEvaluator() *AlarmEvaluator {
	return &AlarmEvaluator{}
}

func (e *AlarmEvaluator) State() domain.AlarmState {
	return e.state
}

func (e *AlarmEvaluator) Update(volumeLiters float64, th AlarmThresholds) domain.AlarmTransition {
	var tr domain.AlarmTransition

	if !e.state.LowActive && volumeLiters <= th.LowLiters {
		e.state.LowActive = true
		tr.Low = domain.AlarmEdgeRaised
	} else if e.state.LowActive && volumeLiters > th.LowLiters {
		e.state.LowActive = false
		tr.Low = domain.AlarmEdgeCleared
	}

	if !e.state.HighActive && volumeLiters >= th.HighLiters {
		e.state.HighActive = true
		tr.High = domain.AlarmEdgeRaised
	} else if e.state.HighActive && volumeLiters < th.HighLiters {
		e.state.HighActive = false
		tr.High = domain.AlarmEdgeCleared
	}

	return tr
}
