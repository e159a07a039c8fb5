package workflow

import (
	"github.com/pkg/errors"
)

// State names one step of the casual chat flow.
type State string

const (
	StateClassifyDay        State = "classify_day"
	StateBranch             State = "is_business_day"
	StateComputeWait        State = "compute_wait"
	StateWaitBeforeMeeting  State = "wait_before_meeting"
	StateCreateMeeting      State = "create_meeting"
	StateComputeMeetingWait State = "compute_meeting_wait"
	StateWaitMeetingEnd     State = "wait_meeting_end"
	StateStopMeeting        State = "stop_meeting"
	StateDeleteMeeting      State = "delete_meeting"
	StateEnd                State = "end"
)

// Status is the lifecycle of a whole execution.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusTimedOut  Status = "timed_out"
)

func (s Status) Terminal() bool { return s != StatusRunning }

var (
	ErrTerminalState = errors.New("no transition out of the end state")
	ErrUnknownState  = errors.New("unknown state")
)

// Next is the transition function. It only looks at the state and the
// fields already recorded, so it can be replayed safely after a restart.
func Next(st State, rec Record) (State, error) {
	switch st {
	case StateClassifyDay:
		return StateBranch, nil
	case StateBranch:
		if rec.DayInfo == nil {
			return "", errors.New("branch reached before the day was classified")
		}
		if !rec.DayInfo.IsBusinessDay {
			return StateEnd, nil
		}
		return StateComputeWait, nil
	case StateComputeWait:
		return StateWaitBeforeMeeting, nil
	case StateWaitBeforeMeeting:
		return StateCreateMeeting, nil
	case StateCreateMeeting:
		return StateComputeMeetingWait, nil
	case StateComputeMeetingWait:
		return StateWaitMeetingEnd, nil
	case StateWaitMeetingEnd:
		return StateStopMeeting, nil
	case StateStopMeeting:
		return StateDeleteMeeting, nil
	case StateDeleteMeeting:
		return StateEnd, nil
	case StateEnd:
		return "", ErrTerminalState
	default:
		return "", errors.Wrapf(ErrUnknownState, "%q", st)
	}
}
