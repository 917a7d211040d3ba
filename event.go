package botkeeper

import "github.com/sirupsen/logrus"

type EventLevel string

const (
	LvlError EventLevel = "error"
	LvlWarn  EventLevel = "warn"
	LvlInfo  EventLevel = "info"
)

// Event is a lifecycle notification emitted by the Supervisor: worker
// started, stopped, faulted, stale completion ignored, and so on.
type Event struct {
	Level   EventLevel
	Message string
	Fields  map[string]interface{}
}

func (e Event) IsError() bool {
	return e.Level == LvlError
}

func (e Event) SetField(key string, value interface{}) Event {
	if e.Fields == nil {
		e.Fields = map[string]interface{}{}
	}
	e.Fields[key] = value
	return e
}

func ErrorEvent(msg string) Event {
	return Event{Level: LvlError, Message: msg}
}

func WarnEvent(msg string) Event {
	return Event{Level: LvlWarn, Message: msg}
}

func InfoEvent(msg string) Event {
	return Event{Level: LvlInfo, Message: msg}
}

// EventHandler consumes supervisor lifecycle events.
type EventHandler func(Event)

// LogrusEventHandler returns an EventHandler that writes events through the
// passed logger entry.
func LogrusEventHandler(entry *logrus.Entry) EventHandler {
	return func(event Event) {
		var level logrus.Level
		switch event.Level {
		case LvlError:
			level = logrus.ErrorLevel
		case LvlInfo:
			level = logrus.InfoLevel
		default:
			level = logrus.WarnLevel
		}

		entry.WithFields(event.Fields).Log(level, event.Message)
	}
}
