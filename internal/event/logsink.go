package event

import (
	"github.com/doridoridoriand/picheck/internal/log"
)

// LogSink writes every event to a logger. It is the whole presentation in
// headless mode.
type LogSink struct {
	logger *log.Logger
}

// NewLogSink returns a sink logging through logger.
func NewLogSink(logger *log.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Handle logs ev at a level matching its importance.
func (s *LogSink) Handle(ev Event) {
	fields := map[string]interface{}{"event": string(ev.Kind())}
	switch e := ev.(type) {
	case CheckStarted:
		fields["target"] = e.Target
		fields["forced"] = e.Forced
		s.logger.Debug("check started", fields)
	case CheckCompleted:
		fields["target"] = e.Target
		fields["online"] = e.Online
		fields["transition"] = e.Transition
		fields["next_check_at"] = e.NextCheckAt.Format("2006-01-02T15:04:05Z07:00")
		if e.Diagnostic != "" {
			fields["diagnostic"] = e.Diagnostic
			s.logger.Warn("check completed with error", fields)
			return
		}
		s.logger.Debug("check completed", fields)
	case StatusChanged:
		fields["target"] = e.Target
		fields["online"] = e.Online
		fields["first_observation"] = e.FirstObservation
		if e.Online {
			s.logger.Info("target online", fields)
		} else {
			s.logger.Warn("target offline", fields)
		}
	case NotificationCreated:
		fields["target"] = e.Target
		fields["x"] = e.Position.X
		fields["y"] = e.Position.Y
		s.logger.Info("notification shown", fields)
	case NotificationMoved:
		fields["target"] = e.Target
		fields["y"] = e.Position.Y
		s.logger.Debug("notification moved", fields)
	case NotificationClosed:
		fields["target"] = e.Target
		fields["reason"] = string(e.Reason)
		s.logger.Info("notification closed", fields)
	case ConfigureRequested:
		fields["target"] = e.Target
		s.logger.Info("configuration requested", fields)
	case ForceCheckRequested:
		fields["target"] = e.Target
		s.logger.Info("force check requested", fields)
	case TargetChanged:
		fields["previous"] = e.Previous
		fields["target"] = e.Target
		s.logger.Info("target changed", fields)
	case Toast:
		fields["title"] = e.Title
		fields["message"] = e.Message
		s.logger.Info("toast", fields)
	case Warning:
		fields["title"] = e.Title
		fields["message"] = e.Message
		s.logger.Warn("warning", fields)
	default:
		s.logger.Debug("event", fields)
	}
}
