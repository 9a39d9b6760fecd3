package syncer

import "log/slog"

// Reporter receives progress events from the engine. The engine works
// correctly with any implementation, including the no-op one.
type Reporter interface {
	StartSync(totalTasks int)
	TaskComplete(name, date string)
	TaskSkipped(name, date string)
	TaskFailed(name, date string)
	Info(msg string)
	Warning(msg string)
	Error(msg string)
	EndSync()
}

// NoopReporter discards all events.
type NoopReporter struct{}

func (NoopReporter) StartSync(int)            {}
func (NoopReporter) TaskComplete(_, _ string) {}
func (NoopReporter) TaskSkipped(_, _ string)  {}
func (NoopReporter) TaskFailed(_, _ string)   {}
func (NoopReporter) Info(string)              {}
func (NoopReporter) Warning(string)           {}
func (NoopReporter) Error(string)             {}
func (NoopReporter) EndSync()                 {}

// LogReporter writes progress events through a structured logger.
type LogReporter struct {
	Log *slog.Logger
}

func (r LogReporter) StartSync(totalTasks int) {
	r.Log.Info("sync started", "total_tasks", totalTasks)
}

func (r LogReporter) TaskComplete(name, date string) {
	r.Log.Info("task complete", "task", name, "date", date)
}

func (r LogReporter) TaskSkipped(name, date string) {
	r.Log.Debug("task skipped", "task", name, "date", date)
}

func (r LogReporter) TaskFailed(name, date string) {
	r.Log.Warn("task failed", "task", name, "date", date)
}

func (r LogReporter) Info(msg string)    { r.Log.Info(msg) }
func (r LogReporter) Warning(msg string) { r.Log.Warn(msg) }
func (r LogReporter) Error(msg string)   { r.Log.Error(msg) }

func (r LogReporter) EndSync() {
	r.Log.Info("sync finished")
}
