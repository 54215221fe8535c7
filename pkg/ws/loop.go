package ws

import (
	"fmt"
	"sync"
)

// eventLoop выполняет события всех соединений клиента последовательно
// на одной горутине. Работает до вызова stop, после чего дочитывает
// оставшиеся события.
type eventLoop struct {
	events   chan func()
	done     chan struct{}
	stopOnce sync.Once
	logs     *logChannels
}

func newEventLoop(queueSize int, logs *logChannels) *eventLoop {
	if queueSize < 0 {
		queueSize = 0
	}

	return &eventLoop{
		events: make(chan func(), queueSize),
		done:   make(chan struct{}),
		logs:   logs,
	}
}

func (l *eventLoop) run() {
	defer close(l.done)

	for fn := range l.events {
		l.dispatch(fn)
	}
}

func (l *eventLoop) dispatch(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logs.logError(ErrorRecoverable, "callback panicked", "panic", fmt.Sprint(r))
		}
	}()

	fn()
}

// post нельзя вызывать после stop.
func (l *eventLoop) post(fn func()) {
	l.events <- fn
}

func (l *eventLoop) stop() {
	l.stopOnce.Do(func() {
		close(l.events)
	})
	<-l.done
}
