package provisioning

import "log"

// Observer receives progress output from lifecycle phases.
type Observer interface {
	Printf(format string, v ...any)
}

// ConsoleObserver implements Observer using the standard log package.
type ConsoleObserver struct{}

// NewConsoleObserver creates a console-based observer.
func NewConsoleObserver() *ConsoleObserver {
	return &ConsoleObserver{}
}

// Printf implements Observer.
func (o *ConsoleObserver) Printf(format string, v ...any) {
	log.Printf(format, v...)
}
