package supervisor

// Sink is the log the supervisor opens on start and closes on shutdown.
type Sink interface {
	Write(text string) error
	Close() error
}

// OpenFunc opens the sink. It is called once, by Start.
type OpenFunc func() (Sink, error)
