package runner

// LineHandler receives script output one decoded line at a time.
// OnLine is called synchronously from the goroutine that called Run.
type LineHandler interface {
	OnLine(line string)
}

// LineHandlerFunc adapts a plain function to LineHandler.
type LineHandlerFunc func(line string)

// OnLine calls f(line).
func (f LineHandlerFunc) OnLine(line string) { f(line) }

// ChanHandler forwards every line to a channel. The caller must keep
// draining the channel until Run returns, or Run blocks.
type ChanHandler chan<- string

// OnLine sends line on the channel.
func (c ChanHandler) OnLine(line string) { c <- line }
