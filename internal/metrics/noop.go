package metrics

// NoOp discards every observation. It is the zero-cost default for
// embedding contexts that don't want a metrics backend at all.
type NoOp struct{}

func (NoOp) CounterAdd(name string, delta float64, labels Labels)        {}
func (NoOp) GaugeSet(name string, value float64, labels Labels)         {}
func (NoOp) HistogramObserve(name string, value float64, labels Labels) {}
