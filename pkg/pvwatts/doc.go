// Package pvwatts implements the empirical PV performance models of the
// PVWatts family: module cell temperature and DC output, the system loss
// derate chain, and the inverter part-load efficiency curve.
//
// All model types are immutable values. Construct them once and share them
// between goroutines.
package pvwatts
