// Package scheduler provides the single-goroutine task loop that
// serialises tracker and sensor updates.
//
// The fusion engine reconciles member state on broker handler goroutines,
// then hands the resulting dispatches to the loop. Running all downstream
// consumers on one goroutine gives cross-group ordering without locks.
package scheduler
