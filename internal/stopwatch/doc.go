// Package stopwatch implements the elapsed-time model and the tick coordinator
// behind the stopwatch readout.
//
// TimerTime is a self-normalizing hours:minutes:seconds:milliseconds value.
// Overflow in any unit is carried into the next larger one on every mutation,
// so a single IncrementMilliseconds(3661001) yields 1h 1m 1s 1ms.
//
// Stopwatch owns one TimerTime and advances it by round(1000 * interval) ms on
// every tick while active. Its lifecycle is:
//
//	idle --Start--> active --Pause--> paused --Resume--> active ...
//
// Reset may be called in any state and only zeroes the elapsed time.
//
// # Scheduling
//
// Each Start or Resume creates a fresh tick task and cancels the previous one,
// so at most one periodic callback exists. Pause cancels the task and waits for
// its goroutine: once Pause returns the elapsed time no longer moves. Close must
// be called when the owner is torn down.
//
// # Notifications
//
// Subscribe returns a Subscription whose channel receives an Event for every
// start, pause, resume, reset and tick. Delivery never blocks the tick loop;
// a lagging subscriber loses its oldest buffered events.
//
// Example usage:
//
//	sw := stopwatch.New(stopwatch.AnimatedInterval, clock.RealClock{}, log)
//	defer sw.Close()
//
//	sub := sw.Subscribe()
//	defer sub.Close()
//
//	sw.Start()
//	for ev := range sub.C() {
//		fmt.Println(ev.Formatted)
//	}
package stopwatch
