// Package controller owns the sign's state: the notification store, the
// power flag and the driver.
//
// Every mutation and every compose-and-dispatch runs under one mutex, so
// HTTP handlers, the MQTT client and the scheduler can call in from their
// own goroutines without interleaving writes to the sign. The Scheduler
// drives the periodic work: pruning, minute-boundary redraws, and retries
// after a failed dispatch.
package controller
