// Package compose decides what the sign shows at a given instant.
//
// Compose is a pure function of the current time, the power state, the
// pending notifications and a sensor source. It picks one of three modes:
//
//   - blank: the sign is switched off.
//   - scroll: the newest notification is younger than ScrollPeriod and is
//     scrolled right to left across the whole sign, hiding everything else.
//   - cyclic: the clock stays on the upper line while the lower line cycles
//     through the sensor summary and every older notification, each paired
//     with an age label.
//
// Sensors are read only in cyclic mode, with exactly one round trip.
package compose
