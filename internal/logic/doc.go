// Package logic contains the pure telemetry analytics: motion, power and
// battery recomputation over an explicit Context, plus the once-per-second
// tick scheduler.
// This package has NO external I/O (no GPIO, ADC, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic
