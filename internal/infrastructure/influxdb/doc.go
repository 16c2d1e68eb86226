// Package influxdb records auth activity as InfluxDB time series.
//
// Two measurements are written through the non-blocking, batched write API:
//
//	auth_events     tags: kind (login, refresh, register), outcome, reason
//	access_changes  tags: type (permission.set, user.deleted, ...)
//
// Writes are dropped silently while the client is disconnected; asynchronous
// write failures are reported through SetOnError.
package influxdb
