// Package bridge connects the bus message catalog to an MQTT broker.
//
// The bridge renders topics from a configurable template, answers get/set/list
// commands received over MQTT, republishes bus value updates, and publishes
// integration definitions (e.g. for Home Assistant discovery) driven by a
// variable file.
//
// # Concurrency
//
// A single goroutine owns all bridge state. Run alternates between draining
// inbound MQTT messages and running periodic tasks; dispatch, publication and
// reconnect decisions all happen on that loop. The only concurrent touch
// points are the MQTT client's inbound queue and the catalog's
// updated-message queue, both of which serialise internally.
//
// # Scheduler
//
// Periodic tasks run at most every 15 seconds: uptime and signal status
// publication, reconnect attempts, and the incremental definition pass that
// publishes entries added to the catalog since the last pass. A backwards
// clock jump shifts the task bookkeeping instead of firing tasks early.
package bridge
