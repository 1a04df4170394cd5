package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteFieldValue writes a single decoded field value to InfluxDB.
//
// This is the primary method for recording bus telemetry. The write is
// non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - circuit, name: Bus message identity (e.g. "bai", "FlowTemp")
//   - field: The field name within the message (e.g. "temp")
//   - value: The decoded numeric value
//   - timestamp: Time the value was received from the bus
//
// Example:
//
//	client.WriteFieldValue("bai", "FlowTemp", "temp", 45.5, time.Now())
func (c *Client) WriteFieldValue(circuit, name, field string, value float64, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"ebus_value",
		map[string]string{
			"circuit": circuit,
			"message": name,
			"field":   field,
		},
		map[string]interface{}{
			"value": value,
		},
		timestamp,
	)

	c.writeAPI.WritePoint(point)
}

// WriteSignalState records bus signal acquisition transitions.
//
// Parameters:
//   - acquired: Whether the bus signal is currently acquired
func (c *Client) WriteSignalState(acquired bool) {
	if !c.IsConnected() {
		return
	}

	value := 0.0
	if acquired {
		value = 1.0
	}

	point := write.NewPoint(
		"ebus_signal",
		nil,
		map[string]interface{}{
			"acquired": value,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for custom measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Use this when the timestamp is not "now" (e.g., delayed data).
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
