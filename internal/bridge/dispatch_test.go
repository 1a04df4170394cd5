package bridge

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/graybus/ebus-bridge/internal/bus"
)

func statusField(name string) []bus.Field {
	return []bus.Field{{Name: name, Type: bus.TypeNumber}}
}

func TestHandleMessage_Get(t *testing.T) {
	msg := bus.NewMessage("bai", "Status01", "", false, false, 0, statusField("temp"))
	seeds := map[string][]string{"bai/status01": {"21.5"}}
	b, client, _ := newTestBridge(t, Options{}, seeds, msg)

	b.HandleMessage(context.Background(), "ebusd/bai/Status01/get", "")
	if p, ok := client.find("ebusd/bai/Status01"); !ok || p.payload != "21.5" {
		t.Errorf("response = %+v, ok=%v", p, ok)
	}
}

func TestHandleMessage_Set(t *testing.T) {
	msg := bus.NewMessage("bai", "SetMode", "", true, false, 0, statusField("mode"))
	b, client, _ := newTestBridge(t, Options{}, nil, msg)

	b.HandleMessage(context.Background(), "ebusd/bai/SetMode/set", "2")
	if p, ok := client.find("ebusd/bai/SetMode"); !ok || p.payload != "2" {
		t.Errorf("response = %+v, ok=%v", p, ok)
	}
	if msg.FieldValue(0) != "2" {
		t.Errorf("stored value = %q, want %q", msg.FieldValue(0), "2")
	}
}

func TestHandleMessage_Ignored(t *testing.T) {
	msg := bus.NewMessage("bai", "Status01", "", false, false, 0, statusField("temp"))
	seeds := map[string][]string{"bai/status01": {"21.5"}}
	b, client, _ := newTestBridge(t, Options{}, seeds, msg)
	ctx := context.Background()

	tests := []struct {
		name  string
		topic string
	}{
		{"no separator", "ebusd"},
		{"unknown verb", "ebusd/bai/Status01/fetch"},
		{"empty verb", "ebusd/bai/Status01/"},
		{"own publication", "ebusd/bai/Status01"},
		{"unmatchable prefix", "other/bai/Status01/get"},
		{"missing name", "ebusd/get"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b.HandleMessage(ctx, tt.topic, "")
			if len(client.pubs) != 0 {
				t.Errorf("publications after %q: %v", tt.topic, client.pubs)
			}
		})
	}
}

func TestHandleMessage_NotFound(t *testing.T) {
	b, client, _ := newTestBridge(t, Options{}, nil)
	b.HandleMessage(context.Background(), "ebusd/bai/Unknown/get", "")
	if len(client.pubs) != 0 {
		t.Errorf("publications = %v, want none", client.pubs)
	}
}

func TestHandleMessage_RelaxedCircuit(t *testing.T) {
	msg := bus.NewMessage("bai#2", "Status01", "", false, false, 0, statusField("temp"))
	seeds := map[string][]string{"bai#2/status01": {"42"}}
	b, client, _ := newTestBridge(t, Options{}, seeds, msg)

	// exact lookup fails, relaxed lookup ignores the instance suffix
	b.HandleMessage(context.Background(), "ebusd/bai/Status01/get", "")
	if p, ok := client.find("ebusd/bai#2/Status01"); !ok || p.payload != "42" {
		t.Errorf("response = %+v, ok=%v", p, ok)
	}
}

func TestHandleMessage_PollPriority(t *testing.T) {
	tests := []struct {
		name         string
		data         string
		wantPriority int
	}{
		{"bare question mark", "?5", 5},
		{"after field separator", "21;?3", 3},
		{"mid-value question mark ignored", "ab?5", 0},
		{"out of range", "?12", 0},
		{"not a number", "?x", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := bus.NewMessage("bai", "Status01", "", false, false, 0, statusField("temp"))
			seeds := map[string][]string{"bai/status01": {"21.5"}}
			b, _, _ := newTestBridge(t, Options{}, seeds, msg)

			b.HandleMessage(context.Background(), "ebusd/bai/Status01/get", tt.data)
			if msg.PollPriority() != tt.wantPriority {
				t.Errorf("poll priority = %d, want %d", msg.PollPriority(), tt.wantPriority)
			}
		})
	}
}

func TestHandleMessage_List(t *testing.T) {
	withData := bus.NewMessage("bai", "Status01", "", false, false, 0, statusField("temp"))
	withoutData := bus.NewMessage("bai", "Status02", "", false, false, 0, statusField("press"))
	other := bus.NewMessage("boiler", "Mode01", "", false, false, 0, statusField("mode"))
	seeds := map[string][]string{"bai/status01": {"21.5"}}
	b, client, catalog := newTestBridge(t, Options{}, seeds, withData, withoutData, other)
	ctx := context.Background()
	if err := catalog.Exchange(ctx, withData, ""); err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	catalog.DropUpdated()

	b.HandleMessage(ctx, "ebusd/bai/*/list", "")
	if p, ok := client.find("ebusd/bai/Status01"); !ok || p.payload != "21.5" {
		t.Errorf("Status01 = %+v, ok=%v", p, ok)
	}
	// without data, listed with an empty payload
	if p, ok := client.find("ebusd/bai/Status02"); !ok || p.payload != "" {
		t.Errorf("Status02 = %+v, ok=%v", p, ok)
	}
	if _, ok := client.find("ebusd/boiler/Mode01"); ok {
		t.Error("Mode01 listed despite circuit filter")
	}
}

func TestHandleMessage_ListOnlyWithData(t *testing.T) {
	withData := bus.NewMessage("bai", "Status01", "", false, false, 0, statusField("temp"))
	withoutData := bus.NewMessage("bai", "Status02", "", false, false, 0, statusField("press"))
	seeds := map[string][]string{"bai/status01": {"21.5"}}
	b, client, catalog := newTestBridge(t, Options{}, seeds, withData, withoutData)
	ctx := context.Background()
	if err := catalog.Exchange(ctx, withData, ""); err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	catalog.DropUpdated()

	b.HandleMessage(ctx, "ebusd/bai/*/list", "1")
	if _, ok := client.find("ebusd/bai/Status01"); !ok {
		t.Error("Status01 missing from data-only listing")
	}
	if _, ok := client.find("ebusd/bai/Status02"); ok {
		t.Error("Status02 listed despite having no data")
	}
}

func TestHandleMessage_ListNamePrefix(t *testing.T) {
	status := bus.NewMessage("bai", "Status01", "", false, false, 0, statusField("temp"))
	mode := bus.NewMessage("bai", "Mode01", "", false, false, 0, statusField("mode"))
	b, client, _ := newTestBridge(t, Options{}, nil, status, mode)

	b.HandleMessage(context.Background(), "ebusd/bai/Status*/list", "")
	if _, ok := client.find("ebusd/bai/Status01"); !ok {
		t.Error("Status01 missing from prefix listing")
	}
	if _, ok := client.find("ebusd/bai/Mode01"); ok {
		t.Error("Mode01 listed despite name prefix")
	}
}

func TestHandleMessage_ConfigRestart(t *testing.T) {
	path := writeIntegration(t, strings.Join([]string{
		"definition-topic = homeassistant/sensor/%circuit/%field/config",
		"config_restart-topic = homeassistant/status",
		"config_restart-payload = online",
		"type-number = number",
	}, "\n"))
	b, _, _ := newTestBridge(t, Options{IntegrationFile: path}, nil)
	ctx := context.Background()

	b.definitionsSince = time.Unix(100, 0)
	b.HandleMessage(ctx, "homeassistant/status", "offline")
	if b.definitionsSince.IsZero() {
		t.Error("definitions reset on non-matching restart payload")
	}
	b.HandleMessage(ctx, "homeassistant/status", "online")
	if !b.definitionsSince.IsZero() {
		t.Error("definitions not reset on matching restart payload")
	}
}

func TestHandleMessage_AccessLevel(t *testing.T) {
	msg := bus.NewMessage("bai", "Secret01", "install", false, false, 0, statusField("code"))
	seeds := map[string][]string{"bai/secret01": {"7"}}

	b, client, _ := newTestBridge(t, Options{}, seeds, msg)
	b.HandleMessage(context.Background(), "ebusd/bai/Secret01/get", "")
	if len(client.pubs) != 0 {
		t.Errorf("leveled message served without access level: %v", client.pubs)
	}

	b2, client2, _ := newTestBridge(t, Options{AccessLevel: "install"}, seeds, msg)
	b2.HandleMessage(context.Background(), "ebusd/bai/Secret01/get", "")
	if p, ok := client2.find("ebusd/bai/Secret01"); !ok || p.payload != "7" {
		t.Errorf("response = %+v, ok=%v", p, ok)
	}
}
