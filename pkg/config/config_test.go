package config

import "testing"

const validYAML = `
version: "2.0"
main_loop_interval_ms: 200
mqtt:
  broker: "127.0.0.1"
  port: 1883
  client_id: "mbbridge"
  status_topic: "mbbridge/status"
modbusrtu:
  device: "/dev/ttyUSB0"
  baudrate: 9600
updatecycles:
  - id: "fast"
    interval: 1
mbslaves:
  - id: 1
    name: "meter1"
    enabled: true
    tags:
      - address: 40001
        update_cycle: "fast"
        topic: "meter1/voltage"
mqtt_tags:
  - topic: "meter1/setpoint"
    slaveid: 1
    address: 40010
    datatype: "r"
`

func TestLoadFromStringValid(t *testing.T) {
	cfg, err := LoadFromString(validYAML)
	if err != nil {
		t.Fatalf("LoadFromString: %v", err)
	}
	if cfg.MQTT.Broker != "127.0.0.1" {
		t.Fatalf("Broker = %q, want 127.0.0.1", cfg.MQTT.Broker)
	}
	if len(cfg.Slaves) != 1 || len(cfg.Slaves[0].Tags) != 1 {
		t.Fatalf("unexpected slave/tag shape: %+v", cfg.Slaves)
	}
}

func TestLoadFromStringRejectsWrongVersion(t *testing.T) {
	_, err := LoadFromString(`version: "1.0"
mqtt:
  broker: "127.0.0.1"
  port: 1883
`)
	if err == nil {
		t.Fatal("expected version mismatch error")
	}
}

func TestLoadFromStringDefaultsMissingBroker(t *testing.T) {
	cfg, err := LoadFromString(`version: "2.0"
mqtt:
  port: 1883
modbusrtu:
  device: "/dev/ttyUSB0"
  baudrate: 9600
`)
	if err != nil {
		t.Fatalf("LoadFromString: %v", err)
	}
	if cfg.MQTT.Broker != "127.0.0.1" {
		t.Fatalf("Broker = %q, want default 127.0.0.1", cfg.MQTT.Broker)
	}
}

func TestLoadFromStringClampsMainLoopInterval(t *testing.T) {
	cfg, err := LoadFromString(`version: "2.0"
main_loop_interval_ms: 5
mqtt:
  broker: "127.0.0.1"
  port: 1883
modbusrtu:
  device: "/dev/ttyUSB0"
  baudrate: 9600
`)
	if err != nil {
		t.Fatalf("LoadFromString: %v", err)
	}
	if cfg.MainLoopIntervalMs != 50 {
		t.Fatalf("MainLoopIntervalMs = %d, want clamped to 50", cfg.MainLoopIntervalMs)
	}
}

func TestLoadFromStringRejectsInvalidTagAddress(t *testing.T) {
	_, err := LoadFromString(`version: "2.0"
mqtt:
  broker: "127.0.0.1"
  port: 1883
modbusrtu:
  device: "/dev/ttyUSB0"
  baudrate: 9600
mbslaves:
  - id: 1
    tags:
      - address: 99999
`)
	if err == nil {
		t.Fatal("expected validation error for out-of-range register address")
	}
}

func TestLoadFromStringRejectsUnknownWriteDataType(t *testing.T) {
	_, err := LoadFromString(`version: "2.0"
mqtt:
  broker: "127.0.0.1"
  port: 1883
modbusrtu:
  device: "/dev/ttyUSB0"
  baudrate: 9600
mqtt_tags:
  - topic: "x"
    slaveid: 1
    address: 40001
    datatype: "z"
`)
	if err == nil {
		t.Fatal("expected validation error for unknown write datatype")
	}
}
