package engine

import (
	"context"
	"testing"
	"time"

	"mbbridge/pkg/config"
	"mbbridge/pkg/publisher"
)

func testConfig() *config.Config {
	retain := true
	return &config.Config{
		UpdateCycles: []config.UpdateCycleConfig{
			{ID: "fast", Interval: 1},
		},
		Slaves: []config.SlaveConfig{
			{
				ID:      5,
				Name:    "meter",
				Enabled: true,
				Tags: []config.TagConfig{
					{Address: 40100, UpdateCycle: "fast", Group: 1, Topic: "meter/v1", Retain: &retain},
					{Address: 40101, UpdateCycle: "fast", Group: 1, Topic: "meter/v2"},
				},
			},
			{
				ID:      6,
				Name:    "disabled-meter",
				Enabled: false,
				Tags: []config.TagConfig{
					{Address: 40200, UpdateCycle: "fast", Topic: "should/not/appear"},
				},
			},
		},
		WriteTags: []config.WriteTagConfig{
			{Topic: "meter/setpoint", SlaveID: 5, Address: 40300, DataType: "r"},
		},
		CPUTemp: &config.CPUTempConfig{
			Topic:           "bridge/cputemp",
			ReadIntervalS:   5,
			PublishInterval: 10,
		},
	}
}

func TestBuildRegistryFromConfig(t *testing.T) {
	reg, err := buildRegistry(testConfig())
	if err != nil {
		t.Fatalf("buildRegistry: %v", err)
	}

	if len(reg.ReadTags) != 2 {
		t.Fatalf("expected 2 read tags (disabled slave excluded), got %d", len(reg.ReadTags))
	}
	if reg.ReadTags[0].PublishRetain != true {
		t.Errorf("expected explicit retain=true to be honored")
	}
	if reg.ReadTags[1].PublishRetain != false {
		t.Errorf("expected default_retain (false) when tag omits retain")
	}

	if len(reg.Cycles) != 1 || len(reg.Cycles[0].TagIndices) != 2 {
		t.Fatalf("expected cycle 'fast' to own both read tags, got %+v", reg.Cycles)
	}

	if len(reg.WriteTags) != 1 {
		t.Fatalf("expected 1 write tag, got %d", len(reg.WriteTags))
	}

	lt, ok := reg.LocalTag("bridge/cputemp")
	if !ok {
		t.Fatal("expected cputemp local tag to be registered")
	}
	if lt.ReadInterval != 5*time.Second || lt.PublishInterval != 10*time.Second {
		t.Errorf("expected local tag intervals in seconds, got read=%s publish=%s", lt.ReadInterval, lt.PublishInterval)
	}
}

func TestBuildRegistryRejectsBadWriteDataType(t *testing.T) {
	cfg := testConfig()
	cfg.WriteTags[0].DataType = "bogus"
	if _, err := buildRegistry(cfg); err == nil {
		t.Fatal("expected an error for an unknown write datatype")
	}
}

type fakeTempReader struct {
	celsius float64
	err     error
	calls   int
}

func (f *fakeTempReader) ReadCelsius() (float64, error) {
	f.calls++
	return f.celsius, f.err
}

type fakePublishClient struct {
	connected bool
	publishes []string
}

func (f *fakePublishClient) Connected() bool { return f.connected }

func (f *fakePublishClient) Publish(ctx context.Context, topic string, payload string, retain bool) error {
	f.publishes = append(f.publishes, topic)
	return nil
}

func TestProcessLocalTagsReadsAndPublishesWhenDue(t *testing.T) {
	reg, err := buildRegistry(testConfig())
	if err != nil {
		t.Fatalf("buildRegistry: %v", err)
	}
	reader := &fakeTempReader{celsius: 42.5}
	client := &fakePublishClient{connected: true}

	e := &Engine{
		reg:           reg,
		publisher:     publisher.New(client),
		cpuTempReader: reader,
	}

	now := time.Now()
	e.processLocalTags(context.Background(), now)

	if reader.calls != 1 {
		t.Fatalf("expected one read on first due tick, got %d", reader.calls)
	}
	if len(client.publishes) != 1 || client.publishes[0] != "bridge/cputemp" {
		t.Fatalf("expected one publish to bridge/cputemp, got %v", client.publishes)
	}

	lt, _ := reg.LocalTag("bridge/cputemp")
	if lt.Value != 42.5 {
		t.Errorf("expected local tag value to be updated, got %v", lt.Value)
	}

	// Immediately after, neither read nor publish is due again.
	e.processLocalTags(context.Background(), now.Add(time.Second))
	if reader.calls != 1 || len(client.publishes) != 1 {
		t.Fatalf("expected no further read/publish before the next interval elapses")
	}
}

func TestProcessLocalTagsSurvivesReadError(t *testing.T) {
	reg, err := buildRegistry(testConfig())
	if err != nil {
		t.Fatalf("buildRegistry: %v", err)
	}
	reader := &fakeTempReader{err: context.DeadlineExceeded}
	client := &fakePublishClient{connected: true}

	e := &Engine{
		reg:           reg,
		publisher:     publisher.New(client),
		cpuTempReader: reader,
	}

	e.processLocalTags(context.Background(), time.Now())
	lt, _ := reg.LocalTag("bridge/cputemp")
	if lt.Value != 0 {
		t.Errorf("expected value to stay at zero on read error, got %v", lt.Value)
	}
}
