package sysinfo

import (
	"context"
	"encoding/json"
	"runtime"
	"testing"
)

func TestCollect(t *testing.T) {
	info, err := Collect(context.Background())
	if info == nil {
		t.Fatalf("Collect returned no info (err: %v)", err)
	}
	if err != nil {
		t.Logf("partial inventory: %v", err)
	}

	if info.OS.Arch == "" || info.OS.Name == "" {
		t.Errorf("OS identity missing: %+v", info.OS)
	}
	if info.Processor.Logical <= 0 {
		t.Errorf("logical processors = %d", info.Processor.Logical)
	}
	if info.Runtime.Version != runtime.Version() {
		t.Errorf("runtime version = %q", info.Runtime.Version)
	}
	if info.Runtime.Memory.Total == 0 {
		t.Error("runtime memory total should be non-zero")
	}
}

func TestInfoJSONKeys(t *testing.T) {
	data, err := json.Marshal(Info{})
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if _, ok := decoded["processor"]["logicalProcessors"]; !ok {
		t.Errorf("processor keys: %v", decoded["processor"])
	}
	for _, key := range []string{"os", "processor", "memory", "runtime"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("missing %q", key)
		}
	}
}
