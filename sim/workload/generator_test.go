package workload

import (
	"reflect"
	"testing"
)

func smallGeneratorConfig() GeneratorConfig {
	cfg := DefaultGeneratorConfig()
	cfg.Accesses = 1001
	cfg.Requesters = 3
	cfg.Pages = 64
	cfg.HotPages = 4
	cfg.Seed = 11
	return cfg
}

func TestGenerateAccesses_Deterministic(t *testing.T) {
	a, err := GenerateAccesses(smallGeneratorConfig())
	if err != nil {
		t.Fatal(err)
	}
	b, err := GenerateAccesses(smallGeneratorConfig())
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Error("same config produced different streams")
	}

	other := smallGeneratorConfig()
	other.Seed = 12
	c, _ := GenerateAccesses(other)
	if reflect.DeepEqual(a, c) {
		t.Error("different seeds produced identical streams")
	}
}

func TestGenerateAccesses_ShapeAndOrder(t *testing.T) {
	cfg := smallGeneratorConfig()
	accesses, err := GenerateAccesses(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(accesses) != cfg.Accesses {
		t.Fatalf("got %d accesses, want %d", len(accesses), cfg.Accesses)
	}

	perRequester := make(map[int]int)
	hot := 0
	for i, a := range accesses {
		if i > 0 && a.TimePs < accesses[i-1].TimePs {
			t.Fatalf("access %d at %d before previous %d", i, a.TimePs, accesses[i-1].TimePs)
		}
		if a.Address%uint64(cfg.AccessSize) != 0 || a.Address >= uint64(int64(cfg.Pages)*cfg.PageSize) {
			t.Errorf("address %#x outside footprint or misaligned", a.Address)
		}
		if a.Address < uint64(int64(cfg.HotPages)*cfg.PageSize) {
			hot++
		}
		perRequester[a.Requester]++
	}
	if perRequester[0] != 334 || perRequester[1] != 334 || perRequester[2] != 333 {
		t.Errorf("requester split = %v, want 334/334/333", perRequester)
	}
	if frac := float64(hot) / float64(len(accesses)); frac < 0.85 {
		t.Errorf("hot fraction = %.2f, want >= 0.85", frac)
	}
}

func TestGenerateAccesses_AddingRequesterKeepsOthers(t *testing.T) {
	cfg := smallGeneratorConfig()
	cfg.Accesses = 300
	cfg.Requesters = 2
	two, _ := GenerateAccesses(cfg)
	cfg.Accesses = 450
	cfg.Requesters = 3
	three, _ := GenerateAccesses(cfg)

	pick := func(as []Access, id int) []Access {
		var out []Access
		for _, a := range as {
			if a.Requester == id {
				out = append(out, a)
			}
		}
		return out
	}
	if !reflect.DeepEqual(pick(two, 1), pick(three, 1)) {
		t.Error("requester 1 stream changed when requester 2 was added")
	}
}

func TestGenerateAccesses_BurstyArrivals(t *testing.T) {
	cfg := smallGeneratorConfig()
	cfg.Arrival = ArrivalGamma
	cfg.ArrivalCV = 3
	accesses, err := GenerateAccesses(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(accesses) != cfg.Accesses {
		t.Fatalf("got %d accesses, want %d", len(accesses), cfg.Accesses)
	}
}

func TestGeneratorConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*GeneratorConfig)
	}{
		{"no requesters", func(c *GeneratorConfig) { c.Requesters = 0 }},
		{"hot set larger than footprint", func(c *GeneratorConfig) { c.HotPages = c.Pages + 1 }},
		{"hot fraction above one", func(c *GeneratorConfig) { c.HotFraction = 1.5 }},
		{"zero gap", func(c *GeneratorConfig) { c.MeanGapNs = 0 }},
		{"unknown arrival process", func(c *GeneratorConfig) { c.Arrival = "pareto" }},
		{"access size not dividing page", func(c *GeneratorConfig) { c.AccessSize = 3000 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultGeneratorConfig()
			tc.mutate(&cfg)
			if _, err := GenerateAccesses(cfg); err == nil {
				t.Error("expected error")
			}
		})
	}
}
