package factory

import (
	"errors"
	"testing"
	"time"
)

type backend struct {
	Nodes int
	Limit time.Duration
}

type backendConf struct {
	Nodes int           `json:"max_nodes"`
	Limit time.Duration `json:"time_limit"`
}

func newBackend(conf map[string]any) (*backend, error) {
	var c backendConf
	if err := Decode(conf, &c); err != nil {
		return nil, err
	}
	return &backend{Nodes: c.Nodes, Limit: c.Limit}, nil
}

func TestRegistry_Create(t *testing.T) {
	reg := NewRegistry[*backend]()
	if err := reg.Register("bb", newBackend); err != nil {
		t.Fatalf("register: %v", err)
	}
	inst, err := reg.Create(ModuleConfig{Type: "bb", Conf: map[string]any{"max_nodes": 3}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if inst.Nodes != 3 {
		t.Fatalf("expected 3 got %d", inst.Nodes)
	}
}

func TestDecode_WeakTypes(t *testing.T) {
	var c backendConf
	if err := Decode(map[string]any{"max_nodes": "12", "time_limit": "1m30s"}, &c); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if c.Nodes != 12 || c.Limit != 90*time.Second {
		t.Fatalf("unexpected decode result %+v", c)
	}
}

func TestRegistry_Errors(t *testing.T) {
	reg := NewRegistry[int]()
	if err := reg.Register("x", func(map[string]any) (int, error) { return 1, nil }); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := reg.Register("x", func(map[string]any) (int, error) { return 2, nil }); err == nil {
		t.Fatal("expected duplicate error")
	}
	if err := reg.Register("nil", nil); err == nil {
		t.Fatal("expected nil factory error")
	}
	_, err := reg.Create(ModuleConfig{Type: "y"})
	if !errors.Is(err, ErrUnknownModule) {
		t.Fatalf("expected ErrUnknownModule, got %v", err)
	}
	if names := reg.Names(); len(names) != 1 || names[0] != "x" {
		t.Fatalf("unexpected names %v", names)
	}
}
