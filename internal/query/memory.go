package query

import (
	"LightCount/internal/model"
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// MemoryStore is an in-process model.StorageGateway over a fixed set of
// samples. Conditions are evaluated with their Match method.
type MemoryStore struct {
	mu      sync.Mutex
	nodes   map[uint32]string
	rows    []model.RawRow
	queries int
	closed  bool
}

// NewMemoryStore copies rows and nodes into a new store.
func NewMemoryStore(nodes map[uint32]string, rows []model.RawRow) *MemoryStore {
	s := &MemoryStore{nodes: make(map[uint32]string, len(nodes))}
	for id, name := range nodes {
		s.nodes[id] = name
	}
	s.rows = append(s.rows, rows...)
	return s
}

// Add appends samples to the store.
func (s *MemoryStore) Add(rows ...model.RawRow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, rows...)
}

// Queries returns how many lookups and aggregate queries were served.
func (s *MemoryStore) Queries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queries
}

func (s *MemoryStore) begin(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return &model.DataError{Op: "query", Err: fmt.Errorf("store is closed")}
	}
	s.queries++
	return nil
}

// NodeID looks up a node by name.
func (s *MemoryStore) NodeID(ctx context.Context, name string) (uint32, error) {
	if err := s.begin(ctx); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, n := range s.nodes {
		if n == name {
			return id, nil
		}
	}
	return 0, model.ErrNotFound
}

// NodeName looks up a node by id.
func (s *MemoryStore) NodeName(ctx context.Context, id uint32) (string, error) {
	if err := s.begin(ctx); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if name, ok := s.nodes[id]; ok {
		return name, nil
	}
	return "", model.ErrNotFound
}

// SumByUnixtime sums one rate column per timestamp in [begin, end].
func (s *MemoryStore) SumByUnixtime(ctx context.Context, cond model.Condition, field model.Field, begin, end int64) ([]model.Point, error) {
	if !field.Valid() {
		return nil, fmt.Errorf("unsupported field: %s", field)
	}
	if err := s.begin(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sums := make(map[int64]uint64)
	for _, r := range s.rows {
		if r.Unixtime < begin || r.Unixtime > end {
			continue
		}
		if cond != nil && !cond.Match(r) {
			continue
		}
		v, _ := r.Value(field)
		sums[r.Unixtime] += v
	}

	points := make([]model.Point, 0, len(sums))
	for ts, v := range sums {
		points = append(points, model.Point{Unixtime: ts, Value: v})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Unixtime < points[j].Unixtime })
	return points, nil
}

// ExportRows returns the samples in [begin, end) in export order.
func (s *MemoryStore) ExportRows(ctx context.Context, cond model.Condition, begin, end int64) ([]model.ExportRow, error) {
	if err := s.begin(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []model.RawRow
	for _, r := range s.rows {
		if r.Unixtime < begin || r.Unixtime >= end {
			continue
		}
		if cond != nil && !cond.Match(r) {
			continue
		}
		matched = append(matched, r)
	}
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if a.Unixtime != b.Unixtime {
			return a.Unixtime < b.Unixtime
		}
		if a.IP != b.IP {
			return a.IP < b.IP
		}
		if a.VlanID != b.VlanID {
			return a.VlanID < b.VlanID
		}
		return a.NodeID < b.NodeID
	})

	out := make([]model.ExportRow, 0, len(matched))
	for _, r := range matched {
		out = append(out, model.ExportRow{
			Unixtime: r.Unixtime,
			NodeName: nodeLabel(s.nodes[r.NodeID], r.NodeID),
			VlanID:   r.VlanID,
			IP:       model.FormatIPv4(r.IP),
			InPps:    r.InPps,
			InBps:    r.InBps,
			OutPps:   r.OutPps,
			OutBps:   r.OutBps,
		})
	}
	return out, nil
}

// Close marks the store closed; later queries fail with a DataError.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

type fixtureSample struct {
	Unixtime int64  `yaml:"unixtime"`
	NodeID   uint32 `yaml:"node_id"`
	VlanID   uint16 `yaml:"vlan_id"`
	IP       string `yaml:"ip"`
	InPps    uint64 `yaml:"in_pps"`
	InBps    uint64 `yaml:"in_bps"`
	OutPps   uint64 `yaml:"out_pps"`
	OutBps   uint64 `yaml:"out_bps"`
}

type fixture struct {
	Nodes   map[uint32]string `yaml:"nodes"`
	Samples []fixtureSample   `yaml:"samples"`
}

// LoadFixture builds a MemoryStore from a YAML file listing nodes and
// samples.
func LoadFixture(path string) (*MemoryStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture: %w", err)
	}
	var f fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to unmarshal fixture YAML: %w", err)
	}

	rows := make([]model.RawRow, 0, len(f.Samples))
	for i, fs := range f.Samples {
		ip, err := model.ParseIPv4(fs.IP)
		if err != nil {
			return nil, fmt.Errorf("sample %d: %w", i, err)
		}
		rows = append(rows, model.RawRow{
			Unixtime: fs.Unixtime,
			NodeID:   fs.NodeID,
			VlanID:   fs.VlanID,
			IP:       ip,
			InPps:    fs.InPps,
			InBps:    fs.InBps,
			OutPps:   fs.OutPps,
			OutBps:   fs.OutBps,
		})
	}
	return NewMemoryStore(f.Nodes, rows), nil
}

// WriteFixture stores nodes and rows in the format read by LoadFixture.
func WriteFixture(path string, nodes map[uint32]string, rows []model.RawRow) error {
	f := fixture{Nodes: nodes, Samples: make([]fixtureSample, 0, len(rows))}
	for _, r := range rows {
		f.Samples = append(f.Samples, fixtureSample{
			Unixtime: r.Unixtime,
			NodeID:   r.NodeID,
			VlanID:   r.VlanID,
			IP:       model.FormatIPv4(r.IP),
			InPps:    r.InPps,
			InBps:    r.InBps,
			OutPps:   r.OutPps,
			OutBps:   r.OutBps,
		})
	}
	data, err := yaml.Marshal(&f)
	if err != nil {
		return fmt.Errorf("failed to marshal fixture YAML: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write fixture: %w", err)
	}
	return nil
}
