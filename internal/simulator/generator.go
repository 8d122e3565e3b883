package simulator

import (
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"toolcrib-api/internal/model"
)

// ToolRef is a tool the generator may report on.
type ToolRef struct {
	ToolID string
	Name   string
}

// Pool is the vocabulary synthetic events are drawn from.
type Pool struct {
	Users    []string
	Tools    []ToolRef
	Stations []string
	Units    []string
	Trays    []string
	Devices  []string
}

// DefaultPool is used when no tools are configured.
func DefaultPool() Pool {
	return Pool{
		Users: []string{"akumar", "bnair", "cfernandes", "dmenon"},
		Tools: []ToolRef{
			{ToolID: "TW-001", Name: "Torque wrench"},
			{ToolID: "MM-002", Name: "Multimeter"},
			{ToolID: "SD-003", Name: "Screwdriver set"},
			{ToolID: "FL-004", Name: "Inspection flashlight"},
		},
		Stations: []string{"SS001", "SS002"},
		Units:    []string{"U001", "U002", "U003"},
		Trays:    []string{"T001", "T002", "T003", "T004"},
		Devices:  []string{"cam-01", "cam-02"},
	}
}

type weighted struct {
	kind   model.EventKind
	weight int
}

// Lifecycle events dominate; system events are rare.
var eventMix = []weighted{
	{model.EventToolIssued, 30},
	{model.EventToolReturned, 30},
	{model.EventToolDamaged, 4},
	{model.EventTrayOpen, 14},
	{model.EventTrayClose, 14},
	{model.EventAutoLogout, 4},
	{model.EventSystemOnline, 2},
	{model.EventSystemOffline, 2},
}

// Generator produces random but well-formed detection drafts. It is safe for
// concurrent use.
type Generator struct {
	mu       sync.Mutex
	rnd      *rand.Rand
	pool     Pool
	originIP string
	now      func() time.Time
}

// NewGenerator creates a generator. Empty pool slices fall back to the
// defaults.
func NewGenerator(pool Pool, originIP string, seed int64) *Generator {
	def := DefaultPool()
	if len(pool.Users) == 0 {
		pool.Users = def.Users
	}
	if len(pool.Tools) == 0 {
		pool.Tools = def.Tools
	}
	if len(pool.Stations) == 0 {
		pool.Stations = def.Stations
	}
	if len(pool.Units) == 0 {
		pool.Units = def.Units
	}
	if len(pool.Trays) == 0 {
		pool.Trays = def.Trays
	}
	if len(pool.Devices) == 0 {
		pool.Devices = def.Devices
	}
	return &Generator{
		rnd:      rand.New(rand.NewSource(seed)),
		pool:     pool,
		originIP: originIP,
		now:      time.Now,
	}
}

func (g *Generator) pick(values []string) string {
	return values[g.rnd.Intn(len(values))]
}

func (g *Generator) kind() model.EventKind {
	total := 0
	for _, w := range eventMix {
		total += w.weight
	}
	n := g.rnd.Intn(total)
	for _, w := range eventMix {
		if n < w.weight {
			return w.kind
		}
		n -= w.weight
	}
	return model.EventTrayOpen
}

// Next returns one synthetic draft stamped with the current time.
func (g *Generator) Next() model.EventDraft {
	g.mu.Lock()
	defer g.mu.Unlock()

	kind := g.kind()
	d := model.EventDraft{
		Timestamp:      g.now().UTC().Format(time.RFC3339Nano),
		Event:          string(kind),
		ServiceStation: g.pick(g.pool.Stations),
		UnitID:         g.pick(g.pool.Units),
		TrayID:         g.pick(g.pool.Trays),
		DeviceID:       g.pick(g.pool.Devices),
		ClientIP:       g.originIP,
	}
	d.Unit = d.UnitID

	if kind != model.EventSystemOnline && kind != model.EventSystemOffline {
		d.UserName = g.pick(g.pool.Users)
		d.UserID = d.UserName
	}
	if kind.AffectsInventory() {
		t := g.pool.Tools[g.rnd.Intn(len(g.pool.Tools))]
		d.ToolID, d.ToolName = t.ToolID, t.Name
	}

	d.Raw, _ = json.Marshal(payloadOf(d))
	return d
}

// payload is the device wire shape of a draft.
type payload struct {
	Timestamp      string `json:"timestamp"`
	Event          string `json:"event"`
	UserName       string `json:"user_name,omitempty"`
	UserID         string `json:"user_id,omitempty"`
	ToolName       string `json:"tool_name,omitempty"`
	ToolID         string `json:"tool_id,omitempty"`
	UnitID         string `json:"unit_id,omitempty"`
	TrayID         string `json:"tray_id,omitempty"`
	ServiceStation string `json:"service_station,omitempty"`
	Unit           string `json:"unit,omitempty"`
	DeviceID       string `json:"device_id,omitempty"`
}

func payloadOf(d model.EventDraft) payload {
	return payload{
		Timestamp:      d.Timestamp,
		Event:          d.Event,
		UserName:       d.UserName,
		UserID:         d.UserID,
		ToolName:       d.ToolName,
		ToolID:         d.ToolID,
		UnitID:         d.UnitID,
		TrayID:         d.TrayID,
		ServiceStation: d.ServiceStation,
		Unit:           d.Unit,
		DeviceID:       d.DeviceID,
	}
}
