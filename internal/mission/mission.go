// Package mission holds the per-mission column mappings that translate raw
// candidate and plasma-state column names into the canonical catalog schema.
//
// Mappings are a versioned YAML document. The built-in document is embedded;
// an override file can be supplied with Load.
package mission

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// SchemaVersion is the only mapping document version understood.
const SchemaVersion = 1

//go:embed mappings.yaml
var defaultMappings []byte

// ErrUnknownMission is returned by Lookup for unlisted missions.
var ErrUnknownMission = errors.New("unknown mission")

// Canonical candidate columns a mapping may target.
var CandidateColumns = map[string]bool{
	"time": true, "d_tstart": true, "d_tstop": true, "d_star": true,
	"b_vecL_r": true, "b_vecL_t": true, "b_vecL_n": true, "b_vecL": true,
	"b_mag": true,
}

// Canonical state columns a mapping may target.
var StateColumns = map[string]bool{
	"time": true, "sw_vel_r": true, "sw_vel_t": true, "sw_vel_n": true,
	"sw_speed": true, "sw_density": true, "radial_distance": true,
	"sw_vel_theta": true, "sw_vel_phi": true, "plasma_temperature": true,
}

// Mapping describes one mission.
type Mapping struct {
	Name        string            `yaml:"-"`
	Description string            `yaml:"description"`
	Cadence     Duration          `yaml:"cadence"`
	FlowAngles  bool              `yaml:"flow_angles"`
	Candidates  map[string]string `yaml:"candidates"`
	State       map[string]string `yaml:"state"`
}

// Duration decodes Go duration strings ("1h", "60s") from YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(v)
	return nil
}

// Table is a parsed mapping document.
type Table struct {
	Version  int                 `yaml:"version"`
	Missions map[string]*Mapping `yaml:"missions"`
}

// Default returns the embedded mapping table.
func Default() (*Table, error) {
	return Parse(defaultMappings)
}

// Load reads a mapping document from path, or the embedded default when path
// is empty.
func Load(path string) (*Table, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mappings: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a mapping document.
func Parse(data []byte) (*Table, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse mappings: %w", err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	for name, m := range t.Missions {
		m.Name = name
	}
	return &t, nil
}

// Validate checks the version and that every mapping targets a canonical
// column at most once.
func (t *Table) Validate() error {
	if t.Version != SchemaVersion {
		return fmt.Errorf("mappings: version %d not supported (want %d)", t.Version, SchemaVersion)
	}
	if len(t.Missions) == 0 {
		return fmt.Errorf("mappings: no missions defined")
	}
	for name, m := range t.Missions {
		if m == nil {
			return fmt.Errorf("mappings: mission %q is empty", name)
		}
		if err := checkTargets(name, "candidates", m.Candidates, CandidateColumns); err != nil {
			return err
		}
		if err := checkTargets(name, "state", m.State, StateColumns); err != nil {
			return err
		}
	}
	return nil
}

func checkTargets(mission, table string, mapping map[string]string, allowed map[string]bool) error {
	seen := make(map[string]string, len(mapping))
	for from, to := range mapping {
		if !allowed[to] {
			return fmt.Errorf("mappings: %s.%s maps %q to non-canonical column %q", mission, table, from, to)
		}
		if prev, dup := seen[to]; dup {
			return fmt.Errorf("mappings: %s.%s maps both %q and %q to %q", mission, table, prev, from, to)
		}
		seen[to] = from
	}
	return nil
}

// Lookup returns the mapping for a mission label.
func (t *Table) Lookup(name string) (*Mapping, error) {
	m, ok := t.Missions[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %v)", ErrUnknownMission, name, t.Names())
	}
	return m, nil
}

// Names returns the mission labels in sorted order.
func (t *Table) Names() []string {
	names := make([]string, 0, len(t.Missions))
	for n := range t.Missions {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
