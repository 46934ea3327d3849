package job

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/pagewatch/pagewatch"
	"github.com/pagewatch/pagewatch/id"
)

// FileEntry is the JSON shape of one descriptor in a jobs config file.
// Durations are Go duration strings ("30s", "5m"). Zero-valued retry and
// timeout fields fall back to the defaults passed to ParseConfig.
type FileEntry struct {
	Name           string `json:"name"`
	Target         string `json:"target"`
	Cadence        string `json:"cadence"`
	MaxAttempts    int    `json:"max_attempts,omitempty"`
	BackoffBase    string `json:"backoff_base,omitempty"`
	BackoffCeiling string `json:"backoff_ceiling,omitempty"`
	Timeout        string `json:"timeout,omitempty"`
}

// File is the top-level shape of a jobs config file.
type File struct {
	Jobs []FileEntry `json:"jobs"`
}

// LoadFile reads and parses a jobs config file. Invalid entries are
// rejected individually: valid descriptors are returned alongside a joined
// error describing every rejected entry, so one malformed job never blocks
// the rest.
func LoadFile(path string, defaults Options) ([]*Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("pagewatch/job: read config %s: %w", path, err)
	}
	return ParseConfig(data, defaults)
}

// ParseConfig parses jobs config JSON into validated descriptors.
func ParseConfig(data []byte, defaults Options) ([]*Descriptor, error) {
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", pagewatch.ErrInvalidDescriptor, err)
	}

	var (
		ds   []*Descriptor
		errs []error
		seen = make(map[string]struct{}, len(f.Jobs))
	)
	for i, e := range f.Jobs {
		d, entryErr := e.descriptor(defaults)
		if entryErr != nil {
			errs = append(errs, fmt.Errorf("jobs[%d]: %w", i, entryErr))
			continue
		}
		if _, dup := seen[d.Name]; dup {
			errs = append(errs, fmt.Errorf("jobs[%d]: %w: duplicate name %q", i, pagewatch.ErrInvalidDescriptor, d.Name))
			continue
		}
		seen[d.Name] = struct{}{}
		ds = append(ds, d)
	}

	return ds, errors.Join(errs...)
}

func (e FileEntry) descriptor(defaults Options) (*Descriptor, error) {
	d := &Descriptor{
		Entity:         pagewatch.NewEntity(),
		ID:             id.NewJobID(),
		Name:           e.Name,
		Target:         e.Target,
		Cadence:        e.Cadence,
		MaxAttempts:    e.MaxAttempts,
		BackoffBase:    defaults.BackoffBase,
		BackoffCeiling: defaults.BackoffCeiling,
		Timeout:        defaults.Timeout,
	}
	if d.MaxAttempts == 0 {
		d.MaxAttempts = defaults.MaxAttempts
	}

	var err error
	if d.BackoffBase, err = parseDuration(e.BackoffBase, defaults.BackoffBase); err != nil {
		return nil, fmt.Errorf("%w: job %q: backoff_base: %v", pagewatch.ErrInvalidDescriptor, e.Name, err)
	}
	if d.BackoffCeiling, err = parseDuration(e.BackoffCeiling, defaults.BackoffCeiling); err != nil {
		return nil, fmt.Errorf("%w: job %q: backoff_ceiling: %v", pagewatch.ErrInvalidDescriptor, e.Name, err)
	}
	if d.Timeout, err = parseDuration(e.Timeout, defaults.Timeout); err != nil {
		return nil, fmt.Errorf("%w: job %q: timeout: %v", pagewatch.ErrInvalidDescriptor, e.Name, err)
	}

	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

func parseDuration(s string, fallback time.Duration) (time.Duration, error) {
	if s == "" {
		return fallback, nil
	}
	return time.ParseDuration(s)
}
