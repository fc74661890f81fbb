package core

import (
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
)

// Tag is one entry of a Pool's configured tag list. A bare tag name in
// pools.yaml carries priority 0.
type Tag struct {
	Name     string
	Priority int
}

// PoolConfig is the in-memory, validated configuration for one pool,
// reloaded at the start of every Manager tick. It never mutates within a
// tick, per spec.md §5 ("Pool config objects are immutable within a tick").
type PoolConfig struct {
	ID string

	Max         int
	MaxPrealloc int
	MaxStarting int
	StartDelay  time.Duration

	CmdNew       string
	CmdDelete    string
	CmdLivecheck string
	CmdRelease   string
	CmdList      string

	LivecheckPeriod time.Duration
	Tags            []Tag
	NamePattern     string

	ReuseOpportunityTime time.Duration
	ReuseMaxCount        int
	ReuseMaxTime         time.Duration

	// DataCodec names an internal/compressor.Codec applied to the captured
	// stdout prefix stored as Resource.data. Ambient addition beyond
	// spec.md's explicit field list; "" means compressor.NoneCodec.
	DataCodec string
}

// Validate reports every configuration error at once via errors.Join,
// matching the teacher's ManagerConfig.Validate idiom (internal/core/config.go
// in giantswarm-k8senv, since removed from this tree but the pattern carries
// forward): accumulate, don't fail fast, so a misconfigured pools.yaml
// reports every problem in one log line instead of one-at-a-time.
func (c PoolConfig) Validate() error {
	var errs []error
	if c.ID == "" {
		errs = append(errs, errors.New("pool: id must not be empty"))
	}
	if c.CmdNew == "" {
		errs = append(errs, fmt.Errorf("pool %q: cmd_new is required", c.ID))
	}
	if c.CmdDelete == "" {
		errs = append(errs, fmt.Errorf("pool %q: cmd_delete is required", c.ID))
	}
	if c.Max < 0 || c.MaxPrealloc < 0 || c.MaxStarting < 0 {
		errs = append(errs, fmt.Errorf("pool %q: max/max_prealloc/max_starting must be non-negative", c.ID))
	}
	if c.NamePattern == "" {
		errs = append(errs, fmt.Errorf("pool %q: name_pattern is required", c.ID))
	}
	return errors.Join(errs...)
}

// ManagerConfig is the daemon-wide configuration (spec.md §6 "Global
// config"): logdir, config_dir, sleeptime.
type ManagerConfig struct {
	LogDir    string
	ConfigDir string
	SleepTime time.Duration
}

func (c ManagerConfig) Validate() error {
	var errs []error
	if c.LogDir == "" {
		errs = append(errs, errors.New("manager: logdir must not be empty"))
	}
	if c.SleepTime <= 0 {
		errs = append(errs, errors.New("manager: sleeptime must be positive"))
	}
	return errors.Join(errs...)
}

// ConfigProvider returns the current, reloaded set of pool configurations
// keyed by pool id. Config-file parsing itself (internal/config) is an
// external collaborator per spec.md §1; core only ever consumes this
// validated in-memory snapshot.
type ConfigProvider func() map[string]PoolConfig
