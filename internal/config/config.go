// Package config loads pools.yaml into validated internal/core configuration
// structures. It is an external collaborator per spec.md §1 ("Configuration
// file parsing... the core consumes a validated in-memory pool
// configuration"): internal/core never imports this package, only the
// PoolConfig/ManagerConfig values it produces.
//
// Grounded on anyotin-valley-pkg/config's viper-based Read/read functions,
// generalized from a single fixed-shape struct unmarshal to a top-level
// pool_id → field-dictionary map with per-pool defaulting and deep-merge of
// dict-valued fields, per spec.md §6.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"

	"github.com/giantswarm/resallocd/internal/core"
)

// Defaults is applied to every pool entry before its own fields are
// deep-merged on top, matching spec.md §6's "deep-merged onto the default"
// rule for dict-valued fields (here, tags) and plain replacement for scalars.
var Defaults = core.PoolConfig{
	Max:                  1,
	MaxPrealloc:          1,
	MaxStarting:          1,
	StartDelay:           0,
	LivecheckPeriod:      60 * time.Second,
	NamePattern:          "{pool_name}_{id}_{datetime}",
	ReuseOpportunityTime: 0,
	ReuseMaxCount:        0,
	ReuseMaxTime:         0,
}

// knownPoolKeys lists the pools.yaml fields this loader understands.
// Anything else in a pool's mapping is a ConfigWarning, not an error, per
// spec.md §6/§7.
var knownPoolKeys = map[string]struct{}{
	"max": {}, "max_prealloc": {}, "max_starting": {}, "start_delay": {},
	"cmd_new": {}, "cmd_delete": {}, "cmd_livecheck": {}, "cmd_release": {}, "cmd_list": {},
	"livecheck_period": {}, "tags": {}, "name_pattern": {},
	"reuse_opportunity_time": {}, "reuse_max_count": {}, "reuse_max_time": {},
	"data_codec": {},
}

// Loader reads pools.yaml from ConfigDir on every Load call. The Manager is
// expected to call Snapshot() (via core.ConfigProvider) once per tick so that
// "pool config objects are immutable within a tick" (spec.md §5) holds even
// though the file may change between ticks.
type Loader struct {
	ConfigDir string

	v *viper.Viper
}

// NewLoader returns a Loader reading pools.yaml from dir.
func NewLoader(dir string) *Loader {
	v := viper.New()
	v.SetConfigName("pools")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)
	return &Loader{ConfigDir: dir, v: v}
}

// Load parses pools.yaml and returns the global settings plus every pool's
// validated configuration. Unknown pool fields are logged through
// core.Logger() as a warning, not returned as an error — spec.md §7's
// ConfigWarning class.
func (l *Loader) Load() (core.ManagerConfig, map[string]core.PoolConfig, error) {
	if err := l.v.ReadInConfig(); err != nil {
		return core.ManagerConfig{}, nil, errors.Wrap(err, "config: read pools.yaml")
	}

	global := core.ManagerConfig{
		LogDir:    l.v.GetString("global.logdir"),
		ConfigDir: l.ConfigDir,
		SleepTime: l.v.GetDuration("global.sleeptime"),
	}
	if global.SleepTime == 0 {
		global.SleepTime = 10 * time.Second
	}

	raw := l.v.GetStringMap("pools")
	pools := make(map[string]core.PoolConfig, len(raw))
	for id, val := range raw {
		fields, ok := val.(map[string]any)
		if !ok {
			core.Logger().Warn("config: pool entry is not a mapping, skipped", "pool", id)
			continue
		}
		cfg, err := decodePool(id, fields)
		if err != nil {
			return core.ManagerConfig{}, nil, err
		}
		if err := cfg.Validate(); err != nil {
			return core.ManagerConfig{}, nil, errors.Wrapf(err, "config: pool %q", id)
		}
		pools[id] = cfg
	}
	return global, pools, nil
}

// Snapshot adapts Load to core.ConfigProvider's shape, swallowing reload
// errors by logging and returning the loader's last good map (the Manager
// should not crash its whole tick because of a transient config error).
func (l *Loader) Snapshot() core.ConfigProvider {
	last := map[string]core.PoolConfig{}
	return func() map[string]core.PoolConfig {
		_, pools, err := l.Load()
		if err != nil {
			core.Logger().Error("config: reload failed, keeping previous snapshot", "error", err)
			return last
		}
		last = pools
		return last
	}
}

// decodePool builds one pool's PoolConfig starting from Defaults and
// deep-merging fields on top, per spec.md §6.
func decodePool(id string, fields map[string]any) (core.PoolConfig, error) {
	cfg := Defaults
	cfg.ID = id

	for key, v := range fields {
		if _, known := knownPoolKeys[key]; !known {
			core.Logger().Warn("config: unknown pool field, ignored", "pool", id, "field", key)
			continue
		}
		if err := applyField(&cfg, key, v); err != nil {
			return core.PoolConfig{}, errors.Wrapf(err, "config: pool %q field %q", id, key)
		}
	}
	return cfg, nil
}

func applyField(cfg *core.PoolConfig, key string, v any) error {
	switch key {
	case "max":
		cfg.Max = asInt(v)
	case "max_prealloc":
		cfg.MaxPrealloc = asInt(v)
	case "max_starting":
		cfg.MaxStarting = asInt(v)
	case "start_delay":
		cfg.StartDelay = asSeconds(v)
	case "cmd_new":
		cfg.CmdNew = asString(v)
	case "cmd_delete":
		cfg.CmdDelete = asString(v)
	case "cmd_livecheck":
		cfg.CmdLivecheck = asString(v)
	case "cmd_release":
		cfg.CmdRelease = asString(v)
	case "cmd_list":
		cfg.CmdList = asString(v)
	case "livecheck_period":
		cfg.LivecheckPeriod = asSeconds(v)
	case "name_pattern":
		cfg.NamePattern = asString(v)
	case "reuse_opportunity_time":
		cfg.ReuseOpportunityTime = asSeconds(v)
	case "reuse_max_count":
		cfg.ReuseMaxCount = asInt(v)
	case "reuse_max_time":
		cfg.ReuseMaxTime = asSeconds(v)
	case "data_codec":
		cfg.DataCodec = asString(v)
	case "tags":
		tags, err := decodeTags(v)
		if err != nil {
			return err
		}
		cfg.Tags = tags
	default:
		return fmt.Errorf("unhandled known field %q", key)
	}
	return nil
}

// decodeTags accepts a list whose entries are either a bare string (priority
// 0) or a {name: ..., priority: ...} mapping, per spec.md §3's tags shape
// (the original source reads tag['name'] / tag.get('priority')). Anything
// else is an InvariantViolation per spec.md §7.
func decodeTags(v any) ([]core.Tag, error) {
	list, ok := v.([]any)
	if !ok {
		return nil, errors.New("tags: expected a list")
	}
	tags := make([]core.Tag, 0, len(list))
	for _, entry := range list {
		switch e := entry.(type) {
		case string:
			tags = append(tags, core.Tag{Name: e, Priority: 0})
		case map[string]any:
			name := asString(e["name"])
			if name == "" {
				return nil, errors.Newf("tags: entry missing required \"name\": %v", entry)
			}
			tags = append(tags, core.Tag{Name: name, Priority: asInt(e["priority"])})
		default:
			return nil, errors.Newf("tags: entry is neither a string nor a dict: %v", entry)
		}
	}
	return tags, nil
}

func asInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

func asSeconds(v any) time.Duration {
	return time.Duration(asInt(v)) * time.Second
}

func asString(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}
