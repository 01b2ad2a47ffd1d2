package logging

import (
	"time"

	"go.uber.org/zap/zapcore"
)

const sampleTick = time.Second

// newSampledCore wraps core with one sampler per configured level below
// error. Levels without a sampling entry pass through unsampled, as do
// error and above.
func newSampledCore(core zapcore.Core, levels map[zapcore.Level]LevelSamplingConfig) zapcore.Core {
	return newSampledCoreTick(core, levels, sampleTick)
}

func newSampledCoreTick(core zapcore.Core, levels map[zapcore.Level]LevelSamplingConfig, tick time.Duration) zapcore.Core {
	if len(levels) == 0 {
		return core
	}

	cores := []zapcore.Core{
		&levelFilterCore{Core: core, minLevel: zapcore.ErrorLevel, hasMin: true},
	}
	for lvl := TraceLevel; lvl < zapcore.ErrorLevel; lvl++ {
		only := &levelFilterCore{Core: core, minLevel: lvl, maxLevel: lvl, hasMin: true, hasMax: true}
		s, ok := levels[lvl]
		if !ok {
			cores = append(cores, only)
			continue
		}
		cores = append(cores, zapcore.NewSamplerWithOptions(only, tick, s.Initial, s.Thereafter))
	}
	return zapcore.NewTee(cores...)
}

// levelFilterCore passes entries within [minLevel, maxLevel].
type levelFilterCore struct {
	zapcore.Core
	minLevel zapcore.Level
	maxLevel zapcore.Level
	hasMin   bool
	hasMax   bool
}

func (c *levelFilterCore) Enabled(lvl zapcore.Level) bool {
	if c.hasMin && lvl < c.minLevel {
		return false
	}
	if c.hasMax && lvl > c.maxLevel {
		return false
	}
	return c.Core.Enabled(lvl)
}

func (c *levelFilterCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.Enabled(e.Level) {
		return ce
	}
	return c.Core.Check(e, ce)
}

// With creates a child core that preserves level filtering.
func (c *levelFilterCore) With(fields []zapcore.Field) zapcore.Core {
	clone := *c
	clone.Core = c.Core.With(fields)
	return &clone
}
