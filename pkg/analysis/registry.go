package analysis

import (
	"errors"
	"fmt"
	"sort"

	"github.com/stackvity/bsm-analyze/pkg/scheduler"
)

// ErrUnknownAnalyzer indicates that no analyzer is registered under a name.
var ErrUnknownAnalyzer = errors.New("unknown analyzer")

// Analyzer names accepted by New.
const (
	NameCount      = "count"
	NameKinematics = "kinematics"
)

// DefaultName is the analyzer used when none is configured.
const DefaultName = NameCount

var constructors = map[string]func(scheduler.SelectionConfig) (scheduler.Analyzer, error){
	NameCount: func(scheduler.SelectionConfig) (scheduler.Analyzer, error) {
		return NewCounter(), nil
	},
	NameKinematics: func(cfg scheduler.SelectionConfig) (scheduler.Analyzer, error) {
		return NewKinematics(cfg)
	},
}

// New builds the analyzer prototype registered under name.
func New(name string, cfg scheduler.SelectionConfig) (scheduler.Analyzer, error) {
	ctor, ok := constructors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (valid: %v)", ErrUnknownAnalyzer, name, Names())
	}
	return ctor(cfg)
}

// Names returns the registered analyzer names, sorted.
func Names() []string {
	names := make([]string, 0, len(constructors))
	for name := range constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
