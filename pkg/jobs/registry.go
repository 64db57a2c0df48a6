package jobs

import (
	"fmt"
	"slices"

	"github.com/jocic-m/mrengine/pkg/mr"
)

// Job pairs the user map and reduce functions of a named workload.
type Job struct {
	Map    mr.MapFunc
	Reduce mr.ReduceFunc
}

var registry = make(map[string]Job)

func Register(name string, job Job) error {
	if _, exists := registry[name]; exists {
		return fmt.Errorf("job already registered: %s", name)
	}
	registry[name] = job
	return nil
}

func Get(name string) (Job, error) {
	job, exists := registry[name]
	if !exists {
		return Job{}, fmt.Errorf("job not found: %s", name)
	}
	return job, nil
}

func List() []string {
	var names []string
	for name := range registry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
