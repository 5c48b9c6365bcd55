package stats

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
)

type Collector struct {
	mu     sync.Mutex
	stages map[string]*stageCounter
	order  []string

	files atomic.Int64
	dirs  atomic.Int64
	bytes atomic.Int64
}

type stageCounter struct {
	runs     int64
	failures int64
	duration time.Duration
}

type Snapshot struct {
	Stages    []StageSnapshot
	Artifacts ArtifactSnapshot
}

type StageSnapshot struct {
	Name     string
	Runs     int64
	Failures int64
	Duration time.Duration
}

type ArtifactSnapshot struct {
	Files int64
	Dirs  int64
	Bytes int64
}

var defaultCollector Collector

func Default() *Collector {
	return &defaultCollector
}

func (c *Collector) RecordStage(name string, duration time.Duration, ok bool) {
	if duration < 0 {
		duration = 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stages == nil {
		c.stages = make(map[string]*stageCounter)
	}
	counter, found := c.stages[name]
	if !found {
		counter = &stageCounter{}
		c.stages[name] = counter
		c.order = append(c.order, name)
	}
	counter.runs++
	counter.duration += duration
	if !ok {
		counter.failures++
	}
}

func (c *Collector) RecordArtifacts(files, dirs, bytes int64) {
	c.files.Add(max(files, 0))
	c.dirs.Add(max(dirs, 0))
	c.bytes.Add(max(bytes, 0))
}

// Snapshot returns stages in the order they were first recorded.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	stages := make([]StageSnapshot, 0, len(c.order))
	for _, name := range c.order {
		counter := c.stages[name]
		stages = append(stages, StageSnapshot{
			Name:     name,
			Runs:     counter.runs,
			Failures: counter.failures,
			Duration: counter.duration,
		})
	}
	c.mu.Unlock()

	return Snapshot{
		Stages: stages,
		Artifacts: ArtifactSnapshot{
			Files: c.files.Load(),
			Dirs:  c.dirs.Load(),
			Bytes: c.bytes.Load(),
		},
	}
}

func (c *Collector) LogSummary() {
	snapshot := c.Snapshot()

	slog.Info(
		"openapi-regen stats",
		"stages", formatStages(snapshot.Stages),
		"artifacts", formatArtifacts(snapshot.Artifacts),
	)
}

// SummaryText renders the collected stats one stage per line.
func (c *Collector) SummaryText() string {
	snapshot := c.Snapshot()

	var builder strings.Builder
	builder.WriteString("openapi-regen stats\n")
	for _, stage := range snapshot.Stages {
		fmt.Fprintf(&builder, "%s: %s\n", stage.Name, formatStage(stage))
	}
	fmt.Fprintf(&builder, "artifacts: %s\n", formatArtifacts(snapshot.Artifacts))
	return builder.String()
}

func formatStages(stages []StageSnapshot) string {
	if len(stages) == 0 {
		return "none"
	}

	parts := make([]string, 0, len(stages))
	for _, stage := range stages {
		parts = append(parts, fmt.Sprintf("%s(%s)", stage.Name, formatStage(stage)))
	}
	return strings.Join(parts, " ")
}

func formatStage(stage StageSnapshot) string {
	status := "ok"
	if stage.Failures > 0 {
		status = fmt.Sprintf("failed=%d", stage.Failures)
	}
	return fmt.Sprintf("runs=%d %s time=%s", stage.Runs, status, formatDuration(stage.Duration))
}

func formatArtifacts(snapshot ArtifactSnapshot) string {
	if snapshot.Files == 0 && snapshot.Dirs == 0 {
		return "none"
	}
	return fmt.Sprintf(
		"files=%s dirs=%s size=%s",
		humanize.Comma(snapshot.Files),
		humanize.Comma(snapshot.Dirs),
		humanize.IBytes(uint64(snapshot.Bytes)),
	)
}

func formatDuration(duration time.Duration) string {
	if duration <= 0 {
		return "0s"
	}
	return duration.Round(time.Millisecond).String()
}
