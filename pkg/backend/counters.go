package backend

import "time"

// RenderCounter is the telemetry of the last executed command stream.
// Timings are wall clock milliseconds.
type RenderCounter struct {
	BackEndMsec  float64
	HomGenMsec   float64
	HomQueryMsec float64
	HomCullMsec  float64

	Commands      map[CommandTag]int
	DrawCalls     int
	Surfaces      int
	Occludees     int
	OccludedSurfs int
	VisibleLights int
	QueryResults  int
	QueryWaits    int
	Screenshots   int
}

func (c *RenderCounter) reset() {
	cmds := c.Commands
	clear(cmds)
	*c = RenderCounter{Commands: cmds}
	if c.Commands == nil {
		c.Commands = make(map[CommandTag]int)
	}
}

func msecSince(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}
