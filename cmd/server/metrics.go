package main

import (
	"github.com/prometheus/client_golang/prometheus"

	"blec.dev/internal/persistence/backup"
	"blec.dev/internal/persistence/indexdb"
	"blec.dev/internal/sim/world"
)

type indexStats interface {
	Stats() indexdb.Stats
}

type backupStats interface {
	Stats() backup.Stats
}

// worldCollector exports the world's published metrics at scrape time.
type worldCollector struct {
	w   *world.World
	idx indexStats
	bk  backupStats

	tick          *prometheus.Desc
	sessions      *prometheus.Desc
	loadedChunks  *prometheus.Desc
	poweredBlocks *prometheus.Desc
	activeSources *prometheus.Desc
	evicted       *prometheus.Desc
	stepMS        *prometheus.Desc
	queueDepth    *prometheus.Desc
	indexQueue    *prometheus.Desc
	indexDropped  *prometheus.Desc
	backupQueue   *prometheus.Desc
	backupFiles   *prometheus.Desc
}

func newWorldCollector(w *world.World, idx indexStats, bk backupStats) *worldCollector {
	labels := prometheus.Labels{"world": w.ID()}
	desc := func(name, help string, variable ...string) *prometheus.Desc {
		return prometheus.NewDesc("blec_"+name, help, variable, labels)
	}
	return &worldCollector{
		w:             w,
		idx:           idx,
		bk:            bk,
		tick:          desc("world_tick", "Current world tick."),
		sessions:      desc("world_sessions", "Connected sessions."),
		loadedChunks:  desc("world_loaded_chunks", "Loaded chunk count."),
		poweredBlocks: desc("world_powered_blocks", "Blocks powered after the last tick."),
		activeSources: desc("world_active_sources", "Active power sources in the last tick."),
		evicted:       desc("world_evicted_chunks_total", "Chunks dropped by distance unloading."),
		stepMS:        desc("world_step_ms", "Last frame step duration in milliseconds."),
		queueDepth:    desc("world_queue_depth", "Channel backlog depth.", "queue"),
		indexQueue:    desc("index_queue_depth", "Pending index writes."),
		indexDropped:  desc("index_dropped_total", "Index writes dropped on a full queue.", "kind"),
		backupQueue:   desc("backup_queue_depth", "Files waiting for upload."),
		backupFiles:   desc("backup_files_total", "Backup files by outcome.", "result"),
	}
}

func (c *worldCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.tick, c.sessions, c.loadedChunks, c.poweredBlocks, c.activeSources,
		c.evicted, c.stepMS, c.queueDepth, c.indexQueue, c.indexDropped,
		c.backupQueue, c.backupFiles,
	} {
		ch <- d
	}
}

func (c *worldCollector) Collect(ch chan<- prometheus.Metric) {
	m := c.w.Metrics()
	tick := c.w.CurrentTick()
	if m.Tick != 0 {
		tick = m.Tick
	}
	gauge := func(d *prometheus.Desc, v float64, lv ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v, lv...)
	}
	gauge(c.tick, float64(tick))
	gauge(c.sessions, float64(m.Sessions))
	gauge(c.loadedChunks, float64(m.LoadedChunks))
	gauge(c.poweredBlocks, float64(m.PoweredBlocks))
	gauge(c.activeSources, float64(m.ActiveSources))
	ch <- prometheus.MustNewConstMetric(c.evicted, prometheus.CounterValue, float64(m.EvictedChunksTotal))
	gauge(c.stepMS, m.StepMS)
	gauge(c.queueDepth, float64(m.QueueDepths.Inbox), "inbox")
	gauge(c.queueDepth, float64(m.QueueDepths.Join), "join")
	gauge(c.queueDepth, float64(m.QueueDepths.Leave), "leave")

	if c.idx != nil {
		s := c.idx.Stats()
		gauge(c.indexQueue, float64(s.QueueDepth))
		ch <- prometheus.MustNewConstMetric(c.indexDropped, prometheus.CounterValue, float64(s.DropTickTotal), "tick")
		ch <- prometheus.MustNewConstMetric(c.indexDropped, prometheus.CounterValue, float64(s.DropAuditTotal), "audit")
		ch <- prometheus.MustNewConstMetric(c.indexDropped, prometheus.CounterValue, float64(s.DropSnapshotTotal), "snapshot")
	}
	if c.bk != nil {
		s := c.bk.Stats()
		gauge(c.backupQueue, float64(s.QueueDepth))
		ch <- prometheus.MustNewConstMetric(c.backupFiles, prometheus.CounterValue, float64(s.UploadedTotal), "uploaded")
		ch <- prometheus.MustNewConstMetric(c.backupFiles, prometheus.CounterValue, float64(s.FailedTotal), "failed")
		ch <- prometheus.MustNewConstMetric(c.backupFiles, prometheus.CounterValue, float64(s.DroppedTotal), "dropped")
	}
}
