package logger

import (
	"context"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aws/aws-sdk-go-v2/aws"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

type channelStat struct {
	messages int64
	bytes    int64
}

var (
	errorsProvider   int64
	errorsPipeline   int64
	warnsProvider    int64
	warnsPipeline    int64
	snapshotsFetched int64
	deltasEmitted    int64
	rowsUpserted     int64
	signalsEmitted   int64
	archivesWritten  int64
	channels         sync.Map // map[string]*channelStat
)

func recordWarn(component string) {
	if strings.Contains(component, "gateway") || strings.Contains(component, "acquirer") {
		atomic.AddInt64(&warnsProvider, 1)
	} else {
		atomic.AddInt64(&warnsPipeline, 1)
	}
}

func recordError(component string) {
	if strings.Contains(component, "gateway") || strings.Contains(component, "acquirer") {
		atomic.AddInt64(&errorsProvider, 1)
	} else {
		atomic.AddInt64(&errorsPipeline, 1)
	}
}

// IncrementSnapshotFetched counts one acquired market snapshot of the given
// payload size.
func IncrementSnapshotFetched(size int) {
	atomic.AddInt64(&snapshotsFetched, 1)
	recordChannel("snapshot_rest", size)
}

// IncrementDeltasEmitted counts OI delta records produced by the tracker.
func IncrementDeltasEmitted(n int) {
	atomic.AddInt64(&deltasEmitted, int64(n))
}

// IncrementRowsUpserted counts time-series rows written to the store.
func IncrementRowsUpserted(n int) {
	atomic.AddInt64(&rowsUpserted, int64(n))
}

// IncrementSignalsEmitted counts pattern signals produced by the engine.
func IncrementSignalsEmitted(n int) {
	atomic.AddInt64(&signalsEmitted, int64(n))
}

// IncrementArchiveWritten counts one raw archive upload of the given size.
func IncrementArchiveWritten(size int64) {
	atomic.AddInt64(&archivesWritten, 1)
	recordChannel("raw_archive_write", int(size))
}

// RecordChannelMessage tracks message counts and bytes for a named channel.
func RecordChannelMessage(name string, size int) {
	recordChannel(name, size)
}

func recordChannel(name string, size int) {
	v, _ := channels.LoadOrStore(name, &channelStat{})
	cs := v.(*channelStat)
	atomic.AddInt64(&cs.messages, 1)
	atomic.AddInt64(&cs.bytes, int64(size))
}

func startReport(ctx context.Context, log *Log, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-ctx.Done():
				ticker.Stop()
				return
			case <-ticker.C:
				logReport(ctx, log)
			}
		}
	}()
}

// StartReport begins periodic logging of system and pipeline statistics.
func StartReport(ctx context.Context, log *Log, interval time.Duration) {
	startReport(ctx, log, interval)
}

func logReport(ctx context.Context, log *Log) {
	cpuPercent, _ := cpu.Percent(0, false)
	memStats, _ := mem.VirtualMemory()
	channelData := map[string]map[string]int64{}
	channels.Range(func(k, v any) bool {
		name := k.(string)
		cs := v.(*channelStat)
		channelData[name] = map[string]int64{
			"messages": atomic.LoadInt64(&cs.messages),
			"bytes":    atomic.LoadInt64(&cs.bytes),
		}
		return true
	})

	cpuPct := 0.0
	if len(cpuPercent) > 0 {
		cpuPct = cpuPercent[0]
	}

	memMB := int64(0)
	if memStats != nil {
		memMB = int64(memStats.Used) / 1024 / 1024
	}

	fields := Fields{
		"errors_provider":   atomic.LoadInt64(&errorsProvider),
		"errors_pipeline":   atomic.LoadInt64(&errorsPipeline),
		"warns_provider":    atomic.LoadInt64(&warnsProvider),
		"warns_pipeline":    atomic.LoadInt64(&warnsPipeline),
		"snapshots_fetched": atomic.LoadInt64(&snapshotsFetched),
		"deltas_emitted":    atomic.LoadInt64(&deltasEmitted),
		"rows_upserted":     atomic.LoadInt64(&rowsUpserted),
		"signals_emitted":   atomic.LoadInt64(&signalsEmitted),
		"archives_written":  atomic.LoadInt64(&archivesWritten),
		"goroutines":        runtime.NumGoroutine(),
		"cpu_percent":       cpuPct,
		"memory_mb":         memMB,
		"channels":          channelData,
	}

	log.WithComponent("report").WithFields(fields).Info("runtime report")

	data := []cwtypes.MetricDatum{
		{MetricName: aws.String("CPUPercent"), Unit: cwtypes.StandardUnitPercent, Value: aws.Float64(cpuPct)},
		{MetricName: aws.String("MemoryMB"), Unit: cwtypes.StandardUnitMegabytes, Value: aws.Float64(float64(memMB))},
		{MetricName: aws.String("SnapshotsFetched"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&snapshotsFetched)))},
		{MetricName: aws.String("DeltasEmitted"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&deltasEmitted)))},
		{MetricName: aws.String("RowsUpserted"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&rowsUpserted)))},
		{MetricName: aws.String("SignalsEmitted"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&signalsEmitted)))},
		{MetricName: aws.String("ArchivesWritten"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&archivesWritten)))},
		{MetricName: aws.String("ErrorsProvider"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&errorsProvider)))},
		{MetricName: aws.String("ErrorsPipeline"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&errorsPipeline)))},
	}

	for name, stats := range channelData {
		data = append(data,
			cwtypes.MetricDatum{
				MetricName: aws.String("ChannelMessages"),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{{Name: aws.String("Channel"), Value: aws.String(name)}},
				Value:      aws.Float64(float64(stats["messages"])),
			},
			cwtypes.MetricDatum{
				MetricName: aws.String("ChannelBytes"),
				Unit:       cwtypes.StandardUnitBytes,
				Dimensions: []cwtypes.Dimension{{Name: aws.String("Channel"), Value: aws.String(name)}},
				Value:      aws.Float64(float64(stats["bytes"])),
			},
		)
	}

	publishMetrics(ctx, data)
}
