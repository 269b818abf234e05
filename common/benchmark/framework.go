// Package benchmark drives configurable read/write workloads against a
// kvstore.Bucket, grounded on intellect4all-storage-engines's
// common/benchmark (originally written to compare several generic
// storage.StorageEngine implementations) but retargeted at this module's
// single B+-tree engine: Config/Result/KeyGenerator/LatencyHistogram keep
// their shape, the Benchmark driver now talks to *kvstore.Bucket and
// *kvstore.Database directly instead of through an abstract engine
// interface, since there is only one engine to drive.
package benchmark

import (
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/intellect4all/bptreekv/common"
	"github.com/intellect4all/bptreekv/kvstore"
)

// WorkloadType defines the access pattern.
type WorkloadType string

const (
	WorkloadWriteHeavy WorkloadType = "write-heavy" // 95% writes
	WorkloadReadHeavy  WorkloadType = "read-heavy"   // 95% reads
	WorkloadBalanced   WorkloadType = "balanced"     // 50/50
	WorkloadReadOnly   WorkloadType = "read-only"    // 100% reads
	WorkloadWriteOnly  WorkloadType = "write-only"   // 100% writes
)

// Config defines a benchmark scenario.
type Config struct {
	Name string

	WorkloadType    WorkloadType
	KeyDistribution KeyDistribution

	NumKeys   int // Total unique keys in dataset
	KeySize   int // Bytes
	ValueSize int // Bytes

	Duration    time.Duration // How long to run
	Concurrency int           // Number of concurrent workers

	PreloadKeys int // Keys to load before benchmark starts

	Seed int64
}

// Result summarizes one benchmark run.
type Result struct {
	Config Config

	TotalOps  int64
	WriteOps  int64
	ReadOps   int64
	Duration  time.Duration
	OpsPerSec float64

	WriteLatency LatencyStats
	ReadLatency  LatencyStats

	EngineStats common.Stats
}

// Benchmark drives Config's workload against one bucket.
type Benchmark struct {
	db     *kvstore.Database
	bucket *kvstore.Bucket
	config Config

	writeLatencies *LatencyHistogram
	readLatencies  *LatencyHistogram

	writeCount atomic.Int64
	readCount  atomic.Int64
	errorCount atomic.Int64

	keyGen *KeyGenerator

	randSeed atomic.Int64
}

// NewBenchmark builds a driver against bucket, using db only to read
// Stats()/Sync() — operations themselves go through bucket.
func NewBenchmark(db *kvstore.Database, bucket *kvstore.Bucket, config Config) *Benchmark {
	return &Benchmark{
		db:             db,
		bucket:         bucket,
		config:         config,
		writeLatencies: NewLatencyHistogram(),
		readLatencies:  NewLatencyHistogram(),
		keyGen:         NewKeyGenerator(config.NumKeys, config.KeySize, config.KeyDistribution, config.Seed),
	}
}

// Run executes the full preload/warm-up/measure sequence and returns the
// measured result.
func (b *Benchmark) Run() (*Result, error) {
	if b.config.PreloadKeys > 0 {
		fmt.Printf("Preloading %d keys...\n", b.config.PreloadKeys)
		if err := b.preload(); err != nil {
			return nil, err
		}
		fmt.Println("Preload complete")
	}

	fmt.Println("Warming up...")
	b.runWorkload(5 * time.Second)

	b.writeLatencies = NewLatencyHistogram()
	b.readLatencies = NewLatencyHistogram()
	b.writeCount.Store(0)
	b.readCount.Store(0)
	b.errorCount.Store(0)

	fmt.Printf("Running benchmark for %v...\n", b.config.Duration)
	startTime := time.Now()
	b.runWorkload(b.config.Duration)
	duration := time.Since(startTime)

	endStats, err := b.db.Stats()
	if err != nil {
		return nil, err
	}

	return b.calculateResults(duration, endStats), nil
}

func (b *Benchmark) preload() error {
	value := make([]byte, b.config.ValueSize)
	rand.Read(value)

	for i := 0; i < b.config.PreloadKeys; i++ {
		key := b.keyGen.GenerateSequential(i)
		if err := b.bucket.Put(key, value); err != nil && !errors.Is(err, common.ErrKeyRepeat) {
			return err
		}
		if i > 0 && i%10000 == 0 {
			fmt.Printf("  Loaded %d keys\n", i)
		}
	}
	return b.db.Sync()
}

func (b *Benchmark) runWorkload(duration time.Duration) {
	var wg sync.WaitGroup
	stop := make(chan struct{})

	for i := 0; i < b.config.Concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			b.worker(workerID, stop)
		}(i)
	}

	time.Sleep(duration)
	close(stop)
	wg.Wait()
}

func (b *Benchmark) worker(id int, stop <-chan struct{}) {
	value := make([]byte, b.config.ValueSize)
	rand.Read(value)

	for {
		select {
		case <-stop:
			return
		default:
			if b.shouldWrite() {
				b.doWrite(value)
			} else {
				b.doRead()
			}
		}
	}
}

func (b *Benchmark) shouldWrite() bool {
	switch b.config.WorkloadType {
	case WorkloadWriteOnly:
		return true
	case WorkloadReadOnly:
		return false
	case WorkloadWriteHeavy:
		return b.randFloat() < 0.95
	case WorkloadReadHeavy:
		return b.randFloat() < 0.05
	case WorkloadBalanced:
		return b.randFloat() < 0.50
	default:
		return b.randFloat() < 0.50
	}
}

func (b *Benchmark) doWrite(value []byte) {
	key := b.keyGen.NextKey()

	start := time.Now()
	err := b.bucket.Update(key, value)
	if errors.Is(err, common.ErrKeyNotFound) {
		err = b.bucket.Put(key, value)
	}
	latency := time.Since(start)

	if err != nil {
		b.errorCount.Add(1)
		return
	}
	b.writeLatencies.Record(latency)
	b.writeCount.Add(1)
}

func (b *Benchmark) doRead() {
	key := b.keyGen.NextKey()

	start := time.Now()
	_, err := b.bucket.Get(key)
	latency := time.Since(start)

	if err != nil && !errors.Is(err, common.ErrKeyNotFound) {
		b.errorCount.Add(1)
		return
	}
	b.readLatencies.Record(latency)
	b.readCount.Add(1)
}

func (b *Benchmark) calculateResults(duration time.Duration, endStats common.Stats) *Result {
	writeOps := b.writeCount.Load()
	readOps := b.readCount.Load()
	totalOps := writeOps + readOps

	return &Result{
		Config:       b.config,
		TotalOps:     totalOps,
		WriteOps:     writeOps,
		ReadOps:      readOps,
		Duration:     duration,
		OpsPerSec:    float64(totalOps) / duration.Seconds(),
		WriteLatency: b.writeLatencies.Stats(),
		ReadLatency:  b.readLatencies.Stats(),
		EngineStats:  endStats,
	}
}

func (b *Benchmark) randFloat() float64 {
	return float64(b.randSeed.Add(1)%10000) / 10000.0
}
