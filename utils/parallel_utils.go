package utils

import (
	"runtime"
	"sync"
)

type PartitionMap struct {
	MaxIndex       int // MaxIndex is partitioned into ParallelDegree partitions
	ParallelDegree int
	Partitions     [][2]int // Beginning and end index of partitions
}

func NewPartitionMap(ParallelDegree, maxIndex int) (pm *PartitionMap) {
	if ParallelDegree < 1 {
		ParallelDegree = 1
	}
	pm = &PartitionMap{
		MaxIndex:       maxIndex,
		ParallelDegree: ParallelDegree,
		Partitions:     make([][2]int, ParallelDegree),
	}
	for n := 0; n < ParallelDegree; n++ {
		pm.Partitions[n] = pm.Split1D(n)
	}
	return
}

// DefaultParallelDegree clamps the requested worker count to the number of
// independent work items, using all CPUs when procLimit is zero.
func DefaultParallelDegree(procLimit, maxIndex int) (np int) {
	if procLimit > 0 {
		np = procLimit
	} else {
		np = runtime.NumCPU()
	}
	if np > maxIndex {
		np = maxIndex
	}
	if np < 1 {
		np = 1
	}
	return
}

func (pm *PartitionMap) GetBucketRange(bucketNum int) (kMin, kMax int) {
	kMin, kMax = pm.Partitions[bucketNum][0], pm.Partitions[bucketNum][1]
	return
}

func (pm *PartitionMap) GetBucketDimension(bn int) (kMax int) {
	if bn == -1 {
		kMax = pm.MaxIndex
		return
	}
	var (
		k1, k2 = pm.GetBucketRange(bn)
	)
	kMax = k2 - k1
	return
}

func (pm *PartitionMap) Split1D(threadNum int) (bucket [2]int) {
	// This routine splits one dimension into c.ParallelDegree pieces, with a maximum imbalance of one item
	var (
		Npart            = pm.MaxIndex / (pm.ParallelDegree)
		startAdd, endAdd int
		remainder        int
	)
	remainder = pm.MaxIndex % pm.ParallelDegree
	if remainder != 0 { // spread the remainder over the first chunks evenly
		if threadNum+1 > remainder {
			startAdd = remainder
			endAdd = 0
		} else {
			startAdd = threadNum
			endAdd = 1
		}
	}
	bucket[0] = threadNum*Npart + startAdd
	bucket[1] = bucket[0] + Npart + endAdd
	return
}

// ParallelFor runs work once per bucket, each in its own goroutine, and waits
// for all of them. The first error (lowest bucket number) is returned; results
// written by other buckets are the caller's to discard.
func (pm *PartitionMap) ParallelFor(work func(bucket, kMin, kMax int) error) (err error) {
	var (
		wg   = sync.WaitGroup{}
		errs = make([]error, pm.ParallelDegree)
	)
	if pm.ParallelDegree == 1 {
		return work(0, 0, pm.MaxIndex)
	}
	for np := 0; np < pm.ParallelDegree; np++ {
		if pm.GetBucketDimension(np) == 0 {
			continue
		}
		kMin, kMax := pm.GetBucketRange(np)
		wg.Add(1)
		go func(np, kMin, kMax int) {
			defer wg.Done()
			errs[np] = work(np, kMin, kMax)
		}(np, kMin, kMax)
	}
	wg.Wait()
	for _, e := range errs {
		if e != nil {
			return e
		}
	}
	return
}
