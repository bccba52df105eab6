package evb

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

type scalerJob struct {
	File ScalerFile
}

type scalerResult struct {
	File  ScalerFile
	Count uint64
	Err   error
}

func scalerWorker(id int, jobs <-chan scalerJob, results chan<- scalerResult) {
	for job := range jobs {
		count, err := func() (count uint64, err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("scaler worker %d recovered from panic: %v", id, r)
				}
			}()
			return CountHits(job.File.Path)
		}()
		results <- scalerResult{File: job.File, Count: count, Err: err}
	}
}

// CountScalers counts the hits of every scaler file with numWorkers workers.
// Counts of files matching the same scaler are added up. The result follows
// the declaration order of the scaler list.
func CountScalers(ctx context.Context, scalers []ScalerEntry, files []ScalerFile, numWorkers int) ([]ScalerRecord, error) {
	if numWorkers < 1 {
		numWorkers = 1
	}
	jobs := make(chan scalerJob, len(files))
	results := make(chan scalerResult, len(files))

	var wg sync.WaitGroup
	for w := 1; w <= numWorkers; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			scalerWorker(id, jobs, results)
		}(w)
	}
	for _, f := range files {
		jobs <- scalerJob{File: f}
	}
	close(jobs)
	go func() {
		wg.Wait()
		close(results)
	}()

	records := make([]ScalerRecord, len(scalers))
	for i, s := range scalers {
		records[i] = ScalerRecord{Name: s.Name, FilePattern: s.FilePattern}
	}

	var firstErr error
	for result := range results {
		if result.Err != nil {
			if firstErr == nil {
				firstErr = result.Err
			}
			continue
		}
		record := &records[result.File.Scaler]
		record.Count += result.Count
		record.Files = append(record.Files, result.File.Path)
	}
	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for i := range records {
		slices.Sort(records[i].Files)
	}
	return records, nil
}
