package pipeline_test

import (
	"context"
	"errors"
	"sort"
	"sync/atomic"
	"time"

	check "gopkg.in/check.v1"

	"github.com/mycok/docsync/pipeline"
)

var _ = check.Suite(new(stageRunnerTestSuite))

type stageRunnerTestSuite struct{}

func (s *stageRunnerTestSuite) TestFIFOPreservesOrder(c *check.C) {
	stages := make([]pipeline.StageRunner, 5)
	for i := range stages {
		stages[i] = pipeline.NewFIFO(passThrough())
	}

	src := &sourceStub{data: makePayloads(10)}
	sink := new(sinkStub)

	err := pipeline.New(stages...).Execute(context.TODO(), src, sink)
	c.Assert(err, check.IsNil)
	c.Assert(sink.data, check.DeepEquals, src.data)
	assertProcessed(c, src.data...)
}

func (s *stageRunnerTestSuite) TestFIFOProcessorError(c *check.C) {
	proc := pipeline.ProcessorFunc(func(context.Context, pipeline.Payload) (pipeline.Payload, error) {
		return nil, errors.New("boom")
	})

	err := pipeline.New(pipeline.NewFIFO(proc)).Execute(context.TODO(), &sourceStub{data: makePayloads(2)}, new(sinkStub))
	c.Assert(err, check.ErrorMatches, "(?s).*pipeline stage 0: boom.*")
}

func (s *stageRunnerTestSuite) TestFixedWorkerPoolRunsInParallel(c *check.C) {
	numOfWorkers := 5
	syncChan := make(chan struct{})
	rendezvousChan := make(chan struct{})
	doneChan := make(chan error, 1)

	proc := pipeline.ProcessorFunc(func(_ context.Context, p pipeline.Payload) (pipeline.Payload, error) {
		syncChan <- struct{}{}
		<-rendezvousChan

		return p, nil
	})

	src := &sourceStub{data: makePayloads(numOfWorkers)}
	sink := new(sinkStub)

	go func() {
		doneChan <- pipeline.New(pipeline.NewFixedWorkerPool(proc, numOfWorkers)).Execute(context.TODO(), src, sink)
	}()

	// Every worker holds one payload at the sync point at the same time.
	for i := 0; i < numOfWorkers; i++ {
		select {
		case <-syncChan:
		case <-time.After(10 * time.Second):
			c.Fatalf("timed out waiting for worker %d to reach sync point", i)
		}
	}

	close(rendezvousChan)

	select {
	case err := <-doneChan:
		c.Assert(err, check.IsNil)
	case <-time.After(10 * time.Second):
		c.Fatal("timed out waiting for pipeline to complete")
	}

	values := make([]string, len(sink.data))
	for i, p := range sink.data {
		values[i] = p.(*stringPayload).value
	}
	sort.Strings(values)
	c.Assert(values, check.DeepEquals, []string{"0", "1", "2", "3", "4"})
}

func (s *stageRunnerTestSuite) TestFixedWorkerPoolDrops(c *check.C) {
	var calls int32
	proc := pipeline.ProcessorFunc(func(context.Context, pipeline.Payload) (pipeline.Payload, error) {
		atomic.AddInt32(&calls, 1)

		return nil, nil
	})

	src := &sourceStub{data: makePayloads(8)}
	sink := new(sinkStub)

	err := pipeline.New(pipeline.NewFixedWorkerPool(proc, 3)).Execute(context.TODO(), src, sink)
	c.Assert(err, check.IsNil)
	c.Assert(atomic.LoadInt32(&calls), check.Equals, int32(8))
	c.Assert(sink.data, check.HasLen, 0)
	assertProcessed(c, src.data...)
}

func (s *stageRunnerTestSuite) TestFixedWorkerPoolRejectsZeroWorkers(c *check.C) {
	c.Assert(func() { pipeline.NewFixedWorkerPool(passThrough(), 0) }, check.PanicMatches, ".*numOfWorkers must be > 0.*")
}

func passThrough() pipeline.Processor {
	return pipeline.ProcessorFunc(func(_ context.Context, p pipeline.Payload) (pipeline.Payload, error) {
		return p, nil
	})
}
