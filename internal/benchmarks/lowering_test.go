// Package benchmarks measures the import-time lowering primitives: weight
// transposition throughput and slice-geometry folding.
//
// The benchmarks are disabled by default; enable with --bench_duration,
// typically 10 seconds:
//
//	go test ./internal/benchmarks/ --bench_duration=10s
package benchmarks

import (
	"flag"
	"fmt"
	"testing"

	"github.com/gomlx/onnx-lowering/engine"
	"github.com/gomlx/onnx-lowering/internal/ir"
	"github.com/gomlx/onnx-lowering/lowering"
	"github.com/janpfeifer/go-benchmarks"
	"github.com/janpfeifer/must"
)

var flagBenchDuration = flag.Duration("bench_duration", 0,
	"Benchmark duration, typically use 10 seconds. If left as 0, benchmark tests are disabled")

// discardLogger drops everything; capturing log entries would distort the
// measurement.
type discardLogger struct{}

func (discardLogger) Log(engine.Severity, string) {}

var transposeShapes = []lowering.Shape{
	lowering.MakeShape(64, 64),
	lowering.MakeShape(512, 512),
	lowering.MakeShape(3, 3, 256, 256),
	lowering.MakeShape(1, 1, 1024, 1024),
}

func transposeSource(shape lowering.Shape) *lowering.Weights {
	data := make([]byte, shape.Volume()*4)
	for i := range data {
		data[i] = byte(i)
	}
	return &lowering.Weights{DType: ir.Float, Shape: shape, Data: data, Name: "bench"}
}

func TestBenchTransposeWeights(t *testing.T) {
	if testing.Short() || *flagBenchDuration == 0 {
		t.SkipNow()
	}
	for i, shape := range transposeShapes {
		w := transposeSource(shape)
		perm := lowering.IdentityPermutation(shape.Rank)
		perm[0], perm[shape.Rank-1] = perm[shape.Rank-1], perm[0]
		testFn := benchmarks.NamedFunction{
			Name: fmt.Sprintf("TransposeWeights/%s:", shape),
			Func: func() {
				ctx := lowering.NewImportContext(nil, discardLogger{})
				must.M1(lowering.TransposeWeights(ctx, w, perm))
				ctx.Close()
			},
		}
		benchmarks.New(testFn).
			WithWarmUps(16).
			WithDuration(*flagBenchDuration).
			WithHeader(i == 0).
			Done()
	}
}

func TestBenchSliceDecode(t *testing.T) {
	if testing.Short() || *flagBenchDuration == 0 {
		t.SkipNow()
	}
	dims := lowering.ShapeTensorOf(1024, 768, 512, 256)
	steps := lowering.ShapeTensorOf(2, -1, 1, -3)
	testFn := benchmarks.NamedFunction{
		Name: "DecodeStartsAndEnds/rank=4:",
		Func: func() {
			ctx := lowering.NewImportContext(nil, discardLogger{})
			starts := lowering.ShapeTensorOf(-100, 700, 0, -1)
			ends := lowering.ShapeTensorOf(1000, -800, 512, -200)
			lowering.DecodeStartsAndEnds(ctx, dims, steps, &starts, &ends)
			lowering.ComputeSliceSizes(ctx, starts, ends, steps, dims)
			ctx.Close()
		},
	}
	benchmarks.New(testFn).
		WithWarmUps(128).
		WithDuration(*flagBenchDuration).
		Done()
}
