package pipeline

import (
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/matzehuels/stitch/pkg/cache"
	stitcherrors "github.com/matzehuels/stitch/pkg/errors"
	"github.com/matzehuels/stitch/pkg/imageio"
	"github.com/matzehuels/stitch/pkg/observability"
	"github.com/matzehuels/stitch/pkg/raster"
)

// ramp returns an image whose red and green channels grow with x and y.
func ramp(w, h int) *raster.Image {
	img := raster.New(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGB(x, y, [3]uint8{uint8(2 * x), uint8(2 * y), 90})
		}
	}
	return img
}

func crop(src *raster.Image, p image.Point, w, h int) *raster.Image {
	out := raster.New(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			out.SetRGB(x, y, src.RGB(p.X+x, p.Y+y))
		}
	}
	return out
}

var cropsAt = []image.Point{{10, 10}, {30, 14}, {22, 40}}

// writeCrops writes three overlapping 64×64 crops of a ramp to a new
// directory and returns it.
func writeCrops(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	base := ramp(120, 120)
	for i, p := range cropsAt {
		path := filepath.Join(dir, string(rune('a'+i))+".png")
		if err := imageio.Save(path, crop(base, p, 64, 64), imageio.SaveOptions{}); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func wantPositions() []image.Point {
	out := make([]image.Point, len(cropsAt))
	for i, p := range cropsAt {
		out[i] = p.Sub(cropsAt[0])
	}
	return out
}

// =============================================================================
// Options
// =============================================================================

func TestValidateAndSetDefaults(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr stitcherrors.Code
	}{
		{"minimal", Options{Input: "in"}, ""},
		{"lab metric", Options{Input: "in", Metric: " LAB "}, ""},
		{"jpeg output", Options{Input: "in", Output: "out.jpg", Quality: 80}, ""},
		{"missing input", Options{}, stitcherrors.ErrCodeInvalidInput},
		{"bad metric", Options{Input: "in", Metric: "hsv"}, stitcherrors.ErrCodeInvalidMetric},
		{"bad output", Options{Input: "in", Output: "out.gif"}, stitcherrors.ErrCodeInvalidFormat},
		{"bad quality", Options{Input: "in", Quality: 101}, stitcherrors.ErrCodeInvalidInput},
		{"negative workers", Options{Input: "in", Workers: -1}, stitcherrors.ErrCodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.ValidateAndSetDefaults()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("ValidateAndSetDefaults() error = %v", err)
				}
				return
			}
			if !stitcherrors.Is(err, tt.wantErr) {
				t.Errorf("ValidateAndSetDefaults() error = %v, want code %s", err, tt.wantErr)
			}
		})
	}
}

func TestValidateAndSetDefaultsAppliesDefaults(t *testing.T) {
	opts := Options{Input: "in", Metric: "Lab"}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatal(err)
	}
	if opts.Metric != "lab" {
		t.Errorf("Metric = %q, want lab", opts.Metric)
	}
	if opts.Quality != DefaultQuality {
		t.Errorf("Quality = %d, want %d", opts.Quality, DefaultQuality)
	}
	if opts.Logger == nil {
		t.Error("Logger not defaulted")
	}

	// Idempotent: a second call sees the validated flag.
	opts.Metric = "bogus"
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Errorf("second call error = %v", err)
	}

	empty := Options{Input: "in"}
	if err := empty.ValidateAndSetDefaults(); err != nil {
		t.Fatal(err)
	}
	if empty.Metric != DefaultMetric {
		t.Errorf("Metric = %q, want %q", empty.Metric, DefaultMetric)
	}
}

// =============================================================================
// Operator
// =============================================================================

type fakeOp struct {
	name  string
	err   error
	calls *[]string
}

func (f fakeOp) Name() string { return f.name }

func (f fakeOp) Apply(_ context.Context, v raster.View) (raster.View, error) {
	*f.calls = append(*f.calls, f.name)
	if f.err != nil {
		return raster.View{}, f.err
	}
	out := v.Clone()
	out.Layers = append(out.Layers, raster.NewLayer(f.name, raster.New(1, 1)))
	return out, nil
}

func TestOperatorRun(t *testing.T) {
	var calls []string
	op := NewOperator(nil).Add(
		fakeOp{name: "one", calls: &calls},
		fakeOp{name: "two", calls: &calls},
	)
	if diff := cmp.Diff([]string{"one", "two"}, op.Stages()); diff != "" {
		t.Errorf("Stages() mismatch (-want +got):\n%s", diff)
	}

	out, err := op.Run(context.Background(), raster.View{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if out.Len() != 2 || out.Layers[1].Name != "two" {
		t.Errorf("Run() view = %+v, want layers from both stages", out.Layers)
	}
	if diff := cmp.Diff([]string{"one", "two"}, calls); diff != "" {
		t.Errorf("call order mismatch (-want +got):\n%s", diff)
	}
	if got := len(op.Timings()); got != 2 {
		t.Errorf("Timings() has %d entries, want 2", got)
	}
}

func TestOperatorRunStopsAtFirstError(t *testing.T) {
	var calls []string
	boom := errors.New("boom")
	op := NewOperator(nil).Add(
		fakeOp{name: "one", calls: &calls},
		fakeOp{name: "two", err: boom, calls: &calls},
		fakeOp{name: "three", calls: &calls},
	)

	_, err := op.Run(context.Background(), raster.View{})
	if !errors.Is(err, boom) {
		t.Fatalf("Run() error = %v, want wrapped boom", err)
	}
	if err.Error() != "two: boom" {
		t.Errorf("Run() error = %q, want %q", err.Error(), "two: boom")
	}
	if diff := cmp.Diff([]string{"one", "two"}, calls); diff != "" {
		t.Errorf("call order mismatch (-want +got):\n%s", diff)
	}
}

func TestOperatorRunCanceled(t *testing.T) {
	var calls []string
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewOperator(nil).Add(fakeOp{name: "one", calls: &calls}).Run(ctx, raster.View{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
	if len(calls) != 0 {
		t.Errorf("stages ran after cancel: %v", calls)
	}
}

type recordingHooks struct {
	observability.NoopPipelineHooks
	mu     sync.Mutex
	events []string
}

func (h *recordingHooks) OnStageStart(_ context.Context, stage string, _ int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, "start:"+stage)
}

func (h *recordingHooks) OnStageComplete(_ context.Context, stage string, _ int, _ time.Duration, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err != nil {
		h.events = append(h.events, "fail:"+stage)
		return
	}
	h.events = append(h.events, "done:"+stage)
}

func TestOperatorHooks(t *testing.T) {
	hooks := &recordingHooks{}
	observability.SetPipelineHooks(hooks)
	defer observability.Reset()

	var calls []string
	_, _ = NewOperator(nil).Add(
		fakeOp{name: "one", calls: &calls},
		fakeOp{name: "two", err: errors.New("x"), calls: &calls},
	).Run(context.Background(), raster.View{})

	want := []string{"start:one", "done:one", "start:two", "fail:two"}
	if diff := cmp.Diff(want, hooks.events); diff != "" {
		t.Errorf("hook events mismatch (-want +got):\n%s", diff)
	}
}

// =============================================================================
// Stages
// =============================================================================

func TestSaveRequiresOneLayer(t *testing.T) {
	s := Save{Path: filepath.Join(t.TempDir(), "out.png")}
	two := raster.NewView(
		raster.NewLayer("a", raster.New(1, 1)),
		raster.NewLayer("b", raster.New(1, 1)),
	)
	if _, err := s.Apply(context.Background(), two); !stitcherrors.Is(err, stitcherrors.ErrCodeInvalidInput) {
		t.Errorf("Apply(two layers) error = %v, want INVALID_INPUT", err)
	}
}

func TestLoadAppendsToView(t *testing.T) {
	dir := writeCrops(t)
	in := raster.NewView(raster.NewLayer("existing", raster.New(2, 2)))

	out, err := Load{Dir: dir}.Apply(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	if out.Len() != 4 {
		t.Fatalf("Load produced %d layers, want 4", out.Len())
	}
	if in.Len() != 1 {
		t.Errorf("input view modified: %d layers", in.Len())
	}
}

func TestPositionEmptyView(t *testing.T) {
	_, err := Position{}.Apply(context.Background(), raster.View{})
	if !stitcherrors.Is(err, stitcherrors.ErrCodeEmptyInput) {
		t.Errorf("Apply(empty) error = %v, want EMPTY_INPUT", err)
	}
}

// =============================================================================
// Runner
// =============================================================================

func TestRunnerExecute(t *testing.T) {
	dir := writeCrops(t)
	out := filepath.Join(t.TempDir(), "pano.png")

	r := NewRunner(nil, nil, nil)
	res, err := r.Execute(context.Background(), Options{Input: dir, Output: out})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if diff := cmp.Diff(wantPositions(), res.Solution.Positions); diff != "" {
		t.Errorf("positions mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(wantPositions(), res.Positioned.Positions()); diff != "" {
		t.Errorf("positioned view mismatch (-want +got):\n%s", diff)
	}
	if res.Output.W != 84 || res.Output.H != 94 {
		t.Errorf("output = %dx%d, want 84x94", res.Output.W, res.Output.H)
	}
	if res.Stats.LayerCount != 3 || res.Stats.PairCount != 3 {
		t.Errorf("stats = %+v, want 3 layers and 3 pairs", res.Stats)
	}

	// Covered pixels reproduce the source; the uncovered corner stays black.
	base := ramp(120, 120)
	for _, p := range []image.Point{{0, 0}, {40, 30}, {80, 10}, {20, 90}} {
		want := base.RGB(cropsAt[0].X+p.X, cropsAt[0].Y+p.Y)
		if got := res.Output.RGB(p.X, p.Y); got != want {
			t.Errorf("output%v = %v, want %v", p, got, want)
		}
	}
	if got := res.Output.RGB(83, 93); got != [3]uint8{} {
		t.Errorf("uncovered pixel = %v, want black", got)
	}

	saved, err := imageio.DecodeFile(out)
	if err != nil {
		t.Fatalf("output not written: %v", err)
	}
	if saved.Digest() != res.Output.Digest() {
		t.Error("saved image differs from result")
	}
}

func TestRunnerExecuteRefusesOverwrite(t *testing.T) {
	dir := writeCrops(t)
	out := filepath.Join(t.TempDir(), "pano.png")
	if err := os.WriteFile(out, []byte("keep"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := NewRunner(nil, nil, nil).Execute(context.Background(), Options{Input: dir, Output: out})
	if !stitcherrors.Is(err, stitcherrors.ErrCodeFileExists) {
		t.Errorf("Execute() error = %v, want FILE_EXISTS", err)
	}
	data, _ := os.ReadFile(out)
	if string(data) != "keep" {
		t.Error("existing output was modified")
	}
}

func TestRunnerOffsetCache(t *testing.T) {
	dir := writeCrops(t)
	c, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	r := NewRunner(c, nil, nil)
	defer r.Close()

	first, err := r.Align(context.Background(), Options{Input: dir})
	if err != nil {
		t.Fatalf("first Align() error = %v", err)
	}
	if first.CacheInfo.OffsetHits != 0 || first.CacheInfo.OffsetMisses != 3 {
		t.Errorf("first run cache = %+v, want 0 hits 3 misses", first.CacheInfo)
	}

	second, err := r.Align(context.Background(), Options{Input: dir})
	if err != nil {
		t.Fatalf("second Align() error = %v", err)
	}
	if second.CacheInfo.OffsetHits != 3 {
		t.Errorf("second run cache = %+v, want 3 hits", second.CacheInfo)
	}
	if diff := cmp.Diff(first.Offsets, second.Offsets); diff != "" {
		t.Errorf("cached offsets differ (-first +second):\n%s", diff)
	}

	// A different metric must not reuse the entries.
	lab, err := r.Align(context.Background(), Options{Input: dir, Metric: "lab"})
	if err != nil {
		t.Fatal(err)
	}
	if lab.CacheInfo.OffsetHits != 0 {
		t.Errorf("lab run hits = %d, want 0", lab.CacheInfo.OffsetHits)
	}

	noCache, err := r.Align(context.Background(), Options{Input: dir, NoCache: true})
	if err != nil {
		t.Fatal(err)
	}
	if noCache.CacheInfo != (CacheInfo{}) {
		t.Errorf("no-cache run info = %+v, want zero", noCache.CacheInfo)
	}
}

func TestRunnerAlignHasNoOutput(t *testing.T) {
	res, err := NewRunner(nil, nil, nil).Align(context.Background(), Options{Input: writeCrops(t)})
	if err != nil {
		t.Fatal(err)
	}
	if res.Output != nil {
		t.Error("Align() produced an output image")
	}
	if len(res.Offsets) != 3 {
		t.Errorf("Align() offsets = %d, want 3", len(res.Offsets))
	}
}

func TestRunnerStitchSingleLayer(t *testing.T) {
	img := ramp(9, 7)
	res, err := NewRunner(nil, nil, nil).Stitch(context.Background(),
		[]raster.Layer{raster.NewLayer("only", img)}, Options{})
	if err != nil {
		t.Fatalf("Stitch() error = %v", err)
	}
	if diff := cmp.Diff(img, res.Output); diff != "" {
		t.Errorf("single layer not reproduced (-want +got):\n%s", diff)
	}
}

func TestRunnerStitchEmpty(t *testing.T) {
	_, err := NewRunner(nil, nil, nil).Stitch(context.Background(), nil, Options{})
	if !stitcherrors.Is(err, stitcherrors.ErrCodeEmptyInput) {
		t.Errorf("Stitch(nil) error = %v, want EMPTY_INPUT", err)
	}
}
