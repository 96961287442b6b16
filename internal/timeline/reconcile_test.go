package timeline

import (
	"math"
	"testing"
)

func sceneRange(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i + 1
	}
	return out
}

func TestReconcileKeepsWellFormedClaims(t *testing.T) {
	claims := []Claim{
		{SceneNumber: 1, StartSeconds: 0, EndSeconds: 12},
		{SceneNumber: 2, StartSeconds: 12, EndSeconds: 31},
		{SceneNumber: 3, StartSeconds: 31, EndSeconds: 60},
	}

	got, err := Reconcile(sceneRange(3), claims, 60)
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	for i, want := range claims {
		if math.Abs(got[i].StartSeconds-want.StartSeconds) > 0.001 ||
			math.Abs(got[i].EndSeconds-want.EndSeconds) > 0.001 {
			t.Errorf("scene %d = [%v, %v], want [%v, %v]",
				want.SceneNumber, got[i].StartSeconds, got[i].EndSeconds,
				want.StartSeconds, want.EndSeconds)
		}
	}
}

func TestReconcileForcesFirstStartToZero(t *testing.T) {
	claims := []Claim{
		{SceneNumber: 1, StartSeconds: 1.5, EndSeconds: 10},
		{SceneNumber: 2, StartSeconds: 10, EndSeconds: 20},
	}

	got, err := Reconcile(sceneRange(2), claims, 20)
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if got[0].StartSeconds != 0 {
		t.Errorf("first start = %v, want 0", got[0].StartSeconds)
	}
	if err := Validate(got, 20); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestReconcileSettlesMismatchesAtMidpoint(t *testing.T) {
	// Scenes 1 and 2 overlap by two seconds, scenes 2 and 3 leave a
	// two-second gap.
	claims := []Claim{
		{SceneNumber: 1, StartSeconds: 0, EndSeconds: 12},
		{SceneNumber: 2, StartSeconds: 10, EndSeconds: 20},
		{SceneNumber: 3, StartSeconds: 22, EndSeconds: 30},
	}

	got, err := Reconcile(sceneRange(3), claims, 30)
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}

	want := []Interval{
		{SceneNumber: 1, StartSeconds: 0, EndSeconds: 11},
		{SceneNumber: 2, StartSeconds: 11, EndSeconds: 21},
		{SceneNumber: 3, StartSeconds: 21, EndSeconds: 30},
	}
	for i, w := range want {
		if math.Abs(got[i].StartSeconds-w.StartSeconds) > 0.001 ||
			math.Abs(got[i].EndSeconds-w.EndSeconds) > 0.001 {
			t.Errorf("scene %d = [%v, %v], want [%v, %v]",
				w.SceneNumber, got[i].StartSeconds, got[i].EndSeconds,
				w.StartSeconds, w.EndSeconds)
		}
	}
}

func TestReconcileStretchesLastClaimToTotal(t *testing.T) {
	claims := []Claim{
		{SceneNumber: 1, StartSeconds: 0, EndSeconds: 10},
		{SceneNumber: 2, StartSeconds: 10, EndSeconds: 18},
	}

	got, err := Reconcile(sceneRange(2), claims, 25)
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if math.Abs(got[1].EndSeconds-25) > 0.001 {
		t.Errorf("last end = %v, want 25", got[1].EndSeconds)
	}
}

func TestReconcileDropsMalformedClaims(t *testing.T) {
	claims := []Claim{
		{SceneNumber: 2, StartSeconds: math.NaN(), EndSeconds: 5},
		{SceneNumber: 1, StartSeconds: 5, EndSeconds: 5},
		{SceneNumber: 9, StartSeconds: 0, EndSeconds: 3},
		{SceneNumber: 2, StartSeconds: 10, EndSeconds: 20},
		{SceneNumber: 2, StartSeconds: 0, EndSeconds: 4},
	}

	got, err := Reconcile(sceneRange(2), claims, 20)
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d intervals, want 2", len(got))
	}
	if err := Validate(got, 20); err != nil {
		t.Errorf("Validate() = %v", err)
	}
	// The surviving claim stretches back to zero, then cedes a fifth of
	// the timeline to the missing scene.
	if math.Abs(got[1].Duration()-16) > 0.001 {
		t.Errorf("scene 2 duration = %v, want 16", got[1].Duration())
	}
}

func TestReconcileAppendsMissingScenesIntoTail(t *testing.T) {
	claims := []Claim{
		{SceneNumber: 1, StartSeconds: 0, EndSeconds: 10},
		{SceneNumber: 2, StartSeconds: 10, EndSeconds: 20},
		{SceneNumber: 3, StartSeconds: 20, EndSeconds: 30},
	}

	got, err := Reconcile(sceneRange(5), claims, 50)
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("got %d intervals, want 5", len(got))
	}
	if err := Validate(got, 50); err != nil {
		t.Errorf("Validate() = %v", err)
	}
	for _, i := range []int{3, 4} {
		if math.Abs(got[i].Duration()-10) > 0.001 {
			t.Errorf("scene %d duration = %v, want 10", got[i].SceneNumber, got[i].Duration())
		}
	}
	if math.Abs(got[3].StartSeconds-30) > 0.001 {
		t.Errorf("scene 4 start = %v, want 30", got[3].StartSeconds)
	}
}

func TestReconcileCompressesWhenNoTailRemains(t *testing.T) {
	claims := []Claim{
		{SceneNumber: 1, StartSeconds: 0, EndSeconds: 25},
		{SceneNumber: 2, StartSeconds: 25, EndSeconds: 50},
		{SceneNumber: 3, StartSeconds: 50, EndSeconds: 75},
		{SceneNumber: 4, StartSeconds: 75, EndSeconds: 100},
	}

	got, err := Reconcile(sceneRange(5), claims, 100)
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if err := Validate(got, 100); err != nil {
		t.Errorf("Validate() = %v", err)
	}
	for _, interval := range got {
		if math.Abs(interval.Duration()-20) > 0.001 {
			t.Errorf("scene %d duration = %v, want 20", interval.SceneNumber, interval.Duration())
		}
	}
}

func TestReconcileCompressionCapped(t *testing.T) {
	// One claim holds the whole timeline while nine scenes are missing.
	// Compression may take at most a fifth of the total.
	claims := []Claim{{SceneNumber: 1, StartSeconds: 0, EndSeconds: 100}}

	got, err := Reconcile(sceneRange(10), claims, 100)
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if err := Validate(got, 100); err != nil {
		t.Errorf("Validate() = %v", err)
	}
	if math.Abs(got[0].Duration()-80) > 0.001 {
		t.Errorf("claimed scene duration = %v, want 80", got[0].Duration())
	}
	for _, interval := range got[1:] {
		if math.Abs(interval.Duration()-20.0/9) > 0.001 {
			t.Errorf("scene %d duration = %v, want %v",
				interval.SceneNumber, interval.Duration(), 20.0/9)
		}
	}
}

func TestReconcileUniformSplitWhenNothingSurvives(t *testing.T) {
	tests := []struct {
		name   string
		claims []Claim
	}{
		{"no claims", nil},
		{"all malformed", []Claim{
			{SceneNumber: 1, StartSeconds: math.NaN(), EndSeconds: 10},
			{SceneNumber: 2, StartSeconds: 8, EndSeconds: 2},
			{SceneNumber: 3, StartSeconds: math.Inf(1), EndSeconds: math.Inf(1)},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Reconcile(sceneRange(4), tt.claims, 40)
			if err != nil {
				t.Fatalf("Reconcile() error = %v", err)
			}
			if err := Validate(got, 40); err != nil {
				t.Errorf("Validate() = %v", err)
			}
			for _, interval := range got {
				if math.Abs(interval.Duration()-10) > 0.001 {
					t.Errorf("scene %d duration = %v, want 10",
						interval.SceneNumber, interval.Duration())
				}
			}
		})
	}
}

func TestReconcileMissingMiddleSceneKeepsSceneOrder(t *testing.T) {
	claims := []Claim{
		{SceneNumber: 1, StartSeconds: 0, EndSeconds: 10},
		{SceneNumber: 3, StartSeconds: 10, EndSeconds: 20},
	}

	got, err := Reconcile(sceneRange(3), claims, 30)
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if err := Validate(got, 30); err != nil {
		t.Errorf("Validate() = %v", err)
	}
	for i, interval := range got {
		if interval.SceneNumber != i+1 {
			t.Errorf("interval[%d].SceneNumber = %d, want %d", i, interval.SceneNumber, i+1)
		}
		if math.Abs(interval.Duration()-10) > 0.001 {
			t.Errorf("scene %d duration = %v, want 10", interval.SceneNumber, interval.Duration())
		}
	}
}

func TestReconcileArbitraryDisorderStillPartitions(t *testing.T) {
	tests := []struct {
		name   string
		scenes []int
		claims []Claim
		total  float64
	}{
		{
			name:   "claims out of order against scene numbers",
			scenes: sceneRange(3),
			claims: []Claim{
				{SceneNumber: 1, StartSeconds: 40, EndSeconds: 50},
				{SceneNumber: 2, StartSeconds: 0, EndSeconds: 10},
				{SceneNumber: 3, StartSeconds: 20, EndSeconds: 30},
			},
			total: 60,
		},
		{
			name:   "everything overlapping",
			scenes: sceneRange(4),
			claims: []Claim{
				{SceneNumber: 1, StartSeconds: 0, EndSeconds: 30},
				{SceneNumber: 2, StartSeconds: 5, EndSeconds: 28},
				{SceneNumber: 3, StartSeconds: 2, EndSeconds: 30},
				{SceneNumber: 4, StartSeconds: 1, EndSeconds: 29},
			},
			total: 30,
		},
		{
			name:   "mix of garbage and partial coverage",
			scenes: sceneRange(6),
			claims: []Claim{
				{SceneNumber: 6, StartSeconds: -10, EndSeconds: 500},
				{SceneNumber: 2, StartSeconds: math.NaN(), EndSeconds: 3},
				{SceneNumber: 3, StartSeconds: 90, EndSeconds: 91},
			},
			total: 120,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Reconcile(tt.scenes, tt.claims, tt.total)
			if err != nil {
				t.Fatalf("Reconcile() error = %v", err)
			}
			if len(got) != len(tt.scenes) {
				t.Fatalf("got %d intervals, want %d", len(got), len(tt.scenes))
			}
			if err := Validate(got, tt.total); err != nil {
				t.Errorf("Validate() = %v", err)
			}
			for _, interval := range got {
				if interval.Duration() <= 0 {
					t.Errorf("scene %d duration = %v, want positive",
						interval.SceneNumber, interval.Duration())
				}
			}
		})
	}
}

func TestReconcileClampsClaimsToTimeline(t *testing.T) {
	claims := []Claim{
		{SceneNumber: 1, StartSeconds: -5, EndSeconds: 10},
		{SceneNumber: 2, StartSeconds: 10, EndSeconds: 999},
	}

	got, err := Reconcile(sceneRange(2), claims, 20)
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if got[0].StartSeconds != 0 {
		t.Errorf("first start = %v, want 0", got[0].StartSeconds)
	}
	if math.Abs(got[1].EndSeconds-20) > 0.001 {
		t.Errorf("last end = %v, want 20", got[1].EndSeconds)
	}
}

func TestReconcileRejectsBadInput(t *testing.T) {
	if _, err := Reconcile(nil, nil, 60); err == nil {
		t.Error("expected error for empty scene set")
	}
	if _, err := Reconcile(sceneRange(2), nil, 0); err == nil {
		t.Error("expected error for zero total")
	}
	if _, err := Reconcile(sceneRange(2), nil, math.NaN()); err == nil {
		t.Error("expected error for NaN total")
	}
}
