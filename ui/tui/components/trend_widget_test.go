package components

import (
	"strings"
	"testing"
)

func TestTrendWidgetHistoryIsBounded(t *testing.T) {
	w := NewTrendWidget("p95", 40, 10)
	for i := 0; i < maxPoints+5; i++ {
		w.Push(float64(i))
	}
	if len(w.History) != maxPoints {
		t.Fatalf("expected %d points, got %d", maxPoints, len(w.History))
	}
	if w.History[0] != 5 {
		t.Errorf("expected oldest point 5, got %v", w.History[0])
	}

	long := make([]float64, 50)
	for i := range long {
		long[i] = float64(i)
	}
	w.SetHistory(long)
	if len(w.History) != maxPoints || w.History[maxPoints-1] != 49 {
		t.Errorf("expected the newest %d values, got %v", maxPoints, w.History)
	}
}

func TestTrendWidgetYMax(t *testing.T) {
	w := NewTrendWidget("p95", 40, 10)
	if w.YMax() != 100 {
		t.Errorf("expected floor of 100, got %v", w.YMax())
	}
	w.SetHistory([]float64{40, 250, 1001})
	if w.YMax() != 1100 {
		t.Errorf("expected 1100, got %v", w.YMax())
	}
}

func TestTrendWidgetView(t *testing.T) {
	w := NewTrendWidget("Overall p95 (ms)", 40, 10)
	w.SetHistory([]float64{120, 80, 450})
	out := w.View()
	if !strings.Contains(out, "Overall p95 (ms)") {
		t.Error("expected the title in the rendered widget")
	}
	if w.maxY != 500 {
		t.Errorf("expected chart rescaled to 500, got %v", w.maxY)
	}
}
