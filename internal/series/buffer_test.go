package series

import (
	"fmt"
	"testing"
	"time"

	"pricewatch/internal/domain"
)

func TestAppendBelowCap(t *testing.T) {
	b := NewBuffer(5)
	b.Append("a", 1)
	b.Append("b", 2)

	if b.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", b.Len())
	}
	pts := b.Points()
	if pts[0].Label != "a" || pts[1].Label != "b" {
		t.Errorf("Points() = %+v, want [a b]", pts)
	}
}

func TestEviction(t *testing.T) {
	const capacity = 400
	b := NewBuffer(capacity)

	for i := 0; i < capacity+1; i++ {
		b.Append(fmt.Sprintf("p%d", i), float64(i))
	}

	if b.Len() != capacity {
		t.Fatalf("Len() = %d after cap+1 appends, want %d", b.Len(), capacity)
	}
	pts := b.Points()
	// Oldest evicted: the first surviving point is the 2nd ever appended.
	if pts[0].Label != "p1" {
		t.Errorf("pts[0].Label = %q, want p1", pts[0].Label)
	}
	if pts[capacity-1].Label != fmt.Sprintf("p%d", capacity) {
		t.Errorf("pts[last].Label = %q, want p%d", pts[capacity-1].Label, capacity)
	}
	// Strict order throughout.
	for i := 1; i < len(pts); i++ {
		if pts[i].Value != pts[i-1].Value+1 {
			t.Fatalf("order broken at %d: %v after %v", i, pts[i].Value, pts[i-1].Value)
		}
	}
}

func TestEvictionWrapsRepeatedly(t *testing.T) {
	b := NewBuffer(3)
	for i := 0; i < 10; i++ {
		b.Append(fmt.Sprintf("p%d", i), float64(i))
	}
	pts := b.Points()
	if len(pts) != 3 {
		t.Fatalf("len(pts) = %d, want 3", len(pts))
	}
	if pts[0].Label != "p7" || pts[2].Label != "p9" {
		t.Errorf("pts = %+v, want [p7 p8 p9]", pts)
	}
}

func TestFromHistory(t *testing.T) {
	base := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	var hist []domain.PricePoint
	for i := 0; i < 6; i++ {
		hist = append(hist, domain.PricePoint{
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Price:     100 + float64(i),
		})
	}

	b := FromHistory(4, hist)
	pts := b.Points()
	if len(pts) != 4 {
		t.Fatalf("len(pts) = %d, want 4 (only newest kept)", len(pts))
	}
	if pts[0].Value != 102 || pts[3].Value != 105 {
		t.Errorf("pts = %+v, want values 102..105", pts)
	}
	if pts[0].Label != FormatLabel(base.Add(2*time.Hour)) {
		t.Errorf("pts[0].Label = %q, want %q", pts[0].Label, FormatLabel(base.Add(2*time.Hour)))
	}
}

func TestPointsIsACopy(t *testing.T) {
	b := NewBuffer(2)
	b.Append("a", 1)
	pts := b.Points()
	pts[0].Value = 99
	if b.Points()[0].Value != 1 {
		t.Error("mutating Points() result changed the buffer")
	}
}
