package core

import (
	"encoding/json"
	"testing"
)

func TestPointJSONShape(t *testing.T) {
	data, err := json.Marshal(NewPoint(1.5, -2))
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(data) != "[1.5,-2]" {
		t.Errorf("Expected [1.5,-2], got %s", data)
	}

	var p Point
	if err := json.Unmarshal([]byte("[3,4]"), &p); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if p.X() != 3 || p.Y() != 4 {
		t.Errorf("Expected (3, 4), got %s", p)
	}
}

func TestPartitionCloneIsDeep(t *testing.T) {
	original := Partition{{NewPoint(1, 1)}, {NewPoint(2, 2), NewPoint(3, 3)}}
	clone := original.Clone()
	clone[1][0] = NewPoint(9, 9)

	if original[1][0] != NewPoint(2, 2) {
		t.Errorf("Expected original to be untouched, got %s", original[1][0])
	}
	if clone.Size() != 3 {
		t.Errorf("Expected clone size 3, got %d", clone.Size())
	}
}

func TestCloneNil(t *testing.T) {
	if Dataset(nil).Clone() != nil {
		t.Error("Expected nil dataset clone to stay nil")
	}
	if CentroidSet(nil).Clone() != nil {
		t.Error("Expected nil centroid clone to stay nil")
	}
	if Partition(nil).Clone() != nil {
		t.Error("Expected nil partition clone to stay nil")
	}
}

func TestBounds(t *testing.T) {
	_, _, ok := Bounds(nil, []Point{})
	if ok {
		t.Error("Expected ok=false for empty sets")
	}

	min, max, ok := Bounds(
		[]Point{NewPoint(1, 5), NewPoint(-2, 3)},
		[]Point{NewPoint(4, -1)},
	)
	if !ok {
		t.Fatal("Expected ok=true")
	}
	if min != NewPoint(-2, -1) {
		t.Errorf("Expected min (-2, -1), got %s", min)
	}
	if max != NewPoint(4, 5) {
		t.Errorf("Expected max (4, 5), got %s", max)
	}
}
