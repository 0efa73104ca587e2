package util

import (
	"reflect"
	"testing"
)

func TestSplitTrim(t *testing.T) {
	got := SplitTrim(" A.NS, ,B.BO,,C.NS ", ",")
	want := []string{"A.NS", "B.BO", "C.NS"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("SplitTrim = %v, want %v", got, want)
	}
	if got := SplitTrim("", ","); len(got) != 0 {
		t.Fatalf("SplitTrim(empty) = %v", got)
	}
}
