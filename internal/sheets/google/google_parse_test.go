package google

import "testing"

func TestToStrings(t *testing.T) {
	got := toStrings([]interface{}{" Alice ", 1.5, nil, 45})
	want := []string{"Alice", "1.5", "", "45"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("index %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}
