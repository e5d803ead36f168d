package config

import (
	"reflect"
	"testing"
)

func TestSplitTrim(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"*", []string{"*"}},
		{"http://localhost:3000,http://localhost:3001", []string{"http://localhost:3000", "http://localhost:3001"}},
		{" http://a.example , , http://b.example ", []string{"http://a.example", "http://b.example"}},
	}
	for _, tt := range tests {
		if got := SplitTrim(tt.in, ","); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("SplitTrim(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
