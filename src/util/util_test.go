package util

import "testing"

func TestRoundupRounddown(t *testing.T) {
	tests := []struct {
		name    string
		v, b    uintptr
		wantUp  uintptr
		wantDwn uintptr
	}{
		{"already aligned", 0x200000, 0x200000, 0x200000, 0x200000},
		{"one byte over", 0x200001, 0x200000, 0x400000, 0x200000},
		{"one byte under", 0x1FFFFF, 0x200000, 0x200000, 0},
		{"zero", 0, 0x1000, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Roundup(tt.v, tt.b); got != tt.wantUp {
				t.Errorf("Roundup(%#x, %#x) = %#x, want %#x", tt.v, tt.b, got, tt.wantUp)
			}
			if got := Rounddown(tt.v, tt.b); got != tt.wantDwn {
				t.Errorf("Rounddown(%#x, %#x) = %#x, want %#x", tt.v, tt.b, got, tt.wantDwn)
			}
		})
	}
}

func TestClamp(t *testing.T) {
	tests := []struct {
		name         string
		v, lo, hi    int
		want         int
	}{
		{"within range", 5, 0, 10, 5},
		{"below range", -5, 0, 10, 0},
		{"above range", 50, 0, 10, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Clamp(tt.v, tt.lo, tt.hi); got != tt.want {
				t.Errorf("Clamp(%d, %d, %d) = %d, want %d", tt.v, tt.lo, tt.hi, got, tt.want)
			}
		})
	}
}

func TestCeildiv(t *testing.T) {
	if got := Ceildiv(3*1024*1024, 2*1024*1024); got != 2 {
		t.Errorf("Ceildiv(3MiB, 2MiB) = %d, want 2", got)
	}
	if got := Ceildiv(4*1024*1024, 2*1024*1024); got != 2 {
		t.Errorf("Ceildiv(4MiB, 2MiB) = %d, want 2", got)
	}
}
