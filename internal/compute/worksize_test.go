package compute

import (
	"errors"
	"strings"
	"testing"
)

func TestWorkSizeValidate(t *testing.T) {
	tests := []struct {
		name string
		w    WorkSize
		frag string // empty means valid
	}{
		{"one dim", Work(1024), ""},
		{"three dims with local and offset", Work(64, 64, 4).WithLocal(8, 8, 1).WithOffset(0, 32, 0), ""},
		{"local of matching rank", Work(4, 5).WithLocal(2, 1), ""},
		{"zero dims", Work(), "want 1 to 3 dimensions, got 0"},
		{"four dims", Work(1, 1, 1, 1), "want 1 to 3 dimensions, got 4"},
		{"zero extent", Work(64, 0), "global[1] = 0"},
		{"negative extent", Work(-5), "global[0] = -5"},
		{"local rank mismatch", Work(4, 5).WithLocal(2), "local has 1 dimensions, global has 2"},
		{"zero local", Work(64).WithLocal(0), "local[0] = 0"},
		{"offset rank mismatch", Work(64).WithOffset(1, 2), "offset has 2 dimensions, global has 1"},
		{"negative offset", Work(64, 64).WithOffset(0, -1), "offset[1] = -1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.w.Validate()
			if tt.frag == "" {
				if err != nil {
					t.Fatalf("Validate(%v) = %v, want nil", tt.w, err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate(%v) = nil, want error containing %q", tt.w, tt.frag)
			}
			var ue *UsageError
			if !errors.As(err, &ue) {
				t.Errorf("Validate(%v) error type = %T, want *UsageError", tt.w, err)
			}
			if !strings.Contains(err.Error(), tt.frag) {
				t.Errorf("Validate(%v) = %q, want substring %q", tt.w, err, tt.frag)
			}
		})
	}
}

func TestCountWorkGroups(t *testing.T) {
	tests := []struct {
		local, n, want int
	}{
		{256, 1000, 4},
		{256, 256, 1},
		{256, 1, 1},
		{256, 257, 2},
		{2, 7, 4},
		{256, 1 << 20, 4096},
		{1024, 1024, 1},
	}
	for _, tt := range tests {
		if got := CountWorkGroups(tt.local, tt.n); got != tt.want {
			t.Errorf("CountWorkGroups(%d, %d) = %d, want %d", tt.local, tt.n, got, tt.want)
		}
	}
}

func TestWorkSizeString(t *testing.T) {
	tests := []struct {
		w    WorkSize
		want string
	}{
		{Work(1024), "global [1024]"},
		{Work(1024, 8).WithLocal(256, 1), "global [1024 8], local [256 1]"},
		{Work(1024, 8).WithLocal(256, 1).WithOffset(0, 4), "global [1024 8], local [256 1], offset [0 4]"},
	}
	for _, tt := range tests {
		if got := tt.w.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestNDRangeConversion(t *testing.T) {
	r, err := Work(1024, 8).WithLocal(256, 1).WithOffset(0, 4).ndrange()
	if err != nil {
		t.Fatalf("ndrange() error: %v", err)
	}
	if r.Dims != 2 {
		t.Errorf("Dims = %d, want 2", r.Dims)
	}
	if !r.HasLocal || !r.HasOffset {
		t.Errorf("HasLocal, HasOffset = %v, %v, want true, true", r.HasLocal, r.HasOffset)
	}
	if r.Global != [3]uint64{1024, 8, 0} {
		t.Errorf("Global = %v", r.Global)
	}
	if r.Local != [3]uint64{256, 1, 0} {
		t.Errorf("Local = %v", r.Local)
	}
	if r.Offset != [3]uint64{0, 4, 0} {
		t.Errorf("Offset = %v", r.Offset)
	}

	bare, err := Work(16).ndrange()
	if err != nil {
		t.Fatalf("ndrange() error: %v", err)
	}
	if bare.HasLocal || bare.HasOffset {
		t.Errorf("HasLocal, HasOffset = %v, %v, want false, false", bare.HasLocal, bare.HasOffset)
	}

	if _, err := Work(0).ndrange(); err == nil {
		t.Error("ndrange() accepted a zero extent")
	}
}
