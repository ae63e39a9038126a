package core

import "testing"

func TestCleanString(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		lower bool
		want  string
	}{
		{name: "trims", in: "  hey \t", want: "hey"},
		{name: "lowers", in: " HeY@Test.CD ", lower: true, want: "hey@test.cd"},
		{name: "empty", in: "   ", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanString(tt.in, tt.lower); got != tt.want {
				t.Errorf("CleanString() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "bare 10 digits", in: "9876543210", want: "9876543210"},
		{name: "country code", in: "+919876543210", want: "9876543210"},
		{name: "spaces and dashes", in: "+91 98765-43210", want: "9876543210"},
		{name: "leading zero", in: "09876543210", want: "9876543210"},
		{name: "short number kept as is", in: "12345", want: "12345"},
		{name: "no digits", in: "call me", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizePhone(tt.in); got != tt.want {
				t.Errorf("NormalizePhone(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestPaginationClean(t *testing.T) {
	tests := []struct {
		name         string
		page         Pagination
		wantPage     int
		wantPageSize int
	}{
		{name: "defaults", page: Pagination{}, wantPage: 1, wantPageSize: 20},
		{name: "negative page", page: Pagination{Page: -2, PageSize: 10}, wantPage: 1, wantPageSize: 10},
		{name: "oversized page_size", page: Pagination{Page: 3, PageSize: 500}, wantPage: 3, wantPageSize: 20},
		{name: "kept as is", page: Pagination{Page: 2, PageSize: 50}, wantPage: 2, wantPageSize: 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.page.Clean()
			if tt.page.Page != tt.wantPage || tt.page.PageSize != tt.wantPageSize {
				t.Errorf("Clean() = %+v, want Page=%d PageSize=%d", tt.page, tt.wantPage, tt.wantPageSize)
			}
		})
	}
}

func TestNewPaginated(t *testing.T) {
	p := Pagination{Page: 2, PageSize: 20}
	got := NewPaginated([]int{1, 2, 3}, 43, p)
	if got.Total != 43 {
		t.Errorf("Total = %d, want 43", got.Total)
	}
	if got.TotalPages != 3 {
		t.Errorf("TotalPages = %d, want 3", got.TotalPages)
	}

	empty := NewPaginated([]int{}, 0, p)
	if empty.TotalPages != 0 {
		t.Errorf("TotalPages = %d, want 0", empty.TotalPages)
	}
}
