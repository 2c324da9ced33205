package stats

import "testing"

func TestPageParamsValidate(t *testing.T) {
	tests := []struct {
		name    string
		params  PageParams
		wantErr bool
	}{
		{"defaults", PageParams{Offset: 0, Limit: 20}, false},
		{"minimum limit", PageParams{Offset: 0, Limit: 1}, false},
		{"maximum limit", PageParams{Offset: 0, Limit: 200}, false},
		{"zero limit", PageParams{Offset: 0, Limit: 0}, true},
		{"limit too large", PageParams{Offset: 0, Limit: 201}, true},
		{"negative offset", PageParams{Offset: -1, Limit: 20}, true},
		{"large offset is fine", PageParams{Offset: 1_000_000, Limit: 20}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.params.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewPageWindows(t *testing.T) {
	rows := []int{10, 20, 30, 40, 50}

	page := NewPage(rows, PageParams{Offset: 1, Limit: 2})
	if page.Total != 5 {
		t.Errorf("total = %d, want 5", page.Total)
	}
	if len(page.Items) != 2 || page.Items[0] != 20 || page.Items[1] != 30 {
		t.Errorf("items = %v, want [20 30]", page.Items)
	}
}

func TestNewPagePastEnd(t *testing.T) {
	rows := []int{1, 2, 3}

	page := NewPage(rows, PageParams{Offset: 10, Limit: 20})
	if page.Total != 3 {
		t.Errorf("total = %d, want 3", page.Total)
	}
	if page.Items == nil {
		t.Fatal("items must be non-nil so it serializes as [] not null")
	}
	if len(page.Items) != 0 {
		t.Errorf("items = %v, want empty", page.Items)
	}
}

func TestNewPageShortLastPage(t *testing.T) {
	rows := []string{"a", "b", "c"}

	page := NewPage(rows, PageParams{Offset: 2, Limit: 5})
	if len(page.Items) != 1 || page.Items[0] != "c" {
		t.Errorf("items = %v, want [c]", page.Items)
	}
}

func TestNewPageEmptySet(t *testing.T) {
	page := NewPage([]int(nil), PageParams{Offset: 0, Limit: 20})
	if page.Total != 0 || page.Items == nil || len(page.Items) != 0 {
		t.Errorf("page = %+v, want empty non-nil items", page)
	}
}
