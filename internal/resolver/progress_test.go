package resolver

import (
	"testing"
)

func TestParseProgress(t *testing.T) {
	tests := []struct {
		name   string
		line   string
		wantOk bool
		want   func(t *testing.T, downloaded, total, estimate, eta int64, pct, speed float64)
	}{
		{
			name:   "template line",
			line:   "snipserve-progress 1048576 4194304 NA 524288.5 6",
			wantOk: true,
			want: func(t *testing.T, d, tot, est, eta int64, pct, speed float64) {
				if d != 1048576 || tot != 4194304 || est != 0 || eta != 6 || speed != 524288.5 {
					t.Errorf("got d=%d tot=%d est=%d eta=%d speed=%v", d, tot, est, eta, speed)
				}
			},
		},
		{
			name:   "template line with estimate only",
			line:   "snipserve-progress 2048 NA 8192.0 NA NA",
			wantOk: true,
			want: func(t *testing.T, d, tot, est, eta int64, pct, speed float64) {
				if d != 2048 || tot != 0 || est != 8192 || speed != 0 {
					t.Errorf("got d=%d tot=%d est=%d speed=%v", d, tot, est, speed)
				}
			},
		},
		{
			name: "template line with nothing known",
			line: "snipserve-progress NA NA NA NA NA",
		},
		{
			name: "template line truncated",
			line: "snipserve-progress 1 2",
		},
		{
			name:   "default line",
			line:   "[download]  45.2% of 10.00MiB at  1.50MiB/s ETA 00:04",
			wantOk: true,
			want: func(t *testing.T, d, tot, est, eta int64, pct, speed float64) {
				if pct != 45.2 || tot != 10<<20 || eta != 4 || speed != 1.5*(1<<20) {
					t.Errorf("got pct=%v tot=%d eta=%d speed=%v", pct, tot, eta, speed)
				}
				if d <= 0 || d >= tot {
					t.Errorf("downloaded = %d", d)
				}
			},
		},
		{
			name:   "default line with approximate size",
			line:   "[download]   5.0% of ~ 100.00MiB at  2.00MiB/s ETA 01:23:45",
			wantOk: true,
			want: func(t *testing.T, d, tot, est, eta int64, pct, speed float64) {
				if est != 100<<20 || tot != 0 {
					t.Errorf("est=%d tot=%d", est, tot)
				}
				if eta != 5025 {
					t.Errorf("eta = %d, want 5025", eta)
				}
			},
		},
		{
			name: "destination line",
			line: "[download] Destination: /tmp/abc.m4a",
		},
		{
			name: "unrelated",
			line: "[youtube] abc: Downloading webpage",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, ok := ParseProgress(tt.line)
			if ok != tt.wantOk {
				t.Fatalf("ok = %v, want %v (%+v)", ok, tt.wantOk, s)
			}
			if tt.want != nil {
				tt.want(t, s.Downloaded, s.Total, s.Estimate, s.ETA, s.Percent, s.Speed)
			}
		})
	}
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"512KiB", 512 << 10, true},
		{"1.5GiB", 3 << 29, true},
		{"2MB", 2e6, true},
		{"10B", 10, true},
		{"Unknown", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseSize(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("parseSize(%q) = %d, %v; want %d, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
