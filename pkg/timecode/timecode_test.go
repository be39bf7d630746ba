package timecode

import "testing"

func TestParseMMSS(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{in: "00:00", want: 0},
		{in: "01:00", want: 60},
		{in: "10:30", want: 630},
		{in: "99:59", want: 5999},
		{in: "75:30", want: 4530},
		{in: "02:75", want: 195}, // lenient seconds field, matches classifier output in the wild
		{in: "-1:30", want: -30},
		{in: "", wantErr: true},
		{in: "10", wantErr: true},
		{in: "1:2:3", wantErr: true},
		{in: "abc", wantErr: true},
		{in: "10:", wantErr: true},
		{in: ":30", wantErr: true},
		{in: "1.5:00", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMMSS(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseMMSS(%q) = %d, expected error", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseMMSS(%q) unexpected error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseMMSS(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestFormatMMSS(t *testing.T) {
	tests := []struct {
		in   int
		want string
	}{
		{0, "00:00"},
		{75, "01:15"},
		{600, "10:00"},
		{5999, "99:59"},
		{6000, "100:00"},
	}

	for _, tt := range tests {
		if got := FormatMMSS(tt.in); got != tt.want {
			t.Errorf("FormatMMSS(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatHHMMSS(t *testing.T) {
	tests := []struct {
		in   int
		want string
	}{
		{0, "00:00:00"},
		{59, "00:00:59"},
		{660, "00:11:00"},
		{3750, "01:02:30"},
		{7322, "02:02:02"},
	}

	for _, tt := range tests {
		if got := FormatHHMMSS(tt.in); got != tt.want {
			t.Errorf("FormatHHMMSS(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestValidateWindow(t *testing.T) {
	tests := []struct {
		name      string
		start     string
		end       string
		duration  int
		wantStart int
		wantEnd   int
		wantErr   bool
	}{
		{
			name:  "valid window",
			start: "01:00", end: "03:00", duration: 600,
			wantStart: 60, wantEnd: 180,
		},
		{
			name:  "full chunk",
			start: "00:00", end: "10:00", duration: 600,
			wantStart: 0, wantEnd: 600,
		},
		{
			name:  "end past duration is clamped",
			start: "08:00", end: "11:00", duration: 600,
			wantStart: 480, wantEnd: 600,
		},
		{
			name:  "end exactly at duration",
			start: "09:30", end: "10:00", duration: 600,
			wantStart: 570, wantEnd: 600,
		},
		{
			name:  "start equals end",
			start: "05:00", end: "05:00", duration: 600,
			wantErr: true,
		},
		{
			name:  "start after end",
			start: "06:00", end: "05:00", duration: 600,
			wantErr: true,
		},
		{
			name:  "negative start",
			start: "-1:30", end: "02:00", duration: 600,
			wantErr: true,
		},
		{
			name:  "window collapses after clamping",
			start: "10:50", end: "11:00", duration: 600,
			wantErr: true,
		},
		{
			name:  "malformed start",
			start: "oops", end: "02:00", duration: 600,
			wantErr: true,
		},
		{
			name:  "malformed end",
			start: "01:00", end: "2", duration: 600,
			wantErr: true,
		},
		{
			name:  "short final chunk clamps to its own duration",
			start: "02:00", end: "09:00", duration: 300,
			wantStart: 120, wantEnd: 300,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end, err := ValidateWindow(tt.start, tt.end, tt.duration)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ValidateWindow(%q, %q, %d) = (%d, %d), expected error",
						tt.start, tt.end, tt.duration, start, end)
				}
				return
			}
			if err != nil {
				t.Fatalf("ValidateWindow(%q, %q, %d) unexpected error: %v",
					tt.start, tt.end, tt.duration, err)
			}
			if start != tt.wantStart || end != tt.wantEnd {
				t.Errorf("ValidateWindow(%q, %q, %d) = (%d, %d), want (%d, %d)",
					tt.start, tt.end, tt.duration, start, end, tt.wantStart, tt.wantEnd)
			}
		})
	}
}
