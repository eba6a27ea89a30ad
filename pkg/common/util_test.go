package common

import (
	"os"
	"strings"
	"testing"
)

func TestCutString(t *testing.T) {
	type args struct {
		input string
		cut   int
	}
	tests := []struct {
		name string
		args args
		want string
	}{
		{
			name: "Short input unchanged",
			args: args{input: "short", cut: 10},
			want: "short",
		},
		{
			name: "Long input truncated",
			args: args{input: "0123456789abcdef", cut: 10},
			want: "0123456789 ...",
		},
		{
			name: "Exact length unchanged",
			args: args{input: "0123456789", cut: 10},
			want: "0123456789",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CutString(tt.args.input, tt.args.cut); got != tt.want {
				t.Errorf("CutString() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTruncateString(t *testing.T) {
	type args struct {
		input string
		max   int
	}
	tests := []struct {
		name string
		args args
		want string
	}{
		{
			name: "Short input unchanged",
			args: args{input: "short", max: 10},
			want: "short",
		},
		{
			name: "Long input capped with suffix",
			args: args{input: "0123456789abcdef", max: 10},
			want: "012345 ...",
		},
		{
			name: "Exact length unchanged",
			args: args{input: "0123456789", max: 10},
			want: "0123456789",
		},
		{
			name: "Tiny cap drops the suffix",
			args: args{input: "0123456789", max: 3},
			want: "012",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TruncateString(tt.args.input, tt.args.max)
			if got != tt.want {
				t.Errorf("TruncateString() = %v, want %v", got, tt.want)
			}
			if len(got) > tt.args.max {
				t.Errorf("TruncateString() exceeds cap: len=%d, max=%d", len(got), tt.args.max)
			}
		})
	}
}

func TestSanitizeMessage(t *testing.T) {
	tests := []struct {
		name  string
		input string
		cut   int
		want  string
	}{
		{
			name:  "Valid UTF-8 passthrough",
			input: "rate limit exhausted after 6/12 files",
			cut:   200,
			want:  "rate limit exhausted after 6/12 files",
		},
		{
			name:  "Invalid UTF-8 stripped",
			input: "bad\xffbyte",
			cut:   200,
			want:  "badbyte",
		},
		{
			name:  "Truncated long message",
			input: strings.Repeat("a", 300),
			cut:   200,
			want:  strings.Repeat("a", 200) + " ...",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeMessage(tt.input, tt.cut); got != tt.want {
				t.Errorf("SanitizeMessage() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCreateCloneDir(t *testing.T) {
	t.Run("OK", func(t *testing.T) {
		dir, err := CreateCloneDir("test-repo")
		if err != nil {
			t.Fatalf("unexpected error: %+v", err)
		}
		defer os.RemoveAll(dir)
		if _, err := os.Stat(dir); err != nil {
			t.Fatalf("directory not created: %+v", err)
		}
	})
	t.Run("NG(empty name)", func(t *testing.T) {
		if _, err := CreateCloneDir(""); err == nil {
			t.Fatal("expected error for empty repo name")
		}
	})
}
