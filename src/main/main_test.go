package main

import (
	"testing"
)

func TestNormalizeLegacyArgs(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		out  []string
	}{
		{
			name: "Normalizes long single dash flags",
			in:   []string{"snapmark", "-full"},
			out:  []string{"snapmark", "--full"},
		},
		{
			name: "Normalizes equals form",
			in:   []string{"snapmark", "-cancel=true"},
			out:  []string{"snapmark", "--cancel=true"},
		},
		{
			name: "Leaves double dash and short flags unchanged",
			in:   []string{"snapmark", "--full", "-h"},
			out:  []string{"snapmark", "--full", "-h"},
		},
		{
			name: "Leaves positional args unchanged",
			in:   []string{"snapmark", "somefile"},
			out:  []string{"snapmark", "somefile"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalizeLegacyArgs(tt.in)
			if len(got) != len(tt.out) {
				t.Fatalf("Expected len=%d, got %d", len(tt.out), len(got))
			}
			for i := range got {
				if got[i] != tt.out[i] {
					t.Fatalf("Expected arg[%d]=%q, got %q", i, tt.out[i], got[i])
				}
			}
		})
	}
}

func TestNewRootCmdParsesFlags(t *testing.T) {
	opts := &mainOptions{}
	cmd := newRootCmd(opts)
	if err := cmd.ParseFlags([]string{"--full"}); err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}
	if !opts.full {
		t.Fatal("Expected full=true")
	}
	if opts.cancel {
		t.Fatal("Expected cancel=false")
	}
}
