package cmd

import (
	"testing"

	"ncats/chp/internal/patient"
	"ncats/chp/internal/reasoner"
)

func TestParseAssignments(t *testing.T) {
	tests := []struct {
		name    string
		in      []string
		want    map[string]string
		wantErr bool
	}{
		{name: "empty", in: nil, want: map[string]string{}},
		{name: "trimmed", in: []string{" mut_RAF1 = True", "drug_X=False"}, want: map[string]string{"mut_RAF1": "True", "drug_X": "False"}},
		{name: "repeated same state", in: []string{"a=1", "a=1"}, want: map[string]string{"a": "1"}},
		{name: "conflict", in: []string{"a=1", "a=2"}, wantErr: true},
		{name: "no equals", in: []string{"mut_RAF1"}, wantErr: true},
		{name: "empty state", in: []string{"mut_RAF1="}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseAssignments(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("%s: got %q, want %q", k, got[k], v)
				}
			}
		})
	}
}

func TestParseTargets(t *testing.T) {
	got, err := parseTargets([]string{"Survival_Time=[1000, 2000]", "mut_BRCA1=True"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []reasoner.TargetRef{
		{Component: "Survival_Time", State: "[1000, 2000]"},
		{Component: "mut_BRCA1", State: "True"},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d targets, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("target %d: got %+v, want %+v", i, got[i], want[i])
		}
	}

	if _, err := parseTargets([]string{"=x"}); err == nil {
		t.Error("expected error for missing component")
	}
}

func TestParseMeta(t *testing.T) {
	got, err := parseMeta([]string{"Survival_Time>=970", "Age_of_Diagnosis <= 15000"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d constraints, want 2", len(got))
	}
	if got[0].Property != "Survival_Time" || got[0].Op != ">=" || got[0].Value != 970 {
		t.Errorf("unexpected first constraint %+v", got[0])
	}
	if got[1].Property != "Age_of_Diagnosis" || got[1].Value != 15000 {
		t.Errorf("unexpected second constraint %+v", got[1])
	}

	if _, err := parseMeta([]string{"Survival_Time>=soon"}); err == nil {
		t.Error("expected error for bad literal")
	}
}

func TestGeneEvidence(t *testing.T) {
	ev := map[string]string{}
	geneEvidence([]string{"RAF1", " ", "BRCA1"}, ev, patient.GeneComponent, patient.StateTrue)
	if len(ev) != 2 {
		t.Fatalf("got %v, want two genes", ev)
	}
	if ev[patient.GeneComponent("RAF1")] != patient.StateTrue {
		t.Errorf("RAF1 not set: %v", ev)
	}
}
