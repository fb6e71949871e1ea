package eligibility

import (
	"testing"

	"poll-audit/internal/models"
)

func fptr(v float64) *float64 { return &v }
func iptr(v int) *int         { return &v }

func TestThresholdsPermissiveParsing(t *testing.T) {
	tests := []struct {
		name string
		spec Spec
		want Thresholds
	}{
		{
			name: "all empty",
			spec: Spec{},
			want: Thresholds{},
		},
		{
			name: "valid values",
			spec: Spec{Reputation: "50", AccountAge: "30", PostCount: "10", Stake: "100.5"},
			want: Thresholds{Reputation: fptr(50), AccountAge: iptr(30), PostCount: iptr(10), Stake: fptr(100.5)},
		},
		{
			name: "garbage skipped silently",
			spec: Spec{Reputation: "high", AccountAge: "1y", PostCount: "ten", Stake: "lots"},
			want: Thresholds{},
		},
		{
			name: "mixed keeps only usable values",
			spec: Spec{Reputation: "abc", AccountAge: "7"},
			want: Thresholds{AccountAge: iptr(7)},
		},
		{
			name: "whitespace trimmed",
			spec: Spec{Reputation: " 42 "},
			want: Thresholds{Reputation: fptr(42)},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.spec.Thresholds()
			assertFloatPtr(t, "Reputation", got.Reputation, tc.want.Reputation)
			assertIntPtr(t, "AccountAge", got.AccountAge, tc.want.AccountAge)
			assertIntPtr(t, "PostCount", got.PostCount, tc.want.PostCount)
			assertFloatPtr(t, "Stake", got.Stake, tc.want.Stake)
		})
	}
}

func assertFloatPtr(t *testing.T, field string, got, want *float64) {
	t.Helper()
	if (got == nil) != (want == nil) {
		t.Fatalf("%s: got %v, want %v", field, got, want)
	}
	if got != nil && *got != *want {
		t.Errorf("%s: got %v, want %v", field, *got, *want)
	}
}

func assertIntPtr(t *testing.T, field string, got, want *int) {
	t.Helper()
	if (got == nil) != (want == nil) {
		t.Fatalf("%s: got %v, want %v", field, got, want)
	}
	if got != nil && *got != *want {
		t.Errorf("%s: got %v, want %v", field, *got, *want)
	}
}

func TestPassesThresholds(t *testing.T) {
	voter := &models.Voter{
		Username:   "alice",
		Reputation: fptr(55),
		Stake:      fptr(200),
		AccountAge: iptr(400),
		PostCount:  iptr(120),
	}

	tests := []struct {
		name string
		t    Thresholds
		want bool
	}{
		{"no constraints", Thresholds{}, true},
		{"all satisfied", Thresholds{Reputation: fptr(50), AccountAge: iptr(30)}, true},
		{"inclusive lower bound", Thresholds{Reputation: fptr(55)}, true},
		{"reputation too low", Thresholds{Reputation: fptr(60)}, false},
		{"post count too low", Thresholds{PostCount: iptr(500)}, false},
		{"stake too low", Thresholds{Stake: fptr(1000)}, false},
		{"account too young", Thresholds{AccountAge: iptr(900)}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Passes(voter, tc.t, nil); got != tc.want {
				t.Errorf("Passes = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestPassesMissingAttributes(t *testing.T) {
	// A freshly created voter has no backfilled attributes: it fails any
	// threshold that needs one, but passes when nothing is required.
	voter := &models.Voter{Username: "newbie"}

	if !Passes(voter, Thresholds{}, nil) {
		t.Error("voter with no attributes should pass an empty filter")
	}
	if Passes(voter, Thresholds{Reputation: fptr(1)}, nil) {
		t.Error("missing reputation should fail a reputation threshold")
	}
	if Passes(voter, Thresholds{Stake: fptr(0)}, nil) {
		t.Error("missing stake should fail a stake threshold")
	}
}

func TestPassesCommunityMembership(t *testing.T) {
	voter := &models.Voter{Username: "alice"}
	members := map[string]struct{}{"alice": {}, "bob": {}}

	if !Passes(voter, Thresholds{}, members) {
		t.Error("member should pass")
	}
	outsider := &models.Voter{Username: "mallory"}
	if Passes(outsider, Thresholds{}, members) {
		t.Error("non-member should fail")
	}
	// nil member set means no membership constraint at all
	if !Passes(outsider, Thresholds{}, nil) {
		t.Error("no community constraint should pass anyone")
	}
}

func TestPassesNilVoter(t *testing.T) {
	if !Passes(nil, Thresholds{}, nil) {
		t.Error("unknown voter should pass an empty filter")
	}
	if Passes(nil, Thresholds{Reputation: fptr(1)}, nil) {
		t.Error("unknown voter should fail any threshold")
	}
	if Passes(nil, Thresholds{}, map[string]struct{}{"x": {}}) {
		t.Error("unknown voter should fail a membership constraint")
	}
}

func TestParseWeightMode(t *testing.T) {
	if ParseWeightMode("1") != WeightStake {
		t.Error(`"1" should select stake weighting`)
	}
	if ParseWeightMode("2") != WeightSelfAdjusting {
		t.Error(`"2" should select self-adjusting weighting`)
	}
	if ParseWeightMode("") != WeightNone || ParseWeightMode("yes") != WeightNone {
		t.Error("anything else should select no weighting")
	}
}

func TestWeightsNone(t *testing.T) {
	weights := Weights(WeightNone, map[string]*float64{"a": fptr(10), "b": nil})
	if weights["a"] != 1 || weights["b"] != 1 {
		t.Errorf("WeightNone should weigh everyone 1, got %v", weights)
	}
}

func TestWeightsStake(t *testing.T) {
	weights := Weights(WeightStake, map[string]*float64{
		"whale":  fptr(1000),
		"minnow": fptr(10),
		"ghost":  nil,
	})
	if weights["whale"] != 1000 || weights["minnow"] != 10 {
		t.Errorf("stake weights wrong: %v", weights)
	}
	if weights["ghost"] != 0 {
		t.Errorf("unknown stake should weigh 0, got %v", weights["ghost"])
	}
}

func TestWeightsSelfAdjusting(t *testing.T) {
	// mean of known stakes = (300 + 100) / 2 = 200
	weights := Weights(WeightSelfAdjusting, map[string]*float64{
		"a": fptr(300),
		"b": fptr(100),
		"c": nil,
	})
	if weights["a"] != 1.5 {
		t.Errorf("a: got %v, want 1.5", weights["a"])
	}
	if weights["b"] != 0.5 {
		t.Errorf("b: got %v, want 0.5", weights["b"])
	}
	if weights["c"] != 0 {
		t.Errorf("c: got %v, want 0", weights["c"])
	}
}

func TestWeightsDegradeWithoutStakes(t *testing.T) {
	// When no voter has a known stake both modes count votes plainly.
	for _, mode := range []WeightMode{WeightStake, WeightSelfAdjusting} {
		weights := Weights(mode, map[string]*float64{"a": nil, "b": nil})
		if weights["a"] != 1 || weights["b"] != 1 {
			t.Errorf("mode %d: expected degradation to 1s, got %v", mode, weights)
		}
	}
}
