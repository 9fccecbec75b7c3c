package retrieval

import (
	"testing"

	"pgregory.net/rapid"

	"filmroom/internal/classify"
	"filmroom/internal/motion"
)

func sampleReport() motion.Report {
	return motion.Report{
		MotionDetected: true,
		Timing:         motion.TimingEarlyToMid,
		Transitions: []motion.Transition{
			{Key: "t0_to_t2", Ratio: 0.02},
			{Key: "t2_to_t4", Ratio: 0.005},
		},
	}
}

func TestBuildQueryLayout(t *testing.T) {
	c := classify.Result{OffenseSide: "left", DefenseSide: "right", OffenseJerseyColor: "white", DefenseJerseyColor: "red"}
	got := BuildQuery(c, sampleReport())
	want := "NFL pre-snap similarity query.\n" +
		"offense_side=left, defense_side=right\n" +
		"offense_color=white, defense_color=red\n" +
		"motion_detected=true, timing=early_to_mid\n" +
		"motion_ratios=t0_to_t2:0.020000, t2_to_t4:0.005000\n"
	if got != want {
		t.Fatalf("BuildQuery mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestBuildQueryFallbackRecord(t *testing.T) {
	got := BuildQuery(classify.Fallback(nil), motion.Report{Timing: motion.TimingNone})
	want := "NFL pre-snap similarity query.\n" +
		"offense_side=unknown, defense_side=unknown\n" +
		"offense_color=unknown, defense_color=unknown\n" +
		"motion_detected=false, timing=none\n" +
		"motion_ratios=\n"
	if got != want {
		t.Fatalf("BuildQuery mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestBuildQueryIgnoresReasoningAndTeams(t *testing.T) {
	a := classify.Result{OffenseSide: "left", Reasoning: "one", OffenseTeam: "Bills"}
	b := classify.Result{OffenseSide: "left", Reasoning: "two", OffenseTeam: "Chiefs"}
	if BuildQuery(a, sampleReport()) != BuildQuery(b, sampleReport()) {
		t.Fatal("query should only depend on sides, colours and motion")
	}
}

func TestBuildQueryIsPure(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		sides := rapid.SampledFrom([]string{"left", "right", "unknown", ""})
		c := classify.Result{
			OffenseSide:        sides.Draw(t, "offense"),
			DefenseSide:        sides.Draw(t, "defense"),
			OffenseJerseyColor: rapid.String().Draw(t, "offense_color"),
			DefenseJerseyColor: rapid.String().Draw(t, "defense_color"),
		}
		ratios := rapid.SliceOfN(rapid.Float64Range(0, 1), 2, 5).Draw(t, "ratios")
		report := motion.Report{
			MotionDetected: rapid.Bool().Draw(t, "detected"),
			Timing:         rapid.SampledFrom([]string{motion.TimingNone, motion.TimingEarlyToMid, motion.TimingMid, motion.TimingMidToLate}).Draw(t, "timing"),
		}
		for _, ratio := range ratios {
			key := rapid.StringMatching(`t[0-9]_to_t[0-9]`).Draw(t, "key")
			report.Transitions = append(report.Transitions, motion.Transition{Key: key, Ratio: ratio})
		}
		first := BuildQuery(c, report)
		copied := report
		copied.Transitions = append([]motion.Transition(nil), report.Transitions...)
		if second := BuildQuery(c, copied); first != second {
			t.Fatalf("query not deterministic:\n%q\n%q", first, second)
		}
	})
}
