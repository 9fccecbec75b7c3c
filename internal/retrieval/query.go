package retrieval

import (
	"strconv"
	"strings"

	"filmroom/internal/classify"
	"filmroom/internal/motion"
)

// BuildQuery renders the similarity query for a clip. The output depends only
// on the side assignment, jersey colours, motion flag, timing and the
// transition ratios, in transition order; ratios use six decimals.
func BuildQuery(c classify.Result, report motion.Report) string {
	var b strings.Builder
	b.WriteString("NFL pre-snap similarity query.\n")
	b.WriteString("offense_side=" + field(c.OffenseSide) + ", defense_side=" + field(c.DefenseSide) + "\n")
	b.WriteString("offense_color=" + field(c.OffenseJerseyColor) + ", defense_color=" + field(c.DefenseJerseyColor) + "\n")
	b.WriteString("motion_detected=" + strconv.FormatBool(report.MotionDetected) + ", timing=" + field(report.Timing) + "\n")
	b.WriteString("motion_ratios=")
	for i, transition := range report.Transitions {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(transition.Key)
		b.WriteByte(':')
		b.WriteString(strconv.FormatFloat(transition.Ratio, 'f', 6, 64))
	}
	b.WriteByte('\n')
	return b.String()
}

func field(value string) string {
	value = strings.Join(strings.Fields(value), " ")
	if value == "" {
		return classify.Unknown
	}
	return value
}
