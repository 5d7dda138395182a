package schedule

import (
	"fmt"
	"testing"

	"edtcal/internal/model"
)

func TestAssignColorsStableWithinRun(t *testing.T) {
	s := model.Schedule{
		{Day: "Lundi", Date: date(t, "2026-01-05"), Courses: []model.Course{
			course("08:00", "10:00", "Maths", "", "", "EDT"),
			course("10:15", "12:15", "Anglais", "", "", "EDT"),
		}},
		{Day: "Mardi", Date: date(t, "2026-01-06"), Courses: []model.Course{
			course("08:00", "10:00", "Maths", "", "", "EDT"),
		}},
	}

	colored := AssignColors(s)

	maths1 := colored[0].Courses[0].Color
	maths2 := colored[1].Courses[0].Color
	anglais := colored[0].Courses[1].Color

	if maths1 == (model.ColorPair{}) {
		t.Fatal("color not assigned")
	}
	if maths1 != maths2 {
		t.Errorf("same subject got different colors: %+v vs %+v", maths1, maths2)
	}
	if maths1 == anglais {
		t.Errorf("distinct subjects share a color before the palette wraps")
	}
}

func TestAssignColorsPaletteWraps(t *testing.T) {
	day := model.Day{Day: "Lundi", Date: date(t, "2026-01-05")}
	for i := 0; i < len(palette)+1; i++ {
		day.Courses = append(day.Courses, course("08:00", "09:00", fmt.Sprintf("S%d", i), "", "", "EDT"))
	}

	colored := AssignColors(model.Schedule{day})
	first := colored[0].Courses[0].Color
	wrapped := colored[0].Courses[len(palette)].Color
	if first != wrapped {
		t.Errorf("subject %d should reuse the first palette entry", len(palette))
	}
}
