package portal

import (
	"strings"
	"testing"

	"edtcal/internal/model"
)

// dayFixture mirrors the portal's fragment structure: one .Ligne element
// per entry with role-named children.
const dayFixture = `
<div id="Contenu">
  <div class="Ligne">
    <div class="Debut">08:00</div>
    <div class="Fin">10:00</div>
    <div class="Matiere">Math&eacute;matiques</div>
    <div class="Salle">A1</div>
    <div class="Prof">M. Dupont</div>
  </div>
  <div class="Ligne">
    <div class="Debut">10:15</div>
    <div class="Fin">12:15</div>
    <div class="Matiere">Anglais&nbsp;technique</div>
    <div class="Salle"></div>
    <div class="Prof"></div>
  </div>
  <div class="Ligne">
    <div class="Debut"></div>
    <div class="Fin">14:00</div>
    <div class="Matiere">Orphelin</div>
  </div>
  <div class="Ligne">
    <div class="Debut">14:00</div>
    <div class="Fin">16:00</div>
    <div class="Matiere"></div>
  </div>
  <div class="Ligne">
    <div class="Debut">1600</div>
    <div class="Fin">1800</div>
    <div class="Matiere">Sans separateur</div>
  </div>
</div>`

func TestExtractCoursesAcceptance(t *testing.T) {
	courses := ExtractCourses(dayFixture)
	// 2 well-formed lines; the 3 malformed ones (missing start, missing
	// subject, no time separator) must be rejected.
	if len(courses) != 2 {
		t.Fatalf("got %d courses, want 2: %+v", len(courses), courses)
	}

	first := courses[0]
	if first.Start != "08:00" || first.End != "10:00" {
		t.Errorf("times = %q-%q, want 08:00-10:00", first.Start, first.End)
	}
	if first.Subject != "Mathématiques" {
		t.Errorf("subject = %q, want Mathématiques", first.Subject)
	}
	if first.Room != "A1" || first.Teacher != "M. Dupont" {
		t.Errorf("room/teacher = %q/%q", first.Room, first.Teacher)
	}
	if first.Source != model.SourceEDT {
		t.Errorf("source = %q, want %q", first.Source, model.SourceEDT)
	}

	second := courses[1]
	if second.Subject != "Anglais technique" {
		t.Errorf("nbsp not normalized: subject = %q", second.Subject)
	}
	if second.Room != "" || second.Teacher != "" {
		t.Errorf("missing fields must default to empty strings, got %q/%q", second.Room, second.Teacher)
	}
}

func TestExtractCoursesEmptyInput(t *testing.T) {
	if got := ExtractCourses(""); len(got) != 0 {
		t.Errorf("empty html: got %d courses", len(got))
	}
	if got := ExtractCourses("<html><body><p>Service indisponible</p></body></html>"); len(got) != 0 {
		t.Errorf("fragment without lines: got %d courses", len(got))
	}
	// Truncated markup must not panic or error out.
	if got := ExtractCourses(`<div class="Ligne"><div class="Debut">08:0`); len(got) != 0 {
		t.Errorf("truncated markup: got %d courses", len(got))
	}
}

func TestExtractCoursesManyLines(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 5; i++ {
		b.WriteString(`<div class="Ligne"><div class="Debut">08:00</div><div class="Fin">09:00</div><div class="Matiere">S</div></div>`)
	}
	if got := ExtractCourses(b.String()); len(got) != 5 {
		t.Errorf("got %d courses, want 5", len(got))
	}
}
