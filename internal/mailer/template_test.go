package mailer

import (
	"strings"
	"testing"
)

func TestTemplatesEscapeHTML(t *testing.T) {
	r := Recipient{FullName: `<script>alert(1)</script>`, StaffID: "STF001", Email: "jane@uni.edu"}

	for name, build := range map[string]func(Recipient) (Rendered, error){
		"approval":     ApprovalEmail,
		"rejection":    RejectionEmail,
		"registration": NewRegistrationEmail,
	} {
		t.Run(name, func(t *testing.T) {
			msg, err := build(r)
			if err != nil {
				t.Fatal(err)
			}
			if strings.Contains(msg.HTML, "<script>") {
				t.Fatalf("html body not escaped: %s", msg.HTML)
			}
			if !strings.Contains(msg.Text, r.FullName) {
				t.Fatalf("text body missing name: %s", msg.Text)
			}
		})
	}
}

func TestRegistrationEmailListsApplicant(t *testing.T) {
	msg, err := NewRegistrationEmail(Recipient{FullName: "Jane Doe", StaffID: "STF001", Email: "jane@uni.edu"})
	if err != nil {
		t.Fatal(err)
	}
	if msg.Subject != SubjectNewRegistration {
		t.Fatalf("subject = %q", msg.Subject)
	}
	for _, want := range []string{"Jane Doe", "STF001", "jane@uni.edu"} {
		if !strings.Contains(msg.HTML, want) || !strings.Contains(msg.Text, want) {
			t.Errorf("missing %q", want)
		}
	}
}
