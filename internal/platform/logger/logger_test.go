package logger

import "testing"

func TestSanitizeKVsMasksAndHashes(t *testing.T) {
	out := sanitizeKVs([]interface{}{
		"sender_number", "01012345678",
		"student_id", "2f6e0f0a-8f7e-4a43-9a57-2d8b2a1c0b11",
		"authorization", "Bearer abc",
		"course_id", "c1",
	})
	if len(out) != 8 {
		t.Fatalf("len: want=8 got=%d", len(out))
	}
	if got := out[1]; got != "********678" {
		t.Fatalf("sender_number: want=%q got=%v", "********678", got)
	}
	if got, _ := out[3].(string); len(got) != len("hash:")+12 {
		t.Fatalf("student_id: want hashed value got=%v", out[3])
	}
	if got := out[5]; got != "[REDACTED]" {
		t.Fatalf("authorization: want redacted got=%v", got)
	}
	if got := out[7]; got != "c1" {
		t.Fatalf("course_id: want=c1 got=%v", got)
	}
}

func TestMaskDigitsShortValues(t *testing.T) {
	if got := maskDigits("12"); got != "**" {
		t.Fatalf("maskDigits: want=** got=%q", got)
	}
}
