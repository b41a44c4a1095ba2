package generator

import (
	"testing"
)

func TestParseResponse_StripsCodeFences(t *testing.T) {
	input := "```json\n" + `{"questions":[{"question":"2+2?","options":["1","2","3","4"],"correctAnswerIndex":3,"explanation":"basic"}]}` + "\n```"

	qs, problems, err := ParseResponse(input)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if len(problems) != 0 {
		t.Fatalf("unexpected problems: %v", problems)
	}
	if len(qs) != 1 || qs[0].CorrectAnswerIndex != 3 || qs[0].Explanation != "basic" {
		t.Fatalf("unexpected questions: %+v", qs)
	}
}

func TestParseResponse_DropsInvalidQuestions(t *testing.T) {
	input := `{"questions":[
		{"question":"ok?","options":["a","b","c","d"],"correctAnswerIndex":0},
		{"question":"three options?","options":["a","b","c"],"correctAnswerIndex":0},
		{"question":"bad index?","options":["a","b","c","d"],"correctAnswerIndex":4},
		{"question":"no index?","options":["a","b","c","d"]}
	]}`

	qs, problems, err := ParseResponse(input)
	if err != nil {
		t.Fatalf("expected partial success, got: %v", err)
	}
	if len(qs) != 1 || qs[0].Question != "ok?" {
		t.Fatalf("expected only the valid question, got %+v", qs)
	}
	if len(problems) != 3 {
		t.Fatalf("expected 3 problems, got %v", problems)
	}
}

func TestParseResponse_AllInvalid(t *testing.T) {
	_, _, err := ParseResponse(`{"questions":[{"question":"x","options":["a"],"correctAnswerIndex":0}]}`)
	if _, ok := err.(*ValidationError); !ok {
		t.Fatalf("expected *ValidationError, got %T %v", err, err)
	}
}

func TestParseResponse_EmptyAndMalformed(t *testing.T) {
	if _, _, err := ParseResponse(`{"questions":[]}`); err == nil {
		t.Fatalf("expected error for empty batch")
	}
	if _, _, err := ParseResponse(`Sure! Here are your questions`); err == nil {
		t.Fatalf("expected error for prose response")
	}
}
