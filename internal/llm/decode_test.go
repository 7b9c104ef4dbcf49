package llm

import (
	"reflect"
	"testing"
)

func TestStripFences(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "no fence",
			input: `{"a":1}`,
			want:  `{"a":1}`,
		},
		{
			name:  "json fence",
			input: "```json\n{\"a\":1}\n```",
			want:  `{"a":1}`,
		},
		{
			name:  "bare fence",
			input: "```\n{\"a\":1}\n```",
			want:  `{"a":1}`,
		},
		{
			name:  "surrounding whitespace",
			input: "  \n```json\n{\"a\":1}\n```  \n",
			want:  `{"a":1}`,
		},
		{
			name:  "single line fence",
			input: "```json {\"a\":1} ```",
			want:  `{"a":1}`,
		},
		{
			name:  "empty",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripFences(tt.input); got != tt.want {
				t.Errorf("StripFences(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Type    string   `json:"type"`
		Summary string   `json:"summary"`
		Techs   []string `json:"technologies"`
	}

	t.Run("fenced reply decodes", func(t *testing.T) {
		reply := "```json\n{\"type\":\"library\",\"summary\":\"a lib\",\"technologies\":[\"Go\"]}\n```"
		var got payload
		if !DecodeJSON(reply, &got) {
			t.Fatal("DecodeJSON() = false, want true")
		}
		want := payload{Type: "library", Summary: "a lib", Techs: []string{"Go"}}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("decoded = %+v, want %+v", got, want)
		}
	})

	t.Run("prose reply fails", func(t *testing.T) {
		var got payload
		if DecodeJSON("This repository appears to be a library.", &got) {
			t.Error("DecodeJSON() = true for prose, want false")
		}
	})

	t.Run("empty reply fails", func(t *testing.T) {
		var got payload
		if DecodeJSON("", &got) {
			t.Error("DecodeJSON() = true for empty reply, want false")
		}
	})
}
