package webhook

import "testing"

func TestSubstitute(t *testing.T) {
	tests := []struct {
		name string
		tmpl string
		vars map[string]any
		want string
	}{
		{
			name: "two variables",
			tmpl: "{{a}}-{{b}}",
			vars: map[string]any{"a": "x", "b": "y"},
			want: "x-y",
		},
		{
			name: "unresolved left verbatim",
			tmpl: "{{missing}}",
			vars: map[string]any{},
			want: "{{missing}}",
		},
		{
			name: "non-string value",
			tmpl: "size={{fileSize}}",
			vars: map[string]any{"fileSize": 1024},
			want: "size=1024",
		},
		{
			name: "no placeholders",
			tmpl: "plain text",
			vars: map[string]any{"a": "x"},
			want: "plain text",
		},
		{
			name: "repeated placeholder",
			tmpl: "{{n}} and {{n}}",
			vars: map[string]any{"n": "v"},
			want: "v and v",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Substitute(tt.tmpl, tt.vars); got != tt.want {
				t.Errorf("Substitute(%q) = %q, want %q", tt.tmpl, got, tt.want)
			}
		})
	}
}

func TestSubstituteValue_Recursive(t *testing.T) {
	in := map[string]any{
		"msg":  "{{text}}",
		"list": []any{"{{text}}", 7.0},
		"nested": map[string]any{
			"path": "{{filePath}}",
		},
		"untouched": true,
	}
	vars := map[string]any{"text": "hello", "filePath": "/tmp/v.mp4"}

	got := substituteValue(in, vars).(map[string]any)
	if got["msg"] != "hello" {
		t.Errorf("msg = %v", got["msg"])
	}
	list := got["list"].([]any)
	if list[0] != "hello" || list[1] != 7.0 {
		t.Errorf("list = %v", list)
	}
	nested := got["nested"].(map[string]any)
	if nested["path"] != "/tmp/v.mp4" {
		t.Errorf("nested.path = %v", nested["path"])
	}
	if got["untouched"] != true {
		t.Errorf("untouched = %v", got["untouched"])
	}
}
