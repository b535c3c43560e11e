package cookies

import (
	"reflect"
	"testing"

	"github.com/RecoveryAshes/MediaScraper/internal/models"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []models.Cookie
	}{
		{
			name:  "空输入",
			input: "   ",
			want:  nil,
		},
		{
			name:  "分号分隔",
			input: "a=1; b=2",
			want:  []models.Cookie{{Name: "a", Value: "1"}, {Name: "b", Value: "2"}},
		},
		{
			name:  "值中包含等号",
			input: "token=abc==; x=y",
			want:  []models.Cookie{{Name: "token", Value: "abc=="}, {Name: "x", Value: "y"}},
		},
		{
			name:  "丢弃空名称和空值",
			input: "=1; a=; b=2;;c",
			want:  []models.Cookie{{Name: "b", Value: "2"}},
		},
		{
			name:  "保留重复名称",
			input: "a=1; a=2",
			want:  []models.Cookie{{Name: "a", Value: "1"}, {Name: "a", Value: "2"}},
		},
		{
			name:  "JSON数组",
			input: `[{"name":"sid","value":"xyz","domain":".example.com"},{"name":"n","value":42}]`,
			want: []models.Cookie{
				{Name: "sid", Value: "xyz", Domain: ".example.com"},
				{Name: "n", Value: "42"},
			},
		},
		{
			name:  "JSON布尔值转文本",
			input: `[{"name":"flag","value":true}]`,
			want:  []models.Cookie{{Name: "flag", Value: "true"}},
		},
		{
			name:  "JSON中非字符串domain",
			input: `[{"name":"a","value":"1","domain":null},{"name":"b","value":"2","domain":7},{"name":"c","value":"3","domain":".x.com"}]`,
			want: []models.Cookie{
				{Name: "a", Value: "1"},
				{Name: "b", Value: "2"},
				{Name: "c", Value: "3", Domain: ".x.com"},
			},
		},
		{
			name:  "损坏的JSON回退到分号格式",
			input: `[{"name":"a" x=1; y=2`,
			want:  []models.Cookie{{Name: `[{"name":"a" x`, Value: "1"}, {Name: "y", Value: "2"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.input)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Parse() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestToHeader(t *testing.T) {
	if got := ToHeader(nil); got != "" {
		t.Errorf("ToHeader(nil) = %q", got)
	}

	got := ToHeader(Parse("a=1; b=2"))
	if got != "a=1; b=2" {
		t.Errorf("ToHeader() = %q, want %q", got, "a=1; b=2")
	}
}

func TestParse_DelimitedRoundTrip(t *testing.T) {
	inputs := []string{"a=1", "x=1; y=2; z=3", "dup=1; dup=2"}
	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			once := Parse(in)
			twice := Parse(ToHeader(once))
			if !reflect.DeepEqual(once, twice) {
				t.Errorf("Parse(ToHeader(Parse(%q))) = %v, want %v", in, twice, once)
			}
		})
	}
}
