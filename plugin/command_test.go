package plugin

import (
	"reflect"
	"testing"
)

func TestParseCommandLine(t *testing.T) {
	cases := []struct {
		name string
		line string
		want []commandArg
	}{
		{
			name: "empty",
			line: "   ",
			want: nil,
		},
		{
			name: "command only",
			line: "/plugin",
			want: []commandArg{{Value: "/plugin"}},
		},
		{
			name: "short flag without value",
			line: "/plugin -h",
			want: []commandArg{{Value: "/plugin"}, {Flag: "h"}},
		},
		{
			name: "long flag with value",
			line: "/plugin --disable 2",
			want: []commandArg{{Value: "/plugin"}, {Flag: "disable", Value: "2"}},
		},
		{
			name: "short flag with value",
			line: "/plugin -e 1",
			want: []commandArg{{Value: "/plugin"}, {Flag: "e", Value: "1"}},
		},
		{
			name: "two flag value pairs",
			line: "/plugin -e 1 -d 2",
			want: []commandArg{{Value: "/plugin"}, {Flag: "e", Value: "1"}, {Flag: "d", Value: "2"}},
		},
		{
			name: "bare token without flag forms own pair",
			line: "/plugin 1",
			want: []commandArg{{Value: "/plugin"}, {Value: "1"}},
		},
		{
			name: "extra value after filled flag",
			line: "/plugin -e 1 2",
			want: []commandArg{{Value: "/plugin"}, {Flag: "e", Value: "1"}, {Value: "2"}},
		},
		{
			name: "extra whitespace",
			line: "  /plugin   --list  ",
			want: []commandArg{{Value: "/plugin"}, {Flag: "list"}},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := parseCommandLine(tc.line)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("parseCommandLine(%q) = %#v, want %#v", tc.line, got, tc.want)
			}
		})
	}
}
