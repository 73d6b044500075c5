package plugin

import "strings"

// commandArg is one parsed unit of an in-band command line: the leading
// command name (flag empty), or a flag with an optional value.
type commandArg struct {
	Flag  string
	Value string
}

// parseCommandLine splits an in-band command message into the command
// name followed by flag/value pairs. Flags are introduced by "-" or
// "--"; a bare token following a flag becomes that flag's value, and a
// bare token with no preceding flag forms a pair of its own.
func parseCommandLine(line string) []commandArg {
	tokens := strings.Fields(line)
	if len(tokens) == 0 {
		return nil
	}

	args := []commandArg{{Value: tokens[0]}}
	for _, token := range tokens[1:] {
		if strings.HasPrefix(token, "-") {
			flag := strings.TrimLeft(token, "-")
			args = append(args, commandArg{Flag: flag})
			continue
		}
		last := &args[len(args)-1]
		if last.Flag != "" && last.Value == "" {
			last.Value = token
			continue
		}
		args = append(args, commandArg{Value: token})
	}
	return args
}
