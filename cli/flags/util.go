package flags

import (
	"strings"

	"github.com/urfave/cli"
)

// MarkRequired returns a copy of flagSet with the given flags marked as
// required. A flag is matched by any of its names, so "owner" and "o" both
// match "owner, o".
func MarkRequired(flagSet []cli.Flag, names ...string) []cli.Flag {
	required := make(map[string]bool, len(names))
	for _, n := range names {
		eachName(n, func(name string) { required[name] = true })
	}
	res := make([]cli.Flag, len(flagSet))
	for i, flag := range flagSet {
		res[i] = flag
		var match bool
		eachName(flag.GetName(), func(name string) { match = match || required[name] })
		if !match {
			continue
		}
		switch f := flag.(type) {
		case cli.StringFlag:
			f.Required = true
			res[i] = f
		case cli.IntFlag:
			f.Required = true
			res[i] = f
		case cli.BoolFlag:
			f.Required = true
			res[i] = f
		case cli.GenericFlag:
			f.Required = true
			res[i] = f
		}
	}
	return res
}

func eachName(longName string, fn func(string)) {
	for _, name := range strings.Split(longName, ",") {
		fn(strings.TrimSpace(name))
	}
}
