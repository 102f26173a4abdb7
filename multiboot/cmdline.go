package multiboot

// CmdLineVisitor defines a visitor function that gets invoked for each
// argument of the kernel command line. The visitor must return true to
// continue or false to abort the scan.
type CmdLineVisitor func(key, value string) bool

// VisitCmdLineArgs splits the kernel command line into whitespace-separated
// arguments and invokes visitor for each one of them. Arguments of the form
// "key=value" are split at the first '='; flags without a value (e.g.
// "nosmp") are reported with the key as their value.
//
// Keys and values are substrings of the command line so no memory is
// allocated.
func (l *InformationList) VisitCmdLineArgs(visitor CmdLineVisitor) {
	tag, ok := l.First(TagCommandLine)
	if !ok {
		return
	}

	visitCmdLine(tag.text, visitor)
}

// LookupCmdLine returns the value of the first command line argument whose
// key matches key.
func (l *InformationList) LookupCmdLine(key string) (string, bool) {
	var (
		value string
		found bool
	)

	l.VisitCmdLineArgs(func(k, v string) bool {
		if k == key {
			value, found = v, true
			return false
		}
		return true
	})

	return value, found
}

func visitCmdLine(cmdLine string, visitor CmdLineVisitor) {
	for start := 0; start < len(cmdLine); {
		if isSpace(cmdLine[start]) {
			start++
			continue
		}

		end := start
		for end < len(cmdLine) && !isSpace(cmdLine[end]) {
			end++
		}

		arg := cmdLine[start:end]
		start = end

		key, value := arg, arg
		for i := 0; i < len(arg); i++ {
			if arg[i] == '=' {
				key, value = arg[:i], arg[i+1:]
				break
			}
		}

		if !visitor(key, value) {
			return
		}
	}
}

func isSpace(ch byte) bool {
	switch ch {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	default:
		return false
	}
}
